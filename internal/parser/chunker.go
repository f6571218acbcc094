package parser

import (
	"strings"
	"unicode"
)

// Chunk is a retrievable piece of a manual.
type Chunk struct {
	Content  string
	Source   string
	Page     int
	Section  string
	Position int
}

// ChunkConfig defines chunking parameters.
type ChunkConfig struct {
	// MinSize: sections smaller than this merge into the previous chunk on the same page
	MinSize int
	// MaxSize: larger sections split at paragraphs, then sentences
	MaxSize int
}

// DefaultChunkConfig returns sizes that keep a chunk within one manual topic.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MinSize: 120,
		MaxSize: 800,
	}
}

// ChunkManual splits a manual into chunks that never span pages.
func ChunkManual(m *Manual, config ChunkConfig) []Chunk {
	var chunks []Chunk

	for _, section := range m.Sections {
		pieces := []string{section.Content}
		if len(section.Content) > config.MaxSize {
			pieces = splitParagraphs(section.Content, config.MaxSize)
		}

		for _, piece := range pieces {
			if n := len(chunks); n > 0 && len(piece) < config.MinSize {
				last := &chunks[n-1]
				if last.Page == section.Page && len(last.Content)+len(piece) <= config.MaxSize {
					last.Content += "\n\n" + piece
					continue
				}
			}
			chunks = append(chunks, Chunk{
				Content:  withHeading(section.Path, piece),
				Source:   m.Source,
				Page:     section.Page,
				Section:  section.Path,
				Position: len(chunks),
			})
		}
	}
	return chunks
}

// withHeading prefixes the section path so the chunk embeds with its topic.
func withHeading(path, content string) string {
	if path == "" {
		return content
	}
	return path + "\n\n" + content
}

// splitParagraphs packs paragraphs into pieces of at most maxSize, splitting
// oversized paragraphs at sentence boundaries.
func splitParagraphs(content string, maxSize int) []string {
	var (
		pieces  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) > maxSize {
			flush()
			pieces = append(pieces, packSentences(splitSentences(para), maxSize)...)
			continue
		}
		if current.Len()+len(para) > maxSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return pieces
}

func packSentences(sentences []string, maxSize int) []string {
	var (
		pieces  []string
		current strings.Builder
	)
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if current.Len()+len(s) > maxSize && current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// splitSentences splits text after '.', '!' or '?' followed by whitespace.
// A period after a digit or capital letter ("v2.", "Rack A.") does not end a
// sentence.
func splitSentences(text string) []string {
	var (
		sentences []string
		current   strings.Builder
	)

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if r == '.' && i > 0 && (unicode.IsUpper(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
			continue
		}
		sentences = append(sentences, current.String())
		current.Reset()
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}
