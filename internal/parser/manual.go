// Package parser splits equipment manuals into citable chunks.
//
// A manual is a Markdown file with optional YAML frontmatter. Page breaks are
// marked with form feeds or "<!-- page N -->" comments so each chunk keeps the
// page it came from.
package parser

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	headingRegex    = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	pageMarkerRegex = regexp.MustCompile(`^\s*<!--\s*page\s+(\d+)\s*-->\s*$`)
)

// Manual is a parsed equipment manual.
type Manual struct {
	// Frontmatter metadata (from YAML)
	Frontmatter map[string]any

	// Source is the citation name: frontmatter "source", then "title", then
	// the first h1.
	Source string

	Sections []Section
}

// Section is text under one heading on a single page.
type Section struct {
	Page    int
	Path    string // e.g. "Power > Cabling"
	Content string
}

// ParseManual parses manual text. Pages are numbered from frontmatter
// "first_page" (default 1) unless explicit markers say otherwise.
func ParseManual(content string) *Manual {
	m := &Manual{Frontmatter: map[string]any{}}

	remaining := content
	if strings.HasPrefix(content, "---\n") {
		if endIdx := strings.Index(content[4:], "\n---"); endIdx > 0 {
			if err := yaml.Unmarshal([]byte(content[4:4+endIdx]), &m.Frontmatter); err != nil {
				m.Frontmatter = map[string]any{}
			}
			remaining = strings.TrimPrefix(content[4+endIdx+4:], "\n")
		}
	}

	page := 1
	if p, ok := m.Frontmatter["first_page"].(int); ok && p > 0 {
		page = p
	}
	m.Sections = parseSections(remaining, page)
	m.Source = m.frontmatterString("source")
	if m.Source == "" {
		m.Source = m.frontmatterString("title")
	}
	if m.Source == "" {
		m.Source = firstHeading(remaining)
	}
	return m
}

func (m *Manual) frontmatterString(key string) string {
	if v, ok := m.Frontmatter[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func firstHeading(content string) string {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		if match := headingRegex.FindStringSubmatch(scanner.Text()); len(match) > 0 && len(match[1]) == 1 {
			return strings.TrimSpace(match[2])
		}
	}
	return ""
}

// parseSections walks lines tracking the heading path and the current page.
// A section is cut at every heading and every page break.
func parseSections(content string, page int) []Section {
	var (
		sections []Section
		path     []string
		levels   []int
		body     strings.Builder
	)

	flush := func() {
		text := strings.TrimSpace(body.String())
		body.Reset()
		if text == "" {
			return
		}
		sections = append(sections, Section{Page: page, Path: strings.Join(path, " > "), Content: text})
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if match := pageMarkerRegex.FindStringSubmatch(line); len(match) > 0 {
			flush()
			page, _ = strconv.Atoi(match[1])
			continue
		}
		// Form feeds may sit anywhere in a line.
		if strings.Contains(line, "\f") {
			parts := strings.Split(line, "\f")
			for i, part := range parts {
				if i > 0 {
					flush()
					page++
				}
				if part != "" {
					body.WriteString(part)
					body.WriteString("\n")
				}
			}
			continue
		}

		if match := headingRegex.FindStringSubmatch(line); len(match) > 0 {
			flush()
			level := len(match[1])
			for len(levels) > 0 && levels[len(levels)-1] >= level {
				path = path[:len(path)-1]
				levels = levels[:len(levels)-1]
			}
			path = append(path, strings.TrimSpace(match[2]))
			levels = append(levels, level)
			continue
		}

		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return sections
}
