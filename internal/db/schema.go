package db

import "fmt"

const knowledgeTable = "knowledge"

// SchemaSQL returns the schema initialization SQL for the knowledge table.
// The HNSW index dimension must match the configured embedder.
func SchemaSQL(dimension int) string {
	return fmt.Sprintf(`
    -- ==========================================================================
    -- KNOWLEDGE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS knowledge SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS content ON knowledge TYPE string;
    DEFINE FIELD IF NOT EXISTS document_type ON knowledge TYPE string;
    DEFINE FIELD IF NOT EXISTS metadata ON knowledge TYPE object FLEXIBLE DEFAULT {};
    DEFINE FIELD IF NOT EXISTS embedding ON knowledge TYPE array<float>;
    -- Insertion sequence, breaks score ties in query order
    DEFINE FIELD IF NOT EXISTS seq ON knowledge TYPE int;
    DEFINE FIELD IF NOT EXISTS created ON knowledge TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON knowledge TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS knowledge_type ON knowledge FIELDS document_type;
    DEFINE INDEX IF NOT EXISTS knowledge_seq ON knowledge FIELDS seq;
    DEFINE INDEX IF NOT EXISTS knowledge_embedding ON knowledge FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
`, dimension)
}
