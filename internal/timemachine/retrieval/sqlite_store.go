package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Chunk is one stored piece of a knowledge document.
type Chunk struct {
	ID       string
	Source   string
	Index    int
	FileType string
	Content  string
}

// SQLiteStore implements KnowledgeStore over the knowledge_chunks table.
//
// With an embedder that returns vectors, ranking is by cosine distance
// computed in Go (modernc.org/sqlite has no vector extension). Without
// vectors it falls back to lexical term overlap so retrieval still works
// offline. Ties keep the table's natural order (source, chunk index).
type SQLiteStore struct {
	db       *sql.DB
	embedder Embedder
	logger   *slog.Logger
}

// NewSQLiteStore creates a store on db. The knowledge_chunks table must
// exist (created by the store migrations). A nil embedder means lexical
// ranking only.
func NewSQLiteStore(db *sql.DB, embedder Embedder, logger *slog.Logger) *SQLiteStore {
	if embedder == nil {
		embedder = NoopEmbedder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, embedder: embedder, logger: logger}
}

// Add embeds and upserts chunks.
func (s *SQLiteStore) Add(ctx context.Context, chunks []Chunk) error {
	for _, c := range chunks {
		vec, err := s.embedder.Embed(ctx, c.Content)
		if err != nil {
			return fmt.Errorf("retrieval: embed chunk %s: %w", c.ID, err)
		}
		var embeddingJSON []byte
		if vec != nil {
			if embeddingJSON, err = json.Marshal(vec); err != nil {
				return fmt.Errorf("retrieval: marshal embedding: %w", err)
			}
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO knowledge_chunks
				(id, source, chunk_index, file_type, content, embedding, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Source, c.Index, c.FileType, c.Content, nullableString(embeddingJSON),
			time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("retrieval: insert chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("retrieval: count chunks: %w", err)
	}
	return n, nil
}

type scoredChunk struct {
	snippet Snippet
	score   float64
}

// Search implements KnowledgeStore.
func (s *SQLiteStore) Search(ctx context.Context, query string, k int) ([]Snippet, error) {
	if k <= 0 {
		return nil, nil
	}
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		// Lexical ranking still works without the query vector.
		s.logger.Warn("retrieval: embed query failed, ranking lexically", "err", err)
		queryVec = nil
	}
	queryTerms := terms(query)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, chunk_index, file_type, content, embedding
		FROM knowledge_chunks
		ORDER BY source, chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("retrieval: query chunks: %w", err)
	}
	defer rows.Close()

	var candidates []scoredChunk
	for rows.Next() {
		var (
			c             Chunk
			embeddingJSON sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Source, &c.Index, &c.FileType, &c.Content, &embeddingJSON); err != nil {
			s.logger.Warn("retrieval: skip malformed row", "err", err)
			continue
		}

		score, ok := 0.0, false
		if queryVec != nil && embeddingJSON.Valid && embeddingJSON.String != "" {
			var vec []float32
			if err := json.Unmarshal([]byte(embeddingJSON.String), &vec); err == nil {
				score, ok = 1-cosineSimilarity(queryVec, vec), true
			}
		}
		if !ok {
			score, ok = lexicalDistance(queryTerms, c.Content)
		}
		if !ok {
			continue
		}
		candidates = append(candidates, scoredChunk{snippet: c.snippet(score), score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retrieval: iterate rows: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score < candidates[j].score
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]Snippet, k)
	for i := range k {
		out[i] = candidates[i].snippet
	}
	return out, nil
}

func (c Chunk) snippet(score float64) Snippet {
	return Snippet{
		ID:   c.ID,
		Text: c.Content,
		Metadata: map[string]string{
			"source":    c.Source,
			"chunk_id":  strconv.Itoa(c.Index),
			"file_type": c.FileType,
		},
		Score: score,
	}
}

func nullableString(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}

// cosineSimilarity returns 0 for mismatched or zero-magnitude vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "were": true,
	"you": true, "your": true, "what": true, "when": true, "how": true, "did": true,
	"about": true, "tell": true, "with": true, "that": true, "this": true, "from": true,
	"have": true, "had": true, "his": true, "her": true, "who": true, "why": true,
}

// terms lower-cases text and keeps distinct words of three or more letters
// that are not stopwords.
func terms(text string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) < 3 || stopwords[w] {
			continue
		}
		out[w] = true
	}
	return out
}

// lexicalDistance is 1 minus the share of query terms found in content.
// Content sharing no term with the query is not a match.
func lexicalDistance(queryTerms map[string]bool, content string) (float64, bool) {
	if len(queryTerms) == 0 {
		return 0, false
	}
	contentTerms := terms(content)
	hits := 0
	for t := range queryTerms {
		if contentTerms[t] {
			hits++
		}
	}
	if hits == 0 {
		return 0, false
	}
	return 1 - float64(hits)/float64(len(queryTerms)), true
}

var _ KnowledgeStore = (*SQLiteStore)(nil)
