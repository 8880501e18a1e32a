// Package kb implements the reference-knowledge store that supplies optional
// context to the drafting call. Documents are markdown files loaded from a
// globbed directory (hot-reloaded on change) or pages ingested from URLs.
// Retrieval is keyword-scored snippet lookup; the store satisfies
// engine.ContextRetriever.
package kb

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
)

// maxSnippets is how many chunks a single retrieval returns.
const maxSnippets = 3

// chunkTargetSize groups paragraphs into chunks of roughly this many bytes.
const chunkTargetSize = 600

// chunk is one retrievable unit of a document.
type chunk struct {
	source string
	title  string
	text   string
	tokens map[string]int
}

// Store holds ingested documents and answers retrieval queries.
// Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	enabled bool
	chunks  []chunk
	logger  *slog.Logger

	// fileSources is the set of sources owned by the last LoadDir, so a
	// reload can prune documents whose file has since been deleted without
	// touching URL-ingested content.
	fileSources map[string]bool
}

// NewStore creates an empty store. Retrieval starts disabled, matching the
// original system's default, and is switched on via SetEnabled or config.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

// SetEnabled toggles retrieval. While disabled, Context always returns "".
func (s *Store) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Enabled reports whether retrieval is on.
func (s *Store) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// AddDocument indexes a document under the given source label.
func (s *Store) AddDocument(source, title, text string) {
	chunks := splitChunks(source, title, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-adding a source replaces its previous chunks.
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.source != source {
			kept = append(kept, c)
		}
	}
	s.chunks = append(kept, chunks...)
}

// LoadDir indexes every file under dir matching the doublestar patterns,
// replacing all previously loaded file content: documents whose file no
// longer matches are dropped. Missing directories are not an error; the
// store just stays empty.
func (s *Store) LoadDir(dir string, patterns []string) error {
	if dir == "" {
		return nil
	}
	if len(patterns) == 0 {
		patterns = []string{"**/*.md", "**/*.txt"}
	}

	fsys := os.DirFS(dir)
	var fresh []chunk
	seen := map[string]bool{}
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, match := range matches {
			if seen[match] {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, match))
			if err != nil {
				s.logger.Warn("skipping unreadable knowledge document",
					"path", match, "error", err)
				continue
			}
			title := strings.TrimSuffix(filepath.Base(match), filepath.Ext(match))
			fresh = append(fresh, splitChunks(match, title, string(data))...)
			seen[match] = true
		}
	}

	s.mu.Lock()
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if !s.fileSources[c.source] && !seen[c.source] {
			kept = append(kept, c)
		}
	}
	s.chunks = append(kept, fresh...)
	s.fileSources = seen
	s.mu.Unlock()

	s.logger.Info("knowledge base loaded", "dir", dir, "documents", len(seen), "chunks", s.Len())
	return nil
}

// Context returns the reference context for a query: the top-scoring chunks
// joined with source attribution, or "" when retrieval is disabled or
// nothing matches.
func (s *Store) Context(query string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.enabled || len(s.chunks) == 0 {
		return ""
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return ""
	}

	type scored struct {
		idx   int
		score int
	}
	var hits []scored
	for i, c := range s.chunks {
		score := 0
		for term := range terms {
			score += c.tokens[term]
		}
		if score > 0 {
			hits = append(hits, scored{idx: i, score: score})
		}
	}
	if len(hits) == 0 {
		return ""
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > maxSnippets {
		hits = hits[:maxSnippets]
	}

	var b strings.Builder
	for i, h := range hits {
		c := s.chunks[h.idx]
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s", c.title, c.text)
	}
	return b.String()
}

// splitChunks breaks a document into paragraph-grouped chunks.
func splitChunks(source, title, text string) []chunk {
	var chunks []chunk
	var current strings.Builder

	flush := func() {
		body := strings.TrimSpace(current.String())
		current.Reset()
		if body == "" {
			return
		}
		chunks = append(chunks, chunk{
			source: source,
			title:  title,
			text:   body,
			tokens: tokenize(body),
		})
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para) > chunkTargetSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}

// stopwords are excluded from scoring; they match everything.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "be": true, "can": true,
	"do": true, "for": true, "have": true, "how": true, "i": true, "in": true,
	"is": true, "it": true, "my": true, "of": true, "on": true, "or": true,
	"should": true, "the": true, "to": true, "what": true, "with": true,
	"you": true,
}

// tokenize lowercases text into a term-frequency map, dropping stopwords.
func tokenize(text string) map[string]int {
	freq := make(map[string]int)
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(field) < 2 || stopwords[field] {
			continue
		}
		freq[field]++
	}
	return freq
}
