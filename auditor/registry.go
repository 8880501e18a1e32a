package auditor

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Registry is the static catalog of auditor definitions. It is built once at
// startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	defs []Definition
	byID map[ID]int // index into defs
}

// NewRegistry builds a registry from the given definitions.
// Definitions must have unique, valid ids and positive stage numbers;
// stage 1 must contain the mandatory medical check.
func NewRegistry(defs []Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("auditor registry requires at least one definition")
	}

	byID := make(map[ID]int, len(defs))
	for i, def := range defs {
		if !def.ID.Valid() {
			return nil, fmt.Errorf("invalid auditor id: %q", def.ID)
		}
		if def.Stage <= 0 {
			return nil, fmt.Errorf("auditor %s: stage must be positive, got %d", def.ID, def.Stage)
		}
		if !def.Mandatory && len(def.Keywords) == 0 {
			return nil, fmt.Errorf("auditor %s: non-mandatory auditor needs activation keywords", def.ID)
		}
		if _, dup := byID[def.ID]; dup {
			return nil, fmt.Errorf("duplicate auditor id: %s", def.ID)
		}
		byID[def.ID] = i
	}

	if idx, ok := byID[Medical]; !ok || defs[idx].Stage != 1 || !defs[idx].Mandatory {
		return nil, fmt.Errorf("stage 1 must contain the mandatory medical auditor")
	}

	return &Registry{defs: defs, byID: byID}, nil
}

// MustDefaultRegistry returns the built-in registry. It panics only if the
// built-in catalog is itself invalid, which is a programming error.
func MustDefaultRegistry() *Registry {
	r, err := NewRegistry(Defaults())
	if err != nil {
		panic(err)
	}
	return r
}

// Definition returns the definition for an id.
func (r *Registry) Definition(id ID) (Definition, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Definition{}, false
	}
	return r.defs[idx], true
}

// DisplayName returns the display label for an id, falling back to the id itself.
func (r *Registry) DisplayName(id ID) string {
	if def, ok := r.Definition(id); ok {
		return def.DisplayName
	}
	return string(id)
}

// Select evaluates activation against the current message and the prior
// turns' text and returns the ordered, deduplicated list of active auditor
// ids for this turn. Mandatory auditors are always included. The result is
// ordered by stage then declaration order, and is deterministic for
// identical input. Select is a pure function: no randomness, no hidden state.
func (r *Registry) Select(message string, history []string) []ID {
	haystack := normalize(message)
	if len(history) > 0 {
		var b strings.Builder
		b.WriteString(haystack)
		for _, h := range history {
			b.WriteByte('\n')
			b.WriteString(normalize(h))
		}
		haystack = b.String()
	}
	tokens := tokenize(haystack)

	type ranked struct {
		id    ID
		stage int
		decl  int
	}
	var active []ranked
	for i, def := range r.defs {
		if def.Mandatory || matchesAny(def.Keywords, haystack, tokens) {
			active = append(active, ranked{id: def.ID, stage: def.Stage, decl: i})
		}
	}

	sort.SliceStable(active, func(a, b int) bool {
		if active[a].stage != active[b].stage {
			return active[a].stage < active[b].stage
		}
		return active[a].decl < active[b].decl
	})

	ids := make([]ID, len(active))
	for i, a := range active {
		ids[i] = a.id
	}
	return ids
}

// Stages groups the given active ids by stage in ascending order, preserving
// the relative order of ids within each stage.
func (r *Registry) Stages(active []ID) [][]ID {
	byStage := make(map[int][]ID)
	var stages []int
	for _, id := range active {
		def, ok := r.Definition(id)
		if !ok {
			continue
		}
		if _, seen := byStage[def.Stage]; !seen {
			stages = append(stages, def.Stage)
		}
		byStage[def.Stage] = append(byStage[def.Stage], id)
	}
	sort.Ints(stages)

	grouped := make([][]ID, 0, len(stages))
	for _, s := range stages {
		grouped = append(grouped, byStage[s])
	}
	return grouped
}

// normalize lowercases text for case-insensitive matching.
func normalize(s string) string {
	return strings.ToLower(s)
}

// tokenize splits normalized text into word tokens, trimming punctuation.
func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	}) {
		tokens[strings.Trim(field, "'")] = true
		tokens[field] = true
	}
	return tokens
}

// matchesAny reports whether any keyword matches the haystack. Phrases match
// by substring; single words match whole tokens, allowing a trailing "s" or
// a possessive so "antibiotic" matches "antibiotics" and "children" matches
// "children's" without "kid" matching "kidney".
func matchesAny(keywords []string, haystack string, tokens map[string]bool) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if strings.ContainsRune(kw, ' ') || strings.ContainsRune(kw, '-') {
			if strings.Contains(haystack, kw) {
				return true
			}
			continue
		}
		if tokens[kw] || tokens[kw+"s"] || tokens[kw+"'s"] {
			return true
		}
	}
	return false
}
