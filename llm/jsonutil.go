package llm

import "regexp"

// LLMs routinely wrap JSON in markdown fences or append trailing commas.
var (
	fencedJSONPattern  = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	bareJSONPattern    = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	trailingCommaFixup = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON pulls a JSON object out of an LLM response, stripping markdown
// code fences and trailing commas. Returns "" when no object is found.
func ExtractJSON(content string) string {
	raw := ""
	if m := fencedJSONPattern.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else if m := bareJSONPattern.FindString(content); m != "" {
		raw = m
	}
	if raw == "" {
		return ""
	}
	return trailingCommaFixup.ReplaceAllString(raw, "$1")
}
