package auditor

import (
	"encoding/json"
	"strings"

	"github.com/constellahq/constellation/llm"
)

// verdict is the JSON contract auditors answer with.
type verdict struct {
	Status     string `json:"status"`
	Reasoning  string `json:"reasoning"`
	Suggestion string `json:"suggestion"`
}

// ParseVerdict converts raw auditor output into a Result. LLMs wrap JSON in
// markdown fences or produce stray prose, so parsing is lenient: extract the
// first JSON object, and if none parses fall back to a substring heuristic.
// A response that cannot be read as safe is treated as unsafe.
func ParseVerdict(raw, name string) Result {
	cleaned := llm.ExtractJSON(raw)
	if cleaned != "" {
		var v verdict
		if err := json.Unmarshal([]byte(cleaned), &v); err == nil && v.Status != "" {
			return Result{
				Safe:       strings.EqualFold(v.Status, "SAFE"),
				Reasoning:  v.Reasoning,
				Suggestion: v.Suggestion,
				Name:       name,
			}
		}
	}

	upper := strings.ToUpper(raw)
	if strings.Contains(upper, "SAFE") && !strings.Contains(upper, "UNSAFE") {
		return Result{
			Safe:      true,
			Reasoning: "Response appears acceptable.",
			Name:      name,
		}
	}
	return Result{
		Safe:       false,
		Reasoning:  strings.TrimSpace(raw),
		Suggestion: "Review needed.",
		Name:       name,
	}
}

// FailureResult records an audit that could not run. Failures never pass
// silently as safe; the degraded result triggers the correction step.
func FailureResult(name string, err error) Result {
	return Result{
		Safe:      false,
		Reasoning: "Audit unavailable: " + err.Error(),
		Name:      name,
	}
}
