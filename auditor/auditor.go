// Package auditor defines the reviewer agents that inspect a drafted answer
// before it reaches a user. Each auditor has a fixed identity, a stage number
// controlling when it runs relative to the others, and (for non-mandatory
// auditors) a keyword-based activation predicate.
package auditor

import "fmt"

// ID identifies an auditor. The set of auditors is a closed enumeration
// resolved at startup; unknown ids are rejected by ParseID.
type ID string

const (
	// Medical reviews clinical accuracy and dosage safety. Always runs, stage 1.
	Medical ID = "medical"

	// Pediatric reviews advice involving children. Keyword-activated, stage 2.
	Pediatric ID = "pediatric"

	// DrugInteraction reviews medication combinations. Keyword-activated, stage 2.
	DrugInteraction ID = "drug_interaction"

	// Legal reviews liability and compliance. Always runs, stage 3.
	Legal ID = "legal"

	// Empathy reviews tone and bedside manner. Always runs, stage 3.
	Empathy ID = "empathy"
)

// AllIDs lists every known auditor id in stage order.
var AllIDs = []ID{Medical, Pediatric, DrugInteraction, Legal, Empathy}

// ParseID converts a string to an ID, returning an error for unknown values.
func ParseID(s string) (ID, error) {
	id := ID(s)
	if !id.Valid() {
		return "", fmt.Errorf("unknown auditor id: %q", s)
	}
	return id, nil
}

// Valid reports whether the id is a member of the closed auditor set.
func (id ID) Valid() bool {
	switch id {
	case Medical, Pediatric, DrugInteraction, Legal, Empathy:
		return true
	}
	return false
}

// String returns the wire representation of the id.
func (id ID) String() string {
	return string(id)
}

// CheckStep returns the progress-event step name for this auditor's check,
// e.g. "medical_check".
func (id ID) CheckStep() string {
	return string(id) + "_check"
}

// Definition describes one auditor as declared in the registry.
// Definitions are immutable after registry construction.
type Definition struct {
	// ID is the auditor's unique identity.
	ID ID

	// DisplayName is the human-readable label attached to results.
	DisplayName string

	// Stage groups auditors into barrier-separated execution phases.
	// Auditors in the same stage run concurrently; a later stage never
	// starts before every auditor in the earlier stages has finished.
	Stage int

	// Mandatory auditors run on every turn regardless of content.
	Mandatory bool

	// Keywords activate a non-mandatory auditor when any of them matches
	// the message or conversation history. A keyword containing a space is
	// matched as a case-insensitive substring; a single word is matched
	// against whole tokens (with a plural/possessive allowance).
	Keywords []string
}

// Result is one auditor's verdict on a draft. Produced exactly once per
// active auditor per turn and never mutated afterwards.
type Result struct {
	// Safe is false when the auditor flagged a genuine issue, or when the
	// audit itself failed (failures never pass silently as safe).
	Safe bool `json:"safe"`

	// Reasoning explains the verdict.
	Reasoning string `json:"reasoning,omitempty"`

	// Suggestion proposes a concrete improvement, when the auditor has one.
	Suggestion string `json:"suggestion,omitempty"`

	// Name is the auditor's display label, defaulting to the registry name.
	Name string `json:"name,omitempty"`
}

// Defaults returns the built-in auditor catalog in declaration order.
// Declaration order is also stage order; the selector preserves it.
func Defaults() []Definition {
	return []Definition{
		{
			ID:          Medical,
			DisplayName: "Medical Auditor",
			Stage:       1,
			Mandatory:   true,
		},
		{
			ID:          Pediatric,
			DisplayName: "Pediatric Auditor",
			Stage:       2,
			Keywords: []string{
				"child", "children", "kid", "baby", "babies", "toddler",
				"infant", "newborn", "pediatric", "paediatric",
				"year old", "year-old", "month old", "month-old",
				"my son", "my daughter",
			},
		},
		{
			ID:          DrugInteraction,
			DisplayName: "Drug Interaction Auditor",
			Stage:       2,
			Keywords: []string{
				"ibuprofen", "aspirin", "acetaminophen", "paracetamol",
				"tylenol", "advil", "motrin", "naproxen", "aleve",
				"antibiotic", "amoxicillin", "penicillin", "warfarin",
				"blood thinner", "statin", "insulin", "antihistamine",
				"benadryl", "antidepressant", "ssri",
				"drug interaction", "interact", "interactions",
				"together with", "combine", "combining", "mixing", "mix with",
				"along with", "at the same time as",
			},
		},
		{
			ID:          Legal,
			DisplayName: "Legal Auditor",
			Stage:       3,
			Mandatory:   true,
		},
		{
			ID:          Empathy,
			DisplayName: "Empathy Auditor",
			Stage:       3,
			Mandatory:   true,
		},
	}
}
