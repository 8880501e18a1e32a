// Package model provides capability-based model selection. Callers request a
// semantic capability (drafting, auditing, correcting) and the registry
// resolves it to configured endpoints with fallback chains and health-based
// circuit breaking.
package model

// Capability is a semantic model-selection key. The orchestration engine
// never names models directly; it asks for a capability.
type Capability string

const (
	// CapabilityDrafting generates the initial nurse answer.
	CapabilityDrafting Capability = "drafting"

	// CapabilityAuditing reviews a draft and returns a verdict. Auditor
	// calls prefer lower-temperature endpoints for consistent verdicts.
	CapabilityAuditing Capability = "auditing"

	// CapabilityCorrecting rewrites a flagged draft from auditor feedback.
	CapabilityCorrecting Capability = "correcting"

	// CapabilityFast serves quick auxiliary tasks (titles, summaries).
	CapabilityFast Capability = "fast"
)

// ParseCapability converts a string to a Capability, returning "" for
// unknown values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}

// IsValid reports whether the capability is known.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityDrafting, CapabilityAuditing, CapabilityCorrecting, CapabilityFast:
		return true
	}
	return false
}

// String returns the string form of the capability.
func (c Capability) String() string {
	return string(c)
}
