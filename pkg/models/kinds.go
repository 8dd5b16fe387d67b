package models

// SectionKind identifies one of the three CPR sections.
type SectionKind string

const (
	// SectionContext is the mindset statement (1-5 words).
	SectionContext SectionKind = "context"
	// SectionPurpose is the "To [goal] by [how] so that [impact]" sentence.
	SectionPurpose SectionKind = "purpose"
	// SectionResults is the ordered list of past-tense outcomes.
	SectionResults SectionKind = "results"
)

// Valid returns true if the kind is a known value.
func (k SectionKind) Valid() bool {
	switch k {
	case SectionContext, SectionPurpose, SectionResults:
		return true
	default:
		return false
	}
}

// Title returns the capitalised section name used in user-facing text.
func (k SectionKind) Title() string {
	switch k {
	case SectionContext:
		return "Context"
	case SectionPurpose:
		return "Purpose"
	case SectionResults:
		return "Results"
	default:
		return string(k)
	}
}

// AllSections lists the section kinds in canonical (cpr) order.
func AllSections() []SectionKind {
	return []SectionKind{SectionContext, SectionPurpose, SectionResults}
}

// Pathway is the fixed ordering in which sections are authored and locked.
type Pathway string

const (
	// PathwayCPR authors Context, then Purpose, then Results.
	PathwayCPR Pathway = "cpr"
	// PathwayRPC authors Results, then Purpose, then Context.
	PathwayRPC Pathway = "rpc"
)

// Valid returns true if the pathway is a known value.
func (p Pathway) Valid() bool {
	switch p {
	case PathwayCPR, PathwayRPC:
		return true
	default:
		return false
	}
}

// Order returns the section kinds in the order this pathway unlocks them.
// An unknown pathway yields nil.
func (p Pathway) Order() []SectionKind {
	switch p {
	case PathwayCPR:
		return []SectionKind{SectionContext, SectionPurpose, SectionResults}
	case PathwayRPC:
		return []SectionKind{SectionResults, SectionPurpose, SectionContext}
	default:
		return nil
	}
}

// Predecessor returns the section that must be locked before kind becomes
// editable. The first section of the pathway has no predecessor.
func (p Pathway) Predecessor(kind SectionKind) (SectionKind, bool) {
	order := p.Order()
	for i, k := range order {
		if k == kind && i > 0 {
			return order[i-1], true
		}
	}
	return "", false
}

// CommunicationMode selects the tone of LLM feedback.
type CommunicationMode string

const (
	// ModeFriendly uses plain language and a casual tone.
	ModeFriendly CommunicationMode = "friendly"
	// ModeExecutive uses professional, consultant-level language.
	ModeExecutive CommunicationMode = "executive"
)

// Valid returns true if the mode is a known value.
func (m CommunicationMode) Valid() bool {
	switch m {
	case ModeFriendly, ModeExecutive:
		return true
	default:
		return false
	}
}

// ControlLevel classifies how much influence the author has over a result.
type ControlLevel string

const (
	ControlDirect  ControlLevel = "direct"
	ControlPartial ControlLevel = "partial"
	ControlNone    ControlLevel = "none"
)

// Valid returns true if the level is a known value. The empty level is
// accepted because classification is optional.
func (c ControlLevel) Valid() bool {
	switch c {
	case "", ControlDirect, ControlPartial, ControlNone:
		return true
	default:
		return false
	}
}
