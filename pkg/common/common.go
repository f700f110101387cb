package common

import "time"

// Role classifies a contact's position relative to procurement decisions.
// The vocabulary is fixed; classification from free-text titles is driven
// by a configured keyword table.
type Role string

const (
	RoleDecisionMaker Role = "decision_maker"
	RoleTechnicalLead Role = "technical_lead"
	RoleExecutive     Role = "executive"
	RoleOther         Role = "other"
)

// Tier is the business-development priority band of a scored opportunity.
type Tier string

const (
	TierHigh   Tier = "HIGH"
	TierMedium Tier = "MEDIUM"
	TierLow    Tier = "LOW"
	TierSkip   Tier = "SKIP"
)

// Outcome records how an opportunity run ended in the processed cache.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeError     Outcome = "error"
)

// Person is a node in the contact graph. Identity is the normalized
// (name, organization) pair; a matching email is a stronger identity
// signal and wins ties.
type Person struct {
	PublicID     string    `json:"public_id"`
	Name         string    `json:"name"`
	Title        string    `json:"title"`
	Email        string    `json:"email,omitempty"`
	Role         Role      `json:"role"`
	OrgKey       string    `json:"org_key"`
	Source       string    `json:"source"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
	IdentityKey  string    `json:"identity_key"`
}

// Organization is a node in the contact graph. Identity is the normalized
// name after suffix stripping and synonym substitution.
type Organization struct {
	PublicID    string    `json:"public_id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	IdentityKey string    `json:"identity_key"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// WorksAt is a directed Person -> Organization edge. At most one edge
// exists per (person, organization) pair; re-observation updates the
// attributes instead of duplicating the edge.
type WorksAt struct {
	PersonKey   string    `json:"person_key"`
	OrgKey      string    `json:"org_key"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// Opportunity is one contracting notice. NoticeID is externally assigned
// and globally unique; the node is immutable after creation except for
// corrections explicitly flagged by the caller.
type Opportunity struct {
	NoticeID      string    `json:"notice_id"`
	Title         string    `json:"title,omitempty"`
	AgencyName    string    `json:"agency_name"`
	NAICSCode     string    `json:"naics_code"`
	SetAsideType  string    `json:"set_aside_type"`
	EstimatedLow  float64   `json:"estimated_value_low"`
	EstimatedHigh float64   `json:"estimated_value_high"`
	PostedDate    time.Time `json:"posted_date"`
	Deadline      time.Time `json:"response_deadline"`
	Provenance    string    `json:"raw_text_provenance"`
}

// Candidate is one raw extracted entity as produced by the extraction
// collaborator. It is validated and coerced at the pipeline boundary
// before it reaches the resolver.
type Candidate struct {
	Name             string `json:"name"`
	Title            string `json:"title"`
	OrganizationName string `json:"organization_name"`
	Email            string `json:"email,omitempty"`
}

// Contact is one row of the relationship index projection: a person known
// to work at an organization, with derived influence.
type Contact struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	Email     string `json:"email,omitempty"`
	Role      Role   `json:"role"`
	Influence int    `json:"influence"`
}

// ContactMatch records which contact contributed relationship signal to a
// score.
type ContactMatch struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// ScoreRecord is the immutable result of one scoring run. Records are
// append-only; rescoring produces a new record reflecting the graph state
// observed at that moment.
type ScoreRecord struct {
	NoticeID       string         `json:"notice_id"`
	BaseScore      float64        `json:"base_score"`
	Relationship   float64        `json:"relationship_component"`
	ContractFit    float64        `json:"contract_fit_component"`
	SetAside       float64        `json:"set_aside_component"`
	NAICS          float64        `json:"naics_component"`
	Total          float64        `json:"total_score"`
	Tier           Tier           `json:"priority_tier"`
	WinProbability float64        `json:"win_probability"`
	Matched        []ContactMatch `json:"matched_contacts"`
	ScoredAt       time.Time      `json:"scored_at"`
}
