// Package scoring computes the composite business-development score for
// an opportunity. The engine is a pure function of the opportunity
// attributes, the relationship lookup, and the configured weights:
// identical inputs always yield an identical record, so rescoring after
// weight tuning is reproducible.
package scoring

import (
	"strings"
	"time"

	"github.com/clearbridge/oppgraph/internal/config"
	"github.com/clearbridge/oppgraph/pkg/common"
	"github.com/clearbridge/oppgraph/pkg/index"
)

// Engine scores opportunities under a fixed policy configuration.
type Engine struct {
	cfg *config.Config

	setAsides map[string]bool
	primary   map[string]bool
}

// NewEngine creates a scoring engine. The configuration is treated as
// immutable for the engine's lifetime.
func NewEngine(cfg *config.Config) *Engine {
	setAsides := make(map[string]bool, len(cfg.SetAsides))
	for _, s := range cfg.SetAsides {
		setAsides[strings.ToLower(strings.TrimSpace(s))] = true
	}
	primary := make(map[string]bool, len(cfg.PrimaryNAICS))
	for _, c := range cfg.PrimaryNAICS {
		primary[strings.TrimSpace(c)] = true
	}
	return &Engine{cfg: cfg, setAsides: setAsides, primary: primary}
}

// Score computes the composite score record for one opportunity given the
// categorized contacts at its agency. ScoredAt is supplied by the caller
// so the record itself stays deterministic.
func (e *Engine) Score(opp common.Opportunity, contacts index.OrgContacts, scoredAt time.Time) common.ScoreRecord {
	rec := common.ScoreRecord{
		NoticeID:  opp.NoticeID,
		BaseScore: e.cfg.Scoring.Base,
		ScoredAt:  scoredAt,
	}

	rec.Relationship, rec.Matched = e.relationshipComponent(contacts)
	rec.ContractFit = e.contractFitComponent(opp.EstimatedLow, opp.EstimatedHigh)
	rec.SetAside = e.setAsideComponent(opp.SetAsideType)
	rec.NAICS = e.naicsComponent(opp.NAICSCode)

	total := rec.BaseScore + rec.Relationship + rec.ContractFit + rec.SetAside + rec.NAICS
	rec.Total = clamp(total, 0, 100)
	rec.Tier, rec.WinProbability = TierForScore(rec.Total)

	return rec
}

// relationshipComponent awards only the single highest-value match, in
// descending priority: decision maker, then technical lead, then
// executive. Signal is not cumulative across categories.
func (e *Engine) relationshipComponent(contacts index.OrgContacts) (float64, []common.ContactMatch) {
	switch {
	case len(contacts.DecisionMakers) > 0:
		return e.cfg.Scoring.DecisionMaker, matches(contacts.DecisionMakers, common.RoleDecisionMaker)
	case len(contacts.TechnicalLeads) > 0:
		return e.cfg.Scoring.TechnicalLead, matches(contacts.TechnicalLeads, common.RoleTechnicalLead)
	case len(contacts.Executives) > 0:
		return e.cfg.Scoring.Executive, matches(contacts.Executives, common.RoleExecutive)
	default:
		return 0, nil
	}
}

func matches(contacts []common.Contact, role common.Role) []common.ContactMatch {
	out := make([]common.ContactMatch, len(contacts))
	for i, c := range contacts {
		out[i] = common.ContactMatch{Name: c.Name, Role: role}
	}
	return out
}

// contractFitComponent classifies the estimated value range against the
// preferred range:
//   - fully inside: 8-10 points, interpolated toward the range midpoint
//   - partial overlap (teaming likely): 3-5 points by overlap fraction
//   - no overlap: 0-3 points decaying with distance from the range
func (e *Engine) contractFitComponent(low, high float64) float64 {
	pref := e.cfg.ContractRange
	if high <= 0 && low <= 0 {
		return 0
	}
	if high < low {
		low, high = high, low
	}

	if low >= pref.Low && high <= pref.High {
		mid := (pref.Low + pref.High) / 2
		half := (pref.High - pref.Low) / 2
		center := (low + high) / 2
		dist := center - mid
		if dist < 0 {
			dist = -dist
		}
		// 10 at the midpoint, tapering to 8 at the range edge.
		return 8 + 2*(1-dist/half)
	}

	overlapLow := maxf(low, pref.Low)
	overlapHigh := minf(high, pref.High)
	if overlapHigh > overlapLow {
		span := high - low
		if span <= 0 {
			return 5
		}
		frac := (overlapHigh - overlapLow) / span
		return 3 + 2*frac
	}

	// Outside the range entirely: decay from 3 to 0 over one range-width
	// of distance.
	width := pref.High - pref.Low
	var dist float64
	if high < pref.Low {
		dist = pref.Low - high
	} else {
		dist = low - pref.High
	}
	if dist >= width {
		return 0
	}
	return 3 * (1 - dist/width)
}

// setAsideComponent rewards recognized small-business and socio-economic
// set-asides; full-and-open competition gets a small credit, anything
// unrecognized gets none.
func (e *Engine) setAsideComponent(setAside string) float64 {
	s := strings.ToLower(strings.TrimSpace(setAside))
	if s == "" {
		return 0
	}
	for candidate := range e.setAsides {
		if strings.Contains(s, candidate) {
			return e.cfg.Scoring.SetAside
		}
	}
	if strings.Contains(s, "full and open") || strings.Contains(s, "full & open") {
		return e.cfg.Scoring.FullAndOpen
	}
	return 0
}

func (e *Engine) naicsComponent(code string) float64 {
	if e.primary[strings.TrimSpace(code)] {
		return e.cfg.Scoring.NAICSPrimary
	}
	return 0
}

// TierForScore maps a total score to its priority tier and interpolated
// win-probability estimate. The bands are a fixed step function:
//
//	70-100  HIGH    65-85%
//	55-69   MEDIUM  50-64%
//	40-54   LOW     35-49%
//	 0-39   SKIP    <35%
func TierForScore(total float64) (common.Tier, float64) {
	switch {
	case total >= 70:
		return common.TierHigh, interpolate(total, 70, 100, 65, 85)
	case total >= 55:
		return common.TierMedium, interpolate(total, 55, 69, 50, 64)
	case total >= 40:
		return common.TierLow, interpolate(total, 40, 54, 35, 49)
	default:
		return common.TierSkip, interpolate(total, 0, 39, 0, 34.9)
	}
}

func interpolate(v, lo, hi, outLo, outHi float64) float64 {
	if hi <= lo {
		return outLo
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return outLo + (outHi-outLo)*(v-lo)/(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
