package scoring

import (
	"reflect"
	"testing"
	"time"

	"github.com/clearbridge/oppgraph/internal/config"
	"github.com/clearbridge/oppgraph/pkg/common"
	"github.com/clearbridge/oppgraph/pkg/index"
)

func testEngine() *Engine {
	return NewEngine(config.Default())
}

func contact(name string, role common.Role) common.Contact {
	return common.Contact{Name: name, Role: role}
}

func TestScoreBoundaryBaseOnly(t *testing.T) {
	t.Parallel()

	e := testEngine()
	opp := common.Opportunity{
		NoticeID:      "N-1",
		AgencyName:    "GSA",
		NAICSCode:     "236220",
		SetAsideType:  "",
		EstimatedLow:  50_000_000,
		EstimatedHigh: 80_000_000,
	}

	rec := e.Score(opp, index.OrgContacts{}, time.Unix(0, 0))
	if rec.Total != 35 {
		t.Fatalf("total = %v, want 35 (base only)", rec.Total)
	}
	if rec.Tier != common.TierSkip {
		t.Fatalf("tier = %q, want SKIP", rec.Tier)
	}
	if rec.Relationship != 0 || rec.ContractFit != 0 || rec.SetAside != 0 || rec.NAICS != 0 {
		t.Fatalf("unexpected non-zero components: %+v", rec)
	}
}

func TestScoreEndToEndHigh(t *testing.T) {
	t.Parallel()

	e := testEngine()
	pref := config.Default().ContractRange
	mid := (pref.Low + pref.High) / 2
	opp := common.Opportunity{
		NoticeID:      "N-2",
		AgencyName:    "GSA",
		NAICSCode:     "541512",
		SetAsideType:  "Small Business Set-Aside",
		EstimatedLow:  mid,
		EstimatedHigh: mid,
	}
	contacts := index.OrgContacts{
		DecisionMakers: []common.Contact{contact("Jane Smith", common.RoleDecisionMaker)},
	}

	rec := e.Score(opp, contacts, time.Unix(0, 0))
	// 35 base + 25 decision maker + 10 midpoint fit + 10 set-aside + 5 NAICS
	if rec.Total != 85 {
		t.Fatalf("total = %v, want 85", rec.Total)
	}
	if rec.Tier != common.TierHigh {
		t.Fatalf("tier = %q, want HIGH", rec.Tier)
	}
	if rec.WinProbability < 65 || rec.WinProbability > 85 {
		t.Fatalf("win probability %v outside [65,85]", rec.WinProbability)
	}
	// 85 sits halfway through the 70-100 band, so the estimate should sit
	// halfway through 65-85.
	if rec.WinProbability != 75 {
		t.Fatalf("win probability = %v, want 75", rec.WinProbability)
	}
	if len(rec.Matched) != 1 || rec.Matched[0].Name != "Jane Smith" {
		t.Fatalf("unexpected matched contacts: %+v", rec.Matched)
	}
}

func TestScoreDeterminism(t *testing.T) {
	t.Parallel()

	e := testEngine()
	opp := common.Opportunity{
		NoticeID:      "N-3",
		AgencyName:    "DoD",
		NAICSCode:     "541511",
		SetAsideType:  "8(a)",
		EstimatedLow:  300_000,
		EstimatedHigh: 900_000,
	}
	contacts := index.OrgContacts{
		TechnicalLeads: []common.Contact{contact("Alan Turing", common.RoleTechnicalLead)},
	}
	at := time.Unix(1700000000, 0)

	first := e.Score(opp, contacts, at)
	for i := 0; i < 5; i++ {
		again := e.Score(opp, contacts, at)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("score not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestScoreMonotonicityAddingDecisionMaker(t *testing.T) {
	t.Parallel()

	e := testEngine()
	opp := common.Opportunity{
		NoticeID:      "N-4",
		AgencyName:    "GSA",
		NAICSCode:     "541512",
		SetAsideType:  "Full and Open",
		EstimatedLow:  400_000,
		EstimatedHigh: 600_000,
	}

	variants := []index.OrgContacts{
		{},
		{Executives: []common.Contact{contact("E", common.RoleExecutive)}},
		{TechnicalLeads: []common.Contact{contact("T", common.RoleTechnicalLead)}},
	}
	for _, base := range variants {
		before := e.Score(opp, base, time.Unix(0, 0)).Total

		withDM := base
		withDM.DecisionMakers = []common.Contact{contact("D", common.RoleDecisionMaker)}
		after := e.Score(opp, withDM, time.Unix(0, 0)).Total

		if after < before {
			t.Fatalf("adding decision maker decreased score: %v -> %v", before, after)
		}
	}
}

func TestRelationshipHighestMatchOnly(t *testing.T) {
	t.Parallel()

	e := testEngine()
	contacts := index.OrgContacts{
		DecisionMakers: []common.Contact{contact("D", common.RoleDecisionMaker)},
		TechnicalLeads: []common.Contact{contact("T", common.RoleTechnicalLead)},
		Executives:     []common.Contact{contact("E", common.RoleExecutive)},
	}

	got, matched := e.relationshipComponent(contacts)
	if got != 25 {
		t.Fatalf("relationship component = %v, want 25 (not cumulative)", got)
	}
	if len(matched) != 1 || matched[0].Role != common.RoleDecisionMaker {
		t.Fatalf("unexpected matches: %+v", matched)
	}
}

func TestContractFitComponent(t *testing.T) {
	t.Parallel()

	e := testEngine()
	// Preferred range is 250k-5M.
	tests := []struct {
		name      string
		low, high float64
		min, max  float64
	}{
		{
			name: "at_midpoint_scores_ten",
			low:  2_625_000, high: 2_625_000,
			min: 10, max: 10,
		},
		{
			name: "inside_range_scores_eight_to_ten",
			low:  300_000, high: 600_000,
			min: 8, max: 10,
		},
		{
			name: "partial_overlap_scores_three_to_five",
			low:  100_000, high: 1_000_000,
			min: 3, max: 5,
		},
		{
			name: "just_outside_scores_under_three",
			low:  5_500_000, high: 6_000_000,
			min: 0, max: 3,
		},
		{
			name: "far_outside_scores_zero",
			low:  50_000_000, high: 80_000_000,
			min: 0, max: 0,
		},
		{
			name: "no_estimate_scores_zero",
			low:  0, high: 0,
			min: 0, max: 0,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := e.contractFitComponent(tc.low, tc.high)
			if got < tc.min || got > tc.max {
				t.Fatalf("contractFitComponent(%v, %v) = %v, want in [%v, %v]",
					tc.low, tc.high, got, tc.min, tc.max)
			}
		})
	}
}

func TestSetAsideComponent(t *testing.T) {
	t.Parallel()

	e := testEngine()
	tests := []struct {
		name     string
		setAside string
		want     float64
	}{
		{name: "small_business", setAside: "Total Small Business Set-Aside", want: 10},
		{name: "eight_a", setAside: "8(a) Sole Source", want: 10},
		{name: "hubzone", setAside: "HUBZone Set-Aside", want: 10},
		{name: "full_and_open", setAside: "Full and Open Competition", want: 3},
		{name: "unrecognized", setAside: "Sources Sought", want: 0},
		{name: "missing", setAside: "", want: 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := e.setAsideComponent(tc.setAside)
			if got != tc.want {
				t.Fatalf("setAsideComponent(%q) = %v, want %v", tc.setAside, got, tc.want)
			}
		})
	}
}

func TestTierForScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		total   float64
		tier    common.Tier
		probLo  float64
		probHi  float64
	}{
		{name: "top_of_high", total: 100, tier: common.TierHigh, probLo: 85, probHi: 85},
		{name: "bottom_of_high", total: 70, tier: common.TierHigh, probLo: 65, probHi: 65},
		{name: "medium", total: 60, tier: common.TierMedium, probLo: 50, probHi: 64},
		{name: "low", total: 47, tier: common.TierLow, probLo: 35, probHi: 49},
		{name: "skip", total: 35, tier: common.TierSkip, probLo: 0, probHi: 34.9},
		{name: "zero", total: 0, tier: common.TierSkip, probLo: 0, probHi: 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tier, prob := TierForScore(tc.total)
			if tier != tc.tier {
				t.Fatalf("TierForScore(%v) tier = %q, want %q", tc.total, tier, tc.tier)
			}
			if prob < tc.probLo || prob > tc.probHi {
				t.Fatalf("TierForScore(%v) prob = %v, want in [%v, %v]",
					tc.total, prob, tc.probLo, tc.probHi)
			}
		})
	}
}
