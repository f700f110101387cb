package resolver

import (
	"strings"

	"github.com/clearbridge/oppgraph/internal/config"
	"github.com/clearbridge/oppgraph/pkg/common"
)

// ClassifyRole assigns a role classification from a free-text title using
// the configured keyword table. Matching is case-insensitive substring;
// decision-maker keywords are checked first so that a title matching both
// tables (e.g. "Director of Engineering") lands on the stronger signal.
func ClassifyRole(title string, keywords config.RoleKeywordConfig) common.Role {
	t := strings.ToLower(title)
	if t == "" {
		return common.RoleOther
	}

	for _, kw := range keywords.DecisionMaker {
		if strings.Contains(t, strings.ToLower(kw)) {
			return common.RoleDecisionMaker
		}
	}
	for _, kw := range keywords.Executive {
		if strings.Contains(t, strings.ToLower(kw)) {
			return common.RoleExecutive
		}
	}
	for _, kw := range keywords.TechnicalLead {
		if strings.Contains(t, strings.ToLower(kw)) {
			return common.RoleTechnicalLead
		}
	}
	return common.RoleOther
}

var seniorityKeywords = []string{"senior", "principal", "lead", "chief", "deputy", "head"}

// InfluenceLevel derives a 1-10 influence estimate from the role
// classification and seniority markers in the title.
func InfluenceLevel(role common.Role, title string) int {
	base := 2
	switch role {
	case common.RoleDecisionMaker:
		base = 8
	case common.RoleExecutive:
		base = 7
	case common.RoleTechnicalLead:
		base = 5
	}

	t := strings.ToLower(title)
	for _, kw := range seniorityKeywords {
		if strings.Contains(t, kw) {
			base++
			break
		}
	}
	if base > 10 {
		base = 10
	}
	return base
}
