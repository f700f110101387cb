// Package index is the read-side projection over WorksAt edges: given an
// organization, it answers which contacts exist there and at what
// seniority. It always reflects the latest committed graph state; lookups
// read through to storage on every call.
package index

import (
	"context"

	"github.com/clearbridge/oppgraph/pkg/common"
	"github.com/clearbridge/oppgraph/pkg/resolver"
)

// OrgContacts is the categorized contact set for one organization. An
// organization with no known contacts yields the zero value, not an error.
type OrgContacts struct {
	DecisionMakers []common.Contact `json:"decision_makers"`
	TechnicalLeads []common.Contact `json:"technical_leads"`
	Executives     []common.Contact `json:"executives"`
	Others         []common.Contact `json:"others"`
}

// Total returns the number of contacts across all categories.
func (o OrgContacts) Total() int {
	return len(o.DecisionMakers) + len(o.TechnicalLeads) + len(o.Executives) + len(o.Others)
}

// ContactReader is the slice of graph storage the index depends on.
type ContactReader interface {
	GetOrganizationContacts(ctx context.Context, orgKey string) ([]common.Contact, error)
}

// Categorize splits a flat contact list by role classification and
// derives each contact's influence level from role and title.
func Categorize(contacts []common.Contact) OrgContacts {
	var out OrgContacts
	for _, c := range contacts {
		if c.Influence == 0 {
			c.Influence = resolver.InfluenceLevel(c.Role, c.Title)
		}
		switch c.Role {
		case common.RoleDecisionMaker:
			out.DecisionMakers = append(out.DecisionMakers, c)
		case common.RoleTechnicalLead:
			out.TechnicalLeads = append(out.TechnicalLeads, c)
		case common.RoleExecutive:
			out.Executives = append(out.Executives, c)
		default:
			out.Others = append(out.Others, c)
		}
	}
	return out
}

// Lookup reads and categorizes the contacts at an organization.
func Lookup(ctx context.Context, storage ContactReader, orgKey string) (OrgContacts, error) {
	contacts, err := storage.GetOrganizationContacts(ctx, orgKey)
	if err != nil {
		return OrgContacts{}, err
	}
	return Categorize(contacts), nil
}
