// Package resolver canonicalizes raw extracted entity candidates against
// the existing contact graph, deciding create-vs-merge for each person and
// organization. The resolution is precision-over-recall: a false merge
// corrupts the graph irreversibly, a false split is correctable later, so
// every ambiguity falls back to creating a new node.
package resolver

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/clearbridge/oppgraph/internal/config"
	"github.com/clearbridge/oppgraph/pkg/common"
	"github.com/clearbridge/oppgraph/pkg/logger"
)

// Snapshot is the slice of committed graph state the resolver matches
// against: organizations and persons relevant to the current candidate
// batch, loaded by the merge engine before resolution.
type Snapshot struct {
	Organizations  map[string]common.Organization
	Persons        map[string]common.Person
	PersonsByEmail map[string]common.Person
}

// Resolution is the staged outcome of resolving one candidate batch:
// upserts for the graph merge engine to apply atomically. Re-applying an
// identical resolution is a no-op update, never a duplicate.
type Resolution struct {
	Organizations []common.Organization
	Persons       []common.Person
	Edges         []common.WorksAt

	CreatedOrgs    int
	CreatedPersons int
	MergedPersons  int
}

// Resolver turns candidate batches into resolutions under a fixed
// normalization and classification policy.
type Resolver struct {
	orgs     OrgNormalizer
	keywords config.RoleKeywordConfig
	newID    func() (string, error)
}

// New creates a Resolver with the given organization normalization policy
// and role keyword table.
func New(orgs OrgNormalizer, keywords config.RoleKeywordConfig) *Resolver {
	return &Resolver{orgs: orgs, keywords: keywords, newID: func() (string, error) { return gonanoid.New() }}
}

// Resolve canonicalizes the candidates extracted from one opportunity
// against the snapshot. The opportunity's agency is always staged as an
// organization so the merge engine can link the opportunity node to it.
func (r *Resolver) Resolve(opp common.Opportunity, candidates []common.Candidate, snap Snapshot) (*Resolution, error) {
	res := &Resolution{}

	stagedOrgs := make(map[string]int)
	stagedPersons := make(map[string]int)
	stagedByEmail := make(map[string]int)
	stagedEdges := make(map[string]int)

	agencyKey := r.orgs.Normalize(opp.AgencyName)
	if agencyKey == "" {
		return nil, fmt.Errorf("opportunity %s has no resolvable agency name", opp.NoticeID)
	}
	if err := r.stageOrg(res, snap, stagedOrgs, agencyKey, opp.AgencyName, "agency"); err != nil {
		return nil, err
	}

	for _, cand := range candidates {
		normName := NormalizePersonName(cand.Name)
		if normName == "" {
			logger.Warn("[Resolver] Skipping candidate with empty name", "notice_id", opp.NoticeID)
			continue
		}

		orgKey := r.orgs.Normalize(cand.OrganizationName)
		orgType := "other"
		if orgKey == "" {
			// Contacts listed on a notice without an explicit organization
			// belong to the issuing agency.
			orgKey = agencyKey
		}
		if orgKey == agencyKey {
			orgType = "agency"
		}
		orgName := strings.TrimSpace(cand.OrganizationName)
		if orgName == "" {
			orgName = opp.AgencyName
		}
		if err := r.stageOrg(res, snap, stagedOrgs, orgKey, orgName, orgType); err != nil {
			return nil, err
		}

		personKey := PersonKey(normName, orgKey)
		email := NormalizeEmail(cand.Email)

		person, matched, err := r.resolvePerson(res, snap, stagedPersons, stagedByEmail, personKey, orgKey, normName, email, cand, opp.NoticeID)
		if err != nil {
			return nil, err
		}
		if matched {
			res.MergedPersons++
		} else {
			res.CreatedPersons++
		}

		r.stageEdge(res, stagedEdges, person.IdentityKey, orgKey, cand.Title, opp.NoticeID)
	}

	return res, nil
}

// resolvePerson finds or stages the person node for one candidate.
// Identity precedence: exact email match overrides a name-based mismatch,
// then the (name, organization) key, then create.
func (r *Resolver) resolvePerson(
	res *Resolution,
	snap Snapshot,
	stagedPersons map[string]int,
	stagedByEmail map[string]int,
	personKey, orgKey, normName, email string,
	cand common.Candidate,
	noticeID string,
) (*common.Person, bool, error) {
	if email != "" {
		if existing, ok := snap.PersonsByEmail[email]; ok {
			return r.stageMerge(res, stagedPersons, existing, cand, noticeID), true, nil
		}
		if idx, ok := stagedByEmail[email]; ok {
			p := &res.Persons[idx]
			mergePersonAttrs(p, cand, r.keywords)
			logger.Debug("[Resolver] Collapsed in-batch duplicate by email", "notice_id", noticeID, "email", email)
			return p, true, nil
		}
	}

	if existing, ok := snap.Persons[personKey]; ok {
		staged := r.stageMerge(res, stagedPersons, existing, cand, noticeID)
		if email != "" {
			stagedByEmail[email] = stagedPersons[personKey]
		}
		return staged, true, nil
	}

	if idx, ok := stagedPersons[personKey]; ok {
		p := &res.Persons[idx]
		mergePersonAttrs(p, cand, r.keywords)
		if email != "" {
			stagedByEmail[email] = idx
		}
		logger.Debug("[Resolver] Collapsed in-batch duplicate create", "notice_id", noticeID, "person_key", personKey)
		return p, true, nil
	}

	// A namesake at another organization is expected and must stay a
	// distinct node; without an email there is no safe merge signal.
	for key, existing := range snap.Persons {
		if key == personKey {
			continue
		}
		if strings.HasPrefix(key, normName+"|") {
			logger.Debug("[Resolver] Namesake kept distinct",
				"notice_id", noticeID, "name", normName, "existing_org", existing.OrgKey)
			break
		}
	}

	id, err := r.newID()
	if err != nil {
		return nil, false, err
	}
	p := common.Person{
		PublicID:    id,
		Name:        strings.TrimSpace(cand.Name),
		Title:       strings.TrimSpace(cand.Title),
		Email:       email,
		Role:        ClassifyRole(cand.Title, r.keywords),
		OrgKey:      orgKey,
		IdentityKey: personKey,
		Source:      noticeID,
	}
	idx := len(res.Persons)
	res.Persons = append(res.Persons, p)
	stagedPersons[personKey] = idx
	if email != "" {
		stagedByEmail[email] = idx
	}
	return &res.Persons[idx], false, nil
}

// stageMerge stages an update of an existing person node. The existing
// identity key and canonical name win; only enriching attributes change.
func (r *Resolver) stageMerge(
	res *Resolution,
	stagedPersons map[string]int,
	existing common.Person,
	cand common.Candidate,
	noticeID string,
) *common.Person {
	if idx, ok := stagedPersons[existing.IdentityKey]; ok {
		p := &res.Persons[idx]
		mergePersonAttrs(p, cand, r.keywords)
		return p
	}

	p := existing
	p.Source = noticeID
	mergePersonAttrs(&p, cand, r.keywords)
	idx := len(res.Persons)
	res.Persons = append(res.Persons, p)
	stagedPersons[existing.IdentityKey] = idx
	return &res.Persons[idx]
}

func mergePersonAttrs(p *common.Person, cand common.Candidate, keywords config.RoleKeywordConfig) {
	title := strings.TrimSpace(cand.Title)
	if title != "" {
		p.Title = title
		p.Role = ClassifyRole(title, keywords)
	}
	if email := NormalizeEmail(cand.Email); email != "" && p.Email == "" {
		p.Email = email
	}
}

func (r *Resolver) stageOrg(
	res *Resolution,
	snap Snapshot,
	stagedOrgs map[string]int,
	orgKey, displayName, orgType string,
) error {
	if idx, ok := stagedOrgs[orgKey]; ok {
		// Two creates for the same key inside one batch collapse into one;
		// an agency observation upgrades the staged type.
		if orgType == "agency" {
			res.Organizations[idx].Type = orgType
		}
		return nil
	}

	if existing, ok := snap.Organizations[orgKey]; ok {
		if orgType == "agency" && existing.Type != "agency" {
			existing.Type = "agency"
		}
		stagedOrgs[orgKey] = len(res.Organizations)
		res.Organizations = append(res.Organizations, existing)
		return nil
	}

	id, err := r.newID()
	if err != nil {
		return err
	}
	stagedOrgs[orgKey] = len(res.Organizations)
	res.Organizations = append(res.Organizations, common.Organization{
		PublicID:    id,
		Name:        strings.TrimSpace(displayName),
		Type:        orgType,
		IdentityKey: orgKey,
	})
	res.CreatedOrgs++
	return nil
}

func (r *Resolver) stageEdge(res *Resolution, stagedEdges map[string]int, personKey, orgKey, title, noticeID string) {
	edgeKey := personKey + "->" + orgKey
	if idx, ok := stagedEdges[edgeKey]; ok {
		if t := strings.TrimSpace(title); t != "" {
			res.Edges[idx].Title = t
		}
		return
	}
	stagedEdges[edgeKey] = len(res.Edges)
	res.Edges = append(res.Edges, common.WorksAt{
		PersonKey: personKey,
		OrgKey:    orgKey,
		Title:     strings.TrimSpace(title),
		Source:    noticeID,
	})
}
