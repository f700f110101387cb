// Package memory implements GraphStorage in process memory. It backs
// tests and local development where a PostgreSQL instance is not worth
// the setup cost; semantics mirror the database implementation,
// including upsert-on-identity-key merges.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/clearbridge/oppgraph/pkg/common"
	"github.com/clearbridge/oppgraph/pkg/store"
)

// GraphMemoryStorage implements store.GraphStorage without persistence.
type GraphMemoryStorage struct {
	mu sync.Mutex

	organizations map[string]common.Organization
	persons       map[string]common.Person
	edges         map[string]common.WorksAt
	opportunities map[string]common.Opportunity
	scores        map[string][]common.ScoreRecord

	// ApplyHook, when set, runs at the start of ApplyMerge and can fail
	// the merge. Tests use it to inject transient and permanent storage
	// failures.
	ApplyHook func(batch store.MergeBatch) error
}

// NewGraphMemoryStorage creates an empty in-memory graph store.
func NewGraphMemoryStorage() *GraphMemoryStorage {
	return &GraphMemoryStorage{
		organizations: make(map[string]common.Organization),
		persons:       make(map[string]common.Person),
		edges:         make(map[string]common.WorksAt),
		opportunities: make(map[string]common.Opportunity),
		scores:        make(map[string][]common.ScoreRecord),
	}
}

func (s *GraphMemoryStorage) GetOrganizationsByKeys(ctx context.Context, keys []string) (map[string]common.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]common.Organization, len(keys))
	for _, key := range keys {
		if org, ok := s.organizations[key]; ok {
			out[key] = org
		}
	}
	return out, nil
}

func (s *GraphMemoryStorage) GetPersonsByOrgKeys(ctx context.Context, orgKeys []string) (map[string]common.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]common.Person)
	for _, p := range s.persons {
		for _, key := range orgKeys {
			if p.OrgKey == key {
				out[p.IdentityKey] = p
				break
			}
		}
	}
	return out, nil
}

func (s *GraphMemoryStorage) GetPersonsByEmails(ctx context.Context, emails []string) (map[string]common.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]common.Person)
	for _, p := range s.persons {
		if p.Email == "" {
			continue
		}
		for _, email := range emails {
			if p.Email == email {
				out[p.Email] = p
				break
			}
		}
	}
	return out, nil
}

// ApplyMerge applies the batch under a single lock, so a batch is never
// observed half-applied. When ApplyHook fails, nothing is applied.
func (s *GraphMemoryStorage) ApplyMerge(ctx context.Context, batch store.MergeBatch) error {
	if s.ApplyHook != nil {
		if err := s.ApplyHook(batch); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	opp := batch.Opportunity
	if _, exists := s.opportunities[opp.NoticeID]; !exists || batch.Correction {
		s.opportunities[opp.NoticeID] = opp
	}

	for _, org := range batch.Organizations {
		if existing, ok := s.organizations[org.IdentityKey]; ok {
			if org.Type == "agency" {
				existing.Type = "agency"
			}
			s.organizations[org.IdentityKey] = existing
			continue
		}
		if org.FirstSeenAt.IsZero() {
			org.FirstSeenAt = now
		}
		s.organizations[org.IdentityKey] = org
	}

	for _, p := range batch.Persons {
		if existing, ok := s.persons[p.IdentityKey]; ok {
			if p.Title != "" {
				existing.Title = p.Title
			}
			if existing.Email == "" {
				existing.Email = p.Email
			}
			existing.Role = p.Role
			existing.Source = p.Source
			s.persons[p.IdentityKey] = existing
			continue
		}
		if p.FirstSeenAt.IsZero() {
			p.FirstSeenAt = now
		}
		s.persons[p.IdentityKey] = p
	}

	for _, e := range batch.Edges {
		edgeKey := e.PersonKey + "->" + e.OrgKey
		if existing, ok := s.edges[edgeKey]; ok {
			if e.Title != "" {
				existing.Title = e.Title
			}
			existing.Source = e.Source
			s.edges[edgeKey] = existing
			continue
		}
		if e.FirstSeenAt.IsZero() {
			e.FirstSeenAt = now
		}
		s.edges[edgeKey] = e
	}

	return nil
}

func (s *GraphMemoryStorage) OpportunityExists(ctx context.Context, noticeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.opportunities[noticeID]
	return ok, nil
}

func (s *GraphMemoryStorage) GetOrganizationContacts(ctx context.Context, orgKey string) ([]common.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []common.Contact
	for _, e := range s.edges {
		if e.OrgKey != orgKey {
			continue
		}
		p, ok := s.persons[e.PersonKey]
		if !ok {
			continue
		}
		title := e.Title
		if title == "" {
			title = p.Title
		}
		out = append(out, common.Contact{
			Name:  p.Name,
			Title: title,
			Email: p.Email,
			Role:  p.Role,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].Name, out[j].Name) < 0
	})
	return out, nil
}

func (s *GraphMemoryStorage) InsertScoreRecord(ctx context.Context, rec common.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scores[rec.NoticeID] = append(s.scores[rec.NoticeID], rec)
	return nil
}

func (s *GraphMemoryStorage) GetScoreHistory(ctx context.Context, noticeID string) ([]common.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.scores[noticeID]
	out := make([]common.ScoreRecord, len(history))
	copy(out, history)
	return out, nil
}

// GetOpportunity returns the committed opportunity node, if any.
func (s *GraphMemoryStorage) GetOpportunity(noticeID string) (common.Opportunity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opp, ok := s.opportunities[noticeID]
	return opp, ok
}

// Counts reports the node and edge totals, for test assertions.
func (s *GraphMemoryStorage) Counts() (orgs, persons, edges int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.organizations), len(s.persons), len(s.edges)
}
