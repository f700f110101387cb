package store

import (
	"context"

	"github.com/clearbridge/oppgraph/pkg/common"
)

// MergeBatch is one opportunity's worth of resolved graph mutations.
// The batch is applied atomically: either every node and edge commits,
// or none do.
type MergeBatch struct {
	Opportunity   common.Opportunity
	Organizations []common.Organization
	Persons       []common.Person
	Edges         []common.WorksAt

	// Correction marks an explicitly flagged correction of an existing
	// opportunity node. Without it, opportunity attributes are immutable
	// after first commit.
	Correction bool
}

// GraphStorage defines the persistence interface for the contact graph,
// opportunity nodes, and score records.
type GraphStorage interface {
	// Snapshot reads used by the resolver before a merge.
	GetOrganizationsByKeys(ctx context.Context, keys []string) (map[string]common.Organization, error)
	GetPersonsByOrgKeys(ctx context.Context, orgKeys []string) (map[string]common.Person, error)
	GetPersonsByEmails(ctx context.Context, emails []string) (map[string]common.Person, error)

	// ApplyMerge commits a merge batch in one transaction. Re-applying an
	// identical batch is a no-op update, not a duplicate.
	ApplyMerge(ctx context.Context, batch MergeBatch) error

	// OpportunityExists reports whether a notice has already been
	// committed to the graph, independent of the processed cache.
	OpportunityExists(ctx context.Context, noticeID string) (bool, error)

	// GetOrganizationContacts is the relationship index read path.
	GetOrganizationContacts(ctx context.Context, orgKey string) ([]common.Contact, error)

	// Score records are append-only.
	InsertScoreRecord(ctx context.Context, rec common.ScoreRecord) error
	GetScoreHistory(ctx context.Context, noticeID string) ([]common.ScoreRecord, error)
}
