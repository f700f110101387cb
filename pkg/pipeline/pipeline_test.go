package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/clearbridge/oppgraph/internal/config"
	"github.com/clearbridge/oppgraph/pkg/cache"
	cachefile "github.com/clearbridge/oppgraph/pkg/cache/file"
	"github.com/clearbridge/oppgraph/pkg/common"
	"github.com/clearbridge/oppgraph/pkg/leaselock"
	"github.com/clearbridge/oppgraph/pkg/store"
	"github.com/clearbridge/oppgraph/pkg/store/memory"
)

// recordingLocker captures every lease key acquired during a run.
type recordingLocker struct {
	inner leaselock.Locker

	mu   sync.Mutex
	keys []string
}

func (l *recordingLocker) WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return l.inner.WithLease(ctx, key, fn)
}

func newTestClient(t *testing.T) (*Client, *memory.GraphMemoryStorage, cache.Store) {
	t.Helper()

	storage := memory.NewGraphMemoryStorage()
	cacheStore, err := cachefile.NewFileStore(filepath.Join(t.TempDir(), "cache.jsonl"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	client := NewClient(ClientParams{
		Storage: storage,
		Cache:   cacheStore,
		Locker:  leaselock.NewLocalLocker(),
		Config:  config.Default(),
	})
	return client, storage, cacheStore
}

func highValueOpportunity(noticeID string) common.Opportunity {
	return common.Opportunity{
		NoticeID:      noticeID,
		Title:         "Cloud Migration Services",
		AgencyName:    "GSA",
		NAICSCode:     "541512",
		SetAsideType:  "Total Small Business Set-Aside",
		EstimatedLow:  2_625_000,
		EstimatedHigh: 2_625_000,
	}
}

func TestProcessOpportunityEndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, storage, cacheStore := newTestClient(t)

	opp := highValueOpportunity("N-1")
	candidates := []common.Candidate{
		{Name: "Jane Smith", Title: "Contracting Officer", Email: "jane.smith@gsa.gov"},
	}

	result, err := client.ProcessOpportunity(ctx, opp, candidates)
	if err != nil {
		t.Fatalf("ProcessOpportunity failed: %v", err)
	}
	if result.Skipped {
		t.Fatal("fresh opportunity reported as skipped")
	}
	if result.Score == nil {
		t.Fatal("no score record produced")
	}
	if result.Score.Total != 85 {
		t.Fatalf("total = %v, want 85", result.Score.Total)
	}
	if result.Score.Tier != common.TierHigh {
		t.Fatalf("tier = %q, want HIGH", result.Score.Tier)
	}

	processed, err := cacheStore.HasProcessed(ctx, "N-1")
	if err != nil || !processed {
		t.Fatalf("cache not marked processed: %v, %v", processed, err)
	}
	exists, err := storage.OpportunityExists(ctx, "N-1")
	if err != nil || !exists {
		t.Fatalf("opportunity not committed: %v, %v", exists, err)
	}

	history, err := storage.GetScoreHistory(ctx, "N-1")
	if err != nil || len(history) != 1 {
		t.Fatalf("score history = %d records, %v, want 1", len(history), err)
	}
}

func TestReprocessingIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, storage, _ := newTestClient(t)

	opp := highValueOpportunity("N-1")
	candidates := []common.Candidate{
		{Name: "Jane Smith", Title: "Contracting Officer"},
	}

	if _, err := client.ProcessOpportunity(ctx, opp, candidates); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	orgs, persons, edges := storage.Counts()

	result, err := client.ProcessOpportunity(ctx, opp, candidates)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !result.Skipped {
		t.Fatal("second run not skipped")
	}

	orgs2, persons2, edges2 := storage.Counts()
	if orgs != orgs2 || persons != persons2 || edges != edges2 {
		t.Fatalf("graph changed on reprocess: %d/%d/%d -> %d/%d/%d",
			orgs, persons, edges, orgs2, persons2, edges2)
	}

	history, err := storage.GetScoreHistory(ctx, "N-1")
	if err != nil || len(history) != 1 {
		t.Fatalf("skipped run produced extra score records: %d, %v", len(history), err)
	}
}

func TestInvalidOpportunityRejectedBeforeStateChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, storage, cacheStore := newTestClient(t)

	tests := []struct {
		name string
		opp  common.Opportunity
	}{
		{name: "missing_notice_id", opp: common.Opportunity{AgencyName: "GSA"}},
		{name: "missing_agency", opp: common.Opportunity{NoticeID: "N-1"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.ProcessOpportunity(ctx, tc.opp, nil)
			if !errors.Is(err, ErrInvalidOpportunity) {
				t.Fatalf("expected ErrInvalidOpportunity, got %v", err)
			}
		})
	}

	orgs, persons, edges := storage.Counts()
	if orgs+persons+edges != 0 {
		t.Fatalf("rejected input touched the graph: %d/%d/%d", orgs, persons, edges)
	}
	n, err := cacheStore.Len(ctx)
	if err != nil || n != 0 {
		t.Fatalf("rejected input touched the cache: %d, %v", n, err)
	}
}

func TestCrashRepairAfterCommitBeforeMark(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, storage, cacheStore := newTestClient(t)

	// Simulate a crash after merge commit but before the cache mark: the
	// opportunity node exists in the graph with no cache entry.
	pre := store.MergeBatch{Opportunity: highValueOpportunity("N-1")}
	if err := storage.ApplyMerge(ctx, pre); err != nil {
		t.Fatalf("pre-commit failed: %v", err)
	}

	result, err := client.ProcessOpportunity(ctx, highValueOpportunity("N-1"), []common.Candidate{
		{Name: "Jane Smith", Title: "Contracting Officer"},
	})
	if err != nil {
		t.Fatalf("ProcessOpportunity failed: %v", err)
	}
	if !result.Skipped {
		t.Fatal("restart did not detect committed opportunity")
	}

	// The cache mark was repaired.
	processed, err := cacheStore.HasProcessed(ctx, "N-1")
	if err != nil || !processed {
		t.Fatalf("cache mark not repaired: %v, %v", processed, err)
	}

	// No duplicate nodes were merged.
	_, persons, _ := storage.Counts()
	if persons != 0 {
		t.Fatalf("repair run re-merged candidates: %d persons", persons)
	}
}

func TestCrashRepairBackfillsMissingScore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, storage, cacheStore := newTestClient(t)

	// Simulate a crash after merge commit but before the score insert:
	// the full graph state is committed, no score record, no cache entry.
	agencyKey := client.norm.Normalize("GSA")
	personKey := "jane smith|" + agencyKey
	pre := store.MergeBatch{
		Opportunity: highValueOpportunity("N-1"),
		Organizations: []common.Organization{
			{PublicID: "org-1", Name: "GSA", Type: "agency", IdentityKey: agencyKey},
		},
		Persons: []common.Person{
			{PublicID: "p-1", Name: "Jane Smith", Title: "Contracting Officer",
				Role: common.RoleDecisionMaker, OrgKey: agencyKey, IdentityKey: personKey, Source: "N-1"},
		},
		Edges: []common.WorksAt{
			{PersonKey: personKey, OrgKey: agencyKey, Title: "Contracting Officer", Source: "N-1"},
		},
	}
	if err := storage.ApplyMerge(ctx, pre); err != nil {
		t.Fatalf("pre-commit failed: %v", err)
	}

	result, err := client.ProcessOpportunity(ctx, highValueOpportunity("N-1"), nil)
	if err != nil {
		t.Fatalf("ProcessOpportunity failed: %v", err)
	}
	if !result.Skipped {
		t.Fatal("restart did not detect committed opportunity")
	}
	if result.Score == nil {
		t.Fatal("repair run did not backfill the missing score")
	}
	if result.Score.Total != 85 {
		t.Fatalf("backfilled total = %v, want 85", result.Score.Total)
	}

	history, err := storage.GetScoreHistory(ctx, "N-1")
	if err != nil || len(history) != 1 {
		t.Fatalf("score history = %d records, %v, want 1", len(history), err)
	}
	processed, err := cacheStore.HasProcessed(ctx, "N-1")
	if err != nil || !processed {
		t.Fatalf("cache mark not repaired: %v, %v", processed, err)
	}
}

func TestCrashRepairKeepsExistingScore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, storage, _ := newTestClient(t)

	pre := store.MergeBatch{Opportunity: highValueOpportunity("N-1")}
	if err := storage.ApplyMerge(ctx, pre); err != nil {
		t.Fatalf("pre-commit failed: %v", err)
	}
	if err := storage.InsertScoreRecord(ctx, common.ScoreRecord{NoticeID: "N-1", Total: 50}); err != nil {
		t.Fatalf("pre-insert failed: %v", err)
	}

	result, err := client.ProcessOpportunity(ctx, highValueOpportunity("N-1"), nil)
	if err != nil {
		t.Fatalf("ProcessOpportunity failed: %v", err)
	}
	if !result.Skipped || result.Score != nil {
		t.Fatalf("repair with existing score produced a new record: %+v", result)
	}

	history, err := storage.GetScoreHistory(ctx, "N-1")
	if err != nil || len(history) != 1 {
		t.Fatalf("score history = %d records, %v, want 1", len(history), err)
	}
}

func TestMergeHoldsLeaseForEveryOrganization(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := memory.NewGraphMemoryStorage()
	cacheStore, err := cachefile.NewFileStore(filepath.Join(t.TempDir(), "cache.jsonl"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	rec := &recordingLocker{inner: leaselock.NewLocalLocker()}
	client := NewClient(ClientParams{
		Storage: storage,
		Cache:   cacheStore,
		Locker:  rec,
		Config:  config.Default(),
	})

	// One candidate at the agency, one at a contractor. Two opportunities
	// at different agencies sharing the contractor must serialize on its
	// key, so the merge has to hold a lease per touched organization.
	candidates := []common.Candidate{
		{Name: "Jane Smith", Title: "Contracting Officer"},
		{Name: "Bob Lee", Title: "Partner", OrganizationName: "Acme Corporation"},
	}
	if _, err := client.ProcessOpportunity(ctx, highValueOpportunity("N-1"), candidates); err != nil {
		t.Fatalf("ProcessOpportunity failed: %v", err)
	}

	want := []string{
		"merge:" + client.norm.Normalize("Acme Corporation"),
		"merge:" + client.norm.Normalize("GSA"),
	}
	if strings.Join(rec.keys, ",") != strings.Join(want, ",") {
		t.Fatalf("lease keys = %v, want %v", rec.keys, want)
	}
}

func TestTransientFailureRetriedWithSameInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, storage, cacheStore := newTestClient(t)

	failures := 2
	storage.ApplyHook = func(batch store.MergeBatch) error {
		if failures > 0 {
			failures--
			return &store.TransientError{Err: errors.New("connection reset")}
		}
		return nil
	}

	result, err := client.ProcessOpportunity(ctx, highValueOpportunity("N-1"), []common.Candidate{
		{Name: "Jane Smith", Title: "Contracting Officer"},
	})
	if err != nil {
		t.Fatalf("ProcessOpportunity failed after transient errors: %v", err)
	}
	if result.Score == nil {
		t.Fatal("no score after recovered merge")
	}
	processed, err := cacheStore.HasProcessed(ctx, "N-1")
	if err != nil || !processed {
		t.Fatalf("cache not marked after recovered merge: %v, %v", processed, err)
	}
}

func TestPermanentFailureMarksError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, storage, cacheStore := newTestClient(t)

	storage.ApplyHook = func(batch store.MergeBatch) error {
		return &store.PermanentError{Err: errors.New("value too long for column")}
	}

	_, err := client.ProcessOpportunity(ctx, highValueOpportunity("N-1"), nil)
	if !errors.Is(err, ErrStoragePermanent) {
		t.Fatalf("expected ErrStoragePermanent, got %v", err)
	}

	// Marked error so a future run retries it, not processed.
	processed, err := cacheStore.HasProcessed(ctx, "N-1")
	if err != nil || processed {
		t.Fatalf("permanently failed notice marked processed: %v, %v", processed, err)
	}
	entry, found, err := cacheStore.Get(ctx, "N-1")
	if err != nil || !found {
		t.Fatalf("no cache entry for failed notice: %v, %v", found, err)
	}
	if entry.Outcome != common.OutcomeError {
		t.Fatalf("outcome = %q, want error", entry.Outcome)
	}
}

func TestEmailOverrideAcrossOpportunities(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, storage, _ := newTestClient(t)

	first := []common.Candidate{
		{Name: "Jon Smith", Title: "Program Manager", Email: "jon.smith@gsa.gov"},
	}
	if _, err := client.ProcessOpportunity(ctx, highValueOpportunity("N-1"), first); err != nil {
		t.Fatalf("first opportunity failed: %v", err)
	}

	// Same person, slightly different display name, matched by email.
	second := []common.Candidate{
		{Name: "Jonathan Smith", Title: "Senior Program Manager", Email: "Jon.Smith@GSA.gov"},
	}
	if _, err := client.ProcessOpportunity(ctx, highValueOpportunity("N-2"), second); err != nil {
		t.Fatalf("second opportunity failed: %v", err)
	}

	_, persons, _ := storage.Counts()
	if persons != 1 {
		t.Fatalf("email match did not merge: %d persons", persons)
	}
}

func TestProcessBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, storage, _ := newTestClient(t)

	jobs := []Job{
		{
			Opportunity: highValueOpportunity("N-1"),
			Candidates:  []common.Candidate{{Name: "Jane Smith", Title: "Contracting Officer"}},
		},
		{
			Opportunity: highValueOpportunity("N-2"),
			Candidates:  []common.Candidate{{Name: "Alan Turing", Title: "Engineer"}},
		},
		{
			Opportunity: common.Opportunity{NoticeID: "N-3"},
		},
	}

	outcomes := client.ProcessBatch(ctx, jobs, 2)
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	if outcomes[0].Err != nil || outcomes[1].Err != nil {
		t.Fatalf("valid jobs failed: %v, %v", outcomes[0].Err, outcomes[1].Err)
	}
	if !errors.Is(outcomes[2].Err, ErrInvalidOpportunity) {
		t.Fatalf("invalid job error = %v, want ErrInvalidOpportunity", outcomes[2].Err)
	}

	for _, id := range []string{"N-1", "N-2"} {
		exists, err := storage.OpportunityExists(ctx, id)
		if err != nil || !exists {
			t.Fatalf("opportunity %s not committed: %v, %v", id, exists, err)
		}
	}
}
