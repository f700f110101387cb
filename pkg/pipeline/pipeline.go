// Package pipeline orchestrates one opportunity's path through the
// system: boundary validation, processed-cache filtering, entity
// resolution against a graph snapshot, the atomic merge under leases
// covering every touched organization, the cache mark, and finally
// scoring against the freshly merged contacts.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clearbridge/oppgraph/internal/config"
	"github.com/clearbridge/oppgraph/internal/util"
	"github.com/clearbridge/oppgraph/pkg/cache"
	"github.com/clearbridge/oppgraph/pkg/common"
	"github.com/clearbridge/oppgraph/pkg/index"
	"github.com/clearbridge/oppgraph/pkg/leaselock"
	"github.com/clearbridge/oppgraph/pkg/logger"
	"github.com/clearbridge/oppgraph/pkg/resolver"
	"github.com/clearbridge/oppgraph/pkg/scoring"
	"github.com/clearbridge/oppgraph/pkg/store"
)

const defaultMergeRetries = 3

// Client runs opportunities through the full pipeline.
type Client struct {
	storage store.GraphStorage
	cache   cache.Store
	locker  leaselock.Locker
	res     *resolver.Resolver
	norm    resolver.OrgNormalizer
	scorer  *scoring.Engine

	mergeRetries int
}

// ClientParams wires the pipeline's collaborators.
type ClientParams struct {
	Storage store.GraphStorage
	Cache   cache.Store
	Locker  leaselock.Locker
	Config  *config.Config

	// MergeRetries bounds attempts for transiently failing merges.
	// Zero means the default.
	MergeRetries int
}

// NewClient creates a pipeline client. The normalization and scoring
// policy comes entirely from the passed configuration.
func NewClient(params ClientParams) *Client {
	norm := resolver.NewStandardOrgNormalizer(params.Config.OrgSynonyms)
	retries := params.MergeRetries
	if retries <= 0 {
		retries = defaultMergeRetries
	}
	return &Client{
		storage:      params.Storage,
		cache:        params.Cache,
		locker:       params.Locker,
		res:          resolver.New(norm, params.Config.RoleKeywords),
		norm:         norm,
		scorer:       scoring.NewEngine(params.Config),
		mergeRetries: retries,
	}
}

// Result summarizes one opportunity run.
type Result struct {
	NoticeID string
	Skipped  bool
	Score    *common.ScoreRecord

	CreatedOrgs    int
	CreatedPersons int
	MergedPersons  int
}

// ProcessOpportunity runs one notice end to end. Reprocessing a notice
// that already completed is a cheap no-op; a notice that committed to
// the graph but crashed before its cache mark is detected and repaired
// without re-merging.
func (c *Client) ProcessOpportunity(ctx context.Context, opp common.Opportunity, candidates []common.Candidate) (*Result, error) {
	if err := validateOpportunity(opp); err != nil {
		return nil, err
	}

	processed, err := c.cache.HasProcessed(ctx, opp.NoticeID)
	if err != nil {
		return nil, fmt.Errorf("cache lookup for %s: %w", opp.NoticeID, err)
	}
	if processed {
		logger.Debug("[Pipeline] Notice already processed, skipping", "notice_id", opp.NoticeID)
		return &Result{NoticeID: opp.NoticeID, Skipped: true}, nil
	}

	// A cache miss is not authoritative: a crash between merge commit and
	// cache mark leaves the graph ahead of the cache. The graph wins.
	exists, err := c.storage.OpportunityExists(ctx, opp.NoticeID)
	if err != nil {
		return nil, fmt.Errorf("existence check for %s: %w", opp.NoticeID, err)
	}
	if exists {
		logger.Warn("[Pipeline] Notice already in graph without cache mark, repairing",
			"notice_id", opp.NoticeID)
		result := &Result{NoticeID: opp.NoticeID, Skipped: true}

		// The crash may also have landed between commit and score insert.
		// Scoring is pure and reads only committed graph state, so a
		// missing record is replayed here; the cache mark comes after so
		// a failed backfill is retried on the next run.
		history, err := c.storage.GetScoreHistory(ctx, opp.NoticeID)
		if err != nil {
			return nil, fmt.Errorf("score history for %s: %w", opp.NoticeID, err)
		}
		if len(history) == 0 {
			agencyKey := c.norm.Normalize(opp.AgencyName)
			contacts, err := index.Lookup(ctx, c.storage, agencyKey)
			if err != nil {
				return nil, fmt.Errorf("contact lookup for %s: %w", opp.NoticeID, err)
			}
			rec := c.scorer.Score(opp, contacts, time.Now().UTC())
			if err := c.storage.InsertScoreRecord(ctx, rec); err != nil {
				return nil, fmt.Errorf("score insert for %s: %w", opp.NoticeID, err)
			}
			result.Score = &rec
		}

		if err := c.cache.MarkProcessed(ctx, opp.NoticeID, common.OutcomeProcessed); err != nil {
			logger.Warn("[Pipeline] Failed to repair cache mark", "notice_id", opp.NoticeID, "error", err)
		}
		return result, nil
	}

	snap, agencyKey, err := c.loadSnapshot(ctx, opp, candidates)
	if err != nil {
		return nil, err
	}

	// Invalid input was rejected before resolution; a resolver error here
	// is operational (id generation) and stays retryable.
	res, err := c.res.Resolve(opp, candidates, snap)
	if err != nil {
		return nil, fmt.Errorf("resolve for %s: %w", opp.NoticeID, err)
	}

	batch := store.MergeBatch{
		Opportunity:   opp,
		Organizations: res.Organizations,
		Persons:       res.Persons,
		Edges:         res.Edges,
	}

	mergeErr := c.withLeases(ctx, mergeLockKeys(batch), func(leaseCtx context.Context) error {
		return c.applyMerge(leaseCtx, batch)
	})
	if mergeErr != nil {
		if store.IsPermanent(mergeErr) {
			logger.Error("[Pipeline] Merge failed permanently",
				"notice_id", opp.NoticeID, "error", mergeErr)
			if err := c.cache.MarkProcessed(ctx, opp.NoticeID, common.OutcomeError); err != nil {
				logger.Warn("[Pipeline] Failed to mark error outcome",
					"notice_id", opp.NoticeID, "error", err)
			}
			return nil, fmt.Errorf("%w: %s", ErrStoragePermanent, mergeErr.Error())
		}
		return nil, fmt.Errorf("merge for %s: %w", opp.NoticeID, mergeErr)
	}

	// The mark follows the commit, never precedes it. A failed mark only
	// costs the existence check above on the next run.
	if err := c.cache.MarkProcessed(ctx, opp.NoticeID, common.OutcomeProcessed); err != nil {
		logger.Warn("[Pipeline] Merge committed but cache mark failed",
			"notice_id", opp.NoticeID, "error", err)
	}

	contacts, err := index.Lookup(ctx, c.storage, agencyKey)
	if err != nil {
		return nil, fmt.Errorf("contact lookup for %s: %w", opp.NoticeID, err)
	}

	rec := c.scorer.Score(opp, contacts, time.Now().UTC())
	if err := c.storage.InsertScoreRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("score insert for %s: %w", opp.NoticeID, err)
	}

	logger.Info("[Pipeline] Processed opportunity",
		"notice_id", opp.NoticeID,
		"agency", agencyKey,
		"score", rec.Total,
		"tier", rec.Tier,
		"created_orgs", res.CreatedOrgs,
		"created_persons", res.CreatedPersons,
		"merged_persons", res.MergedPersons)

	return &Result{
		NoticeID:       opp.NoticeID,
		Score:          &rec,
		CreatedOrgs:    res.CreatedOrgs,
		CreatedPersons: res.CreatedPersons,
		MergedPersons:  res.MergedPersons,
	}, nil
}

// mergeLockKeys lists the lease keys a batch must hold before merging:
// one per staged organization, sorted so concurrent workers acquire in
// the same order and cannot deadlock.
func mergeLockKeys(batch store.MergeBatch) []string {
	keys := make([]string, 0, len(batch.Organizations))
	for _, org := range batch.Organizations {
		keys = append(keys, "merge:"+org.IdentityKey)
	}
	sort.Strings(keys)
	return keys
}

// withLeases runs fn while holding every key, acquired in order.
func (c *Client) withLeases(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	if len(keys) == 0 {
		return fn(ctx)
	}
	return c.locker.WithLease(ctx, keys[0], func(leaseCtx context.Context) error {
		return c.withLeases(leaseCtx, keys[1:], fn)
	})
}

// applyMerge retries transiently failing merges with the same batch.
// Re-applying an identical batch converges, so retries are safe.
// Permanent failures stop the retries immediately.
func (c *Client) applyMerge(ctx context.Context, batch store.MergeBatch) error {
	attempt := 0
	return util.RetryErrWithContext(ctx, c.mergeRetries, func(err error) bool {
		return !store.IsPermanent(err)
	}, func(ctx context.Context) error {
		attempt++
		err := c.storage.ApplyMerge(ctx, batch)
		if err != nil && !store.IsPermanent(err) {
			logger.Warn("[Pipeline] Transient merge failure, retrying",
				"notice_id", batch.Opportunity.NoticeID,
				"attempt", attempt,
				"error", err)
		}
		return err
	})
}

// loadSnapshot reads the graph slice the resolver needs: organizations
// and persons for every organization referenced by the batch, plus
// persons matching any candidate email.
func (c *Client) loadSnapshot(ctx context.Context, opp common.Opportunity, candidates []common.Candidate) (resolver.Snapshot, string, error) {
	agencyKey := c.norm.Normalize(opp.AgencyName)
	if agencyKey == "" {
		return resolver.Snapshot{}, "", fmt.Errorf("%w: %s has no resolvable agency name",
			ErrInvalidOpportunity, opp.NoticeID)
	}

	orgKeySet := map[string]bool{agencyKey: true}
	var emails []string
	emailSet := map[string]bool{}
	for _, cand := range candidates {
		if key := c.norm.Normalize(cand.OrganizationName); key != "" {
			orgKeySet[key] = true
		}
		if email := resolver.NormalizeEmail(cand.Email); email != "" && !emailSet[email] {
			emailSet[email] = true
			emails = append(emails, email)
		}
	}
	orgKeys := make([]string, 0, len(orgKeySet))
	for key := range orgKeySet {
		orgKeys = append(orgKeys, key)
	}

	orgs, err := c.storage.GetOrganizationsByKeys(ctx, orgKeys)
	if err != nil {
		return resolver.Snapshot{}, "", fmt.Errorf("snapshot organizations: %w", err)
	}
	persons, err := c.storage.GetPersonsByOrgKeys(ctx, orgKeys)
	if err != nil {
		return resolver.Snapshot{}, "", fmt.Errorf("snapshot persons: %w", err)
	}
	byEmail, err := c.storage.GetPersonsByEmails(ctx, emails)
	if err != nil {
		return resolver.Snapshot{}, "", fmt.Errorf("snapshot persons by email: %w", err)
	}

	return resolver.Snapshot{
		Organizations:  orgs,
		Persons:        persons,
		PersonsByEmail: byEmail,
	}, agencyKey, nil
}

func validateOpportunity(opp common.Opportunity) error {
	if strings.TrimSpace(opp.NoticeID) == "" {
		return fmt.Errorf("%w: missing notice_id", ErrInvalidOpportunity)
	}
	if strings.TrimSpace(opp.AgencyName) == "" {
		return fmt.Errorf("%w: %s missing agency_name", ErrInvalidOpportunity, opp.NoticeID)
	}
	return nil
}

// Job is one batch item: an opportunity plus its extracted candidates.
type Job struct {
	Opportunity common.Opportunity
	Candidates  []common.Candidate
}

// BatchOutcome is one job's result within a batch run.
type BatchOutcome struct {
	Result *Result
	Err    error
}

// ProcessBatch runs jobs through a bounded worker pool. One failing job
// does not abort its siblings; cancelling ctx stops scheduling new jobs
// while in-flight ones finish.
func (c *Client) ProcessBatch(ctx context.Context, jobs []Job, parallel int) []BatchOutcome {
	if parallel <= 0 {
		parallel = 1
	}

	outcomes := make([]BatchOutcome, len(jobs))

	var g errgroup.Group
	g.SetLimit(parallel)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = BatchOutcome{Err: err}
				return nil
			}
			res, err := c.ProcessOpportunity(ctx, job.Opportunity, job.Candidates)
			outcomes[i] = BatchOutcome{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
