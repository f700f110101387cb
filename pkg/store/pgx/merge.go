package pgx

import (
	"context"

	"github.com/clearbridge/oppgraph/internal/util"
	"github.com/clearbridge/oppgraph/pkg/store"
)

// ApplyMerge commits one resolved opportunity batch in a single
// transaction. All statements upsert on the identity key, so re-applying
// the same batch after a crash or retry converges on the same graph
// state instead of duplicating nodes or edges.
func (s *GraphDBStorage) ApplyMerge(ctx context.Context, batch store.MergeBatch) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	opp := batch.Opportunity
	if batch.Correction {
		_, err = tx.Exec(ctx, `
INSERT INTO opportunities (notice_id, title, agency_name, naics_code, set_aside_type,
                           estimated_value_low, estimated_value_high, posted_date,
                           response_deadline, provenance)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (notice_id) DO UPDATE SET
    title = EXCLUDED.title,
    agency_name = EXCLUDED.agency_name,
    naics_code = EXCLUDED.naics_code,
    set_aside_type = EXCLUDED.set_aside_type,
    estimated_value_low = EXCLUDED.estimated_value_low,
    estimated_value_high = EXCLUDED.estimated_value_high,
    posted_date = EXCLUDED.posted_date,
    response_deadline = EXCLUDED.response_deadline,
    provenance = EXCLUDED.provenance
`, opp.NoticeID, util.SanitizePostgresText(opp.Title), util.SanitizePostgresText(opp.AgencyName),
			opp.NAICSCode, opp.SetAsideType, opp.EstimatedLow, opp.EstimatedHigh,
			opp.PostedDate, opp.Deadline, util.SanitizePostgresText(opp.Provenance))
	} else {
		// Opportunity attributes are immutable after first commit.
		_, err = tx.Exec(ctx, `
INSERT INTO opportunities (notice_id, title, agency_name, naics_code, set_aside_type,
                           estimated_value_low, estimated_value_high, posted_date,
                           response_deadline, provenance)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (notice_id) DO NOTHING
`, opp.NoticeID, util.SanitizePostgresText(opp.Title), util.SanitizePostgresText(opp.AgencyName),
			opp.NAICSCode, opp.SetAsideType, opp.EstimatedLow, opp.EstimatedHigh,
			opp.PostedDate, opp.Deadline, util.SanitizePostgresText(opp.Provenance))
	}
	if err != nil {
		return classify(err)
	}

	for _, org := range batch.Organizations {
		_, err = tx.Exec(ctx, `
INSERT INTO organizations (public_id, identity_key, name, type)
VALUES ($1, $2, $3, $4)
ON CONFLICT (identity_key) DO UPDATE SET
    type = CASE WHEN EXCLUDED.type = 'agency' THEN 'agency' ELSE organizations.type END
`, org.PublicID, org.IdentityKey, util.SanitizePostgresText(org.Name), org.Type)
		if err != nil {
			return classify(err)
		}
	}

	for _, p := range batch.Persons {
		_, err = tx.Exec(ctx, `
INSERT INTO persons (public_id, identity_key, name, title, email, role, org_key, source)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
ON CONFLICT (identity_key) DO UPDATE SET
    title = CASE WHEN EXCLUDED.title <> '' THEN EXCLUDED.title ELSE persons.title END,
    email = COALESCE(persons.email, EXCLUDED.email),
    role = EXCLUDED.role,
    source = EXCLUDED.source
`, p.PublicID, p.IdentityKey, util.SanitizePostgresText(p.Name),
			util.SanitizePostgresText(p.Title), p.Email, p.Role, p.OrgKey, p.Source)
		if err != nil {
			return classify(err)
		}
	}

	for _, e := range batch.Edges {
		_, err = tx.Exec(ctx, `
INSERT INTO works_at (person_key, org_key, title, source)
VALUES ($1, $2, $3, $4)
ON CONFLICT (person_key, org_key) DO UPDATE SET
    title = CASE WHEN EXCLUDED.title <> '' THEN EXCLUDED.title ELSE works_at.title END,
    source = EXCLUDED.source
`, e.PersonKey, e.OrgKey, util.SanitizePostgresText(e.Title), e.Source)
		if err != nil {
			return classify(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}
