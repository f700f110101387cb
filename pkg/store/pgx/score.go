package pgx

import (
	"context"
	"encoding/json"

	"github.com/clearbridge/oppgraph/pkg/common"
)

// InsertScoreRecord appends one scoring run. Records are never updated;
// rescoring an opportunity inserts a new row.
func (s *GraphDBStorage) InsertScoreRecord(ctx context.Context, rec common.ScoreRecord) error {
	matched, err := json.Marshal(rec.Matched)
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(ctx, `
INSERT INTO score_records (notice_id, base_score, relationship_component, contract_fit_component,
                           set_aside_component, naics_component, total_score, priority_tier,
                           win_probability, matched_contacts, scored_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`, rec.NoticeID, rec.BaseScore, rec.Relationship, rec.ContractFit, rec.SetAside,
		rec.NAICS, rec.Total, rec.Tier, rec.WinProbability, matched, rec.ScoredAt)
	if err != nil {
		return classify(err)
	}
	return nil
}

// GetScoreHistory returns every score record for a notice, oldest first.
func (s *GraphDBStorage) GetScoreHistory(ctx context.Context, noticeID string) ([]common.ScoreRecord, error) {
	rows, err := s.conn.Query(ctx, `
SELECT notice_id, base_score, relationship_component, contract_fit_component,
       set_aside_component, naics_component, total_score, priority_tier,
       win_probability, matched_contacts, scored_at
FROM score_records
WHERE notice_id = $1
ORDER BY scored_at ASC, id ASC
`, noticeID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []common.ScoreRecord
	for rows.Next() {
		var rec common.ScoreRecord
		var matched []byte
		if err := rows.Scan(&rec.NoticeID, &rec.BaseScore, &rec.Relationship, &rec.ContractFit,
			&rec.SetAside, &rec.NAICS, &rec.Total, &rec.Tier, &rec.WinProbability,
			&matched, &rec.ScoredAt); err != nil {
			return nil, classify(err)
		}
		if len(matched) > 0 {
			if err := json.Unmarshal(matched, &rec.Matched); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, classify(rows.Err())
}
