package queue

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/clearbridge/oppgraph/pkg/common"
	"github.com/clearbridge/oppgraph/pkg/logger"
	"github.com/clearbridge/oppgraph/pkg/pipeline"
)

// OpportunityMsg is the ingest queue payload: one notice with its
// extracted entity candidates.
type OpportunityMsg struct {
	Opportunity   common.Opportunity `json:"opportunity"`
	Candidates    []common.Candidate `json:"candidates"`
	CorrelationID string             `json:"correlation_id,omitempty"`
}

// ProcessIngestMessage decodes one delivery and runs it through the
// pipeline. Invalid input and permanent merge failures return nil so
// the message is acked instead of cycling through the retry queue; the
// pipeline already recorded the outcome.
func ProcessIngestMessage(ctx context.Context, client *pipeline.Client, msg string) error {
	data := new(OpportunityMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		logger.Error("[Queue] Dropping undecodable ingest message", "err", err)
		return nil
	}

	result, err := client.ProcessOpportunity(ctx, data.Opportunity, data.Candidates)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidOpportunity) || errors.Is(err, pipeline.ErrStoragePermanent) {
			logger.Error("[Queue] Opportunity rejected",
				"notice_id", data.Opportunity.NoticeID,
				"correlation_id", data.CorrelationID,
				"err", err)
			return nil
		}
		return err
	}

	if result.Skipped {
		logger.Debug("[Queue] Opportunity skipped",
			"notice_id", result.NoticeID,
			"correlation_id", data.CorrelationID)
	}
	return nil
}
