package routes

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/clearbridge/oppgraph/internal/queue"
	"github.com/clearbridge/oppgraph/internal/server/middleware"
	"github.com/clearbridge/oppgraph/pkg/common"
	"github.com/clearbridge/oppgraph/pkg/logger"
)

// IngestOpportunityHandler validates one notice plus its extracted
// candidates and enqueues it for the worker.
func IngestOpportunityHandler(c echo.Context) error {
	type ingestBody struct {
		Opportunity common.Opportunity `json:"opportunity" validate:"required"`
		Candidates  []common.Candidate `json:"candidates"`
	}

	type ingestResponse struct {
		Message       string `json:"message"`
		NoticeID      string `json:"notice_id,omitempty"`
		CorrelationID string `json:"correlation_id,omitempty"`
	}

	data := new(ingestBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Invalid request body",
		})
	}
	if strings.TrimSpace(data.Opportunity.NoticeID) == "" {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Missing notice_id",
		})
	}
	if strings.TrimSpace(data.Opportunity.AgencyName) == "" {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Missing agency_name",
		})
	}
	for _, cand := range data.Candidates {
		if strings.TrimSpace(cand.Name) == "" {
			return c.JSON(http.StatusBadRequest, ingestResponse{
				Message: "Candidate missing name",
			})
		}
	}

	correlationID, err := gonanoid.New()
	if err != nil {
		logger.Error("Failed to generate correlation id", "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Internal server error",
		})
	}

	msg := queue.OpportunityMsg{
		Opportunity:   data.Opportunity,
		Candidates:    data.Candidates,
		CorrelationID: correlationID,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to marshal ingest message", "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Internal server error",
		})
	}

	ch := c.(*middleware.AppContext).App.Queue
	if err := queue.PublishFIFO(ch, queue.IngestQueue, msgBytes); err != nil {
		logger.Error("Failed to enqueue opportunity",
			"notice_id", data.Opportunity.NoticeID, "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, ingestResponse{
		Message:       "Opportunity queued",
		NoticeID:      data.Opportunity.NoticeID,
		CorrelationID: correlationID,
	})
}
