package routes

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clearbridge/oppgraph/internal/server/middleware"
	"github.com/clearbridge/oppgraph/pkg/common"
	"github.com/clearbridge/oppgraph/pkg/logger"
	pgxstore "github.com/clearbridge/oppgraph/pkg/store/pgx"
)

// GetScoreHistoryHandler returns every score record for a notice,
// oldest first. Records are append-only, so the history doubles as a
// scoring audit trail across weight tunings.
func GetScoreHistoryHandler(c echo.Context) error {
	type scoresResponse struct {
		Message  string               `json:"message"`
		NoticeID string               `json:"notice_id,omitempty"`
		Scores   []common.ScoreRecord `json:"scores"`
	}

	noticeID := strings.TrimSpace(c.Param("id"))
	if noticeID == "" {
		return c.JSON(http.StatusBadRequest, scoresResponse{
			Message: "Missing notice id",
		})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	storage := pgxstore.NewGraphDBStorage(app.DBConn)

	scores, err := storage.GetScoreHistory(ctx, noticeID)
	if err != nil {
		logger.Error("Failed to load score history", "notice_id", noticeID, "err", err)
		return c.JSON(http.StatusInternalServerError, scoresResponse{
			Message: "Internal server error",
		})
	}
	if len(scores) == 0 {
		return c.JSON(http.StatusNotFound, scoresResponse{
			Message:  "No scores for notice",
			NoticeID: noticeID,
		})
	}

	return c.JSON(http.StatusOK, scoresResponse{
		Message:  "OK",
		NoticeID: noticeID,
		Scores:   scores,
	})
}
