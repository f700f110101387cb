package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clearbridge/oppgraph/internal/server/middleware"
	cachepgx "github.com/clearbridge/oppgraph/pkg/cache/pgx"
	"github.com/clearbridge/oppgraph/pkg/logger"
)

// ClearCacheHandler drops every processed-notice mark. The graph is
// untouched; subsequent ingests fall back to the graph existence check,
// so clearing is safe but makes reprocessing slower.
func ClearCacheHandler(c echo.Context) error {
	type clearResponse struct {
		Message string `json:"message"`
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	store := cachepgx.NewDBStore(app.DBConn)
	if err := store.Clear(ctx); err != nil {
		logger.Error("Failed to clear processed cache", "err", err)
		return c.JSON(http.StatusInternalServerError, clearResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("Processed cache cleared")
	return c.JSON(http.StatusOK, clearResponse{
		Message: "Cache cleared",
	})
}
