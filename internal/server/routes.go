package server

import (
	"github.com/clearbridge/oppgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Opportunity routes
	apiRoutes.POST("/opportunities", routes.IngestOpportunityHandler)
	apiRoutes.GET("/opportunities/:id/scores", routes.GetScoreHistoryHandler)

	// Organization routes
	apiRoutes.GET("/organizations/:key/contacts", routes.GetOrganizationContactsHandler)

	// Processed-notice cache routes
	apiRoutes.DELETE("/cache", routes.ClearCacheHandler)
}
