package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clearbridge/oppgraph/internal/server/middleware"
	"github.com/clearbridge/oppgraph/pkg/index"
	"github.com/clearbridge/oppgraph/pkg/logger"
	"github.com/clearbridge/oppgraph/pkg/resolver"
	pgxstore "github.com/clearbridge/oppgraph/pkg/store/pgx"
)

// GetOrganizationContactsHandler returns the categorized contacts at an
// organization. The path parameter is normalized the same way ingest
// does, so "DoD" and "Department of Defense" resolve to the same node.
func GetOrganizationContactsHandler(c echo.Context) error {
	type contactsResponse struct {
		Message  string            `json:"message"`
		OrgKey   string            `json:"org_key,omitempty"`
		Total    int               `json:"total"`
		Contacts index.OrgContacts `json:"contacts"`
	}

	app := c.(*middleware.AppContext).App

	norm := resolver.NewStandardOrgNormalizer(app.Config.OrgSynonyms)
	orgKey := norm.Normalize(c.Param("key"))
	if orgKey == "" {
		return c.JSON(http.StatusBadRequest, contactsResponse{
			Message: "Invalid organization key",
		})
	}

	ctx := c.Request().Context()
	storage := pgxstore.NewGraphDBStorage(app.DBConn)

	contacts, err := index.Lookup(ctx, storage, orgKey)
	if err != nil {
		logger.Error("Failed to look up contacts", "org_key", orgKey, "err", err)
		return c.JSON(http.StatusInternalServerError, contactsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, contactsResponse{
		Message:  "OK",
		OrgKey:   orgKey,
		Total:    contacts.Total(),
		Contacts: contacts,
	})
}
