package pgx

import (
	"context"

	"github.com/clearbridge/oppgraph/pkg/common"
)

// GetOrganizationContacts returns every person with a works_at edge into
// the organization. The edge title takes precedence over the person node
// title when both are present, since the edge records the role observed
// at that organization.
func (s *GraphDBStorage) GetOrganizationContacts(ctx context.Context, orgKey string) ([]common.Contact, error) {
	rows, err := s.conn.Query(ctx, `
SELECT p.name, COALESCE(NULLIF(w.title, ''), p.title), COALESCE(p.email, ''), p.role
FROM works_at w
JOIN persons p ON p.identity_key = w.person_key
WHERE w.org_key = $1
ORDER BY p.name
`, orgKey)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []common.Contact
	for rows.Next() {
		var c common.Contact
		if err := rows.Scan(&c.Name, &c.Title, &c.Email, &c.Role); err != nil {
			return nil, classify(err)
		}
		out = append(out, c)
	}
	return out, classify(rows.Err())
}
