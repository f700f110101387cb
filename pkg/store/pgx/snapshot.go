package pgx

import (
	"context"

	"github.com/clearbridge/oppgraph/pkg/common"
)

// GetOrganizationsByKeys returns the committed organizations for the
// given identity keys, keyed by identity key.
func (s *GraphDBStorage) GetOrganizationsByKeys(ctx context.Context, keys []string) (map[string]common.Organization, error) {
	out := make(map[string]common.Organization, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := s.conn.Query(ctx, `
SELECT public_id, identity_key, name, type, first_seen_at
FROM organizations
WHERE identity_key = ANY($1)
`, keys)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var org common.Organization
		if err := rows.Scan(&org.PublicID, &org.IdentityKey, &org.Name, &org.Type, &org.FirstSeenAt); err != nil {
			return nil, classify(err)
		}
		out[org.IdentityKey] = org
	}
	return out, classify(rows.Err())
}

// GetPersonsByOrgKeys returns the committed persons attached to the given
// organizations, keyed by person identity key.
func (s *GraphDBStorage) GetPersonsByOrgKeys(ctx context.Context, orgKeys []string) (map[string]common.Person, error) {
	out := make(map[string]common.Person, len(orgKeys))
	if len(orgKeys) == 0 {
		return out, nil
	}

	rows, err := s.conn.Query(ctx, `
SELECT public_id, identity_key, name, title, COALESCE(email, ''), role, org_key, source, first_seen_at
FROM persons
WHERE org_key = ANY($1)
`, orgKeys)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var p common.Person
		if err := rows.Scan(&p.PublicID, &p.IdentityKey, &p.Name, &p.Title, &p.Email, &p.Role, &p.OrgKey, &p.Source, &p.FirstSeenAt); err != nil {
			return nil, classify(err)
		}
		out[p.IdentityKey] = p
	}
	return out, classify(rows.Err())
}

// GetPersonsByEmails returns the committed persons with the given
// (already folded) email addresses, keyed by email.
func (s *GraphDBStorage) GetPersonsByEmails(ctx context.Context, emails []string) (map[string]common.Person, error) {
	out := make(map[string]common.Person, len(emails))
	if len(emails) == 0 {
		return out, nil
	}

	rows, err := s.conn.Query(ctx, `
SELECT public_id, identity_key, name, title, COALESCE(email, ''), role, org_key, source, first_seen_at
FROM persons
WHERE email = ANY($1)
`, emails)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var p common.Person
		if err := rows.Scan(&p.PublicID, &p.IdentityKey, &p.Name, &p.Title, &p.Email, &p.Role, &p.OrgKey, &p.Source, &p.FirstSeenAt); err != nil {
			return nil, classify(err)
		}
		out[p.Email] = p
	}
	return out, classify(rows.Err())
}

// OpportunityExists reports whether a notice has been committed to the
// graph. Used to repair the processed cache after a crash between merge
// commit and cache mark.
func (s *GraphDBStorage) OpportunityExists(ctx context.Context, noticeID string) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM opportunities WHERE notice_id = $1)
`, noticeID).Scan(&exists)
	if err != nil {
		return false, classify(err)
	}
	return exists, nil
}
