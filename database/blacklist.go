package database

import (
	"context"

	"github.com/bridgecast/bridgecast/internal/apierror"
	"github.com/bridgecast/bridgecast/model"
	"github.com/lib/pq"
)

func (d *Datasource) CreateBlacklistEntry(ctx context.Context, entry *model.BlacklistEntry) (*model.BlacklistEntry, error) {
	if entry.ID == "" {
		entry.ID = model.GenerateUUIDWithSuffix("blk")
	}

	// Reject patterns that would silently never match.
	if _, err := entry.Compile(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Blacklist pattern is not a valid regular expression", err)
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO blacklists (blacklist_id, name, pattern)
		VALUES ($1, $2, $3)
	`, entry.ID, entry.Name, entry.Pattern)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Blacklist entry with this name already exists", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create blacklist entry", err)
	}

	return entry, nil
}

func (d *Datasource) GetBlacklist(ctx context.Context) ([]model.BlacklistEntry, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT blacklist_id, name, pattern
		FROM blacklists
		ORDER BY name
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve blacklist", err)
	}
	defer rows.Close()

	entries := []model.BlacklistEntry{}
	for rows.Next() {
		entry := model.BlacklistEntry{}
		if err := rows.Scan(&entry.ID, &entry.Name, &entry.Pattern); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan blacklist entry", err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over blacklist", err)
	}

	return entries, nil
}

func (d *Datasource) DeleteBlacklistEntry(ctx context.Context, name string) error {
	result, err := d.Conn.ExecContext(ctx, `
		DELETE FROM blacklists WHERE name = $1
	`, name)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete blacklist entry", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read delete result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Blacklist entry not found", nil)
	}
	return nil
}
