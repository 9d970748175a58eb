package database

import (
	"context"
	"database/sql"

	"github.com/bridgecast/bridgecast/internal/apierror"
	"github.com/bridgecast/bridgecast/model"
	"github.com/lib/pq"
)

// GetOrCreateUser returns the user bound to a platform account, inserting a
// fresh row the first time the account is seen.
func (d *Datasource) GetOrCreateUser(ctx context.Context, discordID int64) (*model.User, error) {
	user := model.User{}
	var language, systemName, systemAvatar sql.NullString

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO users (discord_id)
		VALUES ($1)
		ON CONFLICT (discord_id) DO UPDATE SET discord_id = EXCLUDED.discord_id
		RETURNING id, discord_id, language, system, system_name, system_avatar, points
	`, discordID).Scan(&user.ID, &user.DiscordID, &language, &user.System, &systemName, &systemAvatar, &user.Points)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get or create user", err)
	}
	user.Language = language.String
	user.SystemName = systemName.String
	user.SystemAvatar = systemAvatar.String

	if err := d.loadPermissions(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Datasource) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user := model.User{}
	var language, systemName, systemAvatar sql.NullString

	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, discord_id, language, system, system_name, system_avatar, points
		FROM users
		WHERE id = $1
	`, id)

	err := row.Scan(&user.ID, &user.DiscordID, &language, &user.System, &systemName, &systemAvatar, &user.Points)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "User not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve user", err)
	}
	user.Language = language.String
	user.SystemName = systemName.String
	user.SystemAvatar = systemAvatar.String

	if err := d.loadPermissions(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Datasource) AddUserPoints(ctx context.Context, id int64, delta int) (int, error) {
	var points int
	err := d.Conn.QueryRowContext(ctx, `
		UPDATE users SET points = points + $2 WHERE id = $1
		RETURNING points
	`, id, delta).Scan(&points)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, apierror.NewAPIError(apierror.ErrNotFound, "User not found", err)
		}
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update user points", err)
	}
	return points, nil
}

func (d *Datasource) GrantPermission(ctx context.Context, id int64, permission string) error {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO user_permissions (user_id, permission)
		VALUES ($1, $2) ON CONFLICT DO NOTHING
	`, id, permission)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "foreign_key_violation" {
			return apierror.NewAPIError(apierror.ErrNotFound, "User not found", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to grant permission", err)
	}
	return nil
}

func (d *Datasource) loadPermissions(ctx context.Context, user *model.User) error {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT permission FROM user_permissions WHERE user_id = $1
	`, user.ID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve user permissions", err)
	}
	defer rows.Close()

	for rows.Next() {
		var permission string
		if err := rows.Scan(&permission); err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan user permission", err)
		}
		user.Permissions = append(user.Permissions, permission)
	}
	if err = rows.Err(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over permissions", err)
	}
	return nil
}
