package database

import (
	"context"
	"database/sql"

	"github.com/bridgecast/bridgecast/internal/apierror"
	"github.com/bridgecast/bridgecast/model"
	"github.com/lib/pq"
)

func (d *Datasource) CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	inviteCode := sql.NullString{String: group.InviteCode, Valid: group.InviteCode != ""}
	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO groups (discord_id, invite_code, banned, partnered, verified)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, group.DiscordID, inviteCode, group.Banned, group.Partnered, group.Verified).Scan(&group.ID)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Group is already registered", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create group", err)
	}

	return group, nil
}

func (d *Datasource) GetGroupByDiscordID(ctx context.Context, discordID int64) (*model.Group, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, discord_id, invite_code, banned, partnered, verified
		FROM groups
		WHERE discord_id = $1
	`, discordID)
	return scanGroup(row)
}

// GetGroupByInviteCode resolves an invite code back to the destination group
// it targets. The invite filter uses this to exempt links into partnered or
// verified communities.
func (d *Datasource) GetGroupByInviteCode(ctx context.Context, code string) (*model.Group, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, discord_id, invite_code, banned, partnered, verified
		FROM groups
		WHERE invite_code = $1
	`, code)
	return scanGroup(row)
}

func scanGroup(row *sql.Row) (*model.Group, error) {
	group := model.Group{}
	var inviteCode sql.NullString
	err := row.Scan(&group.ID, &group.DiscordID, &inviteCode, &group.Banned, &group.Partnered, &group.Verified)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Group not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve group", err)
	}
	group.InviteCode = inviteCode.String
	return &group, nil
}

func (d *Datasource) UpdateGroupBanned(ctx context.Context, id int64, banned bool) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE groups SET banned = $2 WHERE id = $1
	`, id, banned)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update group ban", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Group not found", nil)
	}
	return nil
}
