package database

import (
	"context"
	"time"

	"github.com/bridgecast/bridgecast/internal/apierror"
	"github.com/bridgecast/bridgecast/model"
	"github.com/lib/pq"
)

func (d *Datasource) CreateInfraction(ctx context.Context, inf *model.Infraction) (*model.Infraction, error) {
	if inf.ID == "" {
		inf.ID = model.GenerateUUIDWithSuffix("inf")
	}
	if inf.StartTime.IsZero() {
		inf.StartTime = time.Now()
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO infractions (infraction_id, type, user_id, mod_id, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, inf.ID, inf.Type, inf.UserID, inf.ModID, inf.StartTime, inf.EndTime, inf.Reason)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "foreign_key_violation":
				return nil, apierror.NewAPIError(apierror.ErrNotFound, "User not found", err)
			case "check_violation":
				return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Unknown infraction type", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create infraction", err)
	}

	return inf, nil
}

func (d *Datasource) IsUserMuted(ctx context.Context, userID int64, at time.Time) (bool, error) {
	return d.hasActiveInfraction(ctx, userID, model.InfractionMute, at)
}

func (d *Datasource) IsUserBanned(ctx context.Context, userID int64, at time.Time) (bool, error) {
	return d.hasActiveInfraction(ctx, userID, model.InfractionBan, at)
}

// hasActiveInfraction checks for an infraction of the given type that has
// started and not yet ended. A NULL end_time means the infraction is
// permanent.
func (d *Datasource) hasActiveInfraction(ctx context.Context, userID int64, typ model.InfractionType, at time.Time) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM infractions
			WHERE user_id = $1 AND type = $2 AND start_time <= $3
			AND (end_time IS NULL OR end_time > $3)
		)
	`, userID, typ, at).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check infractions", err)
	}
	return exists, nil
}

func (d *Datasource) ExpireInfraction(ctx context.Context, infractionID string, at time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE infractions SET end_time = $2 WHERE infraction_id = $1
	`, infractionID, at)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to expire infraction", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Infraction not found", nil)
	}
	return nil
}
