package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/bridgecast/bridgecast/internal/apierror"
	"github.com/bridgecast/bridgecast/model"
	"github.com/lib/pq"
)

func (d *Datasource) CreateStream(ctx context.Context, stream *model.Stream) (*model.Stream, error) {
	stream.CreatedAt = time.Now()

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO streams (name, description, language, lockdown, nsfw, password, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, stream.Name, stream.Description, stream.Language, stream.Lockdown, stream.Nsfw, stream.Password, stream.UserID, stream.CreatedAt).Scan(&stream.ID)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Stream with this name already exists", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create stream", err)
	}

	for _, feature := range stream.Features {
		_, err = d.Conn.ExecContext(ctx, `
			INSERT INTO stream_features (stream_id, feature)
			VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, stream.ID, feature)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to store stream feature", err)
		}
	}

	return stream, nil
}

func (d *Datasource) GetStream(ctx context.Context, id int64) (*model.Stream, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, name, description, language, lockdown, nsfw, password, user_id, created_at
		FROM streams
		WHERE id = $1
	`, id)
	return d.scanStream(ctx, row)
}

func (d *Datasource) GetStreamByName(ctx context.Context, name string) (*model.Stream, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, name, description, language, lockdown, nsfw, password, user_id, created_at
		FROM streams
		WHERE name = $1
	`, name)
	return d.scanStream(ctx, row)
}

func (d *Datasource) scanStream(ctx context.Context, row *sql.Row) (*model.Stream, error) {
	stream := model.Stream{}
	var description, language sql.NullString
	err := row.Scan(&stream.ID, &stream.Name, &description, &language, &stream.Lockdown, &stream.Nsfw, &stream.Password, &stream.UserID, &stream.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Stream not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve stream", err)
	}
	stream.Description = description.String
	stream.Language = language.String

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT feature FROM stream_features WHERE stream_id = $1
	`, stream.ID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve stream features", err)
	}
	defer rows.Close()

	for rows.Next() {
		var feature string
		if err := rows.Scan(&feature); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan stream feature", err)
		}
		stream.Features = append(stream.Features, feature)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over stream features", err)
	}

	return &stream, nil
}

func (d *Datasource) UpdateStreamLockdown(ctx context.Context, id int64, level int) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE streams SET lockdown = $2 WHERE id = $1
	`, id, level)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update stream lockdown", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Stream not found", nil)
	}
	return nil
}
