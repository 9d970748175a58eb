package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/bridgecast/bridgecast/internal/apierror"
	"github.com/bridgecast/bridgecast/model"
	"github.com/lib/pq"
)

func (d *Datasource) CreateOriginMessage(ctx context.Context, msg *model.OriginMessage) (*model.OriginMessage, error) {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO origin_messages (user_id, message_id, node_id, stream_id, content, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, msg.UserID, msg.MessageID, msg.NodeID, msg.StreamID, msg.Content, msg.SentAt).Scan(&msg.ID)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", pqErr)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create origin message", err)
	}

	return msg, nil
}

func (d *Datasource) CreateResultMessage(ctx context.Context, result *model.ResultMessage) error {
	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO result_messages (message_id, node_id, origin_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`, result.MessageID, result.NodeID, result.OriginID).Scan(&result.ID)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "foreign_key_violation" {
			return apierror.NewAPIError(apierror.ErrNotFound, "Origin message not found", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create result message", err)
	}

	return nil
}

func (d *Datasource) GetOriginMessage(ctx context.Context, id int64) (*model.OriginMessage, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, user_id, message_id, node_id, stream_id, content, sent_at
		FROM origin_messages
		WHERE id = $1
	`, id)
	return d.scanOrigin(ctx, row)
}

// GetOriginByDeliveredID correlates a platform-assigned message ID back to
// the origin it belongs to. The ID may be the origin's own source message or
// any of its recorded deliveries, which is what an edit arriving from any
// node resolves through.
func (d *Datasource) GetOriginByDeliveredID(ctx context.Context, messageID int64) (*model.OriginMessage, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT o.id, o.user_id, o.message_id, o.node_id, o.stream_id, o.content, o.sent_at
		FROM origin_messages o
		WHERE o.message_id = $1
		   OR o.id IN (SELECT r.origin_id FROM result_messages r WHERE r.message_id = $1)
		ORDER BY o.id
		LIMIT 1
	`, messageID)
	return d.scanOrigin(ctx, row)
}

func (d *Datasource) scanOrigin(ctx context.Context, row *sql.Row) (*model.OriginMessage, error) {
	msg := model.OriginMessage{}
	var content sql.NullString
	err := row.Scan(&msg.ID, &msg.UserID, &msg.MessageID, &msg.NodeID, &msg.StreamID, &content, &msg.SentAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Origin message not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve origin message", err)
	}
	msg.Content = content.String

	// Results ordered by row id so the earliest delivery per node comes
	// first; ResultForNode depends on this ordering.
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, message_id, node_id, origin_id
		FROM result_messages
		WHERE origin_id = $1
		ORDER BY id
	`, msg.ID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve result messages", err)
	}
	defer rows.Close()

	for rows.Next() {
		result := model.ResultMessage{}
		if err := rows.Scan(&result.ID, &result.MessageID, &result.NodeID, &result.OriginID); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan result message", err)
		}
		msg.Results = append(msg.Results, result)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over results", err)
	}

	return &msg, nil
}
