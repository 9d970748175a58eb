package database

import (
	"context"
	"database/sql"

	"github.com/bridgecast/bridgecast/internal/apierror"
	"github.com/bridgecast/bridgecast/model"
	"github.com/lib/pq"
)

const nodeColumns = `
	n.id, n.stream_id, n.group_id, n.channel_id, n.webhook_id, n.webhook_token, n.status, g.banned, g.discord_id
`

func (d *Datasource) CreateNode(ctx context.Context, node *model.Node) (*model.Node, error) {
	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO nodes (stream_id, group_id, channel_id, webhook_id, webhook_token, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, node.StreamID, node.GroupID, node.ChannelID, node.WebhookID, node.WebhookToken, node.Status).Scan(&node.ID)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Channel is already bound to a node", err)
			case "foreign_key_violation":
				return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Stream or group does not exist", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create node", err)
	}

	return node, nil
}

func (d *Datasource) GetNode(ctx context.Context, id int64) (*model.Node, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes n JOIN groups g ON g.id = n.group_id
		WHERE n.id = $1
	`, id)
	return scanNode(row)
}

func (d *Datasource) GetNodeByChannel(ctx context.Context, channelID int64) (*model.Node, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes n JOIN groups g ON g.id = n.group_id
		WHERE n.channel_id = $1
	`, channelID)
	return scanNode(row)
}

// GetStreamNodes returns every node of a stream, including disabled ones.
// Callers decide whether a disabled node takes part in a fan-out.
func (d *Datasource) GetStreamNodes(ctx context.Context, streamID int64) ([]*model.Node, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes n JOIN groups g ON g.id = n.group_id
		WHERE n.stream_id = $1
		ORDER BY n.id
	`, streamID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve stream nodes", err)
	}
	defer rows.Close()

	nodes := []*model.Node{}
	for rows.Next() {
		node := model.Node{}
		var webhookID sql.NullInt64
		var webhookToken sql.NullString
		err = rows.Scan(&node.ID, &node.StreamID, &node.GroupID, &node.ChannelID, &webhookID, &webhookToken, &node.Status, &node.GroupDisabled, &node.GroupDiscordID)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan node data", err)
		}
		node.WebhookID = webhookID.Int64
		node.WebhookToken = webhookToken.String
		nodes = append(nodes, &node)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over nodes", err)
	}

	return nodes, nil
}

func (d *Datasource) UpdateNodeStatus(ctx context.Context, id int64, status model.NodeStatus) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE nodes SET status = $2 WHERE id = $1
	`, id, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update node status", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Node not found", nil)
	}
	return nil
}

// UpdateNodeWebhook replaces the webhook endpoint and resets the node to
// healthy, since the previous status described the old webhook.
func (d *Datasource) UpdateNodeWebhook(ctx context.Context, id, webhookID int64, token string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE nodes SET webhook_id = $2, webhook_token = $3, status = $4 WHERE id = $1
	`, id, webhookID, token, model.NodeHealthy)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update node webhook", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Node not found", nil)
	}
	return nil
}

func scanNode(row *sql.Row) (*model.Node, error) {
	node := model.Node{}
	var webhookID sql.NullInt64
	var webhookToken sql.NullString
	err := row.Scan(&node.ID, &node.StreamID, &node.GroupID, &node.ChannelID, &webhookID, &webhookToken, &node.Status, &node.GroupDisabled, &node.GroupDiscordID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Node not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve node", err)
	}
	node.WebhookID = webhookID.Int64
	node.WebhookToken = webhookToken.String
	return &node, nil
}
