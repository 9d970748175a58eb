package database

import (
	"database/sql"
	"log"

	"github.com/bridgecast/bridgecast/cache"

	"github.com/bridgecast/bridgecast/config"
	"github.com/pkg/errors"
)

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := ConnectDB(configuration.DataSource.Dns)
	if err != nil {
		return nil, err
	}
	return &Datasource{Conn: con}, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, errors.Wrap(err, "database ping failed")
	}
	err = createStreamTable(db)
	if err != nil {
		return nil, err
	}
	err = createGroupTable(db)
	if err != nil {
		return nil, err
	}
	err = createNodeTable(db)
	if err != nil {
		return nil, err
	}
	err = createUserTable(db)
	if err != nil {
		return nil, err
	}
	err = createInfractionTable(db)
	if err != nil {
		return nil, err
	}
	err = createBlacklistTable(db)
	if err != nil {
		return nil, err
	}
	err = createMessageTables(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createStreamTable creates PostgreSQL tables for the Stream struct and its
// feature flags
func createStreamTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS streams (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT,
			language TEXT,
			lockdown INT NOT NULL DEFAULT 0,
			nsfw BOOLEAN NOT NULL DEFAULT FALSE,
			password BYTEA,
			user_id BIGINT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating streams table: %v", err)
		return err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS stream_features (
			stream_id BIGINT NOT NULL REFERENCES streams(id),
			feature TEXT NOT NULL,
			PRIMARY KEY (stream_id, feature)
		)
	`)
	log.Println(err)
	return err
}

// createGroupTable creates a PostgreSQL table for the Group struct
func createGroupTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS groups (
			id BIGSERIAL PRIMARY KEY,
			discord_id BIGINT NOT NULL UNIQUE,
			invite_code TEXT UNIQUE,
			banned BOOLEAN NOT NULL DEFAULT FALSE,
			partnered BOOLEAN NOT NULL DEFAULT FALSE,
			verified BOOLEAN NOT NULL DEFAULT FALSE
		)
	`)
	log.Println(err)
	return err
}

// createNodeTable creates a PostgreSQL table for the Node struct
func createNodeTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS nodes (
			id BIGSERIAL PRIMARY KEY,
			stream_id BIGINT NOT NULL REFERENCES streams(id),
			group_id BIGINT NOT NULL REFERENCES groups(id),
			channel_id BIGINT NOT NULL UNIQUE,
			webhook_id BIGINT,
			webhook_token TEXT,
			status INT NOT NULL DEFAULT 0
		)
	`)
	log.Println(err)
	return err
}

// createUserTable creates PostgreSQL tables for the User struct and its
// permission grants
func createUserTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			discord_id BIGINT NOT NULL UNIQUE,
			language TEXT,
			system BOOLEAN NOT NULL DEFAULT FALSE,
			system_name TEXT,
			system_avatar TEXT,
			points BIGINT NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		log.Printf("Error creating users table: %v", err)
		return err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS user_permissions (
			user_id BIGINT NOT NULL REFERENCES users(id),
			permission TEXT NOT NULL,
			PRIMARY KEY (user_id, permission)
		)
	`)
	log.Println(err)
	return err
}

// createInfractionTable creates a PostgreSQL table for the Infraction struct
func createInfractionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS infractions (
			id SERIAL PRIMARY KEY,
			infraction_id TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL CHECK (type IN ('mute', 'ban', 'warn')),
			user_id BIGINT NOT NULL REFERENCES users(id),
			mod_id BIGINT,
			start_time TIMESTAMP NOT NULL DEFAULT NOW(),
			end_time TIMESTAMP,
			reason TEXT
		)
	`)
	log.Println(err)
	return err
}

// createBlacklistTable creates a PostgreSQL table for the BlacklistEntry struct
func createBlacklistTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS blacklists (
			id SERIAL PRIMARY KEY,
			blacklist_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL UNIQUE,
			pattern TEXT NOT NULL
		)
	`)
	log.Println(err)
	return err
}

// createMessageTables creates PostgreSQL tables for origin and result
// messages. result_messages deliberately has no unique constraint on
// (origin_id, node_id): delivery is at-least-once and duplicates are
// resolved at read time.
func createMessageTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS origin_messages (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			message_id BIGINT NOT NULL,
			node_id BIGINT NOT NULL,
			stream_id BIGINT NOT NULL,
			content TEXT,
			sent_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_origin_messages_message_id ON origin_messages (message_id)
	`)
	if err != nil {
		log.Printf("Error creating origin_messages table: %v", err)
		return err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS result_messages (
			id BIGSERIAL PRIMARY KEY,
			message_id BIGINT NOT NULL,
			node_id BIGINT NOT NULL,
			origin_id BIGINT NOT NULL REFERENCES origin_messages(id)
		);
		CREATE INDEX IF NOT EXISTS idx_result_messages_origin_id ON result_messages (origin_id)
	`)
	log.Println(err)
	return err
}
