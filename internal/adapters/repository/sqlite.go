package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS webhook_subscriptions (
	subscription_id TEXT PRIMARY KEY,
	url             TEXT NOT NULL,
	event_types     TEXT NOT NULL,
	player_id       TEXT NOT NULL DEFAULT '',
	secret          TEXT NOT NULL,
	is_active       INTEGER NOT NULL DEFAULT 1,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_active ON webhook_subscriptions (is_active);
CREATE INDEX IF NOT EXISTS idx_subscriptions_player ON webhook_subscriptions (player_id);
CREATE TABLE IF NOT EXISTS webhook_deliveries (
	delivery_id     TEXT PRIMARY KEY,
	subscription_id TEXT NOT NULL,
	url             TEXT NOT NULL,
	event_id        TEXT NOT NULL,
	event_type      TEXT NOT NULL,
	player_id       TEXT NOT NULL,
	status_code     INTEGER,
	error           TEXT NOT NULL DEFAULT '',
	attempted_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deliveries_sub_event ON webhook_deliveries (subscription_id, event_id)
`

// SQLStore persists subscriptions and delivery records in sqlite.
type SQLStore struct {
	db *sql.DB
}

// OpenSQL opens (creating if needed) the sqlite database at path and applies
// the schema.
func OpenSQL(path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	for _, raw := range strings.Split(schemaSQL, ";") {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w (statement=%q)", err, stmt)
		}
	}
	return nil
}

// List returns all subscriptions ordered by creation time.
func (s *SQLStore) List(ctx context.Context) ([]Subscription, error) {
	return s.listWhere(ctx, ``)
}

// ListActive returns only active subscriptions ordered by creation time.
func (s *SQLStore) ListActive(ctx context.Context) ([]Subscription, error) {
	return s.listWhere(ctx, `WHERE is_active = 1`)
}

func (s *SQLStore) listWhere(ctx context.Context, where string) ([]Subscription, error) {
	query := `SELECT subscription_id, url, event_types, player_id, secret, is_active, created_at
		FROM webhook_subscriptions ` + where + ` ORDER BY created_at, subscription_id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var (
			sub        Subscription
			typesJSON  string
			active     int
			createdRaw string
		)
		if err := rows.Scan(&sub.SubscriptionID, &sub.URL, &typesJSON, &sub.PlayerID, &sub.Secret, &active, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		if err := json.Unmarshal([]byte(typesJSON), &sub.EventTypes); err != nil {
			return nil, fmt.Errorf("decode event_types: %w", err)
		}
		sub.IsActive = active == 1
		created, err := time.Parse(time.RFC3339Nano, createdRaw)
		if err != nil {
			return nil, fmt.Errorf("decode created_at: %w", err)
		}
		sub.CreatedAt = created
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return out, nil
}

// Add persists a new active subscription and returns it.
func (s *SQLStore) Add(ctx context.Context, url string, eventTypes []string, secret, playerID string) (Subscription, error) {
	sub := Subscription{
		SubscriptionID: uuid.NewString(),
		URL:            url,
		EventTypes:     append([]string(nil), eventTypes...),
		PlayerID:       playerID,
		Secret:         secret,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	typesJSON, err := json.Marshal(sub.EventTypes)
	if err != nil {
		return Subscription{}, fmt.Errorf("encode event_types: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO webhook_subscriptions (subscription_id, url, event_types, player_id, secret, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?)`,
		sub.SubscriptionID, sub.URL, string(typesJSON), sub.PlayerID, sub.Secret,
		sub.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Subscription{}, fmt.Errorf("insert subscription: %w", err)
	}
	return sub, nil
}

// Disable soft-deletes a subscription; the row is retained.
func (s *SQLStore) Disable(ctx context.Context, subscriptionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE webhook_subscriptions SET is_active = 0 WHERE subscription_id = ?`, subscriptionID)
	if err != nil {
		return false, fmt.Errorf("disable subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("disable subscription: %w", err)
	}
	return affected > 0, nil
}

// Append records a delivery outcome.
func (s *SQLStore) Append(ctx context.Context, rec DeliveryRecord) error {
	var status sql.NullInt64
	if rec.StatusCode != nil {
		status = sql.NullInt64{Int64: int64(*rec.StatusCode), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (delivery_id, subscription_id, url, event_id, event_type, player_id, status_code, error, attempted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DeliveryID, rec.SubscriptionID, rec.URL, rec.EventID, rec.EventType, rec.PlayerID,
		status, rec.Error, rec.AttemptedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
