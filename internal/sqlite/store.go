// Package sqlite is a local event store: events are appended to a single
// table and replayed per topic in insertion order.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/kanna-karuppasamy/traffic-figure-monitor/internal/transport"
)

//go:embed schema.sql
var schemaSQL string

// Store is an event store backed by SQLite
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path and applies the schema
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, transport.Wrap("open", "", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, transport.Wrap("open", "", fmt.Errorf("apply schema: %w", err))
	}

	logger.Info("initialized event store schema", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Append inserts one event
func (s *Store) Append(ctx context.Context, msg transport.Message) error {
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (topic, schema_name, schema_version, data, created_at_ns)
		VALUES (?, ?, ?, ?, ?)
	`, msg.Topic, msg.SchemaName, msg.SchemaVersion, msg.Data, created.UnixNano())
	if err != nil {
		return transport.Wrap("append", msg.Topic, err)
	}
	return nil
}

// Query replays the events of topic in insertion order
func (s *Store) Query(ctx context.Context, topic string, visit transport.Handler) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT schema_name, schema_version, data, created_at_ns
		FROM events
		WHERE topic = ?
		ORDER BY id
	`, topic)
	if err != nil {
		return transport.Wrap("query", topic, err)
	}
	defer rows.Close()

	// Rows are buffered so visit may call back into the store without
	// deadlocking on the single connection.
	var msgs []transport.Message
	for rows.Next() {
		msg := transport.Message{Topic: topic}
		var createdNs int64
		if err := rows.Scan(&msg.SchemaName, &msg.SchemaVersion, &msg.Data, &createdNs); err != nil {
			return transport.Wrap("query", topic, err)
		}
		msg.CreatedAt = time.Unix(0, createdNs)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return transport.Wrap("query", topic, err)
	}
	rows.Close()

	for _, msg := range msgs {
		if err := visit(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
