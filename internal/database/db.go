package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/PaulBabatuyi/cvideo/internal/database/migrations"
	"github.com/PaulBabatuyi/cvideo/internal/models"
)

// PostgresDB is the audit journal of uploads and deletes. It never decides
// what is listed: the video store stays the source of truth.
type PostgresDB struct {
	db *sql.DB
}

func NewPostgresDB(ctx context.Context, connectionString string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresDB{db: db}, nil
}

func (p *PostgresDB) Record(ctx context.Context, event models.VideoEvent) error {
	query := `
        INSERT INTO video_events (id, event_type, filename, size, content_type, remote_addr, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := p.db.ExecContext(ctx, query,
		uuid.New().String(),
		string(event.Type),
		event.Filename,
		event.Size,
		event.ContentType,
		event.RemoteAddr,
		event.At,
	)
	if err != nil {
		return fmt.Errorf("insert video event: %w", err)
	}
	return nil
}

// History returns the newest limit events for filename, newest first.
func (p *PostgresDB) History(ctx context.Context, filename string, limit int) ([]models.VideoEvent, error) {
	query := `
        SELECT id, event_type, filename, size, content_type, remote_addr, created_at
        FROM video_events
        WHERE filename = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := p.db.QueryContext(ctx, query, filename, limit)
	if err != nil {
		return nil, fmt.Errorf("query video events: %w", err)
	}
	defer rows.Close()

	events := []models.VideoEvent{}
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.ID, &rec.EventType, &rec.Filename, &rec.Size, &rec.ContentType, &rec.RemoteAddr, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan video event: %w", err)
		}
		events = append(events, rec.Event())
	}
	return events, rows.Err()
}

// SchemaVersion reports the applied migration version.
func (p *PostgresDB) SchemaVersion() (uint, error) {
	version, dirty, err := migrations.Version(p.db)
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

func (p *PostgresDB) Close() error {
	return p.db.Close()
}
