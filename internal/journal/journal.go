package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ramirezdev26/swifty-ai-digester/internal/domain"
)

// ErrNotFound is returned by Get when no entry matches the event id.
var ErrNotFound = fmt.Errorf("journal entry not found")

// Journal persists and lists terminal-outcome entries.
type Journal struct {
	pool *pgxpool.Pool
}

// New builds a Journal over an open pool.
func New(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

// Record inserts entry, or is a no-op on a conflicting event id — an
// event id is only ever written once (C6 publishes it exactly once per
// delivery), so a conflict means a redundant write, not corruption.
func (j *Journal) Record(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO journal_entries
			(event_id, image_id, user_id, partition, outcome, error_code, error, retry_count, original_body, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err := j.pool.Exec(ctx, query,
		entry.EventID,
		nullString(entry.ImageID),
		nullString(entry.UserID),
		entry.Partition,
		entry.Outcome,
		nullString(string(entry.ErrorCode)),
		nullString(entry.Error),
		entry.RetryCount,
		entry.OriginalBody,
		entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// ListDeadLettered returns the most recent dead-lettered entries, most
// recent first, for operator review (cmd/imageworkerctl journal list).
func (j *Journal) ListDeadLettered(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT event_id, image_id, user_id, partition, outcome, error_code, error, retry_count, original_body, recorded_at
		FROM journal_entries
		WHERE outcome = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`
	rows, err := j.pool.Query(ctx, query, OutcomeDeadLettered, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead-lettered entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get returns a single entry by event id, for republish.
func (j *Journal) Get(ctx context.Context, eventID string) (Entry, error) {
	query := `
		SELECT event_id, image_id, user_id, partition, outcome, error_code, error, retry_count, original_body, recorded_at
		FROM journal_entries
		WHERE event_id = $1
	`
	entry, err := scanEntry(j.pool.QueryRow(ctx, query, eventID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

// GetByImageID returns the most recent dead-lettered entry for imageID,
// for `imageworkerctl journal republish <imageId>`.
func (j *Journal) GetByImageID(ctx context.Context, imageID string) (Entry, error) {
	query := `
		SELECT event_id, image_id, user_id, partition, outcome, error_code, error, retry_count, original_body, recorded_at
		FROM journal_entries
		WHERE image_id = $1 AND outcome = $2
		ORDER BY recorded_at DESC
		LIMIT 1
	`
	entry, err := scanEntry(j.pool.QueryRow(ctx, query, imageID, OutcomeDeadLettered))
	if err != nil {
		if err == pgx.ErrNoRows {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry     Entry
		imageID   *string
		userID    *string
		errorCode *string
		errMsg    *string
	)

	err := row.Scan(
		&entry.EventID,
		&imageID,
		&userID,
		&entry.Partition,
		&entry.Outcome,
		&errorCode,
		&errMsg,
		&entry.RetryCount,
		&entry.OriginalBody,
		&entry.RecordedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("scan journal entry: %w", err)
	}

	if imageID != nil {
		entry.ImageID = *imageID
	}
	if userID != nil {
		entry.UserID = *userID
	}
	if errorCode != nil {
		entry.ErrorCode = domain.ErrorCode(*errorCode)
	}
	if errMsg != nil {
		entry.Error = *errMsg
	}

	return entry, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

