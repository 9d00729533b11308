package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/veridex/listrank/internal/tracing"
)

// PostgresStore implements Store using PostgreSQL. Rows are only ever
// inserted; there is no update or delete path.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// Append stores a new snapshot row.
func (s *PostgresStore) Append(ctx context.Context, snap Snapshot) (*Snapshot, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.ComputedAt.IsZero() {
		snap.ComputedAt = time.Now().UTC()
	}

	var breakdown []byte
	if snap.FactorBreakdown != nil {
		var err error
		breakdown, err = json.Marshal(snap.FactorBreakdown)
		if err != nil {
			return nil, fmt.Errorf("failed to encode factor breakdown: %w", err)
		}
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "score_snapshots", tracing.DBOperationInsert)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO score_snapshots (id, subject_id, subject_type, score, factor_breakdown, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		snap.ID, snap.SubjectID, snap.SubjectType, snap.Score, breakdown, snap.ComputedAt,
	)
	endSpan(err)
	if err != nil {
		s.logger.Error("failed to insert score snapshot",
			slog.String("error", err.Error()),
			slog.String("subject_id", snap.SubjectID),
			slog.String("subject_type", snap.SubjectType))
		return nil, fmt.Errorf("failed to insert score snapshot: %w", err)
	}

	return &snap, nil
}

// QueryWindow returns snapshots for a subject within the window, newest first.
func (s *PostgresStore) QueryWindow(ctx context.Context, subjectID string, windowDays int, now time.Time) ([]Snapshot, error) {
	query := `
		SELECT id, subject_id, subject_type, score, factor_breakdown, computed_at
		FROM score_snapshots
		WHERE subject_id = $1`
	args := []any{subjectID}

	if windowDays > 0 {
		query += ` AND computed_at >= $2`
		args = append(args, now.AddDate(0, 0, -windowDays))
	}
	query += ` ORDER BY computed_at DESC`

	ctx, endSpan := tracing.StartDBSpan(ctx, "score_snapshots", tracing.DBOperationQuery)
	rows, err := s.db.QueryContext(ctx, query, args...)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to query score snapshots: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("failed to close snapshot rows", slog.String("error", err.Error()))
		}
	}()

	var results []Snapshot
	for rows.Next() {
		var snap Snapshot
		var breakdown []byte
		if err := rows.Scan(&snap.ID, &snap.SubjectID, &snap.SubjectType, &snap.Score, &breakdown, &snap.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score snapshot: %w", err)
		}
		if len(breakdown) > 0 {
			if err := json.Unmarshal(breakdown, &snap.FactorBreakdown); err != nil {
				return nil, fmt.Errorf("failed to decode factor breakdown: %w", err)
			}
		}
		results = append(results, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate score snapshots: %w", err)
	}

	return results, nil
}
