package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StageStatusByName fetches the progress record for one stage.
func (s *Store) StageStatusByName(ctx context.Context, stageName string) (*StageStatus, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT stage_name, total_items, processed_items, status, updated_at FROM stage_status WHERE stage_name = ?`,
		stageName)
	status, err := scanStageStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stage status: %w", err)
	}
	return status, nil
}

// AllStageStatuses returns every stage progress record ordered by name.
func (s *Store) AllStageStatuses(ctx context.Context) ([]*StageStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage_name, total_items, processed_items, status, updated_at FROM stage_status ORDER BY stage_name`)
	if err != nil {
		return nil, fmt.Errorf("list stage statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*StageStatus
	for rows.Next() {
		status, err := scanStageStatus(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}

// BeginStage marks a stage running with a fresh total and processed count.
func (s *Store) BeginStage(ctx context.Context, stageName string, total, processed int) error {
	return s.upsertStageStatus(ctx, stageName, total, processed, StageRunning)
}

// AdvanceStage updates the cumulative processed count for a running stage.
// The count is clamped to the recorded total to preserve the processed <=
// total invariant.
func (s *Store) AdvanceStage(ctx context.Context, stageName string, processed int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE stage_status
         SET processed_items = MIN(?, total_items), updated_at = ?
         WHERE stage_name = ?`,
		processed, time.Now().UTC().Format(time.RFC3339Nano), stageName)
	if err != nil {
		return fmt.Errorf("advance stage: %w", err)
	}
	s.emit(Event{Table: "stage_status", Op: "update", Count: 1})
	return nil
}

// CompleteStage marks a stage completed. Processed is forced equal to total
// so the completed-implies-fully-processed invariant always holds.
func (s *Store) CompleteStage(ctx context.Context, stageName string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE stage_status
         SET status = ?, processed_items = total_items, updated_at = ?
         WHERE stage_name = ?`,
		string(StageCompleted), time.Now().UTC().Format(time.RFC3339Nano), stageName)
	if err != nil {
		return fmt.Errorf("complete stage: %w", err)
	}
	s.emit(Event{Table: "stage_status", Op: "update", Count: 1})
	return nil
}

// FailStage marks a stage failed, preserving its counters for reporting. A
// stage can fail before it ever began, so a missing row is created.
func (s *Store) FailStage(ctx context.Context, stageName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_status (stage_name, total_items, processed_items, status, updated_at)
         VALUES (?, 0, 0, ?, ?)
         ON CONFLICT(stage_name) DO UPDATE SET
           status = excluded.status,
           updated_at = excluded.updated_at`,
		stageName, string(StageFailed), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("fail stage: %w", err)
	}
	s.emit(Event{Table: "stage_status", Op: "update", Count: 1})
	return nil
}

func (s *Store) upsertStageStatus(ctx context.Context, stageName string, total, processed int, state StageState) error {
	if processed > total {
		processed = total
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_status (stage_name, total_items, processed_items, status, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(stage_name) DO UPDATE SET
           total_items = excluded.total_items,
           processed_items = excluded.processed_items,
           status = excluded.status,
           updated_at = excluded.updated_at`,
		stageName, total, processed, string(state), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert stage status: %w", err)
	}
	s.emit(Event{Table: "stage_status", Op: "update", Count: 1})
	return nil
}

func scanStageStatus(scanner interface{ Scan(dest ...any) error }) (*StageStatus, error) {
	var (
		status     StageStatus
		stateRaw   string
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&status.StageName, &status.TotalItems, &status.ProcessedItems, &stateRaw, &updatedRaw); err != nil {
		return nil, err
	}
	if state, ok := ParseStageState(stateRaw); ok {
		status.Status = state
	} else {
		status.Status = StagePending
	}
	if updatedRaw.Valid {
		if t, err := parseTimeString(updatedRaw.String); err == nil {
			status.UpdatedAt = t
		}
	}
	return &status, nil
}
