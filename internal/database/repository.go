package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/leadpulse/internal/scoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/types"
	"github.com/mattn/go-sqlite3"
)

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// UpsertRecord stores r, keeping the original creation time of an existing
// record and un-archiving it. The stored copy is returned.
func (r *Repository) UpsertRecord(ctx context.Context, rec types.Record) (types.Record, error) {
	if !rec.HasIdentity() {
		return types.Record{}, ErrMissingIdentity
	}

	now := time.Now().UTC()
	existing, err := r.GetRecord(ctx, rec.ID)
	switch {
	case err == nil:
		rec.CreatedAt = existing.CreatedAt
	case errors.Is(err, ErrRecordNotFound):
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
	default:
		return types.Record{}, err
	}
	rec.UpdatedAt = now

	payload, err := json.Marshal(rec)
	if err != nil {
		return types.Record{}, fmt.Errorf("failed to encode record: %w", err)
	}

	stmt, err := r.db.GetPreparedStatement(stmtUpsertRecord)
	if err != nil {
		return types.Record{}, err
	}
	if _, err := stmt.ExecContext(ctx, rec.ID, storageKind(rec.Kind), rec.Status, string(payload), rec.CreatedAt, rec.UpdatedAt); err != nil {
		return types.Record{}, fmt.Errorf("failed to upsert record: %w", err)
	}

	return rec, nil
}

// GetRecord loads one record, archived or not
func (r *Repository) GetRecord(ctx context.Context, id string) (*StoredRecord, error) {
	stmt, err := r.db.GetPreparedStatement(stmtGetRecord)
	if err != nil {
		return nil, err
	}

	var (
		payload  string
		archived bool
	)
	err = stmt.QueryRowContext(ctx, id).Scan(&payload, &archived)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	var rec types.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return &StoredRecord{Record: rec, Archived: archived}, nil
}

// ListRecords returns records of kind ordered by id. An empty kind lists
// every kind.
func (r *Repository) ListRecords(ctx context.Context, kind types.Kind, includeArchived bool) ([]types.Record, error) {
	query := `SELECT payload FROM records WHERE 1 = 1`
	var args []interface{}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	if !includeArchived {
		query += ` AND archived = FALSE`
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []types.Record{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var rec types.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ArchiveRecord hides a record from queues without deleting its history
func (r *Repository) ArchiveRecord(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE records SET archived = TRUE, updated_at = ? WHERE id = ?
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to archive record: %w", err)
	}
	return expectAffected(res)
}

// DeleteRecord removes a record and its snapshots
func (r *Repository) DeleteRecord(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM score_snapshots WHERE record_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete snapshots: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM queue_rankings WHERE record_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete rankings: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		return expectAffected(res)
	})
}

// PurgeArchived hard-deletes archived records last updated before cutoff,
// together with their snapshots and rankings
func (r *Repository) PurgeArchived(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		const stale = `SELECT id FROM records WHERE archived = TRUE AND updated_at < ?`
		before := cutoff.UTC()

		if _, err := tx.ExecContext(ctx, `DELETE FROM score_snapshots WHERE record_id IN (`+stale+`)`, before); err != nil {
			return fmt.Errorf("failed to purge snapshots: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM queue_rankings WHERE record_id IN (`+stale+`)`, before); err != nil {
			return fmt.Errorf("failed to purge rankings: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE archived = TRUE AND updated_at < ?`, before)
		if err != nil {
			return fmt.Errorf("failed to purge records: %w", err)
		}
		purged, err = res.RowsAffected()
		return err
	})
	return purged, err
}

// PruneSnapshots drops snapshots older than cutoff but always keeps the
// latest snapshot of each record
func (r *Repository) PruneSnapshots(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM score_snapshots
		WHERE created_at < ?
		AND id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY record_id ORDER BY created_at DESC, rowid DESC) AS rn
				FROM score_snapshots
			) WHERE rn = 1
		)
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// CountSnapshots returns the number of stored snapshots of recordID
func (r *Repository) CountSnapshots(ctx context.Context, recordID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM score_snapshots WHERE record_id = ?`, recordID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

// SaveSnapshot persists one score result for recordID
func (r *Repository) SaveSnapshot(ctx context.Context, recordID string, res scoring.ScoreResult) (*Snapshot, error) {
	snaps, err := r.SaveSnapshots(ctx, []scoring.ScoredRecord{{Record: types.Record{ID: recordID}, Result: res}})
	if err != nil {
		return nil, err
	}
	return snaps[0], nil
}

// SaveSnapshots persists the results of a batch in one transaction
func (r *Repository) SaveSnapshots(ctx context.Context, scored []scoring.ScoredRecord) ([]*Snapshot, error) {
	insert, err := r.db.GetPreparedStatement(stmtInsertSnapshot)
	if err != nil {
		return nil, err
	}

	snaps := make([]*Snapshot, 0, len(scored))
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		stmt := tx.StmtContext(ctx, insert)
		defer stmt.Close()

		for _, sr := range scored {
			snap := NewSnapshot(sr.Record.ID, sr.Result)
			payload, err := json.Marshal(snap.Result)
			if err != nil {
				return fmt.Errorf("failed to encode score result: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, snap.ID, snap.RecordID, snap.ConfigVersion, snap.Composite,
				snap.Probability, snap.RiskTier, snap.Action, string(payload), snap.CreatedAt); err != nil {
				return fmt.Errorf("failed to save snapshot for %s: %w", snap.RecordID, err)
			}
			snaps = append(snaps, snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// LatestSnapshot returns the most recent score of a record
func (r *Repository) LatestSnapshot(ctx context.Context, recordID string) (*Snapshot, error) {
	stmt, err := r.db.GetPreparedStatement(stmtLatestSnapshot)
	if err != nil {
		return nil, err
	}

	var (
		snap    Snapshot
		payload string
	)
	err = stmt.QueryRowContext(ctx, recordID).Scan(&snap.ID, &snap.RecordID, &snap.ConfigVersion, &snap.Composite,
		&snap.Probability, &snap.RiskTier, &snap.Action, &payload, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &snap.Result); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", snap.ID, err)
	}
	return &snap, nil
}

// ReplaceRankings swaps the stored queue of kind for queue, atomically
func (r *Repository) ReplaceRankings(ctx context.Context, kind types.Kind, queue []scoring.ScoredRecord) error {
	insert, err := r.db.GetPreparedStatement(stmtInsertRanking)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM queue_rankings WHERE kind = ?`, kind); err != nil {
			return fmt.Errorf("failed to clear rankings: %w", err)
		}

		stmt := tx.StmtContext(ctx, insert)
		defer stmt.Close()

		for _, sr := range queue {
			row := NewRanking(kind, sr, now)
			if _, err := stmt.ExecContext(ctx, row.ID, row.Kind, row.Rank, row.RecordID, row.Composite,
				row.RiskTier, row.Action, row.ConfigVersion, row.CreatedAt); err != nil {
				return fmt.Errorf("failed to insert ranking %d: %w", row.Rank, err)
			}
		}
		return nil
	})
}

// ListRankings returns the stored queue of kind in rank order
func (r *Repository) ListRankings(ctx context.Context, kind types.Kind, limit int) ([]Ranking, error) {
	stmt, err := r.db.GetPreparedStatement(stmtListRankings)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := stmt.QueryContext(ctx, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rankings: %w", err)
	}
	defer rows.Close()

	rankings := []Ranking{}
	for rows.Next() {
		var row Ranking
		if err := rows.Scan(&row.ID, &row.Kind, &row.Rank, &row.RecordID, &row.Composite,
			&row.RiskTier, &row.Action, &row.ConfigVersion, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ranking: %w", err)
		}
		rankings = append(rankings, row)
	}

	return rankings, rows.Err()
}

func (r *Repository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// IsBusy reports whether err is SQLite lock contention that is worth retrying
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
