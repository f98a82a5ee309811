package privacy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/leadpulse/internal/database"
)

// RetentionPolicy controls how long contact data and score history are kept
type RetentionPolicy struct {
	ArchivedRetentionDays int `json:"archived_retention_days"`
	SnapshotRetentionDays int `json:"snapshot_retention_days"`
}

// DefaultRetentionPolicy returns the standard retention windows
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		ArchivedRetentionDays: 90,
		SnapshotRetentionDays: 180,
	}
}

// CleanupReport summarizes one retention run
type CleanupReport struct {
	RecordsPurged    int64     `json:"records_purged"`
	SnapshotsDeleted int64     `json:"snapshots_deleted"`
	RanAt            time.Time `json:"ran_at"`
}

// Service handles data erasure and retention for stored leads and
// conversations, which carry contact details
type Service struct {
	repo   *database.Repository
	policy RetentionPolicy
	now    func() time.Time
}

// NewService creates a new privacy service
func NewService(repo *database.Repository, policy RetentionPolicy) *Service {
	defaults := DefaultRetentionPolicy()
	if policy.ArchivedRetentionDays <= 0 {
		policy.ArchivedRetentionDays = defaults.ArchivedRetentionDays
	}
	if policy.SnapshotRetentionDays <= 0 {
		policy.SnapshotRetentionDays = defaults.SnapshotRetentionDays
	}
	return &Service{repo: repo, policy: policy, now: time.Now}
}

// AnonymizeID returns a short stable hash of id, safe to write to logs
func AnonymizeID(id string) string {
	hash := sha256.Sum256([]byte(id))
	return hex.EncodeToString(hash[:])[:12]
}

// ForgetRecord erases a record and its score history
func (s *Service) ForgetRecord(ctx context.Context, id string) error {
	slog.Info("Initiating record erasure", "record", AnonymizeID(id))

	if err := s.repo.DeleteRecord(ctx, id); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return err
		}
		return fmt.Errorf("failed to erase record: %w", err)
	}

	slog.Info("Record erasure completed", "record", AnonymizeID(id))
	return nil
}

// Cleanup applies the retention policy once
func (s *Service) Cleanup(ctx context.Context) (CleanupReport, error) {
	now := s.now()
	report := CleanupReport{RanAt: now.UTC()}

	purged, err := s.repo.PurgeArchived(ctx, now.AddDate(0, 0, -s.policy.ArchivedRetentionDays))
	if err != nil {
		return report, err
	}
	report.RecordsPurged = purged

	pruned, err := s.repo.PruneSnapshots(ctx, now.AddDate(0, 0, -s.policy.SnapshotRetentionDays))
	if err != nil {
		return report, err
	}
	report.SnapshotsDeleted = pruned

	slog.Info("Data cleanup completed",
		"records_purged", report.RecordsPurged,
		"snapshots_deleted", report.SnapshotsDeleted,
	)
	return report, nil
}

// RunCleanup applies the retention policy every interval until ctx is done
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Cleanup(ctx); err != nil {
				slog.Error("Scheduled data cleanup failed", "error", err)
			}
		}
	}
}

// RetentionInfo describes the retention policy for the API
func (s *Service) RetentionInfo() map[string]interface{} {
	return map[string]interface{}{
		"archived_retention_days": s.policy.ArchivedRetentionDays,
		"snapshot_retention_days": s.policy.SnapshotRetentionDays,
		"anonymization_method":    "SHA-256",
		"erasure":                 "DELETE /v1/admin/records/:id",
	}
}
