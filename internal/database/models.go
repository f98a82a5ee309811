package database

import (
	"errors"
	"time"

	"github.com/ZanzyTHEbar/leadpulse/internal/scoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/types"
	"github.com/google/uuid"
)

var (
	// ErrRecordNotFound is returned when no stored record has the requested id
	ErrRecordNotFound = errors.New("record not found")
	// ErrSnapshotNotFound is returned when a record has never been scored
	ErrSnapshotNotFound = errors.New("score snapshot not found")
	// ErrMissingIdentity is returned when storing a record without an id
	ErrMissingIdentity = errors.New("record has no identity")
)

const (
	stmtUpsertRecord   = "upsert_record"
	stmtGetRecord      = "get_record"
	stmtInsertSnapshot = "insert_snapshot"
	stmtLatestSnapshot = "latest_snapshot"
	stmtInsertRanking  = "insert_ranking"
	stmtListRankings   = "list_rankings"
)

// StoredRecord is a record together with its archive flag
type StoredRecord struct {
	types.Record
	Archived bool `json:"archived"`
}

// Snapshot is a persisted score result for one record
type Snapshot struct {
	ID            string              `json:"id" db:"id"`
	RecordID      string              `json:"record_id" db:"record_id"`
	ConfigVersion string              `json:"config_version" db:"config_version"`
	Composite     int                 `json:"composite" db:"composite"`
	Probability   float64             `json:"probability" db:"probability"`
	RiskTier      scoring.RiskTier    `json:"risk_tier" db:"risk_tier"`
	Action        string              `json:"action" db:"action"`
	Result        scoring.ScoreResult `json:"result" db:"payload"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
}

// Ranking is one persisted position of a prioritized queue
type Ranking struct {
	ID            string           `json:"id" db:"id"`
	Kind          types.Kind       `json:"kind" db:"kind"`
	Rank          int              `json:"rank" db:"rank"`
	RecordID      string           `json:"record_id" db:"record_id"`
	Composite     int              `json:"composite" db:"composite"`
	RiskTier      scoring.RiskTier `json:"risk_tier" db:"risk_tier"`
	Action        string           `json:"action" db:"action"`
	ConfigVersion string           `json:"config_version" db:"config_version"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}

// NewSnapshot creates a snapshot row with a generated ID
func NewSnapshot(recordID string, res scoring.ScoreResult) *Snapshot {
	return &Snapshot{
		ID:            uuid.New().String(),
		RecordID:      recordID,
		ConfigVersion: res.ConfigVersion,
		Composite:     res.Composite,
		Probability:   res.ConversionProbability,
		RiskTier:      res.Risk.Tier,
		Action:        res.NextBestAction.ID,
		Result:        res,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewRanking creates a ranking row for a prioritized record
func NewRanking(kind types.Kind, sr scoring.ScoredRecord, createdAt time.Time) *Ranking {
	return &Ranking{
		ID:            uuid.New().String(),
		Kind:          kind,
		Rank:          sr.Rank,
		RecordID:      sr.Record.ID,
		Composite:     sr.Result.Composite,
		RiskTier:      sr.Result.Risk.Tier,
		Action:        sr.Result.NextBestAction.ID,
		ConfigVersion: sr.Result.ConfigVersion,
		CreatedAt:     createdAt,
	}
}

// storageKind files records without a kind with leads
func storageKind(k types.Kind) types.Kind {
	if k == "" {
		return types.KindLead
	}
	return k
}
