package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/ZanzyTHEbar/leadpulse/internal/scoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/types"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func TestUpsertAndGetRecord(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	stored, err := repo.UpsertRecord(ctx, types.Record{
		ID:          "lead-1",
		Kind:        types.KindLead,
		Title:       "VP Sales",
		Engagements: types.Ptr(4),
	})
	require.NoError(t, err)
	assert.False(t, stored.CreatedAt.IsZero())

	got, err := repo.GetRecord(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "VP Sales", got.Title)
	assert.Equal(t, 4, *got.Engagements)
	assert.False(t, got.Archived)

	updated := got.Record
	updated.Title = "CEO"
	again, err := repo.UpsertRecord(ctx, updated)
	require.NoError(t, err)
	assert.True(t, again.CreatedAt.Equal(stored.CreatedAt), "creation time survives updates")

	got, err = repo.GetRecord(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "CEO", got.Title)
}

func TestUpsertRecordRequiresIdentity(t *testing.T) {
	_, err := newTestRepo(t).UpsertRecord(context.Background(), types.Record{ID: "  "})
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestGetRecordNotFound(t *testing.T) {
	_, err := newTestRepo(t).GetRecord(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestListRecordsByKindAndArchive(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, rec := range []types.Record{
		{ID: "b", Kind: types.KindLead},
		{ID: "a", Kind: types.KindLead},
		{ID: "c", Kind: types.KindConversation},
		{ID: "d"},
	} {
		_, err := repo.UpsertRecord(ctx, rec)
		require.NoError(t, err)
	}
	require.NoError(t, repo.ArchiveRecord(ctx, "b"))

	tests := []struct {
		name            string
		kind            types.Kind
		includeArchived bool
		want            []string
	}{
		{"active leads", types.KindLead, false, []string{"a", "d"}},
		{"all leads", types.KindLead, true, []string{"a", "b", "d"}},
		{"conversations", types.KindConversation, false, []string{"c"}},
		{"queue is empty", types.KindQueue, false, []string{}},
		{"every kind", "", true, []string{"a", "b", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := repo.ListRecords(ctx, tt.kind, tt.includeArchived)
			require.NoError(t, err)
			ids := make([]string, 0, len(records))
			for _, r := range records {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err := repo.UpsertRecord(ctx, types.Record{ID: "b", Kind: types.KindLead})
	require.NoError(t, err)
	got, err := repo.GetRecord(ctx, "b")
	require.NoError(t, err)
	assert.False(t, got.Archived, "upserting restores an archived record")
}

func TestArchiveAndDeleteMissing(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	assert.ErrorIs(t, repo.ArchiveRecord(ctx, "ghost"), ErrRecordNotFound)
	assert.ErrorIs(t, repo.DeleteRecord(ctx, "ghost"), ErrRecordNotFound)
}

func scoreFor(t *testing.T, rec types.Record) scoring.ScoreResult {
	t.Helper()
	e, err := scoring.NewEngine(scoring.DefaultConfig())
	require.NoError(t, err)
	res, err := e.ScoreRecord(rec)
	require.NoError(t, err)
	return res
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rec := types.Record{ID: "conv-1", Kind: types.KindConversation, Status: types.StatusEscalated, Sentiment: types.SentimentNegative}
	_, err := repo.UpsertRecord(ctx, rec)
	require.NoError(t, err)

	_, err = repo.LatestSnapshot(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	res := scoreFor(t, rec)
	saved, err := repo.SaveSnapshot(ctx, "conv-1", res)
	require.NoError(t, err)
	assert.Equal(t, scoring.ActionEscalateToManager, saved.Action)

	latest, err := repo.LatestSnapshot(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, latest.ID)
	assert.Equal(t, res.Composite, latest.Composite)
	assert.Equal(t, res.Risk.Tier, latest.RiskTier)
	assert.Equal(t, res.NextBestAction, latest.Result.NextBestAction)
	assert.Equal(t, res.ConfigVersion, latest.ConfigVersion)

	require.NoError(t, repo.DeleteRecord(ctx, "conv-1"))
	_, err = repo.LatestSnapshot(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestReplaceRankings(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	e, err := scoring.NewEngine(scoring.DefaultConfig())
	require.NoError(t, err)

	first := e.Prioritize([]types.Record{
		{ID: "1", Kind: types.KindLead},
		{ID: "2", Kind: types.KindLead, Actions: []string{"requested_demo"}},
	})
	require.NoError(t, repo.ReplaceRankings(ctx, types.KindLead, first.Records))

	rows, err := repo.ListRankings(ctx, types.KindLead, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2", rows[0].RecordID)
	assert.Equal(t, 1, rows[0].Rank)

	second := e.Prioritize([]types.Record{{ID: "3", Kind: types.KindLead}})
	require.NoError(t, repo.ReplaceRankings(ctx, types.KindLead, second.Records))

	rows, err = repo.ListRankings(ctx, types.KindLead, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "3", rows[0].RecordID)

	rows, err = repo.ListRankings(ctx, types.KindConversation, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPoolStats(t *testing.T) {
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	stats := db.GetPoolStats()
	assert.Equal(t, 8, stats["max_open_connections"])
}

func TestIsBusy(t *testing.T) {
	assert.True(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, IsBusy(fmt.Errorf("commit: %w", sqlite3.Error{Code: sqlite3.ErrLocked})))
	assert.False(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, IsBusy(ErrRecordNotFound))
	assert.False(t, IsBusy(nil))
}
