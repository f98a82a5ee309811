package mockdata

import (
	"testing"

	"github.com/ZanzyTHEbar/leadpulse/internal/scoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/types"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameSeedSameRecords(t *testing.T) {
	a := New(7).Mixed(30)
	b := New(7).Mixed(30)
	assert.Equal(t, a, b)

	c := New(8).Mixed(30)
	assert.NotEqual(t, a, c)
}

func TestRecordsByKind(t *testing.T) {
	for _, kind := range types.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			records := New(1).Records(kind, 25)
			require.Len(t, records, 25)

			seen := make(map[string]bool)
			for _, r := range records {
				assert.Equal(t, kind, r.Kind)
				assert.True(t, r.HasIdentity())
				assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
				seen[r.ID] = true

				_, err := ulid.ParseStrict(r.ID)
				assert.NoError(t, err)
			}
		})
	}
}

func TestIDsAreOrdered(t *testing.T) {
	records := New(3).Records(types.KindLead, 50)
	for i := 1; i < len(records); i++ {
		assert.Less(t, records[i-1].ID, records[i].ID)
		assert.True(t, records[i].CreatedAt.After(records[i-1].CreatedAt))
	}
}

func TestQueueEntriesWaitBriefly(t *testing.T) {
	for _, r := range New(5).Records(types.KindQueue, 40) {
		require.NotNil(t, r.WaitMinutes)
		assert.Less(t, *r.WaitMinutes, 30.0)
		assert.Contains(t, []types.Status{types.StatusWaiting, types.StatusEscalated}, r.Status)
	}
}

func TestNonPositiveCount(t *testing.T) {
	assert.Empty(t, New(1).Records(types.KindLead, 0))
	assert.Empty(t, New(1).Mixed(-3))
}

func TestGeneratedRecordsScore(t *testing.T) {
	engine, err := scoring.NewEngine(scoring.DefaultConfig())
	require.NoError(t, err)

	records := New(11).Mixed(60)
	eval := engine.Evaluate(records)
	assert.Empty(t, eval.Rejected)
	assert.Len(t, eval.Queue.Records, 60)
}
