package scoring

import (
	"testing"

	"github.com/ZanzyTHEbar/leadpulse/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insightIDs(in []CollectionInsight) []string {
	out := make([]string, len(in))
	for i, ci := range in {
		out[i] = ci.ID
	}
	return out
}

func TestAggregateEmptyQueue(t *testing.T) {
	e := newTestEngine(t)
	assert.Empty(t, e.Aggregate(Queue{}))
}

func TestAggregateOrdersByPriority(t *testing.T) {
	e := newTestEngine(t)

	stale := scored("stale", 85, RiskLow, 0)
	stale.Record.DaysSinceLastEngagement = types.Ptr(12.0)

	q := Prioritize([]ScoredRecord{
		scored("hot", 90, RiskLow, 0),
		stale,
		scored("risky", 50, RiskHigh, 0),
	})

	got := e.Aggregate(q)
	assert.Equal(t, []string{conditionHighRisk, conditionStale, conditionHot, conditionTopPriority}, insightIDs(got))

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Priority.Rank(), got[i].Priority.Rank())
	}

	byID := map[string]CollectionInsight{}
	for _, ci := range got {
		byID[ci.ID] = ci
	}

	assert.Equal(t, PriorityCritical, byID[conditionHighRisk].Priority)
	assert.Equal(t, []string{"risky"}, byID[conditionHighRisk].RecordIDs)
	assert.Equal(t, "High risk: 1 record needs attention.", byID[conditionHighRisk].Message)

	assert.Equal(t, 2, byID[conditionHot].Count)
	assert.Equal(t, "2 hot records are available (score 80+).", byID[conditionHot].Message)

	assert.Equal(t, []string{"hot", "stale", "risky"}, byID[conditionTopPriority].RecordIDs)
	assert.Equal(t, "Act now on: hot, stale, risky.", byID[conditionTopPriority].Message)
}

func TestAggregateConditionsAreIndependent(t *testing.T) {
	e := newTestEngine(t)

	queueEntry := scored("q-1", 20, RiskHigh, 45)
	queueEntry.Record.Kind = types.KindQueue

	q := Prioritize([]ScoredRecord{queueEntry, scored("l-1", 10, RiskLow, 60)})
	q.Rejected = []Rejected{{Index: 2, Reason: reasonMissingIdentity}, {Index: 5, Reason: reasonMissingIdentity}}

	got := e.Aggregate(q)
	assert.Equal(t, []string{
		conditionHighRisk,
		conditionLongWait,
		conditionTopPriority,
		conditionUnavailable,
		conditionLowMedian,
	}, insightIDs(got))

	byID := map[string]CollectionInsight{}
	for _, ci := range got {
		byID[ci.ID] = ci
	}

	assert.Equal(t, []string{"q-1"}, byID[conditionLongWait].RecordIDs, "a one hour wait is only long for queue entries")
	assert.Equal(t, 2, byID[conditionUnavailable].Count)
	assert.Equal(t, "Scoring unavailable for 2 records.", byID[conditionUnavailable].Message)
	assert.Contains(t, byID[conditionLowMedian].Message, "Median score is 15")
}

func TestAggregateOnlyRejected(t *testing.T) {
	e := newTestEngine(t)

	got := e.Aggregate(Queue{Rejected: []Rejected{{Index: 0, Reason: reasonMissingIdentity}}})
	require.Len(t, got, 1)
	assert.Equal(t, "Scoring unavailable for 1 record.", got[0].Message)
	assert.Equal(t, InsightAnomaly, got[0].Type)
}

func TestEvaluate(t *testing.T) {
	e := newTestEngine(t)

	escalated := hotLead()
	escalated.ID = "lead-2"
	escalated.Kind = types.KindConversation
	escalated.Status = types.StatusEscalated
	escalated.Sentiment = types.SentimentNegative

	ev := e.Evaluate([]types.Record{hotLead(), {Kind: types.KindLead}, escalated})

	require.Len(t, ev.Records, 2)
	assert.Equal(t, "lead-2", ev.Records[0].Record.ID, "equal scores put the high-risk record first")
	assert.Equal(t, "lead-1", ev.Records[1].Record.ID)
	require.Len(t, ev.Rejected, 1)
	assert.Equal(t, 1, ev.Rejected[0].Index)
	assert.Equal(t, e.Version(), ev.ConfigVersion)

	assert.Contains(t, insightIDs(ev.Insights), conditionUnavailable)
	assert.Equal(t, conditionHighRisk, ev.Insights[0].ID)
}

func TestStaleEngagementIgnoresNeverEngagedRecords(t *testing.T) {
	e := newTestEngine(t)

	stale := scored("stale", 40, RiskLow, 0)
	stale.Record.DaysSinceLastEngagement = types.Ptr(8.0)
	recent := scored("recent", 40, RiskLow, 0)
	recent.Record.DaysSinceLastEngagement = types.Ptr(7.0)
	never := scored("never", 40, RiskLow, 0)

	var got *CollectionInsight
	for _, ci := range e.Aggregate(Prioritize([]ScoredRecord{stale, recent, never})) {
		if ci.ID == conditionStale {
			ci := ci
			got = &ci
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, []string{"stale"}, got.RecordIDs, "the threshold is strict and missing data is not stale")
}
