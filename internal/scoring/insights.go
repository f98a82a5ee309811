package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/ZanzyTHEbar/leadpulse/internal/types"
)

// Collection condition ids
const (
	conditionHighRisk    = "high_risk"
	conditionStale       = "stale_engagement"
	conditionLongWait    = "long_wait"
	conditionHot         = "hot_records"
	conditionTopPriority = "top_priority"
	conditionLowMedian   = "low_median_score"
	conditionUnavailable = "scoring_unavailable"
)

type collectionCondition struct {
	id       string
	typ      InsightType
	priority Priority
	// evaluate returns the matching count, the ids to report and the template
	// bindings. A zero count means the condition did not fire.
	evaluate func(q Queue, cfg *Config) (int, []string, map[string]interface{})
}

var collectionConditions = []collectionCondition{
	{
		id:       conditionHighRisk,
		typ:      InsightAnomaly,
		priority: PriorityCritical,
		evaluate: func(q Queue, cfg *Config) (int, []string, map[string]interface{}) {
			ids := matching(q, func(sr ScoredRecord) bool { return sr.Result.Risk.Tier == RiskHigh })
			return len(ids), ids, nil
		},
	},
	{
		id:       conditionStale,
		typ:      InsightTiming,
		priority: PriorityHigh,
		evaluate: func(q Queue, cfg *Config) (int, []string, map[string]interface{}) {
			// never-engaged records have no engagement to go stale
			ids := matching(q, func(sr ScoredRecord) bool {
				return types.Float(sr.Record.DaysSinceLastEngagement, 0) > cfg.Insights.StaleDays
			})
			return len(ids), ids, map[string]interface{}{"threshold": cfg.Insights.StaleDays}
		},
	},
	{
		id:       conditionLongWait,
		typ:      InsightTiming,
		priority: PriorityHigh,
		evaluate: func(q Queue, cfg *Config) (int, []string, map[string]interface{}) {
			ids := matching(q, func(sr ScoredRecord) bool {
				kind := sr.Record.Kind
				if kind == "" {
					kind = types.KindLead
				}
				limit, ok := cfg.Insights.LongWaitMinutes[kind]
				return ok && WaitMinutes(sr.Record) > limit
			})
			return len(ids), ids, nil
		},
	},
	{
		id:       conditionHot,
		typ:      InsightOpportunity,
		priority: PriorityHigh,
		evaluate: func(q Queue, cfg *Config) (int, []string, map[string]interface{}) {
			ids := matching(q, func(sr ScoredRecord) bool { return sr.Result.Composite >= cfg.Insights.HotScore })
			return len(ids), ids, map[string]interface{}{"threshold": cfg.Insights.HotScore}
		},
	},
	{
		id:       conditionTopPriority,
		typ:      InsightOpportunity,
		priority: PriorityMedium,
		evaluate: func(q Queue, cfg *Config) (int, []string, map[string]interface{}) {
			n := cfg.Insights.TopN
			if n > len(q.Records) {
				n = len(q.Records)
			}
			ids := make([]string, 0, n)
			for _, sr := range q.Records[:n] {
				ids = append(ids, sr.Record.ID)
			}
			return len(ids), ids, nil
		},
	},
	{
		id:       conditionLowMedian,
		typ:      InsightTrend,
		priority: PriorityLow,
		evaluate: func(q Queue, cfg *Config) (int, []string, map[string]interface{}) {
			if len(q.Records) == 0 {
				return 0, nil, nil
			}
			scores := make([]float64, len(q.Records))
			for i, sr := range q.Records {
				scores[i] = float64(sr.Result.Composite)
			}
			m := median(scores)
			if m >= cfg.Insights.LowMedianScore {
				return 0, nil, nil
			}
			return len(q.Records), nil, map[string]interface{}{
				"median":    math.Round(m*10) / 10,
				"threshold": cfg.Insights.LowMedianScore,
			}
		},
	},
	{
		id:       conditionUnavailable,
		typ:      InsightAnomaly,
		priority: PriorityMedium,
		evaluate: func(q Queue, cfg *Config) (int, []string, map[string]interface{}) {
			ids := make([]string, 0, len(q.Rejected))
			for _, r := range q.Rejected {
				if r.ID != "" {
					ids = append(ids, r.ID)
				}
			}
			return len(q.Rejected), ids, nil
		},
	},
}

func collectionConditionIDs() []string {
	ids := make([]string, len(collectionConditions))
	for i, c := range collectionConditions {
		ids[i] = c.id
	}
	return ids
}

func knownCondition(id string) bool {
	for _, c := range collectionConditions {
		if c.id == id {
			return true
		}
	}
	return false
}

func matching(q Queue, pred func(ScoredRecord) bool) []string {
	var ids []string
	for _, sr := range q.Records {
		if pred(sr) {
			ids = append(ids, sr.Record.ID)
		}
	}
	return ids
}

// Aggregate surfaces collection-level insights from an already prioritized
// queue. Every condition is evaluated independently and all that fire are
// returned, highest priority first. Records are never re-scored here.
func (e *Engine) Aggregate(q Queue) []CollectionInsight {
	out := make([]CollectionInsight, 0, len(collectionConditions))
	for _, cond := range collectionConditions {
		count, ids, extra := cond.evaluate(q, &e.cfg)
		if count == 0 {
			continue
		}

		idList := make([]interface{}, len(ids))
		for i, id := range ids {
			idList[i] = id
		}
		bindings := map[string]interface{}{
			"count": count,
			"ids":   idList,
			"total": len(q.Records),
		}
		for k, v := range extra {
			bindings[k] = v
		}

		out = append(out, CollectionInsight{
			ID:        cond.id,
			Type:      cond.typ,
			Priority:  cond.priority,
			Message:   render(e.messages.collection[cond.id], bindings, fmt.Sprintf("%s: %d", cond.id, count)),
			Count:     count,
			RecordIDs: ids,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() > out[j].Priority.Rank()
	})
	return out
}
