package scoring

import "github.com/ZanzyTHEbar/leadpulse/internal/types"

// Risk trigger names, reported in RiskResult.Factors in this order
const (
	TriggerEscalated         = "escalated"
	TriggerNegativeSentiment = "negative_sentiment"
	TriggerLongDuration      = "long_duration"
	TriggerHighAccountValue  = "high_account_value"
)

type riskTrigger struct {
	name   string
	points func(c RiskConfig) float64
	fired  func(r types.Record, cfg *Config) bool
}

var riskTriggers = []riskTrigger{
	{
		name:   TriggerEscalated,
		points: func(c RiskConfig) float64 { return c.EscalatedPoints },
		fired: func(r types.Record, _ *Config) bool {
			return r.Status == types.StatusEscalated
		},
	},
	{
		name:   TriggerNegativeSentiment,
		points: func(c RiskConfig) float64 { return c.NegativeSentimentPoints },
		fired: func(r types.Record, cfg *Config) bool {
			return sentimentOf(r, cfg) == types.SentimentNegative
		},
	},
	{
		name:   TriggerLongDuration,
		points: func(c RiskConfig) float64 { return c.LongDurationPoints },
		fired: func(r types.Record, cfg *Config) bool {
			minutes := types.Float(r.DurationMinutes, types.Float(r.WaitMinutes, 0))
			return minutes > cfg.Risk.DurationThresholdMinutes
		},
	},
	{
		name:   TriggerHighAccountValue,
		points: func(c RiskConfig) float64 { return c.HighValuePoints },
		fired: func(r types.Record, cfg *Config) bool {
			return types.Float(r.AccountValue, 0) > cfg.Risk.HighValueThreshold
		},
	},
}

// AssessRisk classifies a record by summing the points of every trigger that
// fires. Duration falls back to wait time when no duration was recorded.
func AssessRisk(r types.Record, cfg *Config) RiskResult {
	score := 0.0
	fired := make([]string, 0, len(riskTriggers))
	for _, t := range riskTriggers {
		if t.fired(r, cfg) {
			score += t.points(cfg.Risk)
			fired = append(fired, t.name)
		}
	}

	tier := RiskLow
	switch {
	case score > cfg.Risk.HighThreshold:
		tier = RiskHigh
	case score > cfg.Risk.MediumThreshold:
		tier = RiskMedium
	}

	return RiskResult{Tier: tier, Score: score, Factors: fired}
}
