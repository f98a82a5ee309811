package scoring

import (
	"math"
	"strings"

	"github.com/ZanzyTHEbar/leadpulse/internal/types"
)

// Extract derives the factor map for a record. Missing attributes fall back to
// their configured neutral defaults; unknown action or intent tags score 0.
// The sentiment factor is present for conversations, queue entries and
// records that carry sentiment data. Once sentiment has a weight every record
// gets one, neutral when there is no data, so leads are not capped below
// conversations with the same profile.
func Extract(r types.Record, cfg *Config) FactorMap {
	fm := FactorMap{
		FactorBehavioral:  behavioralFactor(r, cfg),
		FactorDemographic: demographicFactor(r, cfg),
		FactorEngagement:  engagementFactor(r, cfg),
		FactorTiming:      timingFactor(r, cfg),
		FactorIntent:      intentFactor(r, cfg),
	}
	if hasSentimentSignal(r) || cfg.Weights[FactorSentiment] > 0 {
		fm[FactorSentiment] = sentimentFactor(r, cfg)
	}
	return fm
}

func behavioralFactor(r types.Record, cfg *Config) float64 {
	return tagPoints(r.Actions, cfg.Behavioral.ActionPoints)
}

func intentFactor(r types.Record, cfg *Config) float64 {
	return tagPoints(r.Intents, cfg.Intent.IntentPoints)
}

func tagPoints(tags []string, points map[string]float64) float64 {
	total := 0.0
	for _, tag := range tags {
		total += points[normalizeTag(tag)]
	}
	return clip100(total)
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func demographicFactor(r types.Record, cfg *Config) float64 {
	d := cfg.Demographic
	score := d.Base

	// strongest seniority marker only, so "VP, Head of Sales" is not double counted
	title := strings.ToLower(r.Title)
	best := 0.0
	for _, word := range strings.FieldsFunc(title, func(c rune) bool {
		return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
	}) {
		if bonus, ok := d.SeniorityBonus[word]; ok && bonus > best {
			best = bonus
		}
	}
	score += best

	if types.Int(r.CompanySize, 0) > d.CompanySizeThreshold {
		score += d.CompanySizeBonus
	}

	industry := normalizeTag(r.Industry)
	if industry != "" {
		for _, target := range d.TargetIndustries {
			if normalizeTag(target) == industry {
				score += d.IndustryBonus
				break
			}
		}
	}

	return clip100(score)
}

func engagementFactor(r types.Record, cfg *Config) float64 {
	e := cfg.Engagement
	count := math.Max(0, float64(types.Int(r.Engagements, 0)))
	frequency := math.Max(0, types.Float(r.EngagementsPerWeek, 0))
	days := types.Float(r.DaysSinceLastEngagement, e.DefaultDaysSinceLast)

	return clip100(count*e.PerEngagementWeight + recencyBonus(days, e.Recency) + frequency*e.FrequencyWeight)
}

// recencyBonus walks the step table in ascending order and returns the bonus
// of the first step the value falls under
func recencyBonus(days float64, steps []RecencyStep) float64 {
	if days < 0 {
		days = 0
	}
	for _, step := range steps {
		if days < step.WithinDays {
			return step.Bonus
		}
	}
	return 0
}

func timingFactor(r types.Record, cfg *Config) float64 {
	t := cfg.Timing
	days := math.Max(0, types.Float(r.DaysInStage, t.DefaultDaysInStage))
	return clip100(math.Max(0, 100-t.WeightPerDay*math.Abs(days-t.OptimalWindowDays)))
}

func hasSentimentSignal(r types.Record) bool {
	if r.Kind == types.KindConversation || r.Kind == types.KindQueue {
		return true
	}
	return r.Sentiment != "" || strings.TrimSpace(r.LastMessage) != "" || r.AvgResponseSeconds != nil
}

func sentimentFactor(r types.Record, cfg *Config) float64 {
	s := cfg.Sentiment
	score := s.Neutral
	switch sentimentOf(r, cfg) {
	case types.SentimentPositive:
		score = s.Positive
	case types.SentimentNegative:
		score = s.Negative
	}
	if types.Float(r.AvgResponseSeconds, 0) > s.SlowResponseSeconds {
		score -= s.SlowResponsePenalty
	}
	return clip100(score)
}

// sentimentOf returns the record's sentiment label, inferring it from the last
// message when no label was supplied. Negative keywords win over positive ones.
func sentimentOf(r types.Record, cfg *Config) types.Sentiment {
	switch r.Sentiment {
	case types.SentimentPositive, types.SentimentNeutral, types.SentimentNegative:
		return r.Sentiment
	}

	msg := strings.ToLower(r.LastMessage)
	if strings.TrimSpace(msg) == "" {
		return types.SentimentNeutral
	}
	for _, kw := range cfg.Sentiment.NegativeKeywords {
		if kw != "" && strings.Contains(msg, strings.ToLower(kw)) {
			return types.SentimentNegative
		}
	}
	for _, kw := range cfg.Sentiment.PositiveKeywords {
		if kw != "" && strings.Contains(msg, strings.ToLower(kw)) {
			return types.SentimentPositive
		}
	}
	return types.SentimentNeutral
}
