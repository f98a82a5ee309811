package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	apperrors "github.com/ZanzyTHEbar/leadpulse/internal/errors"
	"github.com/ZanzyTHEbar/leadpulse/internal/types"
)

// Config is the weights and thresholds bundle an Engine closes over.
// Profiles are stored as YAML; see ProfileStore.
type Config struct {
	Weights         map[Factor]float64 `yaml:"weights" json:"weights"`
	WeightTolerance float64            `yaml:"weight_tolerance" json:"weight_tolerance"`

	Behavioral  BehavioralConfig  `yaml:"behavioral" json:"behavioral"`
	Demographic DemographicConfig `yaml:"demographic" json:"demographic"`
	Engagement  EngagementConfig  `yaml:"engagement" json:"engagement"`
	Timing      TimingConfig      `yaml:"timing" json:"timing"`
	Intent      IntentConfig      `yaml:"intent" json:"intent"`
	Sentiment   SentimentConfig   `yaml:"sentiment" json:"sentiment"`
	Probability ProbabilityConfig `yaml:"probability" json:"probability"`
	Risk        RiskConfig        `yaml:"risk" json:"risk"`
	Actions     ActionConfig      `yaml:"actions" json:"actions"`
	Insights    InsightConfig     `yaml:"insights" json:"insights"`
	Bands       []ScoreBand       `yaml:"bands" json:"bands"`
	Messages    MessageConfig     `yaml:"messages" json:"messages"`
}

type BehavioralConfig struct {
	ActionPoints map[string]float64 `yaml:"action_points" json:"action_points"`
}

type DemographicConfig struct {
	Base                 float64            `yaml:"base" json:"base"`
	SeniorityBonus       map[string]float64 `yaml:"seniority_bonus" json:"seniority_bonus"`
	CompanySizeThreshold int                `yaml:"company_size_threshold" json:"company_size_threshold"`
	CompanySizeBonus     float64            `yaml:"company_size_bonus" json:"company_size_bonus"`
	TargetIndustries     []string           `yaml:"target_industries" json:"target_industries"`
	IndustryBonus        float64            `yaml:"industry_bonus" json:"industry_bonus"`
}

// RecencyStep awards Bonus when days since last engagement is below WithinDays
type RecencyStep struct {
	WithinDays float64 `yaml:"within_days" json:"within_days"`
	Bonus      float64 `yaml:"bonus" json:"bonus"`
}

type EngagementConfig struct {
	PerEngagementWeight  float64       `yaml:"per_engagement_weight" json:"per_engagement_weight"`
	FrequencyWeight      float64       `yaml:"frequency_weight" json:"frequency_weight"`
	DefaultDaysSinceLast float64       `yaml:"default_days_since_last" json:"default_days_since_last"`
	Recency              []RecencyStep `yaml:"recency" json:"recency"`
}

type TimingConfig struct {
	OptimalWindowDays  float64 `yaml:"optimal_window_days" json:"optimal_window_days"`
	WeightPerDay       float64 `yaml:"weight_per_day" json:"weight_per_day"`
	DefaultDaysInStage float64 `yaml:"default_days_in_stage" json:"default_days_in_stage"`
}

type IntentConfig struct {
	IntentPoints map[string]float64 `yaml:"intent_points" json:"intent_points"`
}

type SentimentConfig struct {
	Positive            float64  `yaml:"positive" json:"positive"`
	Neutral             float64  `yaml:"neutral" json:"neutral"`
	Negative            float64  `yaml:"negative" json:"negative"`
	NegativeKeywords    []string `yaml:"negative_keywords" json:"negative_keywords"`
	PositiveKeywords    []string `yaml:"positive_keywords" json:"positive_keywords"`
	SlowResponseSeconds float64  `yaml:"slow_response_seconds" json:"slow_response_seconds"`
	SlowResponsePenalty float64  `yaml:"slow_response_penalty" json:"slow_response_penalty"`
}

// ProbabilityConfig holds the modifiers applied on top of composite/100.
// Their sum is capped at MaxProbabilityModifier.
type ProbabilityConfig struct {
	IntentModifier float64 `yaml:"intent_modifier" json:"intent_modifier"`
	TimingModifier float64 `yaml:"timing_modifier" json:"timing_modifier"`
}

const MaxProbabilityModifier = 0.3

type RiskConfig struct {
	EscalatedPoints          float64 `yaml:"escalated_points" json:"escalated_points"`
	NegativeSentimentPoints  float64 `yaml:"negative_sentiment_points" json:"negative_sentiment_points"`
	LongDurationPoints       float64 `yaml:"long_duration_points" json:"long_duration_points"`
	HighValuePoints          float64 `yaml:"high_value_points" json:"high_value_points"`
	DurationThresholdMinutes float64 `yaml:"duration_threshold_minutes" json:"duration_threshold_minutes"`
	HighValueThreshold       float64 `yaml:"high_value_threshold" json:"high_value_threshold"`
	MediumThreshold          float64 `yaml:"medium_threshold" json:"medium_threshold"`
	HighThreshold            float64 `yaml:"high_threshold" json:"high_threshold"`
}

// ActionConfig holds the decision-table thresholds, all on the 0-100 factor scale
type ActionConfig struct {
	HighIntentThreshold float64 `yaml:"high_intent_threshold" json:"high_intent_threshold"`
	EngagementThreshold float64 `yaml:"engagement_threshold" json:"engagement_threshold"`
	BehavioralThreshold float64 `yaml:"behavioral_threshold" json:"behavioral_threshold"`
}

type InsightConfig struct {
	StaleDays       float64                `yaml:"stale_days" json:"stale_days"`
	LongWaitMinutes map[types.Kind]float64 `yaml:"long_wait_minutes" json:"long_wait_minutes"`
	HotScore        int                    `yaml:"hot_score" json:"hot_score"`
	TopN            int                    `yaml:"top_n" json:"top_n"`
	LowMedianScore  float64                `yaml:"low_median_score" json:"low_median_score"`
}

// ScoreBand labels composites >= Min. Bands are ordered by Min descending.
type ScoreBand struct {
	Min   int    `yaml:"min" json:"min"`
	Label string `yaml:"label" json:"label"`
}

// InsightTemplate is a Liquid template for a per-record insight.
// Impact names the value reported as the numeric impact: "probability",
// "composite" or empty for none.
type InsightTemplate struct {
	Type   InsightType `yaml:"type" json:"type"`
	Text   string      `yaml:"text" json:"text"`
	Impact string      `yaml:"impact,omitempty" json:"impact,omitempty"`
}

// MessageConfig holds Liquid templates keyed by decision rule id and by
// collection condition id
type MessageConfig struct {
	Rules      map[string][]InsightTemplate `yaml:"rules" json:"rules"`
	Collection map[string]string            `yaml:"collection" json:"collection"`
}

// DefaultConfig returns the built-in profile
func DefaultConfig() Config {
	return Config{
		Weights: map[Factor]float64{
			FactorBehavioral:  0.30,
			FactorDemographic: 0.20,
			FactorEngagement:  0.25,
			FactorTiming:      0.15,
			FactorIntent:      0.10,
			FactorSentiment:   0,
		},
		WeightTolerance: 1e-6,
		Behavioral: BehavioralConfig{
			ActionPoints: map[string]float64{
				"visited_pricing":       25,
				"requested_demo":        35,
				"downloaded_whitepaper": 15,
				"attended_webinar":      20,
				"opened_email":          5,
				"clicked_email":         10,
				"visited_website":       5,
				"started_trial":         30,
				"contacted_sales":       30,
				"viewed_case_study":     15,
			},
		},
		Demographic: DemographicConfig{
			Base: 50,
			SeniorityBonus: map[string]float64{
				"ceo":       30,
				"cto":       30,
				"cfo":       30,
				"founder":   30,
				"vp":        25,
				"president": 25,
				"head":      20,
				"director":  20,
				"manager":   10,
			},
			CompanySizeThreshold: 200,
			CompanySizeBonus:     15,
			TargetIndustries:     []string{"technology", "software", "finance", "healthcare"},
			IndustryBonus:        10,
		},
		Engagement: EngagementConfig{
			PerEngagementWeight:  5,
			FrequencyWeight:      4,
			DefaultDaysSinceLast: 30,
			Recency: []RecencyStep{
				{WithinDays: 1, Bonus: 30},
				{WithinDays: 7, Bonus: 20},
				{WithinDays: 14, Bonus: 10},
			},
		},
		Timing: TimingConfig{
			OptimalWindowDays:  14,
			WeightPerDay:       3,
			DefaultDaysInStage: 0,
		},
		Intent: IntentConfig{
			IntentPoints: map[string]float64{
				"budget_discussion":      30,
				"timeline_discussion":    25,
				"decision_maker_engaged": 25,
				"competitor_comparison":  20,
				"pricing_inquiry":        20,
				"technical_questions":    15,
				"contract_review":        35,
			},
		},
		Sentiment: SentimentConfig{
			Positive:            85,
			Neutral:             50,
			Negative:            15,
			NegativeKeywords:    []string{"angry", "cancel", "frustrated", "terrible", "refund", "disappointed", "unacceptable", "complaint"},
			PositiveKeywords:    []string{"thanks", "great", "love", "perfect", "excellent", "happy", "appreciate"},
			SlowResponseSeconds: 300,
			SlowResponsePenalty: 15,
		},
		Probability: ProbabilityConfig{
			IntentModifier: 0.1,
			TimingModifier: 0.05,
		},
		Risk: RiskConfig{
			EscalatedPoints:          40,
			NegativeSentimentPoints:  30,
			LongDurationPoints:       20,
			HighValuePoints:          15,
			DurationThresholdMinutes: 30,
			HighValueThreshold:       50000,
			MediumThreshold:          25,
			HighThreshold:            50,
		},
		Actions: ActionConfig{
			HighIntentThreshold: 70,
			EngagementThreshold: 60,
			BehavioralThreshold: 30,
		},
		Insights: InsightConfig{
			StaleDays: 7,
			LongWaitMinutes: map[types.Kind]float64{
				types.KindLead:         7 * 24 * 60,
				types.KindConversation: 24 * 60,
				types.KindQueue:        10,
			},
			HotScore:       80,
			TopN:           3,
			LowMedianScore: 40,
		},
		Bands: []ScoreBand{
			{Min: 80, Label: "Hot - prioritize immediately"},
			{Min: 60, Label: "Warm - follow up this week"},
			{Min: 40, Label: "Developing - keep nurturing"},
			{Min: 0, Label: "Cold - monitor"},
		},
		Messages: defaultMessages(),
	}
}

func defaultMessages() MessageConfig {
	return MessageConfig{
		Rules: map[string][]InsightTemplate{
			ruleHighRisk: {
				{Type: InsightAnomaly, Text: "{{ id }} is high risk ({{ risk_factors | join: \", \" }}); hand over to a manager."},
			},
			ruleHighIntent: {
				{Type: InsightOpportunity, Text: "{{ id }} shows strong buying intent ({{ factors.intent }}/100). Estimated conversion {{ probability_pct }}%.", Impact: "probability"},
				{Type: InsightPrediction, Text: "{% if action == \"offer_compensation\" %}Recover goodwill before pushing for the close.{% else %}Book a demo while intent is high.{% endif %}"},
			},
			ruleEngaged: {
				{Type: InsightTiming, Text: "{{ id }} is actively engaged ({{ factors.engagement }}/100); reach out personally while interest is high."},
			},
			ruleActive: {
				{Type: InsightOptimization, Text: "{{ id }} has been researching ({{ factors.behavioral }}/100); a relevant case study could move it forward.", Impact: "composite"},
			},
			ruleDefault: {},
		},
		Collection: map[string]string{
			conditionHighRisk:    "High risk: {{ count }} {% if count == 1 %}record needs{% else %}records need{% endif %} attention.",
			conditionStale:       "{{ count }} {% if count == 1 %}record has{% else %}records have{% endif %} had no engagement for more than {{ threshold }} days.",
			conditionLongWait:    "{{ count }} {% if count == 1 %}record has{% else %}records have{% endif %} been waiting longer than expected.",
			conditionHot:         "{{ count }} hot {% if count == 1 %}record is{% else %}records are{% endif %} available (score {{ threshold }}+).",
			conditionTopPriority: "Act now on: {{ ids | join: \", \" }}.",
			conditionLowMedian:   "Median score is {{ median }}, below {{ threshold }}. Pipeline quality is trending down.",
			conditionUnavailable: "Scoring unavailable for {{ count }} {% if count == 1 %}record{% else %}records{% endif %}.",
		},
	}
}

// Validate reports every problem with the configuration as a single
// ConfigurationError. Weights are never normalized.
func (c Config) Validate() error {
	problems := c.problems()
	if _, tplProblems := compileMessages(c.Messages); len(tplProblems) > 0 {
		for k, v := range tplProblems {
			problems[k] = v
		}
	}
	if len(problems) > 0 {
		return apperrors.NewConfigurationError("invalid scoring configuration", problems)
	}
	return nil
}

func (c Config) problems() map[string]string {
	p := map[string]string{}
	missing := func(key string, v float64) {
		if v <= 0 || math.IsNaN(v) {
			p[key] = "required threshold is missing or not positive"
		}
	}
	nonNegative := func(key string, v float64) {
		if v < 0 || math.IsNaN(v) {
			p[key] = "must not be negative"
		}
	}

	// weights
	if len(c.Weights) == 0 {
		p["weights"] = "no factor weights configured"
	}
	if c.WeightTolerance <= 0 || c.WeightTolerance >= 0.1 {
		p["weight_tolerance"] = "must be in (0, 0.1)"
	}
	sum := 0.0
	for f, w := range c.Weights {
		if !knownFactor(f) {
			p["weights."+string(f)] = "unknown factor"
			continue
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			p["weights."+string(f)] = "weight must be a non-negative number"
			continue
		}
	}
	for _, f := range factorOrder {
		sum += c.Weights[f]
	}
	if len(c.Weights) > 0 && c.WeightTolerance > 0 && math.Abs(sum-1) > c.WeightTolerance {
		p["weights"] = fmt.Sprintf("weights sum to %.4f, expected 1.0", sum)
	}

	// extraction
	for tag, pts := range c.Behavioral.ActionPoints {
		nonNegative("behavioral.action_points."+tag, pts)
	}
	for tag, pts := range c.Intent.IntentPoints {
		nonNegative("intent.intent_points."+tag, pts)
	}
	nonNegative("demographic.base", c.Demographic.Base)
	nonNegative("demographic.company_size_bonus", c.Demographic.CompanySizeBonus)
	nonNegative("demographic.industry_bonus", c.Demographic.IndustryBonus)
	for kw, bonus := range c.Demographic.SeniorityBonus {
		nonNegative("demographic.seniority_bonus."+kw, bonus)
	}
	nonNegative("engagement.per_engagement_weight", c.Engagement.PerEngagementWeight)
	nonNegative("engagement.frequency_weight", c.Engagement.FrequencyWeight)
	nonNegative("engagement.default_days_since_last", c.Engagement.DefaultDaysSinceLast)
	if len(c.Engagement.Recency) == 0 {
		p["engagement.recency"] = "required recency table is missing"
	}
	for i, step := range c.Engagement.Recency {
		key := fmt.Sprintf("engagement.recency[%d]", i)
		switch {
		case step.WithinDays <= 0 || step.Bonus < 0:
			p[key] = "within_days must be positive and bonus non-negative"
		case i > 0 && step.WithinDays <= c.Engagement.Recency[i-1].WithinDays:
			p[key] = "within_days must be strictly increasing"
		case i > 0 && step.Bonus >= c.Engagement.Recency[i-1].Bonus:
			p[key] = "bonus must strictly decrease as days increase"
		}
	}
	nonNegative("timing.optimal_window_days", c.Timing.OptimalWindowDays)
	missing("timing.weight_per_day", c.Timing.WeightPerDay)
	nonNegative("timing.default_days_in_stage", c.Timing.DefaultDaysInStage)
	for key, v := range map[string]float64{
		"sentiment.positive": c.Sentiment.Positive,
		"sentiment.neutral":  c.Sentiment.Neutral,
		"sentiment.negative": c.Sentiment.Negative,
	} {
		if v < 0 || v > 100 {
			p[key] = "must be within [0, 100]"
		}
	}
	if !(c.Sentiment.Negative < c.Sentiment.Neutral && c.Sentiment.Neutral < c.Sentiment.Positive) {
		p["sentiment"] = "expected negative < neutral < positive"
	}
	nonNegative("sentiment.slow_response_penalty", c.Sentiment.SlowResponsePenalty)
	missing("sentiment.slow_response_seconds", c.Sentiment.SlowResponseSeconds)

	// probability
	nonNegative("probability.intent_modifier", c.Probability.IntentModifier)
	nonNegative("probability.timing_modifier", c.Probability.TimingModifier)
	if c.Probability.IntentModifier+c.Probability.TimingModifier > MaxProbabilityModifier {
		p["probability"] = fmt.Sprintf("modifiers must sum to at most %.1f", MaxProbabilityModifier)
	}

	// risk
	missing("risk.escalated_points", c.Risk.EscalatedPoints)
	missing("risk.negative_sentiment_points", c.Risk.NegativeSentimentPoints)
	missing("risk.long_duration_points", c.Risk.LongDurationPoints)
	missing("risk.high_value_points", c.Risk.HighValuePoints)
	missing("risk.duration_threshold_minutes", c.Risk.DurationThresholdMinutes)
	missing("risk.high_value_threshold", c.Risk.HighValueThreshold)
	missing("risk.medium_threshold", c.Risk.MediumThreshold)
	missing("risk.high_threshold", c.Risk.HighThreshold)
	if c.Risk.MediumThreshold >= c.Risk.HighThreshold {
		p["risk.thresholds"] = "medium threshold must be below high threshold"
	}
	if c.Risk.EscalatedPoints <= c.Risk.HighValuePoints {
		p["risk.escalated_points"] = "escalation must weigh more than account value"
	}

	// actions
	for key, v := range map[string]float64{
		"actions.high_intent_threshold": c.Actions.HighIntentThreshold,
		"actions.engagement_threshold":  c.Actions.EngagementThreshold,
		"actions.behavioral_threshold":  c.Actions.BehavioralThreshold,
	} {
		if v <= 0 || v > 100 {
			p[key] = "required threshold is missing or outside (0, 100]"
		}
	}

	// insights
	missing("insights.stale_days", c.Insights.StaleDays)
	if c.Insights.HotScore <= 0 || c.Insights.HotScore > 100 {
		p["insights.hot_score"] = "required threshold is missing or outside (0, 100]"
	}
	if c.Insights.TopN <= 0 {
		p["insights.top_n"] = "must be positive"
	}
	missing("insights.low_median_score", c.Insights.LowMedianScore)
	for _, kind := range []types.Kind{types.KindLead, types.KindConversation, types.KindQueue} {
		missing("insights.long_wait_minutes."+string(kind), c.Insights.LongWaitMinutes[kind])
	}

	// bands
	if len(c.Bands) == 0 {
		p["bands"] = "at least one score band is required"
	} else {
		for i, b := range c.Bands {
			if i > 0 && b.Min >= c.Bands[i-1].Min {
				p[fmt.Sprintf("bands[%d]", i)] = "bands must be ordered by min descending"
			}
			if b.Label == "" {
				p[fmt.Sprintf("bands[%d].label", i)] = "label is required"
			}
		}
		if c.Bands[len(c.Bands)-1].Min != 0 {
			p["bands"] = "the last band must start at 0"
		}
	}

	return p
}

// Version is a stable hash of the configuration. Any change to any value
// yields a different version.
func (c Config) Version() string {
	// encoding/json writes map keys sorted, so the encoding is canonical
	b, err := json.Marshal(c)
	if err != nil {
		return "invalid"
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}

// Clone returns a deep copy
func (c Config) Clone() Config {
	out := c
	out.Weights = cloneMap(c.Weights)
	out.Behavioral.ActionPoints = cloneMap(c.Behavioral.ActionPoints)
	out.Intent.IntentPoints = cloneMap(c.Intent.IntentPoints)
	out.Demographic.SeniorityBonus = cloneMap(c.Demographic.SeniorityBonus)
	out.Demographic.TargetIndustries = append([]string(nil), c.Demographic.TargetIndustries...)
	out.Engagement.Recency = append([]RecencyStep(nil), c.Engagement.Recency...)
	out.Sentiment.NegativeKeywords = append([]string(nil), c.Sentiment.NegativeKeywords...)
	out.Sentiment.PositiveKeywords = append([]string(nil), c.Sentiment.PositiveKeywords...)
	out.Insights.LongWaitMinutes = cloneMap(c.Insights.LongWaitMinutes)
	out.Bands = append([]ScoreBand(nil), c.Bands...)
	out.Messages.Collection = cloneMap(c.Messages.Collection)
	if c.Messages.Rules != nil {
		out.Messages.Rules = make(map[string][]InsightTemplate, len(c.Messages.Rules))
		for k, v := range c.Messages.Rules {
			out.Messages.Rules[k] = append([]InsightTemplate(nil), v...)
		}
	}
	return out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// sortedKeys returns map keys in ascending order
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
