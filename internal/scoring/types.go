package scoring

import "github.com/ZanzyTHEbar/leadpulse/internal/types"

// Factor names one 0-100 sub-score of the composite
type Factor string

const (
	FactorBehavioral  Factor = "behavioral"
	FactorDemographic Factor = "demographic"
	FactorEngagement  Factor = "engagement"
	FactorTiming      Factor = "timing"
	FactorIntent      Factor = "intent"
	FactorSentiment   Factor = "sentiment"
)

// factorOrder fixes the summation order of the composite
var factorOrder = []Factor{
	FactorBehavioral,
	FactorDemographic,
	FactorEngagement,
	FactorTiming,
	FactorIntent,
	FactorSentiment,
}

// Factors returns every known factor in canonical order
func Factors() []Factor {
	return append([]Factor(nil), factorOrder...)
}

func knownFactor(f Factor) bool {
	for _, k := range factorOrder {
		if k == f {
			return true
		}
	}
	return false
}

// FactorMap assigns a 0-100 value to each factor relevant to a record
type FactorMap map[Factor]float64

type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders priorities, critical highest
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func priorityFor(u Urgency) Priority {
	switch u {
	case UrgencyHigh:
		return PriorityHigh
	case UrgencyMedium:
		return PriorityMedium
	}
	return PriorityLow
}

type InsightType string

const (
	InsightAnomaly      InsightType = "anomaly"
	InsightTrend        InsightType = "trend"
	InsightPrediction   InsightType = "prediction"
	InsightOptimization InsightType = "optimization"
	InsightMilestone    InsightType = "milestone"
	InsightOpportunity  InsightType = "opportunity"
	InsightTiming       InsightType = "timing"
)

func (t InsightType) valid() bool {
	switch t {
	case InsightAnomaly, InsightTrend, InsightPrediction, InsightOptimization,
		InsightMilestone, InsightOpportunity, InsightTiming:
		return true
	}
	return false
}

// Insight is a per-record observation produced by a recommendation rule
type Insight struct {
	Type     InsightType `json:"type"`
	Priority Priority    `json:"priority"`
	Message  string      `json:"message"`
	Impact   *float64    `json:"impact,omitempty"`
	Rule     string      `json:"rule"`
}

// Action is the next-best-action for a record
type Action struct {
	ID      string  `json:"id"`
	Urgency Urgency `json:"urgency"`
}

const (
	ActionEscalateToManager    = "escalate_to_manager"
	ActionScheduleDemo         = "schedule_demo"
	ActionOfferCompensation    = "offer_compensation"
	ActionPersonalizedOutreach = "personalized_outreach"
	ActionSendCaseStudy        = "send_case_study"
	ActionNurtureCampaign      = "nurture_campaign"
	ActionContinueMonitoring   = "continue_monitoring"
)

type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Rank orders tiers, high highest
func (t RiskTier) Rank() int {
	switch t {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	}
	return 0
}

// RiskResult is the output of AssessRisk. Factors lists the triggers that fired.
type RiskResult struct {
	Tier    RiskTier `json:"tier"`
	Score   float64  `json:"score"`
	Factors []string `json:"factors"`
}

// Contributor is one factor's weighted share of the composite
type Contributor struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Composite is the output of Score
type Composite struct {
	Score                 int           `json:"score"`
	ConversionProbability float64       `json:"conversion_probability"`
	Contributors          []Contributor `json:"contributors"`
}

// ScoreResult is everything derived for one record
type ScoreResult struct {
	Composite             int           `json:"composite"`
	Factors               FactorMap     `json:"factors"`
	ConversionProbability float64       `json:"conversion_probability"`
	Recommendation        string        `json:"recommendation"`
	NextBestAction        Action        `json:"next_best_action"`
	Insights              []Insight     `json:"insights"`
	Risk                  RiskResult    `json:"risk"`
	Contributors          []Contributor `json:"contributors"`
	ConfigVersion         string        `json:"config_version"`
}

// ScoredRecord pairs a record with its result. Rank is 1-based and only set
// once the record has been prioritized.
type ScoredRecord struct {
	Record types.Record `json:"record"`
	Result ScoreResult  `json:"result"`
	Rank   int          `json:"rank,omitempty"`
}

// Rejected identifies a record that could not be scored. Index is its position
// in the submitted collection.
type Rejected struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// Queue is a prioritized collection plus the records that were rejected
type Queue struct {
	Records  []ScoredRecord `json:"records"`
	Rejected []Rejected     `json:"rejected"`
}

// CollectionInsight is an observation over a whole prioritized collection
type CollectionInsight struct {
	ID        string      `json:"id"`
	Type      InsightType `json:"type"`
	Priority  Priority    `json:"priority"`
	Message   string      `json:"message"`
	Count     int         `json:"count"`
	RecordIDs []string    `json:"record_ids,omitempty"`
}

// Evaluation is the result of scoring, prioritizing and aggregating a collection
type Evaluation struct {
	Queue
	Insights      []CollectionInsight `json:"insights"`
	ConfigVersion string              `json:"config_version"`
}
