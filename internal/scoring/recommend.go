package scoring

import (
	"math"

	"github.com/ZanzyTHEbar/leadpulse/internal/types"
)

// Decision rule ids. Insight templates are keyed by these.
const (
	ruleHighRisk   = "high_risk"
	ruleHighIntent = "high_intent"
	ruleEngaged    = "engaged"
	ruleActive     = "active"
	ruleDefault    = "default"
)

type ruleInput struct {
	record    types.Record
	factors   FactorMap
	composite Composite
	risk      RiskResult
	cfg       *Config
}

type decisionRule struct {
	id      string
	urgency Urgency
	match   func(in ruleInput) bool
	action  func(in ruleInput) string
}

// decisionTable is evaluated top to bottom and the first match wins. Risk sits
// first so it always pre-empts opportunity.
var decisionTable = []decisionRule{
	{
		id:      ruleHighRisk,
		urgency: UrgencyHigh,
		match:   func(in ruleInput) bool { return in.risk.Tier == RiskHigh },
		action:  func(ruleInput) string { return ActionEscalateToManager },
	},
	{
		id:      ruleHighIntent,
		urgency: UrgencyHigh,
		match: func(in ruleInput) bool {
			return in.factors[FactorIntent] > in.cfg.Actions.HighIntentThreshold
		},
		action: func(in ruleInput) string {
			if sentimentOf(in.record, in.cfg) == types.SentimentNegative {
				return ActionOfferCompensation
			}
			return ActionScheduleDemo
		},
	},
	{
		id:      ruleEngaged,
		urgency: UrgencyMedium,
		match: func(in ruleInput) bool {
			return in.factors[FactorEngagement] > in.cfg.Actions.EngagementThreshold
		},
		action: func(ruleInput) string { return ActionPersonalizedOutreach },
	},
	{
		id:      ruleActive,
		urgency: UrgencyMedium,
		match: func(in ruleInput) bool {
			return in.factors[FactorBehavioral] > in.cfg.Actions.BehavioralThreshold
		},
		action: func(ruleInput) string { return ActionSendCaseStudy },
	},
	{
		id:      ruleDefault,
		urgency: UrgencyLow,
		match:   func(ruleInput) bool { return true },
		action: func(in ruleInput) string {
			if in.record.Kind == types.KindLead || in.record.Kind == "" {
				return ActionNurtureCampaign
			}
			return ActionContinueMonitoring
		},
	},
}

func knownRule(id string) bool {
	for _, r := range decisionTable {
		if r.id == id {
			return true
		}
	}
	return false
}

// Recommendation is the decision table's output for one record
type Recommendation struct {
	Rule     string    `json:"rule"`
	Action   Action    `json:"action"`
	Insights []Insight `json:"insights"`
}

// Recommend runs the decision table for a record whose factors, composite
// and risk were computed under this engine's configuration
func (e *Engine) Recommend(r types.Record, factors FactorMap, composite Composite, risk RiskResult) Recommendation {
	return e.recommend(ruleInput{
		record:    r,
		factors:   factors,
		composite: composite,
		risk:      risk,
		cfg:       &e.cfg,
	})
}

// recommend picks the first matching rule and renders its insights
func (e *Engine) recommend(in ruleInput) Recommendation {
	var rule decisionRule
	for _, r := range decisionTable {
		if r.match(in) {
			rule = r
			break
		}
	}

	action := Action{ID: rule.action(in), Urgency: rule.urgency}
	templates := e.messages.rules[rule.id]
	insights := make([]Insight, 0, len(templates))
	if len(templates) > 0 {
		bindings := recordBindings(in, action)
		for _, t := range templates {
			insight := Insight{
				Type:     t.typ,
				Priority: priorityFor(rule.urgency),
				Message:  render(t.tpl, bindings, rule.id+": "+action.ID),
				Rule:     rule.id,
			}
			switch t.impact {
			case impactProbability:
				v := in.composite.ConversionProbability
				insight.Impact = &v
			case impactComposite:
				v := float64(in.composite.Score)
				insight.Impact = &v
			}
			insights = append(insights, insight)
		}
	}

	return Recommendation{Rule: rule.id, Action: action, Insights: insights}
}

func recordBindings(in ruleInput, action Action) map[string]interface{} {
	factors := make(map[string]interface{}, len(in.factors))
	for f, v := range in.factors {
		factors[string(f)] = int(math.Round(v))
	}
	riskFactors := make([]interface{}, 0, len(in.risk.Factors))
	for _, f := range in.risk.Factors {
		riskFactors = append(riskFactors, f)
	}

	return map[string]interface{}{
		"id":              in.record.ID,
		"kind":            string(in.record.Kind),
		"status":          string(in.record.Status),
		"channel":         string(in.record.Channel),
		"title":           in.record.Title,
		"industry":        in.record.Industry,
		"composite":       in.composite.Score,
		"probability":     in.composite.ConversionProbability,
		"probability_pct": int(math.Round(in.composite.ConversionProbability * 100)),
		"factors":         factors,
		"risk_tier":       string(in.risk.Tier),
		"risk_factors":    riskFactors,
		"action":          action.ID,
		"urgency":         string(action.Urgency),
	}
}
