package types

import (
	"math"
	"strings"
	"time"
)

// Kind identifies which collection a record belongs to
type Kind string

const (
	KindLead         Kind = "lead"
	KindConversation Kind = "conversation"
	KindQueue        Kind = "queue"
)

// Valid reports whether k is one of the known record kinds
func (k Kind) Valid() bool {
	switch k {
	case KindLead, KindConversation, KindQueue:
		return true
	}
	return false
}

// Kinds lists every record kind
func Kinds() []Kind {
	return []Kind{KindLead, KindConversation, KindQueue}
}

// Status is the lifecycle status of a record. Leads and conversations use
// different vocabularies, both listed here.
type Status string

const (
	StatusNew         Status = "new"
	StatusQualified   Status = "qualified"
	StatusContacted   Status = "contacted"
	StatusEngaged     Status = "engaged"
	StatusOpportunity Status = "opportunity"
	StatusClosed      Status = "closed"

	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "inProgress"
	StatusEscalated  Status = "escalated"
	StatusResolved   Status = "resolved"
)

type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelPhone  Channel = "phone"
	ChannelChat   Channel = "chat"
	ChannelVideo  Channel = "video"
	ChannelSocial Channel = "social"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Record is the unit being scored: a lead, a conversation or a queue entry.
// Optional numeric attributes are pointers so that "not recorded" and zero
// stay distinguishable.
type Record struct {
	ID      string  `json:"id" yaml:"id"`
	Kind    Kind    `json:"kind" yaml:"kind"`
	Status  Status  `json:"status" yaml:"status"`
	Channel Channel `json:"channel,omitempty" yaml:"channel,omitempty"`
	Source  string  `json:"source,omitempty" yaml:"source,omitempty"`

	// Behavioral
	Actions                 []string `json:"actions,omitempty" yaml:"actions,omitempty"`
	Engagements             *int     `json:"engagements,omitempty" yaml:"engagements,omitempty"`
	EngagementsPerWeek      *float64 `json:"engagements_per_week,omitempty" yaml:"engagements_per_week,omitempty"`
	DaysSinceLastEngagement *float64 `json:"days_since_last_engagement,omitempty" yaml:"days_since_last_engagement,omitempty"`
	DaysInStage             *float64 `json:"days_in_stage,omitempty" yaml:"days_in_stage,omitempty"`

	// Demographic / account
	Title        string   `json:"title,omitempty" yaml:"title,omitempty"`
	CompanySize  *int     `json:"company_size,omitempty" yaml:"company_size,omitempty"`
	Industry     string   `json:"industry,omitempty" yaml:"industry,omitempty"`
	AccountValue *float64 `json:"account_value,omitempty" yaml:"account_value,omitempty"`

	// Intent
	Intents []string `json:"intents,omitempty" yaml:"intents,omitempty"`

	// Conversation quality
	Sentiment          Sentiment `json:"sentiment,omitempty" yaml:"sentiment,omitempty"`
	LastMessage        string    `json:"last_message,omitempty" yaml:"last_message,omitempty"`
	AvgResponseSeconds *float64  `json:"avg_response_seconds,omitempty" yaml:"avg_response_seconds,omitempty"`
	MessageCount       *int      `json:"message_count,omitempty" yaml:"message_count,omitempty"`
	DurationMinutes    *float64  `json:"duration_minutes,omitempty" yaml:"duration_minutes,omitempty"`
	WaitMinutes        *float64  `json:"wait_minutes,omitempty" yaml:"wait_minutes,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// HasIdentity reports whether the record carries a usable identifier
func (r Record) HasIdentity() bool {
	return strings.TrimSpace(r.ID) != ""
}

// Float returns *p, or def when p is nil or not a finite number
func Float(p *float64, def float64) float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return def
	}
	return *p
}

// Int returns *p, or def when p is nil
func Int(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}

// ScoreRequest is the body of POST /v1/score
type ScoreRequest struct {
	Record Record `json:"record" binding:"required"`
}

// PrioritizeRequest is the body of POST /v1/prioritize
type PrioritizeRequest struct {
	Records []Record `json:"records" binding:"required"`
	Limit   int      `json:"limit,omitempty"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status        string            `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	ConfigVersion string            `json:"config_version"`
	Components    map[string]string `json:"components"`
}
