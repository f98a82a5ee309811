// Package mockdata generates plausible leads, conversations and queue entries
// for demos and load tests. Output depends only on the seed.
package mockdata

import (
	"math/rand"
	"time"

	"github.com/ZanzyTHEbar/leadpulse/internal/types"
	"github.com/oklog/ulid/v2"
)

// epoch anchors generated timestamps so runs are reproducible
var epoch = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

var (
	leadActions = []string{
		"visited_pricing", "requested_demo", "downloaded_whitepaper", "attended_webinar",
		"opened_email", "clicked_email", "visited_website", "started_trial",
		"contacted_sales", "viewed_case_study",
	}
	intents = []string{
		"budget_discussion", "timeline_discussion", "decision_maker_engaged",
		"competitor_comparison", "pricing_inquiry", "technical_questions", "contract_review",
	}
	titles = []string{
		"CEO", "CTO", "Founder", "VP Sales", "Head of Marketing", "Director of IT",
		"Engineering Manager", "Software Engineer", "Analyst", "Consultant",
	}
	industries = []string{
		"technology", "software", "finance", "healthcare", "retail", "education", "manufacturing",
	}
	sources  = []string{"website", "referral", "webinar", "paid_search", "event", "outbound"}
	channels = []types.Channel{
		types.ChannelEmail, types.ChannelPhone, types.ChannelChat, types.ChannelVideo, types.ChannelSocial,
	}
	leadStatuses = []types.Status{
		types.StatusNew, types.StatusQualified, types.StatusContacted, types.StatusEngaged, types.StatusOpportunity,
	}
	conversationStatuses = []types.Status{
		types.StatusWaiting, types.StatusInProgress, types.StatusEscalated, types.StatusResolved,
	}
	sentiments = []types.Sentiment{
		types.SentimentPositive, types.SentimentNeutral, types.SentimentNegative,
	}
	messages = []string{
		"Thanks, this looks great!",
		"Can you send over the pricing sheet?",
		"I'm frustrated that this is still broken.",
		"We want to cancel and get a refund.",
		"Happy to jump on a call next week.",
		"Still waiting on an answer here.",
		"The onboarding was excellent, appreciate it.",
		"This is unacceptable, please escalate.",
	}
)

// Generator produces records from a seeded source
type Generator struct {
	rng     *rand.Rand
	entropy *ulid.MonotonicEntropy
	clock   time.Time
}

// New creates a generator; equal seeds yield equal record sequences
func New(seed int64) *Generator {
	return &Generator{
		rng:     rand.New(rand.NewSource(seed)),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		clock:   epoch,
	}
}

// Records generates n records of kind
func (g *Generator) Records(kind types.Kind, n int) []types.Record {
	out := make([]types.Record, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, g.Record(kind))
	}
	return out
}

// Mixed generates n records cycling through every kind
func (g *Generator) Mixed(n int) []types.Record {
	kinds := types.Kinds()
	out := make([]types.Record, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, g.Record(kinds[i%len(kinds)]))
	}
	return out
}

// Record generates a single record of kind. Unknown kinds produce leads.
func (g *Generator) Record(kind types.Kind) types.Record {
	g.clock = g.clock.Add(time.Duration(1+g.rng.Intn(90)) * time.Minute)

	switch kind {
	case types.KindConversation:
		return g.conversation()
	case types.KindQueue:
		return g.queueEntry()
	default:
		return g.lead()
	}
}

func (g *Generator) id() string {
	return ulid.MustNew(ulid.Timestamp(g.clock), g.entropy).String()
}

func (g *Generator) lead() types.Record {
	r := types.Record{
		ID:          g.id(),
		Kind:        types.KindLead,
		Status:      pick(g.rng, leadStatuses),
		Channel:     pick(g.rng, channels),
		Source:      pick(g.rng, sources),
		Actions:     sample(g.rng, leadActions, g.rng.Intn(5)),
		Intents:     sample(g.rng, intents, g.rng.Intn(3)),
		Title:       pick(g.rng, titles),
		Industry:    pick(g.rng, industries),
		CompanySize: types.Ptr(10 + g.rng.Intn(2000)),
		CreatedAt:   g.clock,
		UpdatedAt:   g.clock,
	}

	if g.rng.Float64() < 0.9 {
		r.Engagements = types.Ptr(g.rng.Intn(15))
		r.EngagementsPerWeek = types.Ptr(round1(g.rng.Float64() * 6))
		r.DaysSinceLastEngagement = types.Ptr(round1(g.rng.Float64() * 30))
	}
	if g.rng.Float64() < 0.8 {
		r.DaysInStage = types.Ptr(float64(g.rng.Intn(60)))
	}
	if g.rng.Float64() < 0.5 {
		r.AccountValue = types.Ptr(float64(1000 * (5 + g.rng.Intn(120))))
	}
	return r
}

func (g *Generator) conversation() types.Record {
	r := types.Record{
		ID:                 g.id(),
		Kind:               types.KindConversation,
		Status:             pick(g.rng, conversationStatuses),
		Channel:            pick(g.rng, channels),
		Source:             pick(g.rng, sources),
		Intents:            sample(g.rng, intents, g.rng.Intn(2)),
		LastMessage:        pick(g.rng, messages),
		MessageCount:       types.Ptr(1 + g.rng.Intn(40)),
		AvgResponseSeconds: types.Ptr(float64(15 + g.rng.Intn(900))),
		DurationMinutes:    types.Ptr(float64(1 + g.rng.Intn(90))),
		WaitMinutes:        types.Ptr(float64(g.rng.Intn(48 * 60))),
		CreatedAt:          g.clock,
		UpdatedAt:          g.clock,
	}

	if g.rng.Float64() < 0.7 {
		r.Sentiment = pick(g.rng, sentiments)
	}
	if g.rng.Float64() < 0.6 {
		r.AccountValue = types.Ptr(float64(1000 * (1 + g.rng.Intn(150))))
	}
	if g.rng.Float64() < 0.5 {
		r.Engagements = types.Ptr(g.rng.Intn(10))
		r.DaysSinceLastEngagement = types.Ptr(round1(g.rng.Float64() * 14))
	}
	return r
}

func (g *Generator) queueEntry() types.Record {
	r := g.conversation()
	r.Kind = types.KindQueue
	r.Status = pick(g.rng, []types.Status{types.StatusWaiting, types.StatusEscalated})
	r.WaitMinutes = types.Ptr(float64(g.rng.Intn(30)))
	r.DurationMinutes = nil
	return r
}

func pick[T any](rng *rand.Rand, xs []T) T {
	return xs[rng.Intn(len(xs))]
}

// sample returns n distinct elements of xs in their original order
func sample(rng *rand.Rand, xs []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(xs) {
		n = len(xs)
	}
	chosen := make(map[int]bool, n)
	for _, idx := range rng.Perm(len(xs))[:n] {
		chosen[idx] = true
	}
	out := make([]string, 0, n)
	for i, x := range xs {
		if chosen[i] {
			out = append(out, x)
		}
	}
	return out
}

func round1(x float64) float64 {
	return float64(int(x*10)) / 10
}
