package scoring

import (
	apperrors "github.com/ZanzyTHEbar/leadpulse/internal/errors"
	"github.com/ZanzyTHEbar/leadpulse/internal/types"
)

const reasonMissingIdentity = "missing identity"

// Engine scores and ranks records under one validated configuration. It holds
// no mutable state and is safe for concurrent use. Changing the configuration
// means building a new Engine.
type Engine struct {
	cfg      Config
	version  string
	messages compiledMessages
}

// NewEngine validates cfg and returns an engine closed over a copy of it.
// Any problem is reported as a ConfigurationError and no engine is returned.
func NewEngine(cfg Config) (*Engine, error) {
	cfg = cfg.Clone()

	problems := cfg.problems()
	messages, tplProblems := compileMessages(cfg.Messages)
	for k, v := range tplProblems {
		problems[k] = v
	}
	if len(problems) > 0 {
		return nil, apperrors.NewConfigurationError("invalid scoring configuration", problems)
	}

	return &Engine{
		cfg:      cfg,
		version:  cfg.Version(),
		messages: messages,
	}, nil
}

// Reconfigure returns a new engine for cfg. The receiver keeps its own
// configuration, so results it produced stay attributable to its version.
func (e *Engine) Reconfigure(cfg Config) (*Engine, error) {
	return NewEngine(cfg)
}

// Version identifies the configuration; results cached under another version
// are stale
func (e *Engine) Version() string { return e.version }

// Config returns a copy of the engine's configuration
func (e *Engine) Config() Config { return e.cfg.Clone() }

// ScoreRecord derives the full result for one record. A record without an
// identity yields an InvalidRecordError; missing optional attributes never do.
func (e *Engine) ScoreRecord(r types.Record) (ScoreResult, error) {
	if !r.HasIdentity() {
		return ScoreResult{}, apperrors.NewInvalidRecordError(-1, "", reasonMissingIdentity)
	}
	return e.score(r), nil
}

func (e *Engine) score(r types.Record) ScoreResult {
	factors := Extract(r, &e.cfg)
	composite := Score(factors, &e.cfg)
	risk := AssessRisk(r, &e.cfg)
	rec := e.recommend(ruleInput{
		record:    r,
		factors:   factors,
		composite: composite,
		risk:      risk,
		cfg:       &e.cfg,
	})

	return ScoreResult{
		Composite:             composite.Score,
		Factors:               factors,
		ConversionProbability: composite.ConversionProbability,
		Recommendation:        label(composite.Score, e.cfg.Bands),
		NextBestAction:        rec.Action,
		Insights:              rec.Insights,
		Risk:                  risk,
		Contributors:          composite.Contributors,
		ConfigVersion:         e.version,
	}
}

// ScoreBatch scores every record it can. Records without an identity are
// rejected individually and never abort the batch.
func (e *Engine) ScoreBatch(records []types.Record) ([]ScoredRecord, []Rejected) {
	scored := make([]ScoredRecord, 0, len(records))
	rejected := []Rejected{}
	for i, r := range records {
		res, err := e.ScoreRecord(r)
		if err != nil {
			rejected = append(rejected, Rejected{Index: i, Reason: reasonMissingIdentity})
			continue
		}
		scored = append(scored, ScoredRecord{Record: r, Result: res})
	}
	return scored, rejected
}

// Prioritize scores and orders a collection. Rejected entries keep the index
// of the record in records.
func (e *Engine) Prioritize(records []types.Record) Queue {
	scored, rejected := e.ScoreBatch(records)
	q := Prioritize(scored)
	q.Rejected = append(rejected, q.Rejected...)
	return q
}

// Evaluate runs the whole pipeline over a collection: score, prioritize and
// aggregate
func (e *Engine) Evaluate(records []types.Record) Evaluation {
	return e.Assemble(e.ScoreBatch(records))
}

// Assemble prioritizes and aggregates records scored earlier, for callers
// that memoize individual results. Every result must come from this engine's
// configuration version.
func (e *Engine) Assemble(scored []ScoredRecord, rejected []Rejected) Evaluation {
	q := Prioritize(scored)
	q.Rejected = append(append([]Rejected{}, rejected...), q.Rejected...)
	return Evaluation{
		Queue:         q,
		Insights:      e.Aggregate(q),
		ConfigVersion: e.version,
	}
}
