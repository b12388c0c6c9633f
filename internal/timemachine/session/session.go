// Package session runs the conversational turn pipeline for one
// conversation: retrieve, classify, size, compile, generate, shorten,
// account, synthesize, remember.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/bdobrica/timemachine/common/runes"
	"github.com/bdobrica/timemachine/common/trace"
	"github.com/bdobrica/timemachine/internal/timemachine/classify"
	"github.com/bdobrica/timemachine/internal/timemachine/length"
	"github.com/bdobrica/timemachine/internal/timemachine/memory"
	"github.com/bdobrica/timemachine/internal/timemachine/observability"
	"github.com/bdobrica/timemachine/internal/timemachine/prompt"
	"github.com/bdobrica/timemachine/internal/timemachine/retrieval"
	"github.com/bdobrica/timemachine/internal/timemachine/shaping"
	"github.com/bdobrica/timemachine/internal/timemachine/speech"
	"github.com/bdobrica/timemachine/internal/timemachine/store"
	"github.com/bdobrica/timemachine/internal/timemachine/usage"
)

// defaultEngagement scores replies whose guidance carries no estimate.
const defaultEngagement = 7

// TurnLog records completed turns. *store.Store satisfies it.
type TurnLog interface {
	RecordTurn(ctx context.Context, t store.Turn) error
}

// Deps are the stages shared by every session of a process.
type Deps struct {
	Retriever   *retrieval.Retriever // nil always yields the sentinel
	Classifier  classify.Classifier
	Optimizer   *length.Optimizer
	Compiler    *prompt.Compiler
	Synth       speech.Synthesizer // nil disables synthesis
	AudioDir    string
	AudioFormat string // extension of the audio path hint
	TurnLog     TurnLog // may be nil
	Now         func() time.Time // stamps turn log rows; defaults to time.Now
}

// AudioStatus reports what happened to a turn's audio slot.
type AudioStatus string

const (
	AudioReady       AudioStatus = "ready"       // AudioPath holds the file
	AudioSkipped     AudioStatus = "skipped"     // refused by the budget gate
	AudioUnavailable AudioStatus = "unavailable" // the engine failed
	AudioDisabled    AudioStatus = "disabled"    // no engine configured
)

// Meta is the turn-level cost metadata shown next to a reply.
type Meta struct {
	TextLength       int
	EstimatedCost    float64
	SynthesisEnabled bool
	Source           length.Source
	CostBenefit      float64
	Shortened        bool
	Guidance         length.Guidance
	Alert            usage.Level
}

// Result is the outcome of one turn.
type Result struct {
	TurnID    string
	Text      string
	AudioPath string
	Audio     AudioStatus
	// Failed is set when Text is an apology; nothing was recorded.
	Failed bool
	Meta   Meta
}

// Session owns one conversation's history and is charged to one budget
// tracker.
type Session struct {
	id      string
	deps    Deps
	history *memory.History
	budget  *usage.Tracker
}

// New returns a Session. A nil history gets the default depth.
func New(id string, deps Deps, history *memory.History, budget *usage.Tracker) *Session {
	if history == nil {
		history = memory.NewHistory(memory.DefaultDepth)
	}
	if deps.Classifier == nil {
		deps.Classifier = classify.NewPatternClassifier()
	}
	if deps.Optimizer == nil {
		deps.Optimizer = length.NewOptimizer(nil, 0)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Session{id: id, deps: deps, history: history, budget: budget}
}

// ID returns the conversation key.
func (s *Session) ID() string { return s.id }

// History returns the conversation history.
func (s *Session) History() *memory.History { return s.history }

// Budget returns the tracker this session is charged to.
func (s *Session) Budget() *usage.Tracker { return s.budget }

// Introduce returns the persona's self-introduction. It is not recorded.
func (s *Session) Introduce(ctx context.Context) string {
	ctx = trace.WithTraceID(ctx, trace.NewID())
	return s.deps.Compiler.Introduce(ctx)
}

// Respond runs one turn. It never returns an error: retrieval, estimation,
// generation and synthesis failures all degrade inside the turn.
func (s *Session) Respond(ctx context.Context, query string) Result {
	turnID := trace.NewID()
	ctx = trace.WithTraceID(ctx, turnID)
	log := observability.WithTrace(ctx)
	query = strings.TrimSpace(query)
	res := Result{TurnID: turnID, Audio: AudioDisabled}

	bundle := retrieval.Bundle{Text: retrieval.NoInformationSentinel, Sentinel: true}
	if s.deps.Retriever != nil {
		bundle = s.deps.Retriever.Retrieve(ctx, query)
	}

	q, err := s.deps.Classifier.Classify(ctx, query)
	if err != nil {
		log.Warn("session: classification failed, using fallback", "err", err)
		q = classify.Fallback(query)
	}

	history := s.history.All()
	req := length.Request{Query: q, Context: bundle.Text, History: history}
	if s.budget != nil {
		req.Budget = s.budget
	}
	g := s.deps.Optimizer.Optimize(ctx, req)
	res.Meta.Guidance = g
	res.Meta.Source = g.Source

	reply := s.deps.Compiler.Generate(ctx, s.deps.Compiler.Compile(query, g, bundle.Text, history))
	if reply.Failed {
		res.Text = reply.Text
		res.Failed = true
		res.Meta.TextLength = runes.Len(reply.Text)
		return res
	}

	text := reply.Text
	if runes.Len(text) > g.OvershootLimit() {
		text = shaping.Shorten(text, g.Max)
		res.Meta.Shortened = true
	}
	res.Text = text
	n := runes.Len(text)
	res.Meta.TextLength = n

	var alert usage.Level
	if s.budget != nil {
		// The gate sees the budget before this reply is charged.
		res.Meta.SynthesisEnabled = s.budget.ShouldSynthesize(text)
		res.Meta.EstimatedCost = s.budget.CostEstimate(text)
		s.budget.RecordEmission(ctx, n)
		alert = s.budget.AlertLevel()
		engagement := g.CostEffectiveness
		if engagement <= 0 {
			engagement = defaultEngagement
		}
		res.Meta.CostBenefit = length.CostBenefit(n, engagement, s.budget.CostPerChar())
	}
	res.Meta.Alert = alert

	switch {
	case s.deps.Synth == nil:
		res.Audio = AudioDisabled
	case !res.Meta.SynthesisEnabled:
		res.Audio = AudioSkipped
	default:
		hint := speech.OutputPath(s.deps.AudioDir, turnID, s.deps.AudioFormat)
		path, err := s.deps.Synth.Synthesize(ctx, text, hint)
		if err != nil {
			log.Warn("session: synthesis failed, audio unavailable", "err", err)
			res.Audio = AudioUnavailable
		} else {
			res.Audio = AudioReady
			res.AudioPath = path
		}
	}

	s.history.Record(memory.NewExchange(query, text, g.ResponseType, g.EstimatedCost, string(g.Source)))

	if s.deps.TurnLog != nil {
		tenant := usage.DefaultTenant
		if s.budget != nil {
			tenant = s.budget.Tenant()
		}
		err := s.deps.TurnLog.RecordTurn(ctx, store.Turn{
			ID:            turnID,
			Tenant:        tenant,
			Query:         query,
			ResponseType:  string(g.ResponseType),
			Tier:          string(g.Tier),
			Source:        string(g.Source),
			MinChars:      g.Min,
			MaxChars:      g.Max,
			LengthChars:   n,
			EstimatedCost: res.Meta.EstimatedCost,
			Shortened:     res.Meta.Shortened,
			Synthesized:   res.Audio == AudioReady,
			AudioPath:     res.AudioPath,
			CreatedAt:     s.deps.Now(),
		})
		if err != nil {
			log.Warn("session: turn log write failed", "err", err)
		}
	}

	log.Info("session: turn complete",
		"type", g.ResponseType,
		"tier", g.Tier,
		"source", g.Source,
		"min", g.Min,
		"max", g.Max,
		"length", n,
		"estimated_cost", res.Meta.EstimatedCost,
		"synthesis", res.Audio,
		"alert", alert,
	)
	return res
}
