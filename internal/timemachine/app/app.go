// Package app wires the time machine: configuration → store → providers →
// pipeline stages → sessions, plus the Matrix gateway and the budget
// rollover schedule for long-running mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bdobrica/timemachine/common/version"
	"github.com/bdobrica/timemachine/internal/timemachine/classify"
	"github.com/bdobrica/timemachine/internal/timemachine/config"
	"github.com/bdobrica/timemachine/internal/timemachine/length"
	"github.com/bdobrica/timemachine/internal/timemachine/llm"
	"github.com/bdobrica/timemachine/internal/timemachine/matrix"
	"github.com/bdobrica/timemachine/internal/timemachine/prompt"
	"github.com/bdobrica/timemachine/internal/timemachine/retrieval"
	"github.com/bdobrica/timemachine/internal/timemachine/session"
	"github.com/bdobrica/timemachine/internal/timemachine/speech"
	"github.com/bdobrica/timemachine/internal/timemachine/store"
	"github.com/bdobrica/timemachine/internal/timemachine/usage"
)

// ErrMissingAPIKey is returned by New when no model credentials are set.
var ErrMissingAPIKey = errors.New("app: LLM API key is required (set LLM_API_KEY or llm.api_key)")

// Option overrides a provider New would otherwise build from the config.
type Option func(*options)

type options struct {
	generator llm.Generator
	estimator llm.Generator
	embedder  retrieval.Embedder
	synth     speech.Synthesizer
	now       func() time.Time
}

// WithGenerator replaces the persona reply model.
func WithGenerator(g llm.Generator) Option { return func(o *options) { o.generator = g } }

// WithEstimator replaces the length estimation model.
func WithEstimator(g llm.Generator) Option { return func(o *options) { o.estimator = g } }

// WithEmbedder replaces the embedding provider.
func WithEmbedder(e retrieval.Embedder) Option { return func(o *options) { o.embedder = e } }

// WithSynthesizer replaces the speech engine.
func WithSynthesizer(s speech.Synthesizer) Option { return func(o *options) { o.synth = s } }

// WithClock replaces the clock used for budget periods and reports.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// App owns every long-lived component.
type App struct {
	cfg       config.Config
	db        *store.Store
	persona   prompt.Persona
	knowledge *retrieval.SQLiteStore
	splitter  *retrieval.Splitter
	ledger    *usage.Ledger
	registry  *session.Registry
	schedule  cron.Schedule
	now       func() time.Time
}

// New opens the database and builds the pipeline. It starts nothing.
func New(cfg config.Config, opts ...Option) (*App, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if o.generator == nil && cfg.LLM.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	schedule, err := cron.ParseStandard(cfg.Budget.ResetSchedule)
	if err != nil {
		return nil, fmt.Errorf("app: budget.reset_schedule %q: %w", cfg.Budget.ResetSchedule, err)
	}

	persona := prompt.DefaultPersona()
	if cfg.Persona.File != "" {
		if persona, err = prompt.LoadPersona(cfg.Persona.File); err != nil {
			return nil, err
		}
	}

	db, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	gen := o.generator
	if gen == nil {
		gen = llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		})
	}

	var strategies []length.Strategy
	estGen := o.estimator
	if estGen == nil && cfg.Estimator.Enabled && cfg.Estimator.APIKey != "" {
		estGen = llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:      cfg.Estimator.APIKey,
			BaseURL:     cfg.Estimator.BaseURL,
			Model:       cfg.Estimator.Model,
			Temperature: 0.2,
			Timeout:     cfg.Estimator.Timeout,
		})
	}
	if estGen != nil && cfg.Estimator.Enabled {
		strategies = append(strategies, length.NewEstimator(estGen, length.EstimatorConfig{
			PersonaName:  persona.Name,
			ContextChars: cfg.Estimator.ContextChars,
			Windows:      cfg.Length.Windows,
		}))
	}

	embedder := o.embedder
	if embedder == nil && cfg.Retrieval.Embedding.Enabled {
		embedder = retrieval.NewOpenAIEmbedder(retrieval.OpenAIEmbedderConfig{
			APIKey:  cfg.Retrieval.Embedding.APIKey,
			BaseURL: cfg.Retrieval.Embedding.BaseURL,
			Model:   cfg.Retrieval.Embedding.Model,
		})
	}
	knowledge := retrieval.NewSQLiteStore(db.DB(), embedder, slog.Default())

	synth := o.synth
	if synth == nil && cfg.Speech.Enabled {
		synth = speech.NewOpenAI(speech.OpenAIConfig{
			APIKey:  cfg.Speech.APIKey,
			BaseURL: cfg.Speech.BaseURL,
			Model:   cfg.Speech.Model,
			Voice:   cfg.Speech.Voice,
			Format:  cfg.Speech.Format,
			Speed:   cfg.Speech.Speed,
		})
	}

	ledger := usage.NewLedger(cfg.UsageBudget(), cfg.Budget.Partitioned, db,
		usage.WithThresholds(cfg.Thresholds()), usage.WithClock(o.now))

	deps := session.Deps{
		Retriever:   retrieval.NewRetriever(knowledge, cfg.Retrieval.MaxChars, cfg.Retrieval.TopK),
		Classifier:  classify.NewPatternClassifier(),
		Optimizer:   length.NewOptimizer(length.NewHeuristic(cfg.Length.Windows), cfg.Estimator.Timeout, strategies...),
		Compiler:    prompt.NewCompiler(persona, gen),
		Synth:       synth,
		AudioDir:    cfg.Speech.OutputDir,
		AudioFormat: cfg.Speech.Format,
		TurnLog:     db,
		Now:         o.now,
	}

	slog.Info("app: initialised",
		"persona", persona.Name,
		"db", cfg.DBPath,
		"estimator", len(strategies) > 0,
		"embeddings", embedder != nil,
		"speech", synth != nil,
		"partitioned_budget", cfg.Budget.Partitioned,
		"max_daily_chars", cfg.Budget.MaxDailyChars,
	)

	return &App{
		cfg:       cfg,
		db:        db,
		persona:   persona,
		knowledge: knowledge,
		splitter:  retrieval.NewSplitter(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap),
		ledger:    ledger,
		registry:  session.NewRegistry(deps, ledger, cfg.History.Depth),
		schedule:  schedule,
		now:       o.now,
	}, nil
}

// Close releases the database.
func (a *App) Close() error { return a.db.Close() }

// Persona returns the persona in use.
func (a *App) Persona() prompt.Persona { return a.persona }

// Ledger returns the budget ledger.
func (a *App) Ledger() *usage.Ledger { return a.ledger }

// Session returns the conversation's session, charged to tenant.
func (a *App) Session(ctx context.Context, tenant, conversation string) *session.Session {
	return a.registry.Get(ctx, tenant, conversation)
}

// Ingest loads a file or directory into the knowledge store.
func (a *App) Ingest(ctx context.Context, path string) (int, error) {
	return retrieval.Ingest(ctx, a.knowledge, a.splitter, path)
}

// KnowledgeCount returns the number of stored chunks.
func (a *App) KnowledgeCount(ctx context.Context) (int, error) {
	return a.knowledge.Count(ctx)
}

// Report is today's usage: live tracker state plus the turn log totals.
type Report struct {
	Period   string
	Trackers []usage.Snapshot
	Turns    store.Summary
}

// Usage builds the report for the current period. In shared mode the
// default tracker is restored from the store first, so a fresh process
// reports the persisted total.
func (a *App) Usage(ctx context.Context) (Report, error) {
	period := usage.Period(a.now())
	if !a.ledger.Partitioned() {
		a.ledger.For(ctx, usage.DefaultTenant)
	}
	turns, err := a.db.DailySummary(ctx, period, "")
	if err != nil {
		return Report{}, err
	}
	return Report{
		Period:   period,
		Trackers: a.ledger.Snapshot(),
		Turns:    turns,
	}, nil
}

// rollover starts a new budget period.
func (a *App) rollover() {
	a.ledger.ResetAll(context.Background())
	slog.Info("app: budget period rolled over", "period", usage.Period(a.now()))
}

// startScheduler runs rollover on the configured schedule.
func (a *App) startScheduler() *cron.Cron {
	c := cron.New(cron.WithLocation(time.UTC))
	c.Schedule(a.schedule, cron.FuncJob(a.rollover))
	c.Start()
	return c
}

// Run serves Matrix rooms until SIGINT/SIGTERM or ctx is done. Without a
// Matrix homeserver it only runs the rollover schedule.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := a.startScheduler()
	defer c.Stop()

	if a.cfg.Matrix.Homeserver != "" {
		cli, err := matrix.NewClient(matrix.Config{
			Homeserver:  a.cfg.Matrix.Homeserver,
			UserID:      a.cfg.Matrix.UserID,
			AccessToken: a.cfg.Matrix.AccessToken,
		})
		if err != nil {
			return err
		}
		gw := matrix.NewGateway(a.registry, cli)
		if err := cli.Start(ctx, a.cfg.Matrix.Rooms, gw.HandleEvent); err != nil {
			return fmt.Errorf("app: start matrix: %w", err)
		}
		defer cli.Stop()
	} else {
		slog.Warn("app: no Matrix homeserver configured; serving the rollover schedule only")
	}

	slog.Info("timemachine started", "version", version.Version, "persona", a.persona.Name)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case <-sigCh:
		slog.Info("received shutdown signal")
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	return nil
}
