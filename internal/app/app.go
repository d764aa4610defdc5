package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"MarketRadar/internal/batch"
	"MarketRadar/internal/classify"
	"MarketRadar/internal/config"
	"MarketRadar/internal/dedup"
	"MarketRadar/internal/domain"
	"MarketRadar/internal/filter"
	"MarketRadar/internal/infrastructure/feed"
	"MarketRadar/internal/infrastructure/llm"
	"MarketRadar/internal/infrastructure/lock"
	"MarketRadar/internal/infrastructure/scheduler"
	"MarketRadar/internal/infrastructure/storage"
	"MarketRadar/internal/infrastructure/telegram"
	"MarketRadar/internal/logging"
	"MarketRadar/internal/ports"
	"MarketRadar/internal/reconcile"
	"MarketRadar/internal/scanner"
	"MarketRadar/internal/usecase"
)

// Application wires configs to the scan loop and its adapters.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	loop   *usecase.ScanLoop
	store  *Store
}

// New validates cfg and builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	registry := scanner.NewRegistry()
	registry.Register(feed.NewRedditSource(
		&http.Client{Timeout: config.Seconds(cfg.Feed.TimeoutSeconds)},
		cfg.Feed.BaseURL,
	))
	source, err := registry.Resolve(cfg.Feed.Source)
	if err != nil {
		return nil, err
	}

	backend, err := newCompleter(cfg.Classifier)
	if err != nil {
		return nil, err
	}

	ledger, err := dedup.NewLRU(cfg.Scan.DedupCapacity)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sleeper := scheduler.NewTimerSleeper()
	classifier := classify.NewAdapter(backend, classify.Options{
		MaxTextChars: cfg.Classifier.MaxTextChars,
		MinScore:     cfg.Classifier.MinScore,
		Cooldown:     config.Seconds(cfg.Classifier.CooldownSeconds),
		Policy: classify.Policy{
			MaxRetries: cfg.Classifier.MaxRetries,
			BaseWait:   config.Seconds(cfg.Classifier.BaseWaitSeconds),
		},
	}, sleeper, baseLogger.With("component", "classifier", "provider", cfg.Classifier.Provider))

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	loop := usecase.NewScanLoop(usecase.ScanLoopDeps{
		Source:     source,
		Ledger:     ledger,
		Filter:     filter.New(cfg.Filter.MinBodyLength, cfg.Filter.TriggerPhrases),
		Buffer:     batch.NewBuffer(cfg.Classifier.BatchSize, cfg.Classifier.MaxTextChars),
		Classifier: classifier,
		Reconciler: reconcile.New(cfg.Classifier.MinScore, nil),
		Sink:       store.Sink,
		Notifier:   notifier,
		Sleeper:    sleeper,
		Logger:     baseLogger.With("component", "scanloop", "source", source.Name()),
	}, usecase.ScanLoopOptions{
		Subjects:      cfg.Feed.Subjects,
		PageSize:      cfg.Feed.PageSize,
		Interval:      config.Seconds(cfg.Scan.IntervalSeconds),
		RateLimitWait: config.Seconds(cfg.Feed.RateLimitWaitSeconds),
		ErrorBackoff:  config.Seconds(cfg.Feed.ErrorBackoffSeconds),
	})

	return &Application{cfg: cfg, logger: baseLogger, loop: loop, store: store}, nil
}

// Run holds the instance lock and loops until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	inst, err := lock.Acquire(a.cfg.LockPath())
	if err != nil {
		return err
	}
	defer inst.Release()

	a.logger.Info("market radar started",
		"provider", a.cfg.Classifier.Provider,
		"model", a.cfg.Classifier.Model,
		"subjects", a.cfg.Feed.Subjects,
		"batch_size", a.cfg.Classifier.BatchSize,
		"min_score", a.cfg.Classifier.MinScore,
		"sink", a.cfg.Storage.Sink)

	if err := a.loop.Run(ctx); err != nil {
		return err
	}
	a.logger.Info("market radar stopped")
	return nil
}

// Once runs a single cycle; flush also classifies a partial batch.
func (a *Application) Once(ctx context.Context, flush bool) (usecase.CycleReport, error) {
	inst, err := lock.Acquire(a.cfg.LockPath())
	if err != nil {
		return usecase.CycleReport{}, err
	}
	defer inst.Release()

	report, err := a.loop.RunCycle(ctx)
	if err != nil || !flush {
		return report, err
	}
	flushed, err := a.loop.Flush(ctx)
	report.Batches += flushed.Batches
	report.Persisted += flushed.Persisted
	report.Rejected += flushed.Rejected
	return report, err
}

// Close releases the store.
func (a *Application) Close() error {
	return a.store.Close()
}

// Store groups the configured sink with its reader.
type Store struct {
	Sink   ports.Sink
	Reader ports.RecordReader
	closer io.Closer
}

// OpenStore opens the sink selected by cfg.Storage.Sink.
func OpenStore(ctx context.Context, cfg config.Config) (*Store, error) {
	switch cfg.Storage.Sink {
	case config.SinkCSV:
		sink := storage.NewCSVSink(cfg.Storage.OutputFile)
		return &Store{Sink: sink, Reader: sink}, nil
	case config.SinkSQLite, config.SinkPostgres:
		sink, err := storage.OpenSQLSink(ctx, cfg.Storage.Sink, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s sink: %w", cfg.Storage.Sink, err)
		}
		return &Store{Sink: sink, Reader: sink, closer: sink}, nil
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Storage.Sink)
	}
}

// Recent lists the last limit records.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.OpportunityRecord, error) {
	return s.Reader.Recent(ctx, limit)
}

// Close releases database handles, if any.
func (s *Store) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func newCompleter(cfg config.ClassifierConfig) (ports.Completer, error) {
	timeout := config.Seconds(cfg.TimeoutSeconds)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init openai client: %w", err)
		}
		return client, nil
	case config.ProviderGemini:
		client, err := llm.NewGeminiClient(llm.GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider)
	}
}
