// Package app assembles the check-in services from configuration. The CLI
// builds one App per invocation and closes it on exit.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/abhisek/checkin/internal/config"
	"github.com/abhisek/checkin/internal/lessons"
	"github.com/abhisek/checkin/internal/llm"
	"github.com/abhisek/checkin/internal/notify"
	"github.com/abhisek/checkin/internal/progress"
	"github.com/abhisek/checkin/internal/questions"
	"github.com/abhisek/checkin/internal/session"
	"github.com/abhisek/checkin/internal/store"
	"github.com/abhisek/checkin/internal/telemetry"
)

// Options override parts of the loaded configuration.
type Options struct {
	ConfigFile string
	EnvFiles   []string

	// Driver and DSN take precedence over the database section.
	Driver string
	DSN    string

	// LogOutput receives structured logs. Defaults to io.Discard.
	LogOutput io.Writer

	// Now overrides the clock of every service.
	Now func() time.Time
}

// App holds the wired services.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *store.Store
	LLM       llm.Provider
	Questions *questions.Provider
	Progress  *progress.Recorder
	Lessons   *lessons.Service
	Notifier  *notify.Notifier
	Engine    *session.Engine

	closers []func(context.Context) error
}

// New loads configuration and builds every service on top of one store.
func New(ctx context.Context, opts Options) (*App, error) {
	loader, err := config.NewLoader(opts.ConfigFile, opts.EnvFiles...)
	if err != nil {
		return nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if opts.Driver != "" {
		cfg.Database.Driver = opts.Driver
	}
	if opts.DSN != "" {
		cfg.Database.DSN = opts.DSN
	}

	out := opts.LogOutput
	if out == nil {
		out = io.Discard
	}
	logger := NewLogger(out, cfg.Log)

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	a := &App{Config: cfg, Logger: logger}

	dsn := cfg.Database.DSN
	if cfg.Database.Driver == store.DriverSQLite && dsn == "" {
		if dsn, err = store.DefaultDBPath(); err != nil {
			return nil, fmt.Errorf("resolve DB path: %w", err)
		}
	}
	a.Store, err = store.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return a.Store.Close() })

	tcfg, err := telemetry.ConfigFromEnv()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	shutdown, err := telemetry.Setup(ctx, tcfg)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		a.closers = append(a.closers, shutdown)
	}

	a.LLM, err = llm.NewProvider(ctx, cfg.LLM, a.Store.LLMEventRepo(), logger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("LLM provider: %w", err)
	}

	a.Progress = progress.NewRecorder(a.Store.ProgressRepo(), now)
	a.Questions = questions.NewProvider(a.Store.QuestionRepo(), a.Store.ChildRepo(),
		questions.WithClock(now),
		questions.WithLogger(logger),
		questions.WithGenerator(questions.NewLLMGenerator(a.LLM, questions.DefaultGeneratorConfig(), logger)),
		questions.WithTopicRanker(a.Progress.WeakTopicNames),
	)
	a.Lessons = lessons.NewService(a.LLM, a.Store.LessonRepo(), a.Store.ChildRepo(), lessons.DefaultConfig(), logger)

	sender, err := notify.NewSender(ctx, cfg.Notify, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	if c, ok := sender.(io.Closer); ok {
		a.closers = append(a.closers, func(context.Context) error { return c.Close() })
	}
	a.Notifier = notify.NewNotifier(a.Store.NotificationRepo(), sender, logger)

	a.Engine = session.NewEngine(session.Deps{
		Sessions:  a.Store.SessionRepo(),
		Questions: a.Store.QuestionRepo(),
		Provider:  a.Questions,
		Progress:  a.Progress,
		Lessons:   a.Lessons,
		Notifier:  a.Notifier,
	}, session.WithLogger(logger), session.WithClock(now))

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewLogger returns a slog logger writing text or JSON at the configured
// level. Unknown levels fall back to info.
func NewLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}
