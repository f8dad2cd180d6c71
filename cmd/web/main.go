package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/myrjola/interrogame/internal/ai"
	"github.com/myrjola/interrogame/internal/broker"
	"github.com/myrjola/interrogame/internal/envstruct"
	"github.com/myrjola/interrogame/internal/errors"
	"github.com/myrjola/interrogame/internal/game"
	"github.com/myrjola/interrogame/internal/history"
	"github.com/myrjola/interrogame/internal/kv"
	"github.com/myrjola/interrogame/internal/logging"
	"github.com/myrjola/interrogame/internal/pprofserver"
	"github.com/myrjola/interrogame/internal/scenario"
)

type config struct {
	Addr       string `env:"INTERROGAME_ADDR" envDefault:"localhost:4000"`
	PprofPort  string `env:"INTERROGAME_PPROF_PORT" envDefault:":6060"`
	SQLiteURL  string `env:"INTERROGAME_SQLITE_URL" envDefault:"./interrogame.sqlite"`
	ContentDir string `env:"INTERROGAME_CONTENT_DIR" envDefault:""`
	AIBaseURL  string `env:"INTERROGAME_AI_BASE_URL" envDefault:""`
	AIKey      string `env:"OPENAI_API_KEY" envDefault:""`
	AIModel    string `env:"INTERROGAME_AI_MODEL" envDefault:""`
	AITimeout  string `env:"INTERROGAME_AI_TIMEOUT" envDefault:"30s"`
}

type application struct {
	logger  *slog.Logger
	engine  *game.Engine
	history *history.Store
	frames  *broker.Broker[string, game.Frame]

	// baseCtx bounds background work such as the briefing reveal; shutdown
	// cancels it so the server isn't held hostage by typewriter pacing.
	baseCtx          context.Context
	cancelBackground context.CancelFunc

	frameMu      sync.Mutex
	frameChannel chan game.Frame
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}))
	logger := slog.New(loggerHandler)

	if err := run(logger); err != nil {
		logger.Error("server exited", errors.SlogError(err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx := context.Background()

	// Missing .env is fine, the environment may be configured by other means.
	_ = godotenv.Load()

	var cfg config
	if err := envstruct.Populate(&cfg, os.LookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	// The pprof server listens on loopback only so it's not open to the world.
	pprofserver.Launch(cfg.PprofPort, logger)

	aiTimeout, err := time.ParseDuration(cfg.AITimeout)
	if err != nil {
		return errors.Wrap(err, "parse AI timeout", slog.String("value", cfg.AITimeout))
	}

	blobs, err := kv.NewStore(cfg.SQLiteURL)
	if err != nil {
		return errors.Wrap(err, "open blob store", slog.String("url", cfg.SQLiteURL))
	}
	defer func() {
		if closeErr := blobs.Close(); closeErr != nil {
			logger.Error("could not close blob store", errors.SlogError(closeErr))
		}
	}()
	logger.Info("connected to db", slog.String("url", cfg.SQLiteURL))

	var contentFS fs.FS = scenario.DefaultFS()
	if cfg.ContentDir != "" {
		contentFS = os.DirFS(cfg.ContentDir)
	}
	source := scenario.NewSource(contentFS, logger)

	aiClient := ai.NewClient(ai.Config{
		APIKey:  cfg.AIKey,
		BaseURL: cfg.AIBaseURL,
		Model:   cfg.AIModel,
		Timeout: aiTimeout,
	})

	historyStore := history.NewStore(ctx, blobs, logger)
	frames := broker.New[string, game.Frame]()
	go frames.Start()
	defer frames.Stop()

	baseCtx, cancelBackground := context.WithCancel(ctx)
	defer cancelBackground()

	app := &application{
		logger:           logger,
		history:          historyStore,
		frames:           frames,
		baseCtx:          baseCtx,
		cancelBackground: cancelBackground,
	}
	app.engine = game.NewEngine(source, &aiClient, historyStore, app.emitFrame, logger)

	return app.configureAndStartServer(ctx, cfg.Addr)
}
