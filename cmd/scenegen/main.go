package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mtzanidakis/scenegen/internal/agents"
	"github.com/mtzanidakis/scenegen/internal/config"
	"github.com/mtzanidakis/scenegen/internal/geometry"
	"github.com/mtzanidakis/scenegen/internal/imageinput"
	"github.com/mtzanidakis/scenegen/internal/llm"
	"github.com/mtzanidakis/scenegen/internal/natsbus"
	"github.com/mtzanidakis/scenegen/internal/pipeline"
	"github.com/mtzanidakis/scenegen/internal/scene"
	"github.com/mtzanidakis/scenegen/internal/store"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("scenegen %s\n", version)
		return
	case "run":
		if len(os.Args) != 4 {
			printUsage()
			os.Exit(1)
		}
		err = runGenerate(os.Args[2], os.Args[3])
	case "history":
		err = runHistory(os.Args[2:])
	case "watch":
		err = runWatch()
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error(os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: scenegen <command>

Commands:
  run <product-name> <image-path>   Generate ad scenes for a product photo
  history [run-id]                  Show recorded runs
  watch                             Print run events from NATS
  version                           Print version
`)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogger(os.Stderr, cfg.Log.Level)
	return cfg, nil
}

func setupLogger(w io.Writer, level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})))
}

func runGenerate(product, imagePath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	img, err := imageinput.Load(imagePath)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Pipeline.Timeout)
	defer cancel()

	gen, err := llm.NewGemini(ctx, llm.GeminiOptions{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model})
	if err != nil {
		return err
	}

	opts := pipeline.Options{MaxConcurrent: cfg.Pipeline.MaxConcurrent}

	if cfg.Store.Path != "" {
		db, err := store.New(cfg.Store)
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		defer db.Close()
		opts.Recorder = db
		slog.Info("store initialized", "path", cfg.Store.Path)
	}

	if cfg.NATS.Enabled {
		client, closeBus, err := connectEvents(cfg.NATS)
		if err != nil {
			return err
		}
		defer closeBus()
		opts.Events = client
	}

	orch, err := newOrchestrator(gen, cfg.Gemini, opts)
	if err != nil {
		return err
	}

	slog.Info("starting scenegen run", "version", version, "model", gen.Model(), "product", product)
	run, runErr := orch.Run(ctx, pipeline.Input{ProductName: product, Image: img})
	if run == nil {
		return runErr
	}

	// A failed run still prints its (empty) scene list.
	if err := writeScenes(os.Stdout, run.State); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Total execution time: %.2f seconds\n", run.Elapsed.Seconds())
	return runErr
}

// newOrchestrator wires the six agents and the scene assembler into the
// default graph.
func newOrchestrator(gen llm.Generator, g config.GeminiConfig, opts pipeline.Options) (*pipeline.Orchestrator, error) {
	nodes := agents.New(gen, agents.Options{Temperature: g.Temperature, MaxTokens: g.MaxTokens})
	nodes[pipeline.SceneAssembler] = scene.NewAssembler(geometry.Canvas)
	return pipeline.NewOrchestrator(pipeline.DefaultGraph(), nodes, opts)
}

// connectEvents connects to the configured NATS server or starts an
// embedded one. The returned func closes whatever was opened.
func connectEvents(cfg config.NATSConfig) (*natsbus.Client, func(), error) {
	if cfg.URL != "" {
		client, err := natsbus.NewClientFromURL(cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("nats connected", "url", cfg.URL)
		return client, func() { _ = client.Drain() }, nil
	}

	bus, err := natsbus.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init nats: %w", err)
	}
	client, err := natsbus.NewClient(bus)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	slog.Info("nats started", "url", bus.ClientURL())
	return client, func() {
		_ = client.Drain()
		bus.Close()
	}, nil
}

func writeScenes(w io.Writer, st *pipeline.State) error {
	return writeJSON(w, st.FinalJSON())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func runHistory(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path is not configured")
	}
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	return showHistory(os.Stdout, db, args)
}

type runDetail struct {
	*store.Run
	Agents []store.AgentRun `json:"agents"`
}

func showHistory(w io.Writer, db *store.Store, args []string) error {
	if len(args) == 0 {
		runs, err := db.ListRuns(20)
		if err != nil {
			return err
		}
		if runs == nil {
			runs = []store.Run{}
		}
		return writeJSON(w, runs)
	}

	run, err := db.GetRun(args[0])
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", args[0])
	}
	recs, err := db.ListAgentRuns(run.ID)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []store.AgentRun{}
	}
	return writeJSON(w, runDetail{Run: run, Agents: recs})
}

func runWatch() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is not configured")
	}
	client, err := natsbus.NewClientFromURL(cfg.NATS.URL)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return watchEvents(ctx, client, os.Stdout)
}

// watchEvents prints one JSON line per run event until ctx is done.
func watchEvents(ctx context.Context, client *natsbus.Client, w io.Writer) error {
	lines := make(chan pipeline.Event, 64)
	sub, err := natsbus.SubscribeJSON(client, natsbus.TopicEventsRuns, func(subject string, ev pipeline.Event, err error) {
		if err != nil {
			slog.Warn("bad event", "subject", subject, "error", err)
			return
		}
		select {
		case lines <- ev:
		default:
			slog.Warn("event dropped", "subject", subject)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()
	if err := client.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-lines:
			if err := enc.Encode(ev); err != nil {
				return fmt.Errorf("write event: %w", err)
			}
		}
	}
}
