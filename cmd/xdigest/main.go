// Command xdigest fetches posts for curated X lists and delivers LLM-written
// digests on a schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xdigest/internal/app"
	"github.com/ibeckermayer/xdigest/internal/config"
	"github.com/ibeckermayer/xdigest/internal/delivery"
	"github.com/ibeckermayer/xdigest/internal/errs"
	"github.com/ibeckermayer/xdigest/internal/fetch"
	"github.com/ibeckermayer/xdigest/internal/images"
	llmproviders "github.com/ibeckermayer/xdigest/internal/llm/providers"
	"github.com/ibeckermayer/xdigest/internal/scheduler"
	"github.com/ibeckermayer/xdigest/internal/status"
	"github.com/ibeckermayer/xdigest/internal/store"
)

// Exit codes by error family, for cron and monitoring wrappers.
const (
	exitOK       = 0
	exitUsage    = 1
	exitConfig   = 2
	exitFetch    = 3
	exitDelivery = 4
	exitOther    = 5
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitUsage)
	}

	// Missing .env is fine; credentials may come from the environment.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if os.Getenv("XDIGEST_DEBUG") != "" {
		log.SetLevel(logrus.DebugLevel)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runCmd(os.Args[2:], log))
	case "validate":
		os.Exit(validateCmd(os.Args[2:]))
	case "watch":
		os.Exit(watchCmd(os.Args[2:], log))
	default:
		printUsage()
		os.Exit(exitUsage)
	}
}

func printUsage() {
	fmt.Println("Usage: xdigest <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run --list <name>   Run the digest pipeline for a list")
	fmt.Println("  validate            Check the config file and print a summary")
	fmt.Println("  watch               Run all enabled lists on an interval")
}

func runCmd(args []string, log *logrus.Logger) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	listName := fs.String("list", "", "list name from config (required)")
	configPath := fs.String("config", "", "config file path")
	hours := fs.Int("hours", 0, "lookback hours, overrides the status window")
	force := fs.Bool("force", false, "bypass the idempotency window")
	dryRun := fs.Bool("dry-run", false, "generate the digest but do not deliver")
	preview := fs.Bool("preview", false, "fetch and classify only, no LLM calls")
	fs.Parse(args)

	if *listName == "" {
		fmt.Fprintln(os.Stderr, "run: --list is required")
		return exitUsage
	}

	a, cleanup, code := buildApp(*configPath, log)
	if code != exitOK {
		return code
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := app.RunOptions{Hours: *hours, Force: *force, DryRun: *dryRun, Preview: *preview}
	if err := a.Run(ctx, *listName, opts); err != nil {
		log.WithError(err).Error("digest run failed")
		return exitCode(err)
	}
	return exitOK
}

func validateCmd(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	fs.Parse(args)

	path, err := config.FindConfigFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}

	fmt.Printf("Config OK: %s (version %d)\n\n", path, cfg.Version)
	fmt.Printf("Lists (%d):\n", len(cfg.Lists))
	for name := range cfg.Lists {
		ls, err := cfg.ResolveList(name)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitConfig
		}
		state := "enabled"
		if !ls.Enabled {
			state = "disabled"
		}
		fmt.Printf("  %s %s (%s, id %s, %s)\n", ls.Emoji, ls.DisplayName, name, ls.ID, state)
	}
	fmt.Printf("\nDelivery: %s\n", cfg.Delivery.Provider)
	if len(cfg.Schedules) > 0 {
		fmt.Printf("Schedules (%d):\n", len(cfg.Schedules))
		for _, s := range cfg.Schedules {
			fmt.Printf("  %s: %s → %s\n", s.Name, s.Cron, s.List)
		}
	}
	return exitOK
}

func watchCmd(args []string, log *logrus.Logger) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	interval := fs.String("interval", "12h", "run interval, e.g. 12h or 30m")
	fs.Parse(args)

	a, cleanup, code := buildApp(*configPath, log)
	if code != exitOK {
		return code
	}
	defer cleanup()

	d, err := scheduler.ParseInterval(*interval)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	sched, err := scheduler.New(a.Config.Defaults.Timezone, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}

	// Configured cron schedules take precedence; lists without one fall back
	// to the blanket interval.
	scheduled := make(map[string]bool, len(a.Config.Schedules))
	for _, s := range a.Config.Schedules {
		s := s
		if _, ok := a.Config.Lists[s.List]; !ok {
			fmt.Fprintf(os.Stderr, "schedule %q references unknown list %q\n", s.Name, s.List)
			return exitConfig
		}
		err := sched.AddJob(s.Name, s.Cron, func(ctx context.Context) error {
			return a.Run(ctx, s.List, app.RunOptions{})
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitConfig
		}
		scheduled[s.List] = true
	}

	for name := range a.Config.Lists {
		if scheduled[name] {
			continue
		}
		listName := name
		err := sched.AddIntervalJob("digest-"+listName, d, func(ctx context.Context) error {
			return a.Run(ctx, listName, app.RunOptions{})
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitConfig
		}
	}

	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.WithField("interval", d.String()).Info("watch mode started")
	<-ctx.Done()
	return exitOK
}

// buildApp loads config and wires the pipeline dependencies.
func buildApp(configPath string, log *logrus.Logger) (*app.App, func(), int) {
	path, err := config.FindConfigFile(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, exitConfig
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, exitConfig
	}

	llmProvider, err := llmproviders.NewFromConfig(cfg.Defaults.LLM)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, exitConfig
	}
	deliveryProvider, err := delivery.NewFromConfig(cfg.Delivery)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, exitConfig
	}

	dataDir := os.Getenv("XDIGEST_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	archive, err := store.New(dataDir + "/xdigest.db")
	if err != nil {
		log.WithError(err).Warn("archive unavailable, continuing without it")
		archive = nil
	}
	cleanup := func() {
		if archive != nil {
			archive.Close()
		}
	}

	a := &app.App{
		Config:       cfg,
		Log:          log,
		Status:       status.NewStore(dataDir + "/status.json"),
		Archive:      archive,
		Fetcher:      fetch.NewFetcher(os.Getenv("BIRD_ENV_PATH")),
		LLM:          llmProvider,
		Delivery:     deliveryProvider,
		Images:       images.NewFetcher(0),
		ArtifactRoot: dataDir + "/digests",
	}
	return a, cleanup, exitOK
}

// exitCode maps a pipeline error to an exit family by its structured code.
func exitCode(err error) int {
	code, ok := errs.CodeOf(err)
	if !ok {
		return exitOther
	}
	switch {
	case strings.HasPrefix(string(code), "CONFIG_"):
		return exitConfig
	case strings.HasPrefix(string(code), "FETCH_"):
		return exitFetch
	case strings.HasPrefix(string(code), "DELIVERY_"),
		strings.HasPrefix(string(code), "WHATSAPP_"),
		strings.HasPrefix(string(code), "TELEGRAM_"):
		return exitDelivery
	default:
		return exitOther
	}
}
