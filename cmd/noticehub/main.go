package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/servaltullius/aion2-hub-sub001/internal/board"
	"github.com/servaltullius/aion2-hub-sub001/internal/config"
	"github.com/servaltullius/aion2-hub-sub001/internal/debuglog"
	"github.com/servaltullius/aion2-hub-sub001/internal/scheduler"
	"github.com/servaltullius/aion2-hub-sub001/internal/server"
	"github.com/servaltullius/aion2-hub-sub001/internal/storage"
	syncrun "github.com/servaltullius/aion2-hub-sub001/internal/sync"
	"github.com/servaltullius/aion2-hub-sub001/internal/tui"
	"github.com/servaltullius/aion2-hub-sub001/internal/validation"
)

// Version is set at build time
var Version = "dev"

var (
	flagConfig     string
	flagDB         string
	flagAllowLocal bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "noticehub",
		Short:   "Track a game's notice boards and diff article changes",
		Version: Version,
		RunE:    runTUI,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "Path to database file (overrides config)")
	root.PersistentFlags().BoolVar(&flagAllowLocal, "allow-local-board", false, "Permit a localhost board base URL (development)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// setup loads config, configures logging and opens the store.
func setup() (*config.Config, *storage.Store, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if flagDB != "" {
		cfg.Database.Path = flagDB
	}

	urlValidator := validation.NewBoardURLValidator()
	if flagAllowLocal {
		urlValidator = validation.NewPermissiveBoardURLValidator()
	}
	baseURL, err := urlValidator.ValidateAndNormalize(cfg.Board.BaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid board base URL: %w", err)
	}
	cfg.Board.BaseURL = baseURL

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}

	if err := debuglog.Setup(debuglog.ParseLogLevel(cfg.Log.Level), cfg.Log.Path); err != nil {
		return nil, nil, fmt.Errorf("setting up logging: %w", err)
	}

	store, err := storage.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	return cfg, store, nil
}

func buildRunFunc(cfg *config.Config, store *storage.Store) scheduler.RunFunc {
	client := board.NewClient(cfg.Board.BaseURL, cfg.Board.HTTPTimeout, cfg.Board.UserAgent)
	orch := syncrun.NewOrchestrator(store, client)

	sources := make([]board.Source, 0, len(cfg.Board.Sources))
	for _, s := range cfg.Board.Sources {
		sources = append(sources, board.Source(s))
	}

	opts := syncrun.Options{
		MaxPages:      cfg.Sync.MaxPages,
		PageSize:      cfg.Sync.PageSize,
		IncludePinned: cfg.Sync.IncludePinned,
	}

	return func(ctx context.Context, reason string) (syncrun.Totals, error) {
		return orch.Sync(ctx, sources, opts)
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, store, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()
	defer debuglog.Close()

	sched, err := scheduler.New(buildRunFunc(cfg, store), cfg.Sync.Interval)
	if err != nil {
		return err
	}
	defer sched.Stop()

	app := tui.NewApp(store, sched, cfg)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the read-side HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := setup()
			if err != nil {
				return err
			}
			defer store.Close()
			defer debuglog.Close()

			sched, err := scheduler.New(buildRunFunc(cfg, store), cfg.Sync.Interval)
			if err != nil {
				return err
			}
			defer sched.Stop()

			srv := &http.Server{
				Addr:              cfg.Server.ListenAddr,
				Handler:           server.New(store, sched).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				fmt.Printf("noticehub listening on %s\n", cfg.Server.ListenAddr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass and print the totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := setup()
			if err != nil {
				return err
			}
			defer store.Close()
			defer debuglog.Close()

			run := buildRunFunc(cfg, store)
			totals, err := run(cmd.Context(), scheduler.ReasonManual)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(totals, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := output
			if path == "" {
				home, _ := os.UserHomeDir()
				path = filepath.Join(home, ".config", "noticehub", "config.toml")
			}
			if err := config.GenerateDefaultConfig(path); err != nil {
				return fmt.Errorf("generating config: %w", err)
			}
			fmt.Printf("Generated default configuration at: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the config file")
	return cmd
}
