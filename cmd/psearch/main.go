// Package main is the psearch CLI entry point.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/psearch-dev/psearch/internal/cli"
	"github.com/psearch-dev/psearch/internal/config"
	"github.com/psearch-dev/psearch/internal/embedding"
	"github.com/psearch-dev/psearch/internal/indexer"
	"github.com/psearch-dev/psearch/internal/scanner"
	"github.com/psearch-dev/psearch/internal/search"
	"github.com/psearch-dev/psearch/internal/vector"
	"github.com/psearch-dev/psearch/internal/watcher"
	"github.com/psearch-dev/psearch/pkg/utils"
)

var version = "dev"

// loadConfig resolves the effective configuration. An explicit path must
// load; otherwise config.yaml in the current directory is tried (for working
// inside a notes project), then ~/.config/psearch/config.yaml, then built-in
// defaults. Returns the config and the path it came from ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	if cwd, err := os.Getwd(); err == nil {
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, loadErr := config.Load(fallback)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, fallback, nil
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		fallback := filepath.Join(home, ".config", "psearch", "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, loadErr := config.Load(fallback)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, fallback, nil
		}
	}
	return config.Default(), "", nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch command := os.Args[1]; command {
	case "index":
		runIndex()
	case "search":
		runSearch()
	case "interactive":
		runInteractive()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "clear":
		runClear()
	case "version", "--version", "-v":
		fmt.Printf("psearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// components holds the initialized services behind every subcommand.
type components struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    vector.Store
	Embedder embedding.Embedder
	Manager  *indexer.Manager
	Engine   *search.Engine
}

func (c *components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

func initComponents(configPath string, debugFlag bool) (*components, error) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	debug := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolvedPath),
		zap.String("notes_dir", cfg.Notes.Directory),
		zap.String("database", cfg.Index.DatabasePath))

	store, err := vector.NewSQLiteStore(cfg.Index.DatabasePath, cfg.Embedding.Dimensions)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open index: %w", err)
	}
	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		_ = store.Close()
		_ = logger.Sync()
		return nil, err
	}
	sc, err := scanner.New(cfg.Notes.Directory, cfg.Notes.Extensions, scanner.WithLogger(logger))
	if err != nil {
		_ = embedder.Close()
		_ = store.Close()
		_ = logger.Sync()
		return nil, fmt.Errorf("notes directory: %w", err)
	}

	return &components{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Embedder: embedder,
		Manager:  indexer.NewManager(sc, embedder, store, &cfg.Index, indexer.WithLogger(logger)),
		Engine:   search.NewEngine(embedder, store, search.WithLogger(logger)),
	}, nil
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	force := fs.Bool("force", false, "re-index every file regardless of stored state")
	_ = fs.Parse(os.Args[2:])

	comp, err := initComponents(*configPath, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comp.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	sum, err := comp.Manager.Refresh(ctx, *force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}
	cli.WriteRefreshSummary(os.Stdout, sum)
	fmt.Printf("done in %s\n", time.Since(started).Round(time.Millisecond))
	if sum.Errors > 0 {
		os.Exit(2)
	}
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	limit := fs.Int("k", 0, "number of results (default from config)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: psearch search [flags] <query>\n\n")
		fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])

	query := buildQuery(fs.Args())
	if query == "" {
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	comp, err := initComponents(*configPath, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comp.Close()

	k := *limit
	if k <= 0 {
		k = comp.Config.Search.TopK
	}
	results, err := comp.Engine.Search(context.Background(), query, k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, query, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runInteractive() {
	fs := flag.NewFlagSet("interactive", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	comp, err := initComponents(*configPath, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comp.Close()

	ctx := context.Background()
	fmt.Println("psearch interactive mode. Type a query, or \"exit\" to quit.")
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("psearch> ")
		if !in.Scan() {
			fmt.Println()
			return
		}
		query := strings.TrimSpace(in.Text())
		switch query {
		case "":
			continue
		case "exit", "quit", ":q":
			return
		}
		results, err := comp.Engine.Search(ctx, query, comp.Config.Search.TopK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			continue
		}
		_ = cli.WriteSearchResults(os.Stdout, query, results, cli.OutputText)
	}
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	comp, err := initComponents(*configPath, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comp.Close()
	logger := comp.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Catch up before watching so edits made while psearch was not
	// running are picked up too.
	sum, err := comp.Manager.Refresh(ctx, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Initial indexing failed: %v\n", err)
		os.Exit(1)
	}
	cli.WriteRefreshSummary(os.Stdout, sum)

	opts := []watcher.Option{watcher.WithLogger(logger)}
	if ms := comp.Config.Watch.DebounceMs; ms > 0 {
		opts = append(opts, watcher.WithDebounce(time.Duration(ms)*time.Millisecond))
	}
	w := watcher.New(
		comp.Config.Notes.Directory,
		func(path string) {
			if err := comp.Manager.RefreshFile(ctx, path); err != nil {
				logger.Warn("watch index failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := comp.Manager.RemoveFile(ctx, path); err != nil {
				logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
			}
		},
		opts...,
	)
	if err := w.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start watcher: %v\n", err)
		os.Exit(1)
	}
	defer w.Stop()

	fmt.Printf("watching %s (ctrl-c to stop)\n", comp.Config.Notes.Directory)
	<-ctx.Done()
	fmt.Println("\nstopping")
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	comp, err := initComponents(*configPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comp.Close()

	st, err := comp.Manager.Status(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if format == cli.OutputText {
		cfg := comp.Config
		fmt.Println()
		fmt.Println("# configuration")
		fmt.Printf("notes_dir:      %s\n", cfg.Notes.Directory)
		fmt.Printf("database_path:  %s\n", cfg.Index.DatabasePath)
		fmt.Printf("chunk_size:     %d\n", cfg.Index.ChunkSize)
		fmt.Printf("chunk_overlap:  %d\n", cfg.Index.ChunkOverlap)
		fmt.Printf("provider:       %s (%s, %d dims)\n", cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	_ = fs.Parse(os.Args[2:])

	comp, err := initComponents(*configPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comp.Close()

	if !*yes {
		fmt.Print("This deletes the whole index. Continue? [y/N] ")
		in := bufio.NewScanner(os.Stdin)
		if !in.Scan() || strings.ToLower(strings.TrimSpace(in.Text())) != "y" {
			fmt.Println("aborted")
			return
		}
	}
	if err := comp.Manager.Clear(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("index cleared")
}

func printUsage() {
	fmt.Println(`psearch - local semantic search over your notes

Usage:
  psearch index [flags]           Bring the index up to date
  psearch search [flags] <query>  Search indexed notes
  psearch interactive [flags]     Interactive query prompt
  psearch watch [flags]           Index continuously as files change
  psearch status [flags]          Show index contents
  psearch clear [flags]           Delete the index
  psearch version                 Show version
  psearch help                    Show this help

Common Flags:
  --config string    Config file path (default: ./config.yaml, then ~/.config/psearch/config.yaml)
  --debug            Enable debug logging

Index Flags:
  --force            Re-index every file regardless of stored state

Search Flags:
  --k int            Number of results (default from config)
  --output string    Output format: text, compact, or json (default: text)

Status Flags:
  --output string    Output format: text or json (default: text)

Clear Flags:
  --yes              Skip the confirmation prompt

Examples:
  psearch index
  psearch search python asyncio
  psearch search --output json "docker volumes"
  psearch watch
  psearch status --output json`)
}
