package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abdul-hamid-achik/flowspec/packages/core/config"
	"github.com/abdul-hamid-achik/flowspec/packages/core/engine"
	"github.com/abdul-hamid-achik/flowspec/packages/core/env"
	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
	"github.com/abdul-hamid-achik/flowspec/packages/notify"
	"github.com/abdul-hamid-achik/flowspec/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run test cases from flowspec YAML files",
	Long: `Run API test cases defined in flowspec YAML files.

Examples:
  flowspec run checkout.yaml
  flowspec run checkout.yaml --profile staging
  flowspec run ./tests/ --set region=eu-west-1 --set api_key=secret
  flowspec run ./tests/ --output junit --output-file report.xml
  flowspec run checkout.yaml --watch
  flowspec run ./tests/ --concurrency 4 --bail`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	profileFlag     string
	setFlags        []string
	configFlag      string
	verboseFlag     int // 0=off, 1=-v, 2=-vv
	quietFlag       bool
	bailFlag        bool
	noColorFlag     bool
	dryRunFlag      bool
	outputFlag      string
	outputFileFlag  string
	eventsFileFlag  string
	concurrencyFlag int
	poolCapFlag     int
	watchFlag       bool
	envFileFlag     string
)

func init() {
	runCmd.Flags().StringVarP(&profileFlag, "profile", "p", getEnvString("FLOWSPEC_PROFILE", ""), "Variable profile to activate (env: FLOWSPEC_PROFILE)")
	runCmd.Flags().StringArrayVarP(&setFlags, "set", "s", nil, "Override a variable (name=value, repeatable)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("FLOWSPEC_CONFIG", ""), "Path to config file (env: FLOWSPEC_CONFIG)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("FLOWSPEC_ENV_FILE", ".env"), "Env file to seed variables from (env: FLOWSPEC_ENV_FILE)")

	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for more detail)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("FLOWSPEC_QUIET", false), "Suppress all output except errors (env: FLOWSPEC_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("FLOWSPEC_NO_COLOR", false), "Disable colored output (env: FLOWSPEC_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("FLOWSPEC_OUTPUT", "console"), "Output format: console, json, junit, tap, html (env: FLOWSPEC_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("FLOWSPEC_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: FLOWSPEC_OUTPUT_FILE)")
	runCmd.Flags().StringVar(&eventsFileFlag, "events-file", getEnvString("FLOWSPEC_EVENTS_FILE", ""), "Append step lifecycle events as NDJSON to file (env: FLOWSPEC_EVENTS_FILE)")

	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("FLOWSPEC_BAIL", false), "Stop on first failing file (env: FLOWSPEC_BAIL)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Parse and show what would run without executing")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("FLOWSPEC_CONCURRENCY", 0), "Number of files to run in parallel (env: FLOWSPEC_CONCURRENCY)")
	runCmd.Flags().IntVar(&poolCapFlag, "pool-capacity", getEnvInt("FLOWSPEC_POOL_CAPACITY", 0), "Worker pool size for concurrent groups (env: FLOWSPEC_POOL_CAPACITY)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run tests")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func runCommand(cmd *cobra.Command, args []string) error {
	var outWriter *os.File
	var err error
	if outputFileFlag != "" {
		outWriter, err = os.Create(outputFileFlag)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer outWriter.Close()
	}

	writer := cmd.OutOrStdout()
	if outWriter != nil {
		writer = outWriter
	}

	newFormatter := func() (output.Formatter, error) {
		return output.New(strings.ToLower(outputFlag), writer, verboseFlag > 0, noColorFlag || quietFlag)
	}
	formatter, err := newFormatter()
	if err != nil {
		return err
	}
	formatter.FormatHeader(version)

	files, err := collectFiles(args)
	if err != nil {
		formatter.FormatError(err)
		return err
	}
	if len(files) == 0 {
		err := fmt.Errorf("no .yaml or .yml test files found")
		formatter.FormatError(err)
		return err
	}

	fileConfig, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	applyConfigFlags(fileConfig)

	overrides, err := parseSetFlags(setFlags)
	if err != nil {
		return err
	}
	for k, v := range fileConfig.Variables {
		if _, ok := overrides[k]; !ok {
			overrides[k] = v
		}
	}
	envVars, err := env.Seed(envFileFlag)
	if err != nil {
		return err
	}
	for k, v := range envVars {
		if _, ok := overrides[k]; !ok {
			overrides[k] = v
		}
	}

	logger := buildLogger(cmd)

	events := notify.NewManager()
	if eventsFileFlag != "" {
		f, err := os.OpenFile(eventsFileFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("cannot open events file: %w", err)
		}
		defer f.Close()
		events.Add(notify.NewWriterListener(f))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runAll := func(ctx context.Context, formatter output.Formatter) (failed int, duration time.Duration) {
		start := time.Now()

		concurrency := fileConfig.Concurrency
		if concurrency < 1 {
			concurrency = 1
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		var mu sync.Mutex
		var failedFiles int
		bail := fileConfig.GetBail()

		for _, file := range files {
			file := file

			if dryRunFlag {
				tc, err := parser.ParseFile(file)
				if err != nil {
					formatter.FormatError(err)
					failedFiles++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Would run: %s (%s, %d steps)\n", file, tc.Name, len(tc.Steps))
				continue
			}

			g.Go(func() error {
				tc, err := parser.ParseFile(file)
				if err != nil {
					mu.Lock()
					formatter.FormatError(fmt.Errorf("%s: %w", file, err))
					failedFiles++
					mu.Unlock()
					if bail {
						return err
					}
					return nil
				}

				if profileFlag != "" {
					tc.ActiveProfile = profileFlag
				} else if tc.ActiveProfile == "" {
					tc.ActiveProfile = fileConfig.DefaultProfile
				}

				opts := []engine.Option{
					engine.WithLogger(logger),
					engine.WithEvents(events),
					engine.WithOverrides(overrides),
				}
				if fileConfig.PoolCapacity > 0 {
					opts = append(opts, engine.WithPoolCapacity(fileConfig.PoolCapacity))
				}
				exec := engine.New(opts...)

				result := exec.Run(gctx, tc)

				mu.Lock()
				formatter.FormatResult(file, result)
				ok := result.Status == engine.StatusSuccess
				if !ok {
					failedFiles++
				}
				mu.Unlock()

				if !ok && bail {
					return fmt.Errorf("%s failed", file)
				}
				return nil
			})
		}

		// The only errors a worker returns are bail signals; the counts
		// already reflect them.
		_ = g.Wait()
		return failedFiles, time.Since(start)
	}

	failed, duration := runAll(ctx, formatter)
	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(duration); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}

	if !watchFlag {
		if failed > 0 {
			os.Exit(ExitTestFailure)
		}
		return nil
	}

	return watchAndRerun(ctx, cmd, files, args, func(ctx context.Context) {
		f, err := newFormatter()
		if err != nil {
			return
		}
		_, duration := runAll(ctx, f)
		if flushable, ok := f.(output.Flushable); ok {
			_ = flushable.Flush(duration)
		}
	})
}

// applyConfigFlags layers explicitly-set CLI flags over the file config.
func applyConfigFlags(cfg *config.Config) {
	if bailFlag {
		cfg.Bail = config.BoolPtr(true)
	}
	if verboseFlag > 0 {
		cfg.Verbose = config.BoolPtr(true)
	}
	if noColorFlag {
		cfg.NoColor = config.BoolPtr(true)
	}
	if concurrencyFlag > 0 {
		cfg.Concurrency = concurrencyFlag
	}
	if poolCapFlag > 0 {
		cfg.PoolCapacity = poolCapFlag
	}
}

// parseSetFlags turns --set name=value pairs into an override map.
func parseSetFlags(pairs []string) (map[string]any, error) {
	overrides := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q, expected name=value", pair)
		}
		overrides[name] = value
	}
	return overrides, nil
}

// buildLogger maps -v/-vv to zerolog levels on stderr.
func buildLogger(cmd *cobra.Command) zerolog.Logger {
	if verboseFlag == 0 || quietFlag {
		return zerolog.Nop()
	}
	level := zerolog.InfoLevel
	if verboseFlag >= 2 {
		level = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: noColorFlag}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// watchAndRerun blocks watching the test files, re-running on writes.
func watchAndRerun(ctx context.Context, cmd *cobra.Command, files, args []string, rerun func(context.Context)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to watch %s: %v\n", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	// Also watch the original args if they're directories, so new files
	// in nested dirs are picked up.
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) && isTestFile(event.Name) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running tests...\n\n", event.Name)
					rerun(ctx)
					fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: watcher error: %v\n", err)
		}
	}
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isTestFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else {
			if isTestFile(arg) {
				files = append(files, arg)
			}
		}
	}

	return files, nil
}

// isTestFile accepts YAML files but not the project config.
func isTestFile(path string) bool {
	base := filepath.Base(path)
	for _, cfg := range config.Filenames {
		if base == cfg {
			return false
		}
	}
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}
