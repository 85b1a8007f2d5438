// Package main provides the CLI entrypoint for dungeonlog.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/dungeonlog/internal/config"
	"github.com/verte-zerg/dungeonlog/internal/event"
	"github.com/verte-zerg/dungeonlog/internal/gamedata"
	"github.com/verte-zerg/dungeonlog/internal/model"
	"github.com/verte-zerg/dungeonlog/internal/server"
	"github.com/verte-zerg/dungeonlog/internal/stats"
	"github.com/verte-zerg/dungeonlog/internal/store"
	"github.com/verte-zerg/dungeonlog/internal/tracker"
	"github.com/verte-zerg/dungeonlog/internal/tui"
)

const (
	defaultBackend     = store.BackendJSON
	defaultAddr        = "127.0.0.1:8787"
	defaultTrendWindow = 10
	shutdownTimeout    = 5 * time.Second
)

var (
	trackPlayer    string
	trackRetention int
	trackModes     string
	trackGameData  string
	storageBackend string
	storagePath    string
	listenAddr     string

	serveAccessLog bool

	replaySave bool

	statsSince       string
	statsLast        int
	statsTrendWindow int

	removeYes bool
)

// settings is the resolved configuration shared by all commands.
type settings struct {
	player    string
	retention int
	filter    model.ModeFilter
	catalog   *gamedata.Catalog
	backend   string
	path      string
	addr      string
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dungeonlog",
		Short:         "Dungeon run tracker",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runLiveCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&trackPlayer, "player", "", "local player name, used to attribute deaths")
	flags.IntVar(&trackRetention, "retention", tracker.DefaultRetention, "maximum number of runs kept")
	flags.StringVar(&trackModes, "modes", "", "comma separated modes to show (default: all)")
	flags.StringVar(&trackGameData, "game-data", "", "event object overrides file (TOML)")
	flags.StringVar(&storageBackend, "backend", defaultBackend, "run history backend: json or sqlite")
	flags.StringVar(&storagePath, "db", "", "run history path (default: XDG data dir)")
	flags.StringVar(&listenAddr, "addr", defaultAddr, "event ingest listen address")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newRemoveCmd())

	return rootCmd
}

func runLiveCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so diagnostics go to a log file.
	logPath := filepath.Join(filepath.Dir(s.path), "dungeonlog.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := tea.LogToFile(logPath, "")
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		if cerr := logFile.Close(); cerr != nil {
			_ = cerr
		}
	}()
	logger := log.Default()

	repo, err := openRepo(s)
	if err != nil {
		return err
	}
	defer closeRepo(repo)

	tr := newTracker(s, logger, repo)
	sink := tui.NewSink()
	tr.Subscribe(sink)
	srv := server.New(tr, repo, server.Options{Logger: logger})
	tr.Restore(context.Background(), repo)

	go func() {
		if err := srv.Start(s.addr); err != nil {
			logger.Printf("ERROR: event ingest on %s: %v", s.addr, err)
		}
	}()

	program := tea.NewProgram(tui.NewModel(tr, sink), tea.WithAltScreen())
	_, runErr := program.Run()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logErrf("failed to stop event ingest: %v\n", err)
	}
	if err := tr.Save(ctx, repo); err != nil {
		return fmt.Errorf("failed to save runs: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	return nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the event ingest and JSON API without the TUI",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().BoolVar(&serveAccessLog, "access-log", false, "log every HTTP request")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	repo, err := openRepo(s)
	if err != nil {
		return err
	}
	defer closeRepo(repo)

	logger := log.New(os.Stderr, "", log.LstdFlags)
	tr := newTracker(s, logger, repo)
	srv := server.New(tr, repo, server.Options{Logger: logger, AccessLog: serveAccessLog})
	restored := tr.Restore(context.Background(), repo)
	logger.Printf("restored %d runs from %s", restored, s.path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(s.addr)
	}()
	logger.Printf("listening on %s", s.addr)

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("ERROR: shutdown: %v", err)
	}
	if err := tr.Save(shutdownCtx, repo); err != nil {
		return fmt.Errorf("failed to save runs: %w", err)
	}
	if serveErr != nil {
		return fmt.Errorf("server failed: %w", serveErr)
	}
	return nil
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Replay a JSONL event log and print the resulting stats",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplayCmd,
	}
	cmd.Flags().BoolVar(&replaySave, "save", false, "merge the replayed runs into the run history")
	return cmd
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				_ = cerr
			}
		}()
		in = f
	}

	tr := newTracker(s, log.New(os.Stderr, "", 0), nil)
	var repo store.Repository
	if replaySave {
		repo, err = openRepo(s)
		if err != nil {
			return err
		}
		defer closeRepo(repo)
		tr.Restore(context.Background(), repo)
	}

	reader := event.NewReader(in)
	var last time.Time
	applied, skipped := 0, 0
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if event.IsLineError(err) {
				logErrf("skipping %v\n", err)
				skipped++
				continue
			}
			return fmt.Errorf("failed to read events: %w", err)
		}
		if at := ev.Time(); at.After(last) {
			last = at
		}
		if tr.Apply(ev) {
			applied++
		}
	}
	logErrf("applied %d events, skipped %d lines\n", applied, skipped)

	now := last
	if now.IsZero() {
		now = time.Now()
	}
	report := stats.NewReport(tr.Runs(), stats.Config{Filter: s.filter, TrendWindow: defaultTrendWindow}, now)
	if err := stats.Render(cmd.OutOrStdout(), report, stats.TerminalWidth()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if repo != nil {
		if err := tr.Save(context.Background(), repo); err != nil {
			return fmt.Errorf("failed to save runs: %w", err)
		}
		logErrf("saved runs to %s\n", s.path)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats over the run history",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N runs")
	cmd.Flags().IntVar(&statsTrendWindow, "trend-window", defaultTrendWindow, "moving average window for the fame/h trend")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if statsTrendWindow <= 0 {
		return fmt.Errorf("--trend-window must be > 0")
	}

	repo, err := openRepo(s)
	if err != nil {
		return err
	}
	defer closeRepo(repo)

	cfg := stats.Config{
		Since:       sinceTime,
		Last:        statsLast,
		Filter:      s.filter,
		TrendWindow: statsTrendWindow,
	}
	report, err := stats.BuildReport(context.Background(), repo, cfg, time.Now())
	if err != nil {
		return fmt.Errorf("failed to load runs: %w", err)
	}
	if err := stats.Render(cmd.OutOrStdout(), report, stats.TerminalWidth()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <hash>...",
		Short: "Remove runs from the run history",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRemoveCmd,
	}
	cmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func runRemoveCmd(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	repo, err := openRepo(s)
	if err != nil {
		return err
	}
	defer closeRepo(repo)

	ctx := context.Background()
	runs, err := repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load runs: %w", err)
	}
	rs := tracker.NewRunStore(s.retention, s.catalog)
	rs.Load(runs)

	byHash := make(map[string]model.DungeonRun, len(runs))
	for _, run := range rs.Runs() {
		byHash[run.Hash] = run
	}
	hashes := make([]string, 0, len(args))
	out := cmd.OutOrStdout()
	for _, hash := range args {
		run, ok := byHash[hash]
		if !ok {
			logErrf("run not found: %s\n", hash)
			continue
		}
		hashes = append(hashes, hash)
		if _, err := fmt.Fprintf(out, "%s  %s  %-10s  %s fame\n",
			hash,
			run.EnterTime.Local().Format("2006-01-02 15:04"),
			run.Mode,
			stats.FormatAmount(run.Rewards.Fame),
		); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if len(hashes) == 0 {
		return fmt.Errorf("no matching runs")
	}

	if !removeYes {
		ok, err := confirm(cmd.InOrStdin(), out, fmt.Sprintf("Remove %d run(s)? [y/N] ", len(hashes)))
		if err != nil {
			return err
		}
		if !ok {
			logErrln("Aborted")
			return nil
		}
	}

	removed := rs.RemoveMany(hashes)
	if err := repo.Save(ctx, rs.Runs()); err != nil {
		return fmt.Errorf("failed to save runs: %w", err)
	}
	logErrf("Removed %d run(s)\n", removed)
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	if _, err := fmt.Fprint(out, prompt); err != nil {
		return false, fmt.Errorf("failed to write output: %w", err)
	}
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// loadSettings resolves flags over environment over config file.
func loadSettings(cmd *cobra.Command) (settings, error) {
	fileCfg, err := config.Load(config.DefaultConfigPath())
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "player", &trackPlayer, fileCfg.Tracker.Player)
	applyIntConfig(cmd, "retention", &trackRetention, fileCfg.Tracker.Retention)
	applyStringConfig(cmd, "modes", &trackModes, fileCfg.Tracker.Modes)
	applyStringConfig(cmd, "game-data", &trackGameData, fileCfg.Tracker.GameData)
	applyStringConfig(cmd, "backend", &storageBackend, fileCfg.Storage.Backend)
	applyStringConfig(cmd, "db", &storagePath, fileCfg.Storage.Path)
	applyStringConfig(cmd, "addr", &listenAddr, fileCfg.Server.Addr)

	s := settings{
		player:    strings.TrimSpace(trackPlayer),
		retention: trackRetention,
		backend:   strings.ToLower(strings.TrimSpace(storageBackend)),
		path:      storagePath,
		addr:      strings.TrimSpace(listenAddr),
	}
	if err := validateSettings(s); err != nil {
		return settings{}, err
	}
	filter, err := model.ParseModes(trackModes)
	if err != nil {
		return settings{}, fmt.Errorf("invalid --modes value: %w", err)
	}
	s.filter = filter
	if s.path == "" {
		s.path = config.DefaultRunsPath(s.backend)
	}

	gameDataPath := trackGameData
	if gameDataPath == "" {
		gameDataPath = config.DefaultGameDataPath()
	}
	catalog, err := gamedata.Load(gameDataPath)
	if err != nil {
		return settings{}, err
	}
	s.catalog = catalog
	return s, nil
}

func validateSettings(s settings) error {
	if s.retention <= 0 {
		return fmt.Errorf("--retention must be > 0")
	}
	switch s.backend {
	case store.BackendJSON, store.BackendSQLite:
	default:
		return fmt.Errorf("--backend must be %q or %q", store.BackendJSON, store.BackendSQLite)
	}
	if s.addr == "" {
		return fmt.Errorf("--addr must not be empty")
	}
	return nil
}

// newTracker builds a tracker from settings. repo may be nil; when set,
// removals are saved to it right away.
func newTracker(s settings, logger *log.Logger, repo store.Repository) *tracker.Tracker {
	return tracker.New(tracker.Options{
		Player:    s.player,
		Retention: s.retention,
		Catalog:   s.catalog,
		Filter:    s.filter,
		Logger:    logger,
		Repo:      repo,
	})
}

func openRepo(s settings) (store.Repository, error) {
	repo, err := store.Open(s.backend, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return repo, nil
}

func closeRepo(repo store.Repository) {
	if cerr := repo.Close(); cerr != nil {
		logErrf("failed to close run history: %v\n", cerr)
	}
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# dungeonlog configuration
# Uncomment a value to enable it. CLI flags override environment
# variables (DUNGEONLOG_*), which override config values.

[tracker]
# player = ""             # Local player name, used to attribute deaths
# retention = %d        # Maximum number of runs kept
# modes = ""              # Comma separated modes to show (default: all)
# game-data = %q

[storage]
# backend = %q        # json or sqlite
# path = ""               # Run history path (default: XDG data dir)

[server]
# addr = %q
`,
		tracker.DefaultRetention,
		config.DefaultGameDataPath(),
		defaultBackend,
		defaultAddr,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
