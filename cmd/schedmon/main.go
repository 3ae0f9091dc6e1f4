// Package main is the CLI entry point for schedmon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/schedmon/internal/config"
	"github.com/eliteGoblin/focusd/schedmon/internal/daemon"
	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
	"github.com/eliteGoblin/focusd/schedmon/internal/infra"
	"github.com/eliteGoblin/focusd/schedmon/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "schedmon",
	Short: "Schedule-driven blocking activation engine",
	Long: `schedmon decides which blocking profile should be enforced right now,
given a set of recurring schedules bound to modes. It persists the active
schedule in a store shared with the platform's window-monitor process, so
any trigger source can re-derive the same decision from scratch.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the activation driver daemon",
	Long: `Starts the activation driver loop. The driver reconciles on startup, on
each opportunistic background wake, and on the in-process imminent timer
for schedule starts the coarse wake would miss.`,
	RunE: runRun,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation cycle now",
	Long:  `Evaluates all schedules against the current time and applies the decision.`,
	RunE:  runReconcile,
}

var endCmd = &cobra.Command{
	Use:   "end",
	Short: "End the active schedule session early",
	Long: `Ends the currently active schedule for the rest of the day. An
overlapping, still-in-window schedule takes over immediately.`,
	RunE: runEnd,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is currently enforced",
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured schedules",
	RunE:  runList,
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a schedule and its mode",
	Long: `Registers a recurring window bound to a mode. Times are HH:MM wall
clock; an end at or before the start crosses midnight. Days are
comma-separated weekday names (mon,tue,...).`,
	RunE: runAdd,
}

var removeCmd = &cobra.Command{
	Use:   "remove <schedule-id>",
	Short: "Unregister a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var enableCmd = &cobra.Command{
	Use:   "enable <schedule-id>",
	Short: "Enable a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runToggle(args[0], true) },
}

var disableCmd = &cobra.Command{
	Use:   "disable <schedule-id>",
	Short: "Disable a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runToggle(args[0], false) },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

// Hidden monitor command - the platform invokes this in a sandboxed process
// on window boundaries. It cannot call into the daemon; it works off the
// shared store alone.
var monitorCmd = &cobra.Command{
	Use:    "monitor",
	Hidden: true,
	RunE:   runMonitor,
}

var (
	jsonOutput bool

	addID        string
	addModeName  string
	addStart     string
	addEnd       string
	addDays      string
	addProcesses string
	addManualEnd bool
	addDisabled  bool

	monitorSchedule string
	monitorEvent    string
)

func init() {
	addCmd.Flags().StringVar(&addID, "id", "", "Schedule id (generated if empty)")
	addCmd.Flags().StringVar(&addModeName, "mode", "", "Mode name (required)")
	addCmd.Flags().StringVar(&addStart, "start", "", "Window start, HH:MM (required)")
	addCmd.Flags().StringVar(&addEnd, "end", "", "Window end, HH:MM (required)")
	addCmd.Flags().StringVar(&addDays, "days", "", "Repeat days, e.g. mon,tue,wed (required)")
	addCmd.Flags().StringVar(&addProcesses, "processes", "", "Process patterns to block, comma-separated")
	addCmd.Flags().BoolVar(&addManualEnd, "manual-end-only", false, "Window persists until explicitly ended")
	addCmd.Flags().BoolVar(&addDisabled, "disabled", false, "Register the schedule disabled")

	monitorCmd.Flags().StringVar(&monitorSchedule, "schedule", "", "Schedule id")
	monitorCmd.Flags().StringVar(&monitorEvent, "event", "", "Boundary event (start/end)")

	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(endCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(versionCmd)
}

// components wires the engine for one process. The shared encrypted store is
// preferred; if it cannot be opened the engine degrades to a process-local
// store so blocking still works for this process.
type components struct {
	cfg       *config.Config
	store     domain.StateStore
	engine    *usecase.Engine
	registrar *usecase.Registrar
	shield    *infra.ProcessShield
	logger    *zap.Logger
	degraded  bool
}

func buildComponents(logger *zap.Logger) (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var store domain.StateStore
	degraded := false

	keyProvider := infra.NewFileKeyProvider(cfg.DataDir)
	key, err := infra.EnsureKey(keyProvider)
	if err == nil {
		var shared *infra.SharedStore
		shared, err = infra.NewSharedStore(cfg.DataDir, key)
		if err == nil {
			store = shared
		}
	}
	if store == nil {
		logger.Warn("shared store unavailable, using process-local store",
			zap.Error(err))
		store = infra.NewMemoryStore()
		degraded = true
	}

	pm := infra.NewProcessManager()
	shield := infra.NewProcessShield(pm, logger)
	resolver := infra.NewStoreModeResolver(store)
	gate := infra.NewFileOverrideGate(cfg.DataDir)
	engine := usecase.NewEngine(store, resolver, shield, gate, logger)

	monitor := infra.NewFileWindowMonitor(cfg.DataDir)
	notifier := infra.NewLogNotifier(logger)
	registrar := usecase.NewRegistrar(store, monitor, notifier, logger)

	return &components{
		cfg:       cfg,
		store:     store,
		engine:    engine,
		registrar: registrar,
		shield:    shield,
		logger:    logger,
		degraded:  degraded,
	}, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := createLogger()
	defer func() { _ = logger.Sync() }()

	c, err := buildComponents(logger)
	if err != nil {
		return err
	}
	defer c.store.Close()

	driver := daemon.NewDriver(c.engine, c.store, daemon.DriverConfig{
		ImminentLookahead:  c.cfg.Driver.ImminentLookahead,
		DefaultWakeHorizon: c.cfg.Driver.DefaultWakeHorizon,
		MaxWakeHorizon:     c.cfg.Driver.MaxWakeHorizon,
	}, logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	return driver.Run(ctx)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	c, err := buildComponents(logger)
	if err != nil {
		return err
	}
	defer c.store.Close()

	decision, err := c.engine.Reconcile(time.Now())
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	switch decision.Kind {
	case domain.DecisionActivate:
		fmt.Printf("Activated schedule %s (mode %s)\n", decision.Schedule.ID, decision.Mode.Name)
	case domain.DecisionKeep:
		fmt.Printf("Kept schedule %s active\n", decision.Schedule.ID)
	case domain.DecisionClear:
		fmt.Println("No schedule active")
	}
	return nil
}

func runEnd(cmd *cobra.Command, args []string) error {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	c, err := buildComponents(logger)
	if err != nil {
		return err
	}
	defer c.store.Close()

	activeID, err := c.store.ActiveScheduleID()
	if err != nil {
		return err
	}
	if activeID == "" {
		fmt.Println("No schedule is active.")
		return nil
	}

	if err := c.engine.EndActiveSchedule(time.Now()); err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	fmt.Printf("Ended schedule %s for today.\n", activeID)
	if newActive, _ := c.store.ActiveScheduleID(); newActive != "" {
		fmt.Printf("Schedule %s took over.\n", newActive)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	c, err := buildComponents(logger)
	if err != nil {
		return err
	}
	defer c.store.Close()

	fmt.Println("\n=== schedmon Status ===")
	if c.degraded {
		fmt.Println("Store: DEGRADED (process-local only)")
	} else {
		fmt.Println("Store: shared")
	}

	activeID, err := c.store.ActiveScheduleID()
	if err != nil {
		return err
	}
	if activeID == "" {
		fmt.Println("Active: none")
	} else {
		fmt.Printf("Active: %s\n", activeID)
		if sched, _ := c.store.GetSchedule(activeID); sched != nil {
			if mode, _ := c.store.GetMode(sched.ModeID); mode != nil {
				fmt.Printf("Mode:   %s\n", mode.Name)
			}
		}
	}

	gate := infra.NewFileOverrideGate(c.cfg.DataDir)
	if gate.IsManualSessionActive() {
		fmt.Println("Manual session: ACTIVE (schedules suppressed)")
	}

	fmt.Println("=======================")
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	c, err := buildComponents(logger)
	if err != nil {
		return err
	}
	defer c.store.Close()

	schedules, err := c.store.ListSchedules()
	if err != nil {
		return err
	}
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].ID < schedules[j].ID })

	fmt.Println("\n=== Schedules ===")
	for _, s := range schedules {
		state := "enabled"
		if !s.Enabled {
			state = "disabled"
		}
		suffix := ""
		if s.ManualEndOnly {
			suffix = ", manual end only"
		}
		fmt.Printf("\n[%s] %s-%s on %s (%s%s)\n",
			s.ID, clockString(s.StartMinute), clockString(s.EndMinute),
			daysString(s.RepeatDays), state, suffix)
		if mode, _ := c.store.GetMode(s.ModeID); mode != nil {
			fmt.Printf("  mode: %s\n", mode.Name)
		} else {
			fmt.Printf("  mode: %s (MISSING)\n", s.ModeID)
		}
	}
	fmt.Println("\n=================")
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	if addModeName == "" || addStart == "" || addEnd == "" || addDays == "" {
		return fmt.Errorf("--mode, --start, --end and --days are required")
	}

	startMin, err := parseClock(addStart)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	endMin, err := parseClock(addEnd)
	if err != nil {
		return fmt.Errorf("invalid --end: %w", err)
	}
	if startMin == endMin {
		return fmt.Errorf("start and end are equal: the window would never activate")
	}
	days, err := parseDays(addDays)
	if err != nil {
		return fmt.Errorf("invalid --days: %w", err)
	}

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	c, err := buildComponents(logger)
	if err != nil {
		return err
	}
	defer c.store.Close()

	id := addID
	if id == "" {
		id = uuid.NewString()
	}

	mode := domain.Mode{
		ID:   "mode-" + id,
		Name: addModeName,
		Selection: domain.ResourceSelection{
			ProcessPatterns: splitAndTrim(addProcesses),
		},
	}
	sched := domain.Schedule{
		ID:            id,
		ModeID:        mode.ID,
		StartMinute:   startMin,
		EndMinute:     endMin,
		RepeatDays:    days,
		Enabled:       !addDisabled,
		ManualEndOnly: addManualEnd,
	}

	if err := c.registrar.RegisterSchedule(sched, mode); err != nil {
		return err
	}
	fmt.Printf("Registered schedule %s (%s-%s on %s).\n",
		id, clockString(startMin), clockString(endMin), daysString(days))

	// Schedule changes are a foreground trigger.
	if _, err := c.engine.Reconcile(time.Now()); err != nil {
		logger.Warn("post-registration reconcile failed", zap.Error(err))
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	c, err := buildComponents(logger)
	if err != nil {
		return err
	}
	defer c.store.Close()

	if err := c.registrar.UnregisterSchedule(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed schedule %s.\n", args[0])

	if _, err := c.engine.Reconcile(time.Now()); err != nil {
		logger.Warn("post-removal reconcile failed", zap.Error(err))
	}
	return nil
}

func runToggle(scheduleID string, enabled bool) error {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	c, err := buildComponents(logger)
	if err != nil {
		return err
	}
	defer c.store.Close()

	if err := c.registrar.SetEnabled(scheduleID, enabled); err != nil {
		return err
	}
	if enabled {
		fmt.Printf("Enabled schedule %s.\n", scheduleID)
	} else {
		fmt.Printf("Disabled schedule %s.\n", scheduleID)
	}

	if _, err := c.engine.Reconcile(time.Now()); err != nil {
		logger.Warn("post-toggle reconcile failed", zap.Error(err))
	}
	return nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorSchedule == "" || monitorEvent == "" {
		return fmt.Errorf("--schedule and --event are required")
	}

	logger := createLogger()
	defer func() { _ = logger.Sync() }()

	c, err := buildComponents(logger)
	if err != nil {
		return err
	}
	defer c.store.Close()

	gate := infra.NewFileOverrideGate(c.cfg.DataDir)
	runner := daemon.NewMonitorRunner(c.store, c.shield, gate, logger)
	return runner.RunOnce(monitorSchedule, daemon.MonitorEvent(monitorEvent), time.Now())
}

func createLogger() *zap.Logger {
	cfg, err := config.Load()
	zapConfig := zap.NewProductionConfig()
	if err == nil {
		zapConfig.OutputPaths = []string{cfg.Log.Path}
		zapConfig.ErrorOutputPaths = []string{cfg.Log.ErrorPath}
	}
	zapConfig.EncoderConfig.TimeKey = "time"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapConfig.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("schedmon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return h*60 + m, nil
}

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

func parseDays(s string) ([]time.Weekday, error) {
	var out []time.Weekday
	seen := make(map[time.Weekday]bool)
	for _, part := range splitAndTrim(s) {
		d, ok := dayNames[strings.ToLower(part)[:min(3, len(part))]]
		if !ok {
			return nil, fmt.Errorf("unknown day %q", part)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no days given")
	}
	return out, nil
}

func clockString(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func daysString(days []time.Weekday) string {
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, d.String()[:3])
	}
	return strings.Join(names, ",")
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
