package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/anggasct/signalcycle"
	"github.com/anggasct/signalcycle/pkg/config"
	"github.com/anggasct/signalcycle/pkg/dashboard"
	"github.com/anggasct/signalcycle/pkg/observers"
	"github.com/anggasct/signalcycle/pkg/remote"
	"github.com/anggasct/signalcycle/pkg/render"
	"github.com/anggasct/signalcycle/pkg/server"
	"github.com/anggasct/signalcycle/visualization"
)

var (
	configFile string
	apiURL     string
	logLevel   string
	offline    bool
	noColor    bool
	totalTime  int
	htmlOutput string
	listenAddr string
	autoStart  bool
	runFor     time.Duration
	graphOut   string
	dryRun     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "signalboard",
		Short: "Traffic signal cycle simulator",
		Long: `signalboard runs a four-signal red/green/yellow cycle whose green times
follow the vehicle counts reported by the vehicle-counting backend.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultFile, "YAML config file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Run without a backend")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")

	addRunCmd(rootCmd)
	addServeCmd(rootCmd)
	addListCmd(rootCmd)
	addUploadCmd(rootCmd)
	addTimingsCmd(rootCmd)
	addGraphCmd(rootCmd)
	addInitCmd(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the command line overrides
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	explicit := cmd.Flags().Changed("config")
	cfg, err := config.Load(configFile, !explicit)
	if err != nil {
		return cfg, err
	}

	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if offline {
		cfg.APIURL = ""
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("total-time") {
		cfg.TotalTime = totalTime
	}
	if cmd.Flags().Changed("html") {
		cfg.HTMLOutput = htmlOutput
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen = listenAddr
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) zerolog.Logger {
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen, NoColor: noColor}
	return zerolog.New(writer).Level(cfg.Level()).With().Timestamp().Logger()
}

func newClient(cfg config.Config) *remote.Client {
	if cfg.Offline() {
		return nil
	}
	return remote.New(cfg.APIURL, cfg.RemoteOptions()...)
}

// app is the wired board used by run and serve
type app struct {
	cfg        config.Config
	logger     zerolog.Logger
	store      *signalcycle.Store
	scheduler  *signalcycle.Scheduler
	controller *dashboard.Controller
	metrics    *observers.MetricsObserver
	checker    *observers.ValidationObserver
}

func newApp(cmd *cobra.Command, terminal bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	store := signalcycle.NewRosterStore()
	scheduler := signalcycle.NewScheduler(store, signalcycle.WithTotalTime(cfg.TotalTime))
	metrics := observers.NewMetricsObserver()
	checker := observers.NewTableValidationObserver(scheduler.Transitions())
	scheduler.AddObserver(observers.NewLoggingObserver(logger, "scheduler"))
	scheduler.AddObserver(metrics)
	scheduler.AddObserver(checker)

	var views render.Multi
	if terminal {
		views = append(views, render.NewTerminalView(cmd.OutOrStdout(), noColor))
	}
	if cfg.HTMLOutput != "" {
		views = append(views, render.NewHTMLView(cfg.HTMLOutput, 1))
	}

	opts := []dashboard.Option{
		dashboard.WithView(views),
		dashboard.WithLogger(logger.With().Str("component", "dashboard").Logger()),
	}
	if client := newClient(cfg); client != nil {
		opts = append(opts, dashboard.WithRemote(client))
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		scheduler:  scheduler,
		controller: dashboard.New(store, scheduler, opts...),
		metrics:    metrics,
		checker:    checker,
	}, nil
}

// prepare loads the backend's signals and the initial timings. Failures are shown on the board.
func (a *app) prepare(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()
	if err := a.controller.LoadSignals(reqCtx); err != nil {
		return
	}
	_ = a.controller.UpdateTimings(reqCtx)
}

func (a *app) summary(cmd *cobra.Command) {
	turns := a.metrics.GetTurnCounts()
	for _, id := range a.store.IDs() {
		if n := turns[id]; n > 0 {
			cmd.Printf("signal %d: %d turn(s), %s green\n", id, n, a.metrics.GetGreenTime()[id])
		}
	}
	for _, violation := range a.checker.GetViolations() {
		a.logger.Warn().Str("violation", violation).Msg("cycle check failed")
	}
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func addRunCmd(rootCmd *cobra.Command) {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the signal cycle in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := newApp(cmd, true)
			if err != nil {
				return err
			}
			a.prepare(ctx)

			if err := a.controller.Start(); err != nil {
				return fmt.Errorf("failed to start cycle: %w", err)
			}

			if runFor > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, runFor)
				defer cancel()
			}
			<-ctx.Done()

			if err := a.controller.Stop(); err != nil {
				return err
			}
			a.summary(cmd)
			return nil
		},
	}

	runCmd.Flags().IntVarP(&totalTime, "total-time", "t", signalcycle.DefaultTotalTime, "Cycle budget in seconds")
	runCmd.Flags().StringVar(&htmlOutput, "html", "", "Also write the board to this HTML file")
	runCmd.Flags().DurationVar(&runFor, "for", 0, "Stop after this long (0 runs until interrupted)")

	rootCmd.AddCommand(runCmd)
}

func addServeCmd(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board and its controls over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := newApp(cmd, false)
			if err != nil {
				return err
			}
			a.prepare(ctx)

			if autoStart {
				if err := a.controller.Start(); err != nil {
					return fmt.Errorf("failed to start cycle: %w", err)
				}
			}

			srv := server.New(a.controller, a.logger.With().Str("component", "server").Logger(), a.cfg.RequestTimeout)
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe(a.cfg.Listen)
			}()
			cmd.Printf("Board available at http://localhost%s/\n", a.cfg.Listen)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			_ = a.controller.Stop()
			return srv.Shutdown()
		},
	}

	serveCmd.Flags().IntVarP(&totalTime, "total-time", "t", signalcycle.DefaultTotalTime, "Cycle budget in seconds")
	serveCmd.Flags().StringVar(&htmlOutput, "html", "", "Also write the board to this HTML file")
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", ":8080", "Listen address")
	serveCmd.Flags().BoolVar(&autoStart, "start", false, "Start the cycle immediately")

	rootCmd.AddCommand(serveCmd)
}

func addListCmd(rootCmd *cobra.Command) {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the signals known to the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			client := newClient(cfg)
			if client == nil {
				return fmt.Errorf("list needs a backend; set api_url or drop --offline")
			}

			updates, err := client.FetchSignals(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", dashboard.MsgFetchFailed, err)
			}

			store := signalcycle.NewRosterStore()
			store.UpdateMany(updates)

			bold := color.New(color.Bold)
			if noColor {
				bold.DisableColor()
			}
			bold.Fprintln(cmd.OutOrStdout(), "Signals:")
			for _, sig := range store.Snapshot() {
				line := fmt.Sprintf("  %d  %-13s vehicles %3d  timing %3ds", sig.ID, sig.Name, sig.VehicleCount, sig.Timing)
				if sig.AmbulanceDetected {
					line += "  ambulance"
				}
				cmd.Println(line)
			}
			return nil
		},
	}

	rootCmd.AddCommand(listCmd)
}

func addUploadCmd(rootCmd *cobra.Command) {
	uploadCmd := &cobra.Command{
		Use:   "upload <signal-id> <image>",
		Short: "Upload a camera image for one signal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int
			if _, err := fmt.Sscan(args[0], &id); err != nil {
				return signalcycle.NewValidationError("signal id", args[0], "must be a number")
			}
			if id < 1 || id > len(signalcycle.Roster) {
				return signalcycle.NewNotFoundError(id)
			}

			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			client := newClient(cfg)
			if client == nil {
				return fmt.Errorf("upload needs a backend; set api_url or drop --offline")
			}

			result, err := client.UploadImage(cmd.Context(), id, filepath.Base(args[1]), data)
			if err != nil {
				return fmt.Errorf("%s: %w", dashboard.MsgUploadFailed, err)
			}

			cmd.Printf("signal %d: %d vehicle(s)\n", id, result.VehicleCount)
			if result.AmbulanceDetected {
				cmd.Println("ambulance detected")
			}
			if result.ImageURL != "" {
				cmd.Printf("image: %s\n", result.ImageURL)
			}
			return nil
		},
	}

	rootCmd.AddCommand(uploadCmd)
}

func addTimingsCmd(rootCmd *cobra.Command) {
	timingsCmd := &cobra.Command{
		Use:   "timings",
		Short: "Compute green times from the current vehicle counts and push them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			store := signalcycle.NewRosterStore()
			scheduler := signalcycle.NewScheduler(store, signalcycle.WithTotalTime(cfg.TotalTime))
			opts := []dashboard.Option{dashboard.WithLogger(logger)}
			if client := newClient(cfg); client != nil && !dryRun {
				opts = append(opts, dashboard.WithRemote(client))
			}
			controller := dashboard.New(store, scheduler, opts...)

			if client := newClient(cfg); client != nil {
				updates, err := client.FetchSignals(cmd.Context())
				if err != nil {
					return fmt.Errorf("%s: %w", dashboard.MsgFetchFailed, err)
				}
				store.UpdateMany(updates)
			}

			if err := controller.UpdateTimings(cmd.Context()); err != nil {
				return fmt.Errorf("%s: %w", dashboard.MsgTimingsFailed, err)
			}

			for _, sig := range store.Snapshot() {
				cmd.Printf("%-13s %3ds\n", sig.Name, sig.Timing)
			}
			if controller.AmbulancePriority() {
				cmd.Println("ambulance priority active")
			}
			return nil
		},
	}

	timingsCmd.Flags().IntVarP(&totalTime, "total-time", "t", signalcycle.DefaultTotalTime, "Cycle budget in seconds")
	timingsCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute locally without pushing")

	rootCmd.AddCommand(timingsCmd)
}

func addGraphCmd(rootCmd *cobra.Command) {
	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the cycle state machine as Graphviz DOT",
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduler := signalcycle.NewScheduler(signalcycle.NewRosterStore())
			generator := visualization.NewDOTGenerator(scheduler.Transitions())

			if graphOut != "" {
				if err := generator.GenerateToFile(graphOut); err != nil {
					return err
				}
				cmd.Printf("DOT graph saved to %s\n", graphOut)
				return nil
			}

			content, err := generator.Generate()
			if err != nil {
				return err
			}
			cmd.Print(content)
			return nil
		},
	}

	graphCmd.Flags().StringVarP(&graphOut, "output", "o", "", "Write the graph to a file instead of stdout")

	rootCmd.AddCommand(graphCmd)
}

func addInitCmd(rootCmd *cobra.Command) {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configFile); err == nil {
				return fmt.Errorf("%s already exists", configFile)
			}
			if err := config.Default().Write(configFile); err != nil {
				return err
			}
			cmd.Printf("Config written to %s\n", configFile)
			return nil
		},
	}

	rootCmd.AddCommand(initCmd)
}
