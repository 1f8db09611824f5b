package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xoelrdgz/botradar/internal/adapters/input"
	"github.com/xoelrdgz/botradar/internal/adapters/output"
	"github.com/xoelrdgz/botradar/internal/app"
	"github.com/xoelrdgz/botradar/internal/ports"
	"github.com/xoelrdgz/botradar/internal/tui"
	"github.com/xoelrdgz/botradar/pkg/sanitize"
)

var (
	cfgFile string

	replayLog       string
	replayFollow    bool
	replayFormat    string
	replayJSON      bool
	replayDecisions bool
	replayWorkers   int
	demoMode        bool
	demoCount       int

	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "botradar",
	Short: "Frequency based bot detection reverse proxy",
	Long: `BotRadar is a reverse proxy that classifies every client by how often
it sends requests, then blocks, tags or forwards the request.

Classification:
  - Good: forwarded unchanged
  - Suspicious: forwarded with a Bot-Probability header
  - Bad: rejected with 401

Memory stays bounded: at most detection.max_clients clients are tracked,
the least recently seen is forgotten first.`,
	SilenceUsage: true,
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run the detecting reverse proxy",
	Long: `Start the reverse proxy in front of a backend.

Examples:
  botradar deploy --backend-port 3000
  botradar deploy -a 0.0.0.0 -p 80 --backend-address 10.0.0.5 --backend-port 8080
  botradar deploy --tui --config ./configs/config.yaml`,
	RunE: runDeploy,
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Classify an access log offline",
	Long: `Replay an nginx combined or JSON access log through a fresh detector,
using each line's timestamp as the event time, and report the outcome.

Examples:
  botradar replay --log /var/log/nginx/access.log
  botradar replay --log ./access.json --format json --json
  botradar replay --log /var/log/nginx/access.log --follow --decisions
  botradar replay --demo --demo-count 50000`,
	RunE: runReplay,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("BotRadar %s\n", Version)
		fmt.Printf("Commit:  %s\n", Commit)
		fmt.Printf("Built:   %s\n", BuildTime)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	deployCmd.Flags().StringP("address", "a", "", "listen address (default 127.0.0.1)")
	deployCmd.Flags().IntP("port", "p", 0, "listen port (default 8000)")
	deployCmd.Flags().String("backend-address", "", "backend address (default 127.0.0.1)")
	deployCmd.Flags().Int("backend-port", 0, "backend port (default 8080)")
	deployCmd.Flags().Bool("tui", false, "show the live dashboard")
	deployCmd.Flags().Bool("metrics", false, "serve Prometheus metrics")
	_ = viper.BindPFlag("listen.address", deployCmd.Flags().Lookup("address"))
	_ = viper.BindPFlag("listen.port", deployCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("backend.address", deployCmd.Flags().Lookup("backend-address"))
	_ = viper.BindPFlag("backend.port", deployCmd.Flags().Lookup("backend-port"))
	_ = viper.BindPFlag("tui.enabled", deployCmd.Flags().Lookup("tui"))
	_ = viper.BindPFlag("output.metrics.enabled", deployCmd.Flags().Lookup("metrics"))

	replayCmd.Flags().StringVarP(&replayLog, "log", "l", "", "access log to replay")
	replayCmd.Flags().BoolVarP(&replayFollow, "follow", "f", false, "keep reading appended lines")
	replayCmd.Flags().StringVar(&replayFormat, "format", "auto", "log format: auto, combined, json")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "print the summary as JSON")
	replayCmd.Flags().BoolVar(&replayDecisions, "decisions", false, "print decisions as JSON lines to stdout")
	replayCmd.Flags().IntVarP(&replayWorkers, "workers", "w", 0, "worker goroutines (default 8)")
	replayCmd.Flags().BoolVar(&demoMode, "demo", false, "replay synthetic human and scraper traffic")
	replayCmd.Flags().IntVar(&demoCount, "demo-count", 10000, "demo mode: entries to generate")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/botradar")
	}

	app.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn().Err(err).Msg("Error reading config file")
		}
	}

	viper.SetEnvPrefix("BOTRADAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func setupLogging(level string, console bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := app.ApplyLogLevel(level); err != nil {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func loadConfig() (app.Config, error) {
	cfg, err := app.LoadConfig(viper.GetViper())
	if err != nil {
		return app.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel, !cfg.TUIEnabled)

	svc, err := app.NewService(cfg)
	if err != nil {
		return err
	}

	watcher := app.NewLogLevelWatcher(viper.GetViper())
	if err := watcher.Start(); err != nil {
		log.Debug().Err(err).Msg("Log level hot reload disabled")
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !cfg.TUIEnabled {
		return svc.Run(ctx)
	}

	dashboard := tui.NewApp(svc.Backend().Target().Host)
	svc.AddDecisionSubscriber(dashboard)
	if err := svc.Start(ctx); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				dashboard.SendMetrics(svc.Snapshot())
			}
		}
	}()

	var tuiErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("TUI panic recovered")
				tuiErr = fmt.Errorf("TUI panic: %v", r)
			}
		}()
		tuiErr = dashboard.Run()
	}()

	cancel()
	log.Info().Msg("Shutting down...")

	shutdownDone := make(chan struct{})
	go func() {
		svc.Stop()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		log.Debug().Msg("Shutdown complete")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("Shutdown timeout, forcing exit")
	}

	return tuiErr
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel, true)

	if replayLog == "" && !demoMode {
		return fmt.Errorf("log file path required: use --log or --demo flag")
	}

	var reader ports.ReplaySource
	if demoMode {
		demoCfg := input.DefaultDemoConfig()
		demoCfg.Count = demoCount
		reader = input.NewDemoGenerator(demoCfg)
		log.Info().Int("count", demoCount).Msg("Replaying demo traffic")
	} else {
		parser, err := input.NewParser(replayFormat)
		if err != nil {
			return err
		}
		reader = input.NewFileTailer(input.TailerConfig{
			Path:   replayLog,
			Parser: parser,
			Follow: replayFollow,
		})
		log.Info().Str("source", replayLog).Str("format", parser.Format()).Bool("follow", replayFollow).Msg("Replaying access log")
	}

	var metrics *output.PrometheusMetrics
	var engineObserver ports.EngineObserver
	var classObserver ports.ClassificationObserver
	if cfg.MetricsEnabled {
		metrics = output.NewPrometheusMetrics("botradar")
		engineObserver, classObserver = metrics, metrics
	}

	detector, err := app.NewDetector(cfg, engineObserver)
	if err != nil {
		return err
	}

	dispatcher := app.NewDispatcher(app.DispatcherConfig{QueueSize: 65536}, nil)
	if replayDecisions || cfg.DecisionLogPath != "" {
		decisionLog, err := output.NewJSONDecisionLog(output.JSONDecisionLogConfig{
			FilePath: cfg.DecisionLogPath,
			Stdout:   replayDecisions,
		})
		if err != nil {
			return fmt.Errorf("failed to open decision log: %w", err)
		}
		dispatcher.AddSink(decisionLog)
	}

	if metrics != nil {
		metrics.BindInspector(detector)
		dispatcher.AddSubscriber(metrics)
		dispatcher.AddDropCounter(metrics)
		metricsCfg := output.DefaultMetricsConfig()
		metricsCfg.Port = net.JoinHostPort(cfg.ListenAddress, strconv.Itoa(cfg.MetricsPort))
		if err := metrics.StartServer(metricsCfg, nil); err != nil {
			log.Warn().Err(err).Msg("Failed to start metrics server")
		}
		defer func() {
			if err := metrics.StopServer(); err != nil {
				log.Error().Err(err).Msg("Error stopping metrics server")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(ctx)
	replayer := app.NewReplayer(reader, detector, app.ReplayConfig{
		Workers:   app.WorkerPoolConfig{WorkerCount: replayWorkers},
		Publisher: dispatcher,
		Observer:  classObserver,
	})

	summary, err := replayer.Run(ctx)
	dispatcher.Stop()
	if err != nil && !app.IsInterrupted(err) {
		return err
	}

	if replayJSON {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	printSummary(os.Stdout, summary)
	return nil
}

func printSummary(w io.Writer, s app.ReplaySummary) {
	total := s.Stats.Total()
	pct := func(n uint64) float64 {
		if total == 0 {
			return 0
		}
		return float64(n) / float64(total) * 100
	}

	fmt.Fprintf(w, "Entries:          %d (%d rejected, %d read errors)\n", s.Entries, s.Rejected, s.ReadErrors)
	fmt.Fprintf(w, "Good:             %d (%.1f%%)\n", s.Stats.NumGoodReqs, pct(s.Stats.NumGoodReqs))
	fmt.Fprintf(w, "Suspicious:       %d (%.1f%%)\n", s.Stats.NumSuspReqs, pct(s.Stats.NumSuspReqs))
	fmt.Fprintf(w, "Bad:              %d (%.1f%%)\n", s.Stats.NumBadReqs, pct(s.Stats.NumBadReqs))
	fmt.Fprintf(w, "Tracked clients:  %d\n", s.TrackedClients)
	fmt.Fprintf(w, "Duration:         %s\n", s.Duration.Round(time.Millisecond))

	if len(s.TopClients) == 0 {
		return
	}
	fmt.Fprintln(w, "\nTop clients by frequency:")
	for i, c := range s.TopClients {
		fmt.Fprintf(w, "  %2d. %-40s %7.3f req/s  %2d events  last %s\n",
			i+1, sanitize.ClientID(c.ClientID), c.Frequency, c.Events, c.LastSeen.UTC().Format(time.RFC3339))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
