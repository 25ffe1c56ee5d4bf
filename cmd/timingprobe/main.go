package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/your-org/credguard/internal/config"
	"github.com/your-org/credguard/internal/help"
	"github.com/your-org/credguard/internal/probe"
	"github.com/your-org/credguard/internal/probe/sink"
	"github.com/your-org/credguard/pkg/errors"
	"github.com/your-org/credguard/pkg/logger"
	"github.com/your-org/credguard/pkg/resilience/circuitbreaker"
)

var (
	// Version is set during build
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	phase := flag.String("phase", "", "Phase to run: identify, extract or all")
	user := flag.Int64("user", 0, "Known identity; skips identification")
	target := flag.String("target", "", "Target base URL")
	reportPath := flag.String("report", "", "Write the campaign report to this file (.json or .yaml)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.CommandLine.Usage = help.Usage(os.Stderr, help.AppInfo{
		Name:        "timingprobe",
		Description: "Timing-attack harness for the credential verification endpoint.",
		Version:     Version,
	}, flag.CommandLine, config.EnvPrefix, config.Config{})
	flag.Parse()

	if *showVersion {
		fmt.Printf("timingprobe %s\n", Version)
		os.Exit(0)
	}

	// A missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	pc := cfg.Probe
	if *phase != "" {
		pc.Phase = *phase
	}
	if *user != 0 {
		pc.Identity = *user
	}
	if *target != "" {
		pc.TargetURL = *target
	}
	if *reportPath != "" {
		pc.Report.Path = *reportPath
	}

	if err := config.NewConfigValidator().ValidateProbe(&pc); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, pc); err != nil {
		logger.Error("campaign failed", logger.Err(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, pc config.ProbeConfig) error {
	sinks, err := sink.FromConfig(pc.Sinks)
	if err != nil {
		return err
	}
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				logger.Warn("failed to close sink", logger.String("sink", s.Name()), logger.Err(err))
			}
		}
	}()

	oracle := probe.NewHTTPOracle(pc.TargetURL, pc.AuthPath,
		probe.WithCircuitBreaker(circuitbreaker.New[probe.Outcome](probe.TargetBreaker, pc.CircuitBreaker)),
	)

	campaign := probe.NewCampaign(pc, oracle,
		probe.WithSinks(sinks...),
		probe.WithTarget(oracle.URL()),
	)

	logger.Info("starting timing campaign",
		logger.String("version", Version),
		logger.String("run_id", campaign.RunID()),
		logger.String("target", oracle.URL()),
		logger.String("phase", pc.Phase),
	)

	report, err := campaign.Run(ctx)
	if errors.Is(err, errors.ErrNoAnomaly) {
		// A target that leaks nothing is a result, not a failure.
		logger.Info("target shows no timing anomaly")
		return nil
	}
	if err != nil {
		return err
	}

	if report.Extraction != nil {
		logger.Info("campaign succeeded",
			logger.Int64("user_id", int64(report.Extraction.Identity)),
			logger.Secret("pin", report.Extraction.Secret),
			logger.Token("token", report.Extraction.Token),
		)
	}
	return nil
}
