package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/your-org/credguard/internal/app"
	"github.com/your-org/credguard/internal/config"
	"github.com/your-org/credguard/internal/help"
	"github.com/your-org/credguard/internal/schema"
	"github.com/your-org/credguard/pkg/logger"
)

var (
	// Version is set during build
	Version = "dev"
	// BuildTime is set during build
	BuildTime = "unknown"
	// GitCommit is set during build
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	schemaType := flag.String("schema", "", "Print a JSON schema (config, seeds, report) and exit")
	flag.CommandLine.Usage = help.Usage(os.Stderr, help.AppInfo{
		Name:        "credguard",
		Description: "Credential verification service with uniform timing.",
		Version:     Version,
	}, flag.CommandLine, config.EnvPrefix, config.Config{})
	flag.Parse()

	if *showVersion {
		fmt.Printf("credguard %s\n", Version)
		fmt.Printf("Build time: %s\n", BuildTime)
		fmt.Printf("Git commit: %s\n", GitCommit)
		os.Exit(0)
	}

	if *schemaType != "" {
		st, ok := schema.ParseSchemaType(*schemaType)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown schema type: %s\n", *schemaType)
			os.Exit(1)
		}
		data, err := schema.NewGenerator().Generate(st)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate schema: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		os.Exit(0)
	}

	// A missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := config.NewConfigValidator().ValidateServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting credguard",
		logger.String("version", Version),
		logger.String("commit", GitCommit),
		logger.String("mode", cfg.Verifier.Mode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(cfg, app.WithBuildInfo(app.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}))
	if err != nil {
		logger.Fatal("failed to create application", logger.Err(err))
	}

	if err := application.Initialize(ctx); err != nil {
		logger.Fatal("failed to initialize application", logger.Err(err))
	}

	if err := application.Start(); err != nil {
		logger.Fatal("failed to start application", logger.Err(err))
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", logger.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", logger.Err(err))
	}

	logger.Info("credguard stopped")
}
