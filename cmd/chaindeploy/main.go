package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	planPath := flag.String("plan", "", "Path to plan file (overrides plan.path)")
	force := flag.Bool("force", false, "Discard the ledger and redeploy everything")
	validate := flag.Bool("validate", false, "Validate the plan and exit")
	exportPath := flag.String("export", "", "Write deployed addresses as JSON to this path")
	sealKey := flag.Bool("seal-key", false, "Print signer.private_key encrypted with signer.encryption_key and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Printf("chaindeploy %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	// Load configuration
	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	if *planPath != "" {
		cfg.Plan.Path = *planPath
	}

	if *sealKey {
		sealed, err := SealSignerKey(cfg.Signer)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seal key: %v\n", err)
			return ExitConfigError
		}
		fmt.Println(sealed)
		return ExitSuccess
	}

	// Setup logger
	logger := SetupLogger(cfg)
	logger.Info("starting chaindeploy",
		"version", Version,
		"config", *configPath,
		"network", cfg.Network.Name,
		"force", *force,
	)

	// Interrupts cancel the in-flight step; the ledger keeps the last checkpoint.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = Deploy(ctx, cfg, Options{
		Force:        *force,
		ValidateOnly: *validate,
		ExportPath:   *exportPath,
	}, logger)
	if err != nil {
		var rErr *RunError
		if errors.As(err, &rErr) {
			logger.Error("deployment failed",
				"error", rErr.Err,
				"operation", rErr.Op,
				"exit_code", rErr.ExitCode,
			)
			return rErr.ExitCode
		}
		logger.Error("deployment failed", "error", err)
		return ExitRunAborted
	}

	return ExitSuccess
}
