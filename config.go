package acceptor

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/scriptbridge/acceptor/flags"
)

// Config holds the application configuration
type Config struct {
	TestDir       string        // Test case root; discovered from the repo layout when empty
	SuiteConfig   string        // Path to the suite config file; defaults to the workspace marker
	Configuration string        // Build configuration keying log and output directories
	RuntimeBinary string        // Script runtime used to execute test cases
	BuildBinary   string        // Build toolchain binary name or path
	ToolchainRoot string        // Versioned toolchain installation root
	RunInterval   time.Duration // Interval between suite runs
	RunOnce       bool          // Indicates if the service should exit after one suite run
	RunTimeout    time.Duration // Deadline for a single test case run
	LogDir        string        // Directory for build and run logs; derived from repo root when empty
	Verbose       bool          // Run builds with diagnostic verbosity
	Log           log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, logger log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	testDir := ctx.String(flags.TestDir.Name)
	if testDir != "" {
		var err error
		testDir, err = filepath.Abs(testDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for test directory '%s': %w", testDir, err)
		}
	}

	suiteConfig := ctx.String(flags.SuiteConfig.Name)
	if suiteConfig != "" {
		var err error
		suiteConfig, err = filepath.Abs(suiteConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for suite config '%s': %w", suiteConfig, err)
		}
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir != "" {
		var err error
		logDir, err = filepath.Abs(logDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
		}
	}

	return &Config{
		TestDir:       testDir,
		SuiteConfig:   suiteConfig,
		Configuration: ctx.String(flags.Configuration.Name),
		RuntimeBinary: ctx.String(flags.RuntimeBinary.Name),
		BuildBinary:   ctx.String(flags.BuildBinary.Name),
		ToolchainRoot: ctx.String(flags.ToolchainRoot.Name),
		RunInterval:   runInterval,
		RunOnce:       runOnce,
		RunTimeout:    ctx.Duration(flags.RunTimeout.Name),
		LogDir:        logDir,
		Verbose:       ctx.Bool(flags.Verbose.Name),
		Log:           logger,
	}, nil
}
