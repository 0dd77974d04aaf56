package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "ACCEPTOR"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	TestDir = &cli.StringFlag{
		Name:    "testdir",
		Value:   "",
		EnvVars: prefixEnvVars("TESTDIR"),
		Usage:   "Path to the test case root. When empty it is located by walking upward from the working directory.",
	}
	SuiteConfig = &cli.StringFlag{
		Name:    "suite-config",
		Value:   "",
		EnvVars: prefixEnvVars("SUITE_CONFIG"),
		Usage:   "Path to the suite config file (eg. 'acceptor.yaml'). Defaults to the workspace marker at the repo root.",
	}
	Configuration = &cli.StringFlag{
		Name:    "configuration",
		Value:   "release",
		EnvVars: prefixEnvVars("CONFIGURATION"),
		Usage:   "Build configuration keying the build output and log directories (eg. 'debug', 'release')",
	}
	RuntimeBinary = &cli.StringFlag{
		Name:    "runtime-binary",
		Value:   "node",
		EnvVars: prefixEnvVars("RUNTIME_BINARY"),
		Usage:   "Path to the script runtime binary used to execute test cases",
	}
	BuildBinary = &cli.StringFlag{
		Name:    "build-binary",
		Value:   "msbuild",
		EnvVars: prefixEnvVars("BUILD_BINARY"),
		Usage:   "Name or path of the build toolchain binary",
	}
	ToolchainRoot = &cli.StringFlag{
		Name:    "toolchain-root",
		Value:   "",
		EnvVars: prefixEnvVars("TOOLCHAIN_ROOT"),
		Usage:   "Directory holding versioned toolchain installations; the highest version is selected",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between suite runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	RunTimeout = &cli.DurationFlag{
		Name:    "run-timeout",
		Value:   10 * time.Minute,
		EnvVars: prefixEnvVars("RUN_TIMEOUT"),
		Usage:   "Deadline for a single test case run; 0 waits indefinitely for the runtime to exit",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "",
		EnvVars: prefixEnvVars("LOGDIR"),
		Usage:   "Directory for build and run logs. Defaults to out/logs/<configuration> under the repo root.",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Log level: debug, info, warn, error",
	}
	Verbose = &cli.BoolFlag{
		Name:    "verbose",
		Value:   false,
		EnvVars: prefixEnvVars("VERBOSE"),
		Usage:   "Run builds with diagnostic verbosity",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	TestDir,
	SuiteConfig,
	Configuration,
	RuntimeBinary,
	BuildBinary,
	ToolchainRoot,
	RunInterval,
	RunTimeout,
	LogDir,
	LogLevel,
	Verbose,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

// CheckRequired verifies all required flags are set.
func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
