// Package acceptor wires discovery, build and execution into a test suite
// run: discover test cases by module, build each module's artifact once,
// then run every case against it and report pass/fail.
package acceptor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/scriptbridge/acceptor/builder"
	"github.com/scriptbridge/acceptor/discovery"
	"github.com/scriptbridge/acceptor/exitcodes"
	"github.com/scriptbridge/acceptor/metrics"
	"github.com/scriptbridge/acceptor/paths"
	"github.com/scriptbridge/acceptor/registry"
	"github.com/scriptbridge/acceptor/runner"
	"github.com/scriptbridge/acceptor/types"
)

// PlatformProperty is the toolchain property carrying the canonical
// platform tag into each build.
const PlatformProperty = "PlatformTag"

// runLogPrefix prefixes every test case run log file name.
const runLogPrefix = "run"

// Acceptor drives suite runs. It is created once and reused across periodic
// runs; build or run failures are local to a module or case.
type Acceptor struct {
	ctx       context.Context
	config    *Config
	version   string
	resolver  *paths.Resolver
	registry  *registry.Registry
	builder   *builder.Builder
	harness   *runner.Harness
	formatter ResultFormatter
	scheduler TestScheduler
	result    *types.SuiteResult

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New assembles an Acceptor from config: path resolution, suite registry,
// toolchain locator, builder and execution harness.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Acceptor, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating acceptor with config",
		"testDir", config.TestDir,
		"suiteConfig", config.SuiteConfig,
		"configuration", config.Configuration,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	resolver, err := paths.NewResolver(paths.Config{
		Configuration: config.Configuration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create path resolver: %w", err)
	}

	suitePath := config.SuiteConfig
	if suitePath == "" {
		root, err := resolver.RepoRoot()
		if err != nil {
			return nil, fmt.Errorf("failed to locate repository root: %w", err)
		}
		suitePath = filepath.Join(root, paths.DefaultMarkerFile)
	}

	reg, err := registry.NewRegistry(registry.Config{
		Log:             config.Log,
		SuiteConfigFile: suitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	var roots []string
	if config.ToolchainRoot != "" {
		roots = append(roots, config.ToolchainRoot)
	}
	bld, err := builder.New(builder.Config{
		Locator: builder.NewLocator(config.BuildBinary, roots...),
		Log:     config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create builder: %w", err)
	}

	runtimeBinary := config.RuntimeBinary
	if suiteRuntime := reg.Suite().Runtime; suiteRuntime != "" {
		runtimeBinary = suiteRuntime
	}
	harness := runner.NewHarness(runner.Config{
		RuntimeBinary: runtimeBinary,
		Timeout:       config.RunTimeout,
		Log:           config.Log,
	})

	config.Log.Info("acceptor.New: created registry, builder and harness")

	return &Acceptor{
		ctx:              ctx,
		config:           config,
		version:          version,
		resolver:         resolver,
		registry:         reg,
		builder:          bld,
		harness:          harness,
		formatter:        NewConsoleResultFormatter(config.Log),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the suite, then either exits (run-once mode) or keeps running
// it at the configured interval.
func (a *Acceptor) Start(ctx context.Context) error {
	// Panics are runtime errors, not test failures
	defer func() {
		if r := recover(); r != nil {
			a.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	a.ctx = ctx
	a.running.Store(true)

	if a.config.RunOnce {
		a.config.Log.Info("Starting script-acceptor in run-once mode")
	} else {
		a.config.Log.Info("Starting script-acceptor in continuous mode", "interval", a.config.RunInterval)
	}

	a.scheduler = NewDefaultTestScheduler(a.config.RunInterval, a.config.RunOnce, a.config.Log)
	a.scheduler.RegisterCallback(a.runSuite)

	if err := a.scheduler.Start(ctx); err != nil {
		a.config.Log.Error("Runtime error running tests", "error", err)
		return NewRuntimeError(err)
	}

	if a.config.RunOnce {
		a.config.Log.Info("Suite completed, exiting (run-once mode)")

		if a.result != nil && a.result.Status == types.RunStatusFail {
			a.config.Log.Warn("Run-once suite completed with failures, returning exit code 1")
			return NewTestFailureError(a.result.String())
		}

		go func() {
			a.shutdownCallback(nil)
		}()
		return nil
	}

	a.config.Log.Debug("script-acceptor started successfully")
	return nil
}

// Stop stops the acceptor service.
func (a *Acceptor) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping script-acceptor")

	if !a.running.Load() {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	a.running.Store(false)
	if a.scheduler != nil {
		if err := a.scheduler.Stop(); err != nil {
			return err
		}
		if err := a.scheduler.WaitForShutdown(ctx); err != nil {
			return err
		}
	}

	a.config.Log.Info("script-acceptor stopped successfully")
	return nil
}

// Stopped returns true if the acceptor service is stopped.
func (a *Acceptor) Stopped() bool {
	return !a.running.Load()
}

// Result returns the most recent suite result, nil before the first run.
func (a *Acceptor) Result() *types.SuiteResult {
	return a.result
}

// runSuite performs one complete run: discovery, one build per module, one
// run per case, then reporting.
func (a *Acceptor) runSuite() error {
	runID := uuid.New().String()
	a.config.Log.Info("Running test suite", "run_id", runID)
	start := time.Now()

	testCaseRoot, err := a.testCaseRoot()
	if err != nil {
		return err
	}

	cases, err := discovery.ListTestCases(testCaseRoot)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("no test cases found under %s", testCaseRoot)
	}

	platformTag, err := paths.PlatformTag()
	if err != nil {
		return err
	}

	result := &types.SuiteResult{
		RunID:  runID,
		Status: types.RunStatusPass,
		Stats:  types.ResultStats{StartTime: start},
	}

	byModule := groupByModule(cases)
	for _, module := range sortedKeys(byModule) {
		moduleResult, err := a.runModule(runID, testCaseRoot, platformTag, module, byModule[module])
		if err != nil {
			return err
		}
		result.AddModule(moduleResult)
	}

	result.Duration = time.Since(start)
	result.Stats.EndTime = time.Now()
	a.result = result

	if err := a.formatter.FormatResults(result); err != nil {
		a.config.Log.Error("Failed to format results", "error", err)
	}
	fmt.Println(result.String())
	metrics.RecordSuite(runID, result.Status, result.Duration)
	a.config.Log.Info("Suite run completed", "run_id", runID, "status", result.Status)
	return nil
}

// runModule builds one module and runs all its cases against the built
// artifact. A failed build marks every case failed without running it.
func (a *Acceptor) runModule(runID, testCaseRoot, platformTag, module string, ids []types.TestCaseID) (*types.ModuleResult, error) {
	start := time.Now()
	moduleCfg := a.registry.Module(module)

	buildOutcome, err := a.buildModule(platformTag, moduleCfg)
	if err != nil {
		return nil, err
	}
	metrics.RecordBuild(runID, module, buildOutcome.Success)

	moduleResult := &types.ModuleResult{
		Module: module,
		Build:  buildOutcome,
		Status: types.RunStatusPass,
	}

	if !buildOutcome.Success {
		// The artifact under test could not be produced; none of the
		// module's cases can run.
		for _, id := range ids {
			moduleResult.AddCase(&types.CaseResult{
				ID: id,
				Outcome: types.RunOutcome{
					Status:  types.RunStatusFail,
					Reason:  types.FailReasonBuildArtifacts,
					LogPath: buildOutcome.LogPath,
					Message: types.FailMessage(types.FailReasonBuildArtifacts, 0, buildOutcome.LogPath),
				},
			})
			metrics.RecordRun(runID, id, types.RunStatusFail)
		}
		moduleResult.Duration = time.Since(start)
		return moduleResult, nil
	}

	for _, id := range ids {
		caseResult, err := a.runCase(testCaseRoot, moduleCfg, buildOutcome.ReturnValue, id)
		if err != nil {
			return nil, err
		}
		moduleResult.AddCase(caseResult)
		metrics.RecordRun(runID, id, caseResult.Outcome.Status)
	}

	moduleResult.Duration = time.Since(start)
	return moduleResult, nil
}

// buildModule assembles and executes the build request for one module.
func (a *Acceptor) buildModule(platformTag string, cfg registry.ModuleConfig) (types.BuildOutcome, error) {
	repoRoot, err := a.resolver.RepoRoot()
	if err != nil {
		return types.BuildOutcome{}, err
	}

	logPath, err := a.buildLogPath(cfg.Name)
	if err != nil {
		return types.BuildOutcome{}, err
	}

	properties := make(map[string]string, len(cfg.Properties)+1)
	for k, v := range cfg.Properties {
		properties[k] = v
	}
	if _, ok := properties[PlatformProperty]; !ok {
		properties[PlatformProperty] = platformTag
	}

	projectPath := cfg.Project
	if !filepath.IsAbs(projectPath) {
		projectPath = filepath.Join(repoRoot, projectPath)
	}

	return a.builder.Build(a.ctx, types.BuildRequest{
		ProjectPath:    projectPath,
		Targets:        cfg.Targets,
		Properties:     properties,
		ReturnProperty: cfg.ReturnProperty,
		LogPath:        logPath,
		Verbose:        a.config.Verbose || a.registry.Suite().Verbose,
	})
}

// runCase executes one test case. A missing script is fatal for the case
// only; the harness stays reusable for the next one.
func (a *Acceptor) runCase(testCaseRoot string, cfg registry.ModuleConfig, artifact string, id types.TestCaseID) (*types.CaseResult, error) {
	logPath, err := a.runLogPath(id)
	if err != nil {
		return nil, err
	}

	scriptPath, err := discovery.ScriptPath(testCaseRoot, id)
	if err != nil {
		return &types.CaseResult{
			ID: id,
			Outcome: types.RunOutcome{
				Status:  types.RunStatusFail,
				LogPath: logPath,
				Message: err.Error(),
			},
		}, nil
	}

	env := make(map[string]string, len(cfg.Env)+2)
	for k, v := range cfg.Env {
		env[k] = v
	}
	env[runner.ModulePathEnvVar] = artifact
	if cfg.HostPath != "" {
		env[runner.HostPathEnvVar] = cfg.HostPath
	}

	outcome, err := a.harness.Run(a.ctx, types.RunRequest{
		ScriptPath: scriptPath,
		LogPath:    logPath,
		Env:        env,
	})
	if err != nil {
		if errors.Is(err, runner.ErrMissingArtifact) {
			return &types.CaseResult{
				ID: id,
				Outcome: types.RunOutcome{
					Status:  types.RunStatusFail,
					LogPath: logPath,
					Message: err.Error(),
				},
			}, nil
		}
		return nil, err
	}

	return &types.CaseResult{ID: id, Outcome: outcome}, nil
}

// testCaseRoot prefers the explicitly configured directory over layout
// discovery.
func (a *Acceptor) testCaseRoot() (string, error) {
	if a.config.TestDir != "" {
		if _, err := os.Stat(a.config.TestDir); err != nil {
			return "", fmt.Errorf("test case root %s: %w", a.config.TestDir, paths.ErrNotFound)
		}
		return a.config.TestDir, nil
	}
	return a.resolver.TestCaseRoot()
}

func (a *Acceptor) buildLogPath(module string) (string, error) {
	if a.config.LogDir != "" {
		return filepath.Join(a.config.LogDir, fmt.Sprintf("build-%s.log", module)), nil
	}
	return a.resolver.BuildLogPath(module)
}

func (a *Acceptor) runLogPath(id types.TestCaseID) (string, error) {
	if a.config.LogDir != "" {
		return filepath.Join(a.config.LogDir, fmt.Sprintf("%s-%s-%s.log", runLogPrefix, id.Module, id.Case)), nil
	}
	return a.resolver.RunLogPath(runLogPrefix, id.Module, id.Case)
}

// groupByModule buckets discovered cases by module name.
func groupByModule(cases []types.TestCaseID) map[string][]types.TestCaseID {
	byModule := make(map[string][]types.TestCaseID)
	for _, id := range cases {
		byModule[id.Module] = append(byModule[id.Module], id)
	}
	return byModule
}

func sortedKeys(m map[string][]types.TestCaseID) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
