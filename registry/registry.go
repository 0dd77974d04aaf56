// Package registry loads the suite configuration file and resolves
// per-module build settings.
package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// Defaults applied to modules the suite config does not mention or only
// partially configures.
const (
	DefaultReturnProperty = "TargetPath"
	DefaultProjectExt     = ".proj"
)

// DefaultTargets are the build targets run when a module declares none.
var DefaultTargets = []string{"Build"}

// ModuleConfig holds the build settings for one module.
type ModuleConfig struct {
	Name           string            `yaml:"name"`
	Project        string            `yaml:"project,omitempty"`         // Project descriptor, relative to the repo root
	Targets        []string          `yaml:"targets,omitempty"`         // Build targets, in order
	Properties     map[string]string `yaml:"properties,omitempty"`      // Toolchain property overrides
	ReturnProperty string            `yaml:"return_property,omitempty"` // Output property naming the built artifact
	HostPath       string            `yaml:"host_path,omitempty"`       // Alternate host entry point for the runtime
	Env            map[string]string `yaml:"env,omitempty"`             // Extra environment for the module's runs
}

// SuiteConfig is the shape of the acceptor.yaml suite file.
type SuiteConfig struct {
	TestCaseDir   string         `yaml:"testcase_dir,omitempty"`
	Configuration string         `yaml:"configuration,omitempty"`
	Runtime       string         `yaml:"runtime,omitempty"`
	Verbose       bool           `yaml:"verbose,omitempty"`
	Modules       []ModuleConfig `yaml:"modules,omitempty"`
}

// Registry resolves module build settings from the suite configuration.
type Registry struct {
	config  Config
	suite   SuiteConfig
	modules map[string]ModuleConfig
}

// Config contains registry configuration.
type Config struct {
	Log             log.Logger
	SuiteConfigFile string
}

// NewRegistry loads and validates the suite configuration.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.SuiteConfigFile == "" {
		return nil, fmt.Errorf("suite config file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}

	r := &Registry{
		config:  cfg,
		modules: make(map[string]ModuleConfig),
	}
	if err := r.load(cfg.SuiteConfigFile); err != nil {
		return nil, fmt.Errorf("failed to load suite config: %w", err)
	}

	cfg.Log.Debug("Registry loaded", "len(modules)", len(r.modules))
	return r, nil
}

func (r *Registry) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var suite SuiteConfig
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for _, m := range suite.Modules {
		if m.Name == "" {
			return fmt.Errorf("module entry without a name in %s", path)
		}
		if _, dup := r.modules[m.Name]; dup {
			return fmt.Errorf("duplicate module %q in %s", m.Name, path)
		}
		r.modules[m.Name] = m
	}
	r.suite = suite
	return nil
}

// Suite returns the parsed suite-level settings.
func (r *Registry) Suite() SuiteConfig {
	return r.suite
}

// Module returns the build settings for a module with defaults applied. A
// module absent from the config gets defaults throughout, so purely
// convention-following modules need no entry at all.
func (r *Registry) Module(name string) ModuleConfig {
	m := r.modules[name]
	m.Name = name
	if m.Project == "" {
		testCaseDir := r.suite.TestCaseDir
		if testCaseDir == "" {
			testCaseDir = "testcases"
		}
		m.Project = filepath.Join(testCaseDir, name, name+DefaultProjectExt)
	}
	if len(m.Targets) == 0 {
		m.Targets = append([]string(nil), DefaultTargets...)
	}
	if m.ReturnProperty == "" {
		m.ReturnProperty = DefaultReturnProperty
	}
	return m
}
