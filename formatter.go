package acceptor

import (
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/scriptbridge/acceptor/types"
)

// ResultFormatter is responsible for formatting and displaying suite results.
type ResultFormatter interface {
	FormatResults(result *types.SuiteResult) error
}

// ConsoleResultFormatter implements the ResultFormatter interface.
type ConsoleResultFormatter struct {
	logger log.Logger
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter(logger log.Logger) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger: logger,
	}
}

// FormatResults renders the suite results as a table, one module row with
// its build status followed by tree-prefixed case rows.
func (f *ConsoleResultFormatter) FormatResults(result *types.SuiteResult) error {
	f.logger.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Acceptance Testing Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Tests", "Passed", "Failed", "Status", "Error",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, moduleName := range sortedModuleNames(result) {
		module := result.Modules[moduleName]

		buildNote := ""
		if !module.Build.Success {
			buildNote = fmt.Sprintf("build failed (see %s)", module.Build.LogPath)
		}
		t.AppendRow(table.Row{
			"Module",
			module.Module,
			formatDuration(module.Duration),
			"-",
			module.Stats.Passed,
			module.Stats.Failed,
			getResultString(module.Status),
			buildNote,
		})

		caseNames := make([]string, 0, len(module.Cases))
		for name := range module.Cases {
			caseNames = append(caseNames, name)
		}
		sort.Strings(caseNames)

		for i, caseName := range caseNames {
			c := module.Cases[caseName]
			prefix := "├──"
			if i == len(caseNames)-1 {
				prefix = "└──"
			}
			t.AppendRow(table.Row{
				"Case",
				fmt.Sprintf("%s %s", prefix, caseName),
				formatDuration(c.Outcome.Duration),
				"1",
				boolToInt(c.Outcome.Passed()),
				boolToInt(!c.Outcome.Passed()),
				getResultString(c.Outcome.Status),
				c.Outcome.Message,
			})
		}
	}

	t.AppendFooter(table.Row{
		"", "Total", formatDuration(result.Duration),
		result.Stats.Total, result.Stats.Passed, result.Stats.Failed,
		getResultString(result.Status), "",
	})
	t.Render()
	return nil
}

// boolToInt converts bool to int for table cells.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sortedModuleNames(result *types.SuiteResult) []string {
	names := make([]string, 0, len(result.Modules))
	for name := range result.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
