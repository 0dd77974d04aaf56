// Package discovery enumerates test cases from the directory convention
// <testCaseRoot>/<module>/<case>.<ext>.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scriptbridge/acceptor/types"
)

// CaseExtensions are the recognized script source extensions. Both are
// treated as equivalent case sources.
var CaseExtensions = []string{".js", ".ts"}

// ListTestCases enumerates the test case tree under root. Each immediate
// subdirectory is a module; each file within it with a recognized extension
// yields one TestCaseID whose case name is the file base name with the
// extension stripped. Enumeration order is filesystem-defined and not
// guaranteed sorted; callers must only rely on the returned set.
func ListTestCases(root string) ([]types.TestCaseID, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read test case root %s: %w", root, err)
	}

	var cases []types.TestCaseID
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		module := entry.Name()
		files, err := os.ReadDir(filepath.Join(root, module))
		if err != nil {
			return nil, fmt.Errorf("failed to read module directory %s: %w", module, err)
		}
		// A case present under more than one extension is still one case;
		// ScriptPath resolves which file runs.
		seen := make(map[string]bool)
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			name, ok := caseName(file.Name())
			if !ok || seen[name] {
				continue
			}
			seen[name] = true
			cases = append(cases, types.TestCaseID{Module: module, Case: name})
		}
	}
	return cases, nil
}

// ScriptPath returns the on-disk path of a test case script, probing the
// recognized extensions in order.
func ScriptPath(root string, id types.TestCaseID) (string, error) {
	for _, ext := range CaseExtensions {
		p := filepath.Join(root, id.Module, id.Case+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no script file for test case %s under %s", id, root)
}

// caseName strips a recognized extension, reporting whether the file
// qualifies as a test case source.
func caseName(filename string) (string, bool) {
	for _, ext := range CaseExtensions {
		if strings.HasSuffix(filename, ext) {
			return strings.TrimSuffix(filename, ext), true
		}
	}
	return "", false
}
