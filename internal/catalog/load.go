package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/till/internal/pricing"
)

// Result is a loaded catalog plus the rules that were dropped on the way.
type Result struct {
	Catalog     pricing.Catalog
	Diagnostics []pricing.Diagnostic
	Files       int
}

// AllDiagnostics returns decode diagnostics followed by those the engine
// would report for the loaded rules.
func (r *Result) AllDiagnostics() []pricing.Diagnostic {
	out := append([]pricing.Diagnostic(nil), r.Diagnostics...)
	return append(out, r.Catalog.Validate()...)
}

// Load reads rules from path: a directory or .cue file as CUE, a .yaml,
// .yml or .json file as YAML.
func Load(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: fmt.Sprintf("rules not found: %v", err)}
	}
	if info.IsDir() {
		return LoadCUE(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return LoadCUE(path)
	case ".yaml", ".yml", ".json":
		return LoadYAML(path)
	}
	return nil, &LoadError{Code: ErrCodeFormat, Path: path, Message: "rules must be a directory, .cue, .yaml, .yml or .json"}
}
