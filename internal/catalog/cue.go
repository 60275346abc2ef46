package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/till/internal/pricing"
)

//go:embed schema.cue
var schemaSource string

// LoadCUE loads every rule under the top-level rules struct of a CUE
// directory or single file. Each rule is checked against the #Rule schema
// before decoding.
func LoadCUE(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: fmt.Sprintf("rules not found: %v", err)}
	}

	dir, args := path, []string{"."}
	files := 1
	if !info.IsDir() {
		dir, args = filepath.Dir(path), []string{filepath.Base(path)}
	} else {
		found, err := findCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeGeneric, Path: path, Message: fmt.Sprintf("scanning directory: %v", err)}
		}
		if len(found) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Path: path, Message: "no CUE files found"}
		}
		files = len(found)
	}

	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: "no CUE instances loaded"}
	}
	if inst := instances[0]; inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: inst.Err.Error()}
	}
	value := ctx.BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Path: path, Message: err.Error()}
	}

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Rule"))
	if err := schema.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("rule schema: %v", err)}
	}

	result := &Result{Files: files}
	var rules []pricing.PricingRule

	rulesVal := value.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		result.Catalog = pricing.NewCatalog()
		return result, nil
	}
	iter, err := rulesVal.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Path: path, Message: fmt.Sprintf("rules must be a struct keyed by rule id: %v", err)}
	}
	for iter.Next() {
		id := iter.Label()
		checked := schema.Unify(iter.Value())
		if err := checked.Validate(cue.Concrete(true)); err != nil {
			result.Diagnostics = append(result.Diagnostics, pricing.Diagnostic{
				RuleID:  id,
				Code:    pricing.DiagInvalidDocument,
				Message: err.Error(),
			})
			continue
		}
		data, err := checked.MarshalJSON()
		if err != nil {
			result.Diagnostics = append(result.Diagnostics, pricing.Diagnostic{
				RuleID:  id,
				Code:    pricing.DiagInvalidDocument,
				Message: err.Error(),
			})
			continue
		}
		rule, diag := decodeRule(data, id)
		if diag != nil {
			result.Diagnostics = append(result.Diagnostics, *diag)
			continue
		}
		rules = append(rules, rule)
	}

	result.Catalog = pricing.NewCatalog(rules...)
	return result, nil
}

func findCUEFiles(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*.cue"))
}
