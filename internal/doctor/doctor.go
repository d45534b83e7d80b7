// Package doctor validates verigate configuration and the target registry.
package doctor

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/verigate/internal/config"
	"github.com/mattjoyce/verigate/internal/target"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration against the target registry.
type Doctor struct {
	cfg      *config.Config
	registry *target.Registry
}

// New creates a Doctor from a loaded config and target registry.
func New(cfg *config.Config, registry *target.Registry) *Doctor {
	return &Doctor{cfg: cfg, registry: registry}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateBaseURL(r)
	d.validateScripts(r)
	d.validateTargets(r)
	d.warnChecksums(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateBaseURL checks that the effective base URL parses.
func (d *Doctor) validateBaseURL(r *Result) {
	u, err := url.Parse(d.cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		d.addError(r, "config", "base_url", fmt.Sprintf("base_url %q is not a valid URL", d.cfg.BaseURL))
	}
}

// validateScripts checks that every target's checker script exists on disk.
func (d *Doctor) validateScripts(r *Result) {
	if _, err := os.Stat(d.cfg.ScriptsDir); err != nil {
		d.addError(r, "scripts", "scripts_dir",
			fmt.Sprintf("scripts_dir %q does not exist", d.cfg.ScriptsDir))
		return
	}

	for _, spec := range d.registry.All() {
		path := spec.ScriptPath(d.cfg.ScriptsDir)
		if _, err := os.Stat(path); err != nil {
			d.addError(r, "scripts", spec.Name,
				fmt.Sprintf("checker script %s not found for target %q", path, spec.Name))
		}
	}
}

// validateTargets checks registry invariants: required params have template
// placeholders, and every placeholder refers to a required param.
func (d *Doctor) validateTargets(r *Result) {
	for _, spec := range d.registry.All() {
		placeholders := make(map[string]bool)
		for _, arg := range spec.Args {
			if strings.HasPrefix(arg, "{") && strings.HasSuffix(arg, "}") {
				placeholders[arg[1:len(arg)-1]] = true
			}
		}

		for _, p := range spec.RequiredParams {
			if !placeholders[p] {
				d.addError(r, "targets", spec.Name,
					fmt.Sprintf("required parameter %q has no placeholder in the argument template", p))
			}
			delete(placeholders, p)
		}
		for p := range placeholders {
			d.addError(r, "targets", spec.Name,
				fmt.Sprintf("placeholder %q is not a required parameter", p))
		}
	}
}

// warnChecksums flags a loaded config file with no integrity manifest.
func (d *Doctor) warnChecksums(r *Result) {
	if d.cfg.SourcePath == "" {
		return
	}
	dir := filepath.Dir(d.cfg.SourcePath)
	if _, err := config.LoadChecksums(dir); err != nil {
		d.addWarning(r, "integrity", "",
			fmt.Sprintf("no .checksums manifest in %s (run 'verigate config lock')", dir))
	}
}

// FormatHuman renders a result for terminal output.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid {
		b.WriteString("Status: Configuration check PASSED.\n")
	} else {
		b.WriteString("Status: Configuration check FAILED.\n")
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
			continue
		}
		fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
			continue
		}
		fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
	}

	return b.String()
}

// FormatJSON renders a result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}
