// Package target defines the static registry of verification targets.
//
// A target maps an operator-facing name to one checker script invocation:
// which script runs, which parameters the caller must supply, and which
// environment variables the child receives. Specs are defined once at
// startup and never mutated.
package target

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/verigate/internal/config"
)

// Spec is the static definition of a single invocable target.
type Spec struct {
	// Name is the unique dispatch key.
	Name string

	// Description is shown by `verigate list`.
	Description string

	// Script is the checker filename under the configured scripts directory.
	Script string

	// RequiredParams lists parameter names the caller must supply, in order.
	// An empty-string value counts as missing, matching the original shell
	// guard semantics.
	RequiredParams []string

	// Args is the argument template. Entries of the form {param} are
	// substituted with the supplied parameter value.
	Args []string

	// Env maps environment variable names to values merged over the process
	// environment at spawn time. Override wins on conflict.
	Env map[string]string
}

// Param wraps a name in the template placeholder syntax.
func Param(name string) string {
	return "{" + name + "}"
}

// ExpandArgs substitutes {param} placeholders with supplied values.
// Callers must validate required params first; an unmatched placeholder is
// an error because it means the spec and the validation disagree.
func (s *Spec) ExpandArgs(params map[string]string) ([]string, error) {
	out := make([]string, 0, len(s.Args))
	for _, arg := range s.Args {
		if strings.HasPrefix(arg, "{") && strings.HasSuffix(arg, "}") {
			name := arg[1 : len(arg)-1]
			value, ok := params[name]
			if !ok {
				return nil, fmt.Errorf("no value for placeholder %q in target %q", name, s.Name)
			}
			out = append(out, value)
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

// ScriptPath returns the script location under the given scripts directory.
func (s *Spec) ScriptPath(scriptsDir string) string {
	return filepath.Join(scriptsDir, s.Script)
}

// Registry holds target specs indexed by name.
type Registry struct {
	targets map[string]*Spec
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		targets: make(map[string]*Spec),
	}
}

// Add registers a spec. Duplicate names are an error.
func (r *Registry) Add(spec *Spec) error {
	if _, exists := r.targets[spec.Name]; exists {
		return fmt.Errorf("target %q already registered", spec.Name)
	}
	r.targets[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	return nil
}

// Get retrieves a spec by name.
func (r *Registry) Get(name string) (*Spec, bool) {
	s, ok := r.targets[name]
	return s, ok
}

// Names returns registered target names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns registered specs in registration order.
func (r *Registry) All() []*Spec {
	out := make([]*Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.targets[name])
	}
	return out
}

// Builtin builds the registry of the six verification targets from the
// resolved configuration. Argument vectors mirror the checker scripts' own
// CLI contracts.
func Builtin(cfg *config.Config) *Registry {
	baseEnv := map[string]string{"BASE_URL": cfg.BaseURL}
	if cfg.IDToken != "" {
		baseEnv = map[string]string{"BASE_URL": cfg.BaseURL, "ID_TOKEN": cfg.IDToken}
	}

	r := NewRegistry()
	// Registration cannot fail here: names are literals and unique.
	_ = r.Add(&Spec{
		Name:        "accept",
		Description: "acceptance metrics for the latest enrichment run, all tenants",
		Script:      "acceptance_check.py",
		Args:        []string{"--scope", "latest"},
		Env:         baseEnv,
	})
	_ = r.Add(&Spec{
		Name:           "accept-tenant",
		Description:    "acceptance metrics for the latest enrichment run, one tenant",
		Script:         "acceptance_check.py",
		RequiredParams: []string{"tenant"},
		Args:           []string{"--scope", "latest", "--tenant", Param("tenant")},
		Env:            baseEnv,
	})
	_ = r.Add(&Spec{
		Name:        "sso",
		Description: "SSO and auth isolation checks against /info",
		Script:      "sso_isolation_check.py",
		Env:         baseEnv,
	})
	_ = r.Add(&Spec{
		Name:           "rls",
		Description:    "row-level security smoke test comparing two tenants",
		Script:         "rls_smoke.py",
		RequiredParams: []string{"a", "b"},
		Args:           []string{"--a", Param("a"), "--b", Param("b")},
	})
	_ = r.Add(&Spec{
		Name:        "export-verify",
		Description: "compare export API row count with the database",
		Script:      "export_verify.py",
		Args:        []string{"--limit", "100"},
		Env:         baseEnv,
	})
	_ = r.Add(&Spec{
		Name:        "odoo-p95",
		Description: "p95 latency of /onboarding/verify_odoo over 20 requests",
		Script:      "verify_odoo_p95.py",
		Args:        []string{"--n", "20"},
		Env:         baseEnv,
	})
	return r
}
