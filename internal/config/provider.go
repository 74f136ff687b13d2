// Configuration value providers. Values used for $VAR substitution in the
// config file come from an ordered set of providers: later registrations
// override earlier ones on key conflicts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider supplies configuration variables from one environment
// (runtime overrides, process env, a variables file, ...).
type Provider interface {
	// Name identifies the provider for duplicate-registration checks.
	Name() string

	// Values retrieves the configuration variables of this provider's
	// environment.
	Values() (map[string]string, error)
}

// Registry aggregates all configuration variables that may be present for a
// given user environment. Providers are invoked in registration order;
// on conflict, later providers overwrite earlier values.
type Registry struct {
	providers []Provider
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry with the process environment registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(EnvProvider{})
	return r
}

// Register saves a provider for downstream value aggregation.
// Registering two providers with the same name is an error.
func (r *Registry) Register(p Provider) error {
	for _, existing := range r.providers {
		if existing.Name() == p.Name() {
			return fmt.Errorf("provider %q has already been registered", p.Name())
		}
	}
	r.providers = append(r.providers, p)
	return nil
}

// Provider retrieves a registered provider by name, or nil.
func (r *Registry) Provider(name string) Provider {
	for _, p := range r.providers {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Values iterates through all registered providers and aggregates their
// configuration variables.
func (r *Registry) Values() (map[string]string, error) {
	values := make(map[string]string)
	for _, p := range r.providers {
		pv, err := p.Values()
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.Name(), err)
		}
		for k, v := range pv {
			values[k] = v
		}
	}
	return values, nil
}

// EnvProvider exposes the process environment.
type EnvProvider struct{}

func (EnvProvider) Name() string { return "env" }

func (EnvProvider) Values() (map[string]string, error) {
	values := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			values[kv[:i]] = kv[i+1:]
		}
	}
	return values, nil
}

// RuntimeProvider exposes a fixed map supplied at startup (highest priority
// when registered last).
type RuntimeProvider struct {
	values map[string]string
}

// NewRuntimeProvider wraps the given runtime overrides.
func NewRuntimeProvider(values map[string]string) RuntimeProvider {
	return RuntimeProvider{values: values}
}

func (RuntimeProvider) Name() string { return "runtime" }

func (p RuntimeProvider) Values() (map[string]string, error) {
	return p.values, nil
}

// VariablesFileProvider loads user-defined configuration variables from a
// YAML file (typically .docnerd/variables.yml). The file path itself may
// contain $VAR references resolved from the process environment, and the
// file's values are likewise substituted. A missing file yields no values.
type VariablesFileProvider struct {
	// Path to the variables file; may be relative to RootDir
	Path string

	// RootDir anchors relative paths (defaults to the current directory)
	RootDir string
}

func (VariablesFileProvider) Name() string { return "variables_file" }

func (p VariablesFileProvider) Values() (map[string]string, error) {
	env, err := EnvProvider{}.Values()
	if err != nil {
		return nil, err
	}

	path := SubstituteAll(p.Path, env)
	if !filepath.IsAbs(path) {
		root := p.RootDir
		if root == "" {
			root = "."
		}
		path = filepath.Join(root, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read variables file: %w", err)
	}

	raw := make(map[string]string)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse variables file: %w", err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		values[k] = SubstituteAll(v, env)
	}
	return values, nil
}

// varPattern matches $VAR and ${VAR} references.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// SubstituteAll replaces every $VAR / ${VAR} reference in s with its value
// from values. Unknown variables are left untouched so broken references
// surface verbatim instead of silently becoming empty strings.
func SubstituteAll(s string, values map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "$")
		name = strings.TrimPrefix(name, "{")
		name = strings.TrimSuffix(name, "}")
		if v, ok := values[name]; ok {
			return v
		}
		return match
	})
}
