// Package roles provides the crew role catalog: built-in specialist roles
// plus overlays loaded from a YAML role registry file.
package roles

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/isrc101/crew/pkg/models"
)

// Defaults returns the built-in role catalog.
func Defaults() map[string]models.RoleSpec {
	return map[string]models.RoleSpec{
		"coder": {
			Name:        "coder",
			Description: "Write and modify code",
			Instructions: "You are a coding specialist in a multi-agent crew.\n" +
				"Write clean, well-tested code. Always verify changes by reading files after editing.\n" +
				"Focus only on the task assigned to you.",
			Mode:         "agent",
			BlockedTools: []string{"web_search", "web_fetch"},
			AutoConfirm:  true,
		},
		"reviewer": {
			Name:        "reviewer",
			Description: "Code review for correctness, security, and style",
			Instructions: "You are a code reviewer in a multi-agent crew.\n" +
				"Check for correctness, security vulnerabilities, and style issues.\n" +
				"Do not modify files — only report findings.",
			Mode:         "ask",
			AllowedTools: []string{"read_file", "list_directory", "search_files", "find_files", "find_symbol"},
			AutoConfirm:  true,
		},
		"researcher": {
			Name:        "researcher",
			Description: "Technical research and information gathering",
			Instructions: "You are a research specialist in a multi-agent crew.\n" +
				"Find authoritative information to support the team's task.\n" +
				"Cite sources when possible.",
			Mode:        "ask",
			AutoConfirm: true,
		},
		"tester": {
			Name:        "tester",
			Description: "Write and run tests",
			Instructions: "You are a testing specialist in a multi-agent crew.\n" +
				"Write tests and verify code correctness.\n" +
				"Run tests with bash and report results.",
			Mode:        "agent",
			AutoConfirm: true,
		},
	}
}

// Registry holds the effective role catalog for a crew run. Reads and
// reloads are safe for concurrent use.
type Registry struct {
	roles map[string]models.RoleSpec
	mu    sync.RWMutex
}

// NewRegistry creates a Registry seeded with the built-in catalog.
func NewRegistry() *Registry {
	return &Registry{roles: Defaults()}
}

// registryFile is the on-disk shape of a role registry file.
type registryFile struct {
	Roles map[string]models.RoleSpec `yaml:"roles"`
}

// LoadFile overlays role definitions from a YAML file onto the catalog.
// Roles in the file replace or extend the built-ins; absent roles keep their
// defaults. A missing file is not an error.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read role registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse role registry %s: %w", path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, spec := range file.Roles {
		spec.Name = name
		if spec.Mode == "" {
			spec.Mode = "agent"
		}
		r.roles[name] = spec
	}
	return nil
}

// Get returns the role spec for a name.
func (r *Registry) Get(name string) (models.RoleSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.roles[name]
	return spec, ok
}

// Has returns true if the role exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns all role names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.roles))
	for name := range r.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all role specs, sorted by name.
func (r *Registry) List() []models.RoleSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]models.RoleSpec, 0, len(r.roles))
	for _, spec := range r.roles {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Multipliers returns the per-role budget multipliers for roles that declare
// one, keyed by role name.
func (r *Registry) Multipliers() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]float64)
	for name, spec := range r.roles {
		if spec.BudgetMultiplier > 0 {
			out[name] = spec.BudgetMultiplier
		}
	}
	return out
}
