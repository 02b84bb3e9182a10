// Package catalog loads the YAML description of what a run provisions:
// the repositories to enable and the components to install. Components
// are a tagged variant: a package group or a named maintenance action,
// never both.
package catalog

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pacprep/pacprep/pkg/provision"
	"github.com/pacprep/pacprep/pkg/resolve"
)

// Named maintenance actions a component may carry instead of packages.
// The orchestrator binds them to concrete behavior at run time.
const (
	// ActionCleanup removes orphaned packages.
	ActionCleanup = "cleanup"

	// ActionCacheClear clears the package download cache.
	ActionCacheClear = "cache-clear"
)

// Component is one logical unit of the installation pipeline. Exactly one
// of Packages or Action is set.
type Component struct {
	// Name identifies the component in reports and the run journal.
	Name string `yaml:"name" validate:"required"`

	// Description is shown in the run report.
	Description string `yaml:"description,omitempty"`

	// Packages are the package requests this component installs.
	Packages []resolve.PackageRequest `yaml:"packages,omitempty" validate:"omitempty,dive"`

	// Action names a maintenance action instead of a package group.
	Action string `yaml:"action,omitempty" validate:"omitempty,oneof=cleanup cache-clear"`

	// RequiresRepo names a repository this component's packages come from.
	// When that repository fails to provision, the component is skipped
	// rather than failed.
	RequiresRepo string `yaml:"requires_repo,omitempty"`
}

// IsAction reports whether the component is a maintenance action.
func (c Component) IsAction() bool { return c.Action != "" }

// Catalog is the full run description.
type Catalog struct {
	// Repositories are enabled during the provisioning stage, in order.
	Repositories []provision.Spec `yaml:"repositories,omitempty" validate:"omitempty,dive"`

	// Components are processed during the installation stage, in order.
	Components []Component `yaml:"components" validate:"required,min=1,dive"`
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := cat.validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Load reads and parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

func (c *Catalog) validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}

	repos := make(map[string]bool, len(c.Repositories))
	for _, r := range c.Repositories {
		if repos[r.Name] {
			return fmt.Errorf("invalid catalog: duplicate repository %q", r.Name)
		}
		repos[r.Name] = true
	}

	names := make(map[string]bool, len(c.Components))
	for _, comp := range c.Components {
		if names[comp.Name] {
			return fmt.Errorf("invalid catalog: duplicate component %q", comp.Name)
		}
		// Repositories and components share the run's outcome namespace.
		if repos[comp.Name] {
			return fmt.Errorf("invalid catalog: component %q collides with a repository name", comp.Name)
		}
		names[comp.Name] = true

		switch {
		case comp.IsAction() && len(comp.Packages) > 0:
			return fmt.Errorf("invalid catalog: component %q carries both packages and an action", comp.Name)
		case !comp.IsAction() && len(comp.Packages) == 0:
			return fmt.Errorf("invalid catalog: component %q carries neither packages nor an action", comp.Name)
		}

		if comp.RequiresRepo != "" && !repos[comp.RequiresRepo] {
			return fmt.Errorf("invalid catalog: component %q requires unknown repository %q", comp.Name, comp.RequiresRepo)
		}
	}
	return nil
}

// Repository returns the named repository spec.
func (c *Catalog) Repository(name string) (provision.Spec, bool) {
	for _, r := range c.Repositories {
		if r.Name == name {
			return r, true
		}
	}
	return provision.Spec{}, false
}

// Select returns the named components in catalog order. An unknown name
// is an error so a typo on the command line never silently runs nothing.
func (c *Catalog) Select(names []string) ([]Component, error) {
	if len(names) == 0 {
		return c.Components, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var out []Component
	for _, comp := range c.Components {
		if wanted[comp.Name] {
			out = append(out, comp)
			delete(wanted, comp.Name)
		}
	}
	for n := range wanted {
		return nil, fmt.Errorf("unknown component %q", n)
	}
	return out, nil
}
