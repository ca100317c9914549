package entities

import (
	"fmt"
	"sort"

	"bitbucket.org/mmdatafocus/erp_importer/models"
)

// The registry holds every importable entity, keyed by the name used as the
// CLI subcommand. Descriptors are validated once at startup; an authoring
// mistake dies here, not mid-run.

var registry = map[string]*models.EntityDescriptor{}

func register(d *models.EntityDescriptor) *models.EntityDescriptor {
	if err := d.Validate(); err != nil {
		panic(fmt.Sprintf("entity descriptor %s: %v", d.Name, err))
	}
	if _, dup := registry[d.Name]; dup {
		panic(fmt.Sprintf("entity descriptor %s registered twice", d.Name))
	}
	registry[d.Name] = d
	return d
}

// Get returns the descriptor for name.
func Get(name string) (*models.EntityDescriptor, error) {
	d, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q (have %v)", name, Names())
	}
	return d, nil
}

// Names lists the registered entities in stable order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every descriptor, ordered by name.
func All() []*models.EntityDescriptor {
	out := make([]*models.EntityDescriptor, 0, len(registry))
	for _, name := range Names() {
		out = append(out, registry[name])
	}
	return out
}
