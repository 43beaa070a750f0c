// Package store implements the hierarchical persisted-state container
// spec.md §6 describes: one top-level group per pipeline step, each group
// holding a parameters and a results sub-group. It mirrors the teacher
// project's own yaml.v3-decoded config structs (workload.WorkloadSpec)
// rather than inventing a bespoke binary format.
package store

// Group is one step's persisted parameters and results.
type Group struct {
	Parameters map[string]any `yaml:"parameters,omitempty"`
	Results    map[string]any `yaml:"results,omitempty"`
}

// Container is the full persisted-state tree.
type Container struct {
	// NumCells records the cell count the state was saved against, so a
	// restore can detect a StateMismatch against freshly loaded inputs.
	NumCells int `yaml:"num_cells"`
	Steps    map[string]*Group `yaml:"steps"`
}

// NewContainer constructs an empty container.
func NewContainer() *Container {
	return &Container{Steps: make(map[string]*Group)}
}

// Group returns the named step's group, creating it on first access.
func (c *Container) Group(name string) *Group {
	g, ok := c.Steps[name]
	if !ok {
		g = &Group{Parameters: make(map[string]any), Results: make(map[string]any)}
		c.Steps[name] = g
	}
	return g
}
