package core

// Auth modes a ToolRef may declare. AuthModeSession tools receive the
// session's auth context rendered into the derived query; AuthModeAnonymous
// tools are called without credentials.
const (
	AuthModeAnonymous = "anonymous"
	AuthModeSession   = "session"
)

// ToolRef names a capability an agent may invoke, resolved lazily into a
// ToolBinding by the tool provider. It is owned by the descriptor that
// declares it.
type ToolRef struct {
	Name        string `json:"name" yaml:"name"`
	APIResource string `json:"api_resource" yaml:"api_resource"`
	AuthMode    string `json:"auth_mode" yaml:"auth_mode"`
}

// Descriptor is the static definition of a specialist agent: identity,
// instruction text, required tool refs and child descriptors. Descriptors are
// immutable after registration and live for the whole process.
//
// Children form a DAG; the registry rejects any registration that would
// (transitively) make a descriptor its own child.
type Descriptor struct {
	Name         string
	Description  string
	Instructions string
	Tools        []ToolRef
	Children     []*Descriptor
}

// HasTools reports whether the descriptor declares any tool refs.
func (d *Descriptor) HasTools() bool { return len(d.Tools) > 0 }

// ChildNames returns the names of direct children in declaration order.
func (d *Descriptor) ChildNames() []string {
	names := make([]string, 0, len(d.Children))
	for _, c := range d.Children {
		names = append(names, c.Name)
	}
	return names
}

// ToolBinding is a resolved ToolRef: the loaded API resource description
// ready to be attached to a runtime agent.
type ToolBinding struct {
	Ref         ToolRef
	Description string
	// Document is the parsed OpenAPI description of the resource.
	Document map[string]any
}

// Handle is the runtime-side identity of an instantiated descriptor. One
// handle exists per descriptor per process; it is owned by the instantiator's
// cache and shared read-only with the router.
type Handle struct {
	Descriptor *Descriptor
	RuntimeID  string
	Tools      []ToolBinding
	Children   []*Handle
}

// BoundToolNames returns the names of the handle's tool bindings in order.
// The instantiator guarantees these exactly match the descriptor's tool refs.
func (h *Handle) BoundToolNames() []string {
	names := make([]string, 0, len(h.Tools))
	for _, b := range h.Tools {
		names = append(names, b.Ref.Name)
	}
	return names
}

// FindChild returns the child handle for the named descriptor, or nil.
func (h *Handle) FindChild(name string) *Handle {
	for _, c := range h.Children {
		if c.Descriptor.Name == name {
			return c
		}
	}
	return nil
}
