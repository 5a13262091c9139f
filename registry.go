package aurora

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicateTool is returned when a tool name is registered twice.
	ErrDuplicateTool = errors.New("duplicate tool name")

	// ErrRegistryFrozen is returned when registering after the server has
	// started accepting requests.
	ErrRegistryFrozen = errors.New("registry is frozen")
)

// ToolRegistry holds every tool the server can invoke. Registration happens
// once at startup; Freeze is called when the server starts accepting requests
// and all later mutation fails. Reads are safe for concurrent use.
type ToolRegistry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
	frozen bool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. It fails if the registry is frozen,
// the name is empty, the handler is nil, or the name is already taken.
// Registration order is preserved for Summaries.
func (r *ToolRegistry) Register(t Tool) error {
	if t.Name == "" {
		return errors.New("tool name must not be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("cannot register tool %q: %w", t.Name, ErrRegistryFrozen)
	}
	if _, ok := r.tools[t.Name]; ok {
		return fmt.Errorf("tool %q: %w", t.Name, ErrDuplicateTool)
	}

	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Freeze makes the registry read-only. The server calls it when it starts
// accepting requests; calling it more than once is harmless.
func (r *ToolRegistry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Lookup returns the tool registered under name.
func (r *ToolRegistry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// Summaries returns one summary per registered tool, in registration order.
func (r *ToolRegistry) Summaries() []ToolSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]ToolSummary, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		summaries = append(summaries, ToolSummary{
			Name:        t.Name,
			Description: t.Description,
		})
	}
	return summaries
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
