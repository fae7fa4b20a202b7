package usecase

import (
	"sort"

	"partnerbot/internal/domain"
)

// Registry is the process-wide catalog of intent handlers. Registration is
// explicit (no reflection scan) so membership is visible at the call site in
// cmd/bot, and duplicate names fail the build step instead of silently
// overwriting. The registry is immutable after BuildRegistry returns.
type Registry struct {
	intents map[string]domain.Intent
	names   []string
}

// BuildRegistry constructs the registry from an explicit intent list.
// Fails fast with ErrDuplicate when two intents share a name, and with
// ErrInvalidInput on an empty name.
func BuildRegistry(intents ...domain.Intent) (*Registry, error) {
	r := &Registry{intents: make(map[string]domain.Intent, len(intents))}
	for _, in := range intents {
		name := in.Name()
		if name == "" {
			return nil, domain.NewDomainError("Registry.Build", domain.ErrInvalidInput, "intent with empty name")
		}
		if _, exists := r.intents[name]; exists {
			return nil, domain.NewDomainError("Registry.Build", domain.ErrDuplicate, name)
		}
		r.intents[name] = in
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns the intent registered under name.
func (r *Registry) Get(name string) (domain.Intent, bool) {
	in, ok := r.intents[name]
	return in, ok
}

// Names returns all registered intent names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered intents.
func (r *Registry) Len() int { return len(r.intents) }
