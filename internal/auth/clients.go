package auth

// Client is an emitter credential, loaded from static config at startup
// and shared read-only for the lifetime of the process (spec §3, §5).
type Client struct {
	APIKey  string `yaml:"api_key" validate:"required"`
	Secret  string `yaml:"secret" validate:"required"`
	Emitter string `yaml:"emitter" validate:"required"`
}

// Registry is an immutable, read-without-locks lookup table of clients
// keyed by api_key. Built once at startup by the config loader.
type Registry struct {
	byKey map[string]Client
}

// NewRegistry builds a Registry from a slice of clients.
func NewRegistry(clients []Client) *Registry {
	r := &Registry{byKey: make(map[string]Client, len(clients))}
	for _, c := range clients {
		r.byKey[c.APIKey] = c
	}
	return r
}

// Lookup returns the client for apiKey and whether it was found.
func (r *Registry) Lookup(apiKey string) (Client, bool) {
	c, ok := r.byKey[apiKey]
	return c, ok
}
