package aggregate

import (
	"sort"
	"strings"

	"simfleet-svr/internal/sim"
)

// ProviderErrors junta los fallos por proveedor de una carga de inventario.
type ProviderErrors map[sim.Provider]error

func (e ProviderErrors) Error() string {
	names := make([]string, 0, len(e))
	for p := range e {
		names = append(names, string(p))
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + ": " + e[sim.Provider(n)].Error()
	}
	return "providers failed: " + strings.Join(parts, "; ")
}

func (e ProviderErrors) Unwrap() []error {
	out := make([]error, 0, len(e))
	for _, err := range e {
		out = append(out, err)
	}
	return out
}

// Strings para JSON y para el evento inventory_refresh.
func (e ProviderErrors) Strings() map[string]string {
	if len(e) == 0 {
		return nil
	}
	out := make(map[string]string, len(e))
	for p, err := range e {
		out[string(p)] = err.Error()
	}
	return out
}
