package gateways

import (
	"errors"
	"fmt"

	"github.com/GuiSantosdev/clivus-dev-sub001/models"
)

// ErrGatewayDisabled is returned for gateways that exist but are not
// enabled or configured. The registry fails closed: an unknown or
// misconfigured gateway never yields an adapter.
var ErrGatewayDisabled = errors.New("gateway disabled or not configured")

// Registry maps gateway names to their adapters.
type Registry struct {
	adapters map[models.GatewayName]Gateway
}

func NewRegistry(adapters ...Gateway) *Registry {
	r := &Registry{adapters: make(map[models.GatewayName]Gateway, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Lookup returns the adapter for name, failing closed when the gateway is
// unknown, disabled or misconfigured.
func (r *Registry) Lookup(name models.GatewayName) (Gateway, error) {
	if !models.ValidGateway(name) {
		return nil, fmt.Errorf("%w: unknown gateway %q", ErrGatewayDisabled, name)
	}
	g, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGatewayDisabled, name)
	}
	return g, nil
}
