package tax

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/taxflow/backend/internal/domain/shared"
	"github.com/taxflow/backend/internal/domain/tax"
)

// BackendResolver selects the tax backend serving a tenant.
type BackendResolver interface {
	Resolve(tenantID uuid.UUID) (tax.Backend, error)
}

// StaticBackendResolver resolves backends from a fixed per-tenant map
// loaded at startup. Tenants without an explicit entry use the default
// backend name.
type StaticBackendResolver struct {
	defaultName string
	overrides   map[string]string
	backends    map[string]tax.Backend
}

// NewStaticBackendResolver builds a resolver over the registered
// backends. overrides maps tenant UUID strings to backend names.
func NewStaticBackendResolver(defaultName string, overrides map[string]string, backends ...tax.Backend) *StaticBackendResolver {
	byName := make(map[string]tax.Backend, len(backends))
	for _, b := range backends {
		byName[b.Name()] = b
	}
	return &StaticBackendResolver{
		defaultName: defaultName,
		overrides:   overrides,
		backends:    byName,
	}
}

// Resolve returns the backend configured for the tenant.
func (r *StaticBackendResolver) Resolve(tenantID uuid.UUID) (tax.Backend, error) {
	name := r.defaultName
	if override, ok := r.overrides[tenantID.String()]; ok {
		name = override
	}
	backend, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: tenant %s wants backend %q", shared.ErrTenantNotConfigured, tenantID, name)
	}
	return backend, nil
}

var _ BackendResolver = (*StaticBackendResolver)(nil)
