package conversion

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry tracks which estimator types have had their converter registered
// with the portable-conversion toolchain. Registrations are append-only and
// idempotent per estimator type; the registry is never rolled back within the
// process lifetime.
type Registry struct {
	mu         sync.Mutex
	registered map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{registered: make(map[string]bool)}
}

// Register records a converter registration for the given estimator type and
// reports whether it was already registered. Safe for concurrent use.
func (r *Registry) Register(estimatorType string) (alreadyRegistered bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registered[estimatorType] {
		return true
	}
	r.registered[estimatorType] = true
	log.Info().Str("estimator", estimatorType).Msg("Registered converter for estimator type")
	return false
}

// Registered reports whether the estimator type has been registered.
func (r *Registry) Registered(estimatorType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registered[estimatorType]
}
