// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package jury

import (
	"fmt"
	"strings"

	"github.com/verdikta/arbiter/internal/csync"
	"github.com/verdikta/arbiter/pkg/llm"
)

// AdapterLookup resolves a provider name to its adapter. Satisfied by
// pkg/llm/factory.Registry.
type AdapterLookup interface {
	Get(provider string) (llm.Adapter, bool)
}

// Registry resolves jury slot specs to concrete adapters and owns one
// circuit breaker per provider, shared across slots and iterations.
type Registry struct {
	lookup AdapterLookup

	breakers *csync.Map[string, *CircuitBreaker]
}

// NewRegistry creates a jury registry backed by lookup.
func NewRegistry(lookup AdapterLookup) *Registry {
	return &Registry{lookup: lookup, breakers: csync.NewMap[string, *CircuitBreaker]()}
}

// Resolve returns the adapter for spec.Provider, or an error if no adapter
// is registered for that provider. Provider names are matched
// case-insensitively: factory.Registry keys adapters in lowercase, but
// manifests spell providers as shown in the capability matrix (e.g.
// "OpenAI", "Anthropic", "xAI").
func (r *Registry) Resolve(spec SlotSpec) (llm.Adapter, error) {
	a, ok := r.lookup.Get(strings.ToLower(spec.Provider))
	if !ok {
		return nil, fmt.Errorf("provider %q has no configured adapter", spec.Provider)
	}
	return a, nil
}

// Breaker returns the shared circuit breaker for provider, creating one on
// first use. provider is lowercased first so differently-cased spellings of
// the same provider share one breaker. Concurrent first-use races may
// allocate more than one breaker before csync.Map.Set wins; a racing caller
// uses the breaker it allocated for that one call, so what it records there
// is lost if another caller's Set replaces it. Later calls all get the
// breaker that remains in the map.
func (r *Registry) Breaker(provider string) *CircuitBreaker {
	provider = strings.ToLower(provider)
	if cb, ok := r.breakers.Get(provider); ok {
		return cb
	}
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	r.breakers.Set(provider, cb)
	return cb
}
