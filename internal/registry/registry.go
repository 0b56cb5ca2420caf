// Package registry holds the static catalog of models a prompt can be sent
// to, with display metadata and per-1K-token prices.
package registry

// ModelDescriptor describes one selectable model. Values are immutable once
// the registry is built.
type ModelDescriptor struct {
	ID               string  `json:"id"`          // OpenRouter model ID, e.g. "mistralai/mistral-7b-instruct"
	Name             string  `json:"name"`        // display name
	Description      string  `json:"description"` // short blurb for the picker
	PricePer1kTokens float64 `json:"pricePer1kTokens"`
}

// defaultModels is the built-in catalog. Prices are approximate USD per 1K
// tokens, used for estimation, not billing.
var defaultModels = []ModelDescriptor{
	{ID: "mistralai/mistral-7b-instruct", Name: "Mistral 7B Instruct", Description: "Fast and efficient", PricePer1kTokens: 0.00025},
	{ID: "mistralai/mixtral-8x7b-instruct", Name: "Mixtral 8x7B Instruct", Description: "High performance", PricePer1kTokens: 0.0006},
	{ID: "meta-llama/llama-3.1-8b-instruct", Name: "Llama 3.1 8B Instruct", Description: "Meta's latest", PricePer1kTokens: 0.0002},
	{ID: "google/gemma-2-9b-it", Name: "Gemma 2 9B IT", Description: "Google's efficient model", PricePer1kTokens: 0.0003},
}

// Registry is a read-only model catalog. It is safe for concurrent use
// without locking because nothing mutates it after New returns.
type Registry struct {
	models []ModelDescriptor
	byID   map[string]int
}

// New builds a registry from the given models, keeping declaration order.
// If an ID repeats, the first occurrence wins. Negative prices become 0.
func New(models ...ModelDescriptor) *Registry {
	r := &Registry{
		models: make([]ModelDescriptor, 0, len(models)),
		byID:   make(map[string]int, len(models)),
	}
	for _, m := range models {
		if m.ID == "" {
			continue
		}
		if _, dup := r.byID[m.ID]; dup {
			continue
		}
		if m.PricePer1kTokens < 0 {
			m.PricePer1kTokens = 0
		}
		r.byID[m.ID] = len(r.models)
		r.models = append(r.models, m)
	}
	return r
}

// Default returns a registry with the built-in catalog.
func Default() *Registry {
	return New(defaultModels...)
}

// List returns the models in catalog order. The slice is a copy.
func (r *Registry) List() []ModelDescriptor {
	out := make([]ModelDescriptor, len(r.models))
	copy(out, r.models)
	return out
}

// Get looks up a model by ID. A miss returns false; it is not an error.
func (r *Registry) Get(id string) (ModelDescriptor, bool) {
	i, ok := r.byID[id]
	if !ok {
		return ModelDescriptor{}, false
	}
	return r.models[i], true
}

// Price returns the per-1K-token price for a model.
func (r *Registry) Price(id string) (float64, bool) {
	m, ok := r.Get(id)
	if !ok {
		return 0, false
	}
	return m.PricePer1kTokens, true
}

// Len returns the number of models in the catalog.
func (r *Registry) Len() int {
	return len(r.models)
}
