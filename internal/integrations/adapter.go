package integrations

import "context"

// Adapter performs one provider's calls for a request.
type Adapter interface {
	Provider() Provider
	Execute(ctx context.Context, c *Client, cfg Config, req Request) (Outcome, error)
}

// DefaultAdapters returns one adapter per provider.
func DefaultAdapters() map[Provider]Adapter {
	adapters := []Adapter{plankaAdapter{}, bookStackAdapter{}, zohoAdapter{}, chatwootAdapter{}, typebotAdapter{}}
	out := make(map[Provider]Adapter, len(adapters))
	for _, a := range adapters {
		out[a.Provider()] = a
	}
	return out
}
