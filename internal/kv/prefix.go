package kv

import "context"

// Prefixed scopes a shared store to one key namespace. Closing it leaves
// the shared store open.
type Prefixed struct {
	store  Store
	prefix string
}

func WithPrefix(store Store, prefix string) *Prefixed {
	return &Prefixed{store: store, prefix: prefix}
}

func (p *Prefixed) Get(ctx context.Context, key string) (string, error) {
	return p.store.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Set(ctx context.Context, key, value string) error {
	return p.store.Set(ctx, p.prefix+key, value)
}

func (p *Prefixed) Del(ctx context.Context, keys ...string) error {
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = p.prefix + k
	}
	return p.store.Del(ctx, scoped...)
}

func (p *Prefixed) Close() error { return nil }
