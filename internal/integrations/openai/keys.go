package openai

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// KeySource resolves the bearer token sent to the completion API.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// TokenGetter reads a JSON token envelope from a parameter store.
type TokenGetter interface {
	GetToken(ctx context.Context, name string) (string, error)
}

type staticKey string

// StaticKey returns a KeySource for a key taken from the environment.
func StaticKey(key string) KeySource {
	return staticKey(strings.TrimSpace(key))
}

func (k staticKey) APIKey(context.Context) (string, error) {
	if k == "" {
		return "", errors.New("openai: API key is empty")
	}
	return string(k), nil
}

// ParamStoreKey fetches the key from <paramPrefix>/open-ai-token on first use
// and reuses it for the lifetime of the process. A failed fetch is retried on
// the next call.
type ParamStoreKey struct {
	getter TokenGetter
	name   string

	mu  sync.Mutex
	key string
}

func NewParamStoreKey(getter TokenGetter, paramPrefix string) (*ParamStoreKey, error) {
	if getter == nil {
		return nil, errors.New("openai: token getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	return &ParamStoreKey{getter: getter, name: paramPrefix + "/open-ai-token"}, nil
}

func (p *ParamStoreKey) APIKey(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.key != "" {
		return p.key, nil
	}
	key, err := p.getter.GetToken(ctx, p.name)
	if err != nil {
		return "", err
	}
	p.key = key
	return key, nil
}
