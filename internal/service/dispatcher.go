package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// UnsetCredential marks a provider the caller chose not to configure.
const UnsetCredential = "UNSET"

type ProviderSpec struct {
	Name    string
	Factory ProviderFactory
}

// Credentials carries the caller's provider choice and per-provider keys.
type Credentials struct {
	DefaultModel string
	Keys         map[string]string
}

// Usable reports whether at least one key is present and not UNSET.
func (c Credentials) Usable() bool {
	for _, k := range c.Keys {
		if !isUnset(k) {
			return true
		}
	}
	return false
}

func isUnset(key string) bool {
	return key == "" || key == UnsetCredential
}

// Dispatcher tries registered providers in order, default first.
type Dispatcher struct {
	providers []ProviderSpec
	logger    *zap.Logger
}

func NewDispatcher(providers []ProviderSpec, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		providers: providers,
		logger:    logger,
	}
}

// Names lists the registered providers in registration order.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.Name)
	}
	return names
}

func (d *Dispatcher) order(defaultName string) []ProviderSpec {
	ordered := make([]ProviderSpec, len(d.providers))
	copy(ordered, d.providers)
	defaultName = strings.ToUpper(defaultName)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Name == defaultName && ordered[j].Name != defaultName
	})
	return ordered
}

// Dispatch runs call against each provider until one returns a non-nil result.
// A nil result with a nil error means every provider was skipped or failed.
// If the last provider in order refuses its credential, the refusals seen so
// far are returned as *CredentialsError.
func Dispatch[T any](ctx context.Context, d *Dispatcher, creds Credentials, call func(context.Context, Provider) (*T, error)) (*T, error) {
	ordered := d.order(creds.DefaultModel)
	var refused []string

	for i, spec := range ordered {
		last := i == len(ordered)-1
		key := creds.Keys[spec.Name]
		if isUnset(key) {
			d.logger.Info("Skipping provider, API key is not set", zap.String("provider", spec.Name))
			continue
		}

		result, err := attempt(ctx, spec, key, call)
		if err != nil {
			var keyErr *APIKeyError
			if errors.As(err, &keyErr) {
				d.logger.Warn("Provider refused API key", zap.String("provider", spec.Name), zap.Error(err))
				refused = append(refused, spec.Name)
				if last {
					return nil, &CredentialsError{Providers: refused}
				}
				continue
			}
			d.logger.Error("Provider failed, trying next", zap.String("provider", spec.Name), zap.Error(err))
			continue
		}

		if result != nil {
			d.logger.Info("Provider succeeded", zap.String("provider", spec.Name))
			return result, nil
		}
		d.logger.Info("Provider returned no result", zap.String("provider", spec.Name))
	}

	return nil, nil
}

func attempt[T any](ctx context.Context, spec ProviderSpec, key string, call func(context.Context, Provider) (*T, error)) (*T, error) {
	provider, err := spec.Factory(ctx, key)
	if err != nil {
		return nil, err
	}
	defer provider.Close()

	return call(ctx, provider)
}
