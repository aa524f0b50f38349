package storage

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/fx"

	"github.com/harborlight/townfeed/internal/config"
	storageConfig "github.com/harborlight/townfeed/internal/storage/config"
)

// DecodeConnectionConfig decodes the named connection's settings out of the
// application configuration. The connection map holds raw YAML values, so
// mapstructure decodes them by yaml tag.
func DecodeConnectionConfig(cfg *config.Config, name string) (storageConfig.StorageConfig, error) {
	var storageCfg storageConfig.StorageConfig

	namedConfig, ok := cfg.Townfeed.Storage.Connections[name]
	if !ok {
		return storageCfg, fmt.Errorf("storage configuration for name '%s' not found", name)
	}

	decoderConfig := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   &storageCfg,
		TagName:  "yaml",
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return storageCfg, fmt.Errorf("failed to create decoder for storage config '%s': %w", name, err)
	}
	if err := decoder.Decode(namedConfig); err != nil {
		return storageCfg, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	return storageCfg, nil
}

// connectionResolver implements ConnectionResolver over the set of
// registered providers, keyed by adapter type.
type connectionResolver struct {
	providers map[string]StorageProvider
	cfg       *config.Config
}

// ResolverParams defines the dependencies for NewConnectionResolver.
type ResolverParams struct {
	fx.In
	Cfg *config.Config
	// Providers is collected by Fx from every adapter module tagged
	// with group:"storage_providers".
	Providers []StorageProvider `group:"storage_providers"`
}

// NewConnectionResolver creates a ConnectionResolver from the registered
// storage providers.
func NewConnectionResolver(p ResolverParams) ConnectionResolver {
	byType := make(map[string]StorageProvider, len(p.Providers))
	for _, provider := range p.Providers {
		byType[provider.Type()] = provider
	}
	return &connectionResolver{providers: byType, cfg: p.Cfg}
}

// ResolveStorageConnection resolves a connection by name: the connection's
// configured type selects the provider, the provider owns the connection.
func (r *connectionResolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	storageCfg, err := DecodeConnectionConfig(r.cfg, name)
	if err != nil {
		return nil, err
	}

	provider, ok := r.providers[storageCfg.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", storageCfg.Type, name)
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage connection '%s' from provider '%s': %w", name, storageCfg.Type, err)
	}
	return conn, nil
}

// Module is the Fx module providing the connection resolver.
var Module = fx.Options(
	fx.Provide(NewConnectionResolver),
)
