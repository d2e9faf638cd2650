package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CatalogPermission is an operator-defined permission advertised next to the
// built-in catalog.
type CatalogPermission struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

type PermissionCatalog struct {
	Permissions []CatalogPermission `mapstructure:"permissions"`
}

type PermissionCatalogHolder struct {
	current atomic.Value // holds PermissionCatalog
}

// NewPermissionCatalogHolder reads permissions.yml from PERMISSION_CATALOG_PATH
// or the default locations. Without an explicit path a missing file yields an
// empty catalog.
func NewPermissionCatalogHolder(cfg Config) (*PermissionCatalogHolder, error) {
	v := viper.New()

	if cfg.PermissionCatalogPath != "" {
		v.SetConfigFile(cfg.PermissionCatalogPath)
	} else {
		v.SetConfigName("permissions")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/identity")
		v.AddConfigPath(".")
	}
	return newPermissionCatalogHolder(v)
}

func newPermissionCatalogHolder(v *viper.Viper) (*PermissionCatalogHolder, error) {
	log := zap.L().Named("config.permissions")
	holder := &PermissionCatalogHolder{}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			holder.current.Store(PermissionCatalog{})
			return holder, nil
		}
		return nil, err
	}

	catalog, err := decodePermissionCatalog(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(catalog)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePermissionCatalog(v)
		if err != nil {
			log.Warn("invalid permission catalog ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("permission catalog reloaded", zap.String("file", e.Name), zap.Int("count", len(updated.Permissions)))
	})

	return holder, nil
}

// NewStaticPermissionCatalogHolder pins a catalog without watching any file.
func NewStaticPermissionCatalogHolder(catalog PermissionCatalog) *PermissionCatalogHolder {
	holder := &PermissionCatalogHolder{}
	holder.current.Store(catalog)
	return holder
}

func (h *PermissionCatalogHolder) Get() PermissionCatalog {
	if h == nil {
		return PermissionCatalog{}
	}
	catalog, _ := h.current.Load().(PermissionCatalog)
	return catalog
}

func decodePermissionCatalog(v *viper.Viper) (PermissionCatalog, error) {
	var catalog PermissionCatalog
	if err := v.Unmarshal(&catalog); err != nil {
		return PermissionCatalog{}, err
	}
	if err := validatePermissionCatalog(catalog); err != nil {
		return PermissionCatalog{}, err
	}
	for i := range catalog.Permissions {
		catalog.Permissions[i].Name = strings.TrimSpace(catalog.Permissions[i].Name)
		catalog.Permissions[i].Description = strings.TrimSpace(catalog.Permissions[i].Description)
	}
	return catalog, nil
}

func validatePermissionCatalog(catalog PermissionCatalog) error {
	seen := make(map[string]struct{}, len(catalog.Permissions))
	for i, p := range catalog.Permissions {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("permissions[%d].name cannot be empty", i)
		}
		if len(name) > 100 {
			return fmt.Errorf("permissions[%d].name exceeds 100 characters", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("permissions[%d].name %q is duplicated", i, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
