package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/udisondev/passage/internal/adapter"
	"github.com/udisondev/passage/internal/config"
)

// BuildAdapters resolves the configured adapter variants once at startup.
// A Redis client is opened only when a store variant asks for one; the
// returned close func releases it.
func BuildAdapters(cfg config.Config) (adapter.Set, func() error, error) {
	var (
		set adapter.Set
		rdb *redis.Client
	)
	closeFn := func() error { return nil }

	store := func() *redis.Client {
		if rdb == nil {
			rdb = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			closeFn = rdb.Close
		}
		return rdb
	}

	cacheTTL := time.Duration(cfg.Status.CacheSecs) * time.Second

	switch cfg.Status.Adapter {
	case "fixed":
		set.Status = &adapter.FixedStatus{
			VersionName:        cfg.Status.VersionName,
			PreferredVersion:   cfg.Status.PreferredVersion,
			MinVersion:         cfg.Status.MinVersion,
			MaxVersion:         cfg.Status.MaxVersion,
			Description:        descriptionJSON(cfg.Status.Description),
			PlayersOnline:      cfg.Status.PlayersOnline,
			PlayersMax:         cfg.Status.PlayersMax,
			Favicon:            cfg.Status.Favicon,
			EnforcesSecureChat: cfg.Status.EnforcesSecureChat,
		}
	case "none":
		set.Status = adapter.NoneStatus{}
	case "http":
		set.Status = adapter.NewHTTPStatus(cfg.Status.URL, cacheTTL)
	case "store":
		set.Status = adapter.NewStoreStatus(store(), cfg.Status.StoreKey, cacheTTL)
	default:
		return set, closeFn, fmt.Errorf("unknown status adapter %q", cfg.Status.Adapter)
	}

	switch cfg.TargetDiscovery.Adapter {
	case "fixed":
		set.Discovery = &adapter.FixedDiscovery{List: cfg.TargetDiscovery.Targets}
	case "none":
		set.Discovery = adapter.NoneDiscovery{}
	case "dns":
		set.Discovery = adapter.NewDNSDiscovery(cfg.TargetDiscovery.Service, cfg.TargetDiscovery.Name)
	case "store":
		set.Discovery = adapter.NewStoreDiscovery(store(), cfg.TargetDiscovery.StoreKey)
	default:
		return set, closeFn, fmt.Errorf("unknown target discovery adapter %q", cfg.TargetDiscovery.Adapter)
	}

	switch cfg.TargetStrategy.Adapter {
	case "any":
		set.Strategy = adapter.AnyStrategy{}
	case "player_fill":
		set.Strategy = &adapter.PlayerFillStrategy{
			Field:      cfg.TargetStrategy.Field,
			MaxPlayers: cfg.TargetStrategy.MaxPlayers,
			Filters:    cfg.TargetStrategy.TargetFilters,
		}
	default:
		return set, closeFn, fmt.Errorf("unknown target strategy adapter %q", cfg.TargetStrategy.Adapter)
	}

	switch cfg.ResourcePack.Adapter {
	case "none":
		set.Packs = adapter.NonePacks{}
	case "fixed":
		set.Packs = &adapter.FixedPacks{List: cfg.ResourcePack.Packs}
	default:
		return set, closeFn, fmt.Errorf("unknown resourcepack adapter %q", cfg.ResourcePack.Adapter)
	}

	return set, closeFn, nil
}

// descriptionJSON accepts either a raw chat-component JSON document or plain
// text, which is wrapped into a text component.
func descriptionJSON(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	wrapped, _ := json.Marshal(map[string]string{"text": s})
	return wrapped
}
