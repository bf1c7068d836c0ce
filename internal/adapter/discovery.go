package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// FixedDiscovery serves a static target list from configuration.
type FixedDiscovery struct {
	List []Target
}

func (d *FixedDiscovery) Targets(context.Context, Request) ([]Target, error) {
	out := make([]Target, len(d.List))
	copy(out, d.List)
	return out, nil
}

// NoneDiscovery never finds a target; every login ends in a disconnect.
type NoneDiscovery struct{}

func (NoneDiscovery) Targets(context.Context, Request) ([]Target, error) {
	return nil, nil
}

// DNSDiscovery resolves backend targets from SRV records, e.g.
// _minecraft._tcp.<name>. Record order is preserved as discovery order.
type DNSDiscovery struct {
	Service string // SRV service label, e.g. "minecraft"
	Name    string // zone name the records live under

	resolver *net.Resolver
}

func NewDNSDiscovery(service, name string) *DNSDiscovery {
	return &DNSDiscovery{Service: service, Name: name, resolver: net.DefaultResolver}
}

func (d *DNSDiscovery) Targets(ctx context.Context, _ Request) ([]Target, error) {
	_, records, err := d.resolver.LookupSRV(ctx, d.Service, "tcp", d.Name)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup %s: %w", d.Name, err)
	}

	targets := make([]Target, 0, len(records))
	for _, rec := range records {
		host := trimDot(rec.Target)
		targets = append(targets, Target{
			ID:   host,
			Addr: net.JoinHostPort(host, strconv.Itoa(int(rec.Port))),
			Meta: map[string]string{
				"priority": strconv.Itoa(int(rec.Priority)),
				"weight":   strconv.Itoa(int(rec.Weight)),
			},
		})
	}
	return targets, nil
}

func trimDot(s string) string {
	if len(s) > 0 && s[len(s)-1] == '.' {
		return s[:len(s)-1]
	}
	return s
}

// StoreDiscovery reads targets from a Redis hash: field is the target id,
// value a JSON document with address and metadata. Backends register and
// deregister themselves; the router only reads.
type StoreDiscovery struct {
	rdb *redis.Client
	key string
}

func NewStoreDiscovery(rdb *redis.Client, key string) *StoreDiscovery {
	return &StoreDiscovery{rdb: rdb, key: key}
}

type storeTarget struct {
	Addr string            `json:"addr"`
	Meta map[string]string `json:"meta"`
}

func (d *StoreDiscovery) Targets(ctx context.Context, _ Request) ([]Target, error) {
	entries, err := d.rdb.HGetAll(ctx, d.key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading targets hash %q: %w", d.key, err)
	}

	// hash iteration order is random; sort ids for a stable discovery order
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	targets := make([]Target, 0, len(entries))
	for _, id := range ids {
		var entry storeTarget
		if err := json.Unmarshal([]byte(entries[id]), &entry); err != nil {
			return nil, fmt.Errorf("decoding target %q: %w", id, err)
		}
		targets = append(targets, Target{ID: id, Addr: entry.Addr, Meta: entry.Meta})
	}
	return targets, nil
}
