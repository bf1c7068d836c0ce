package adapter

import (
	"context"
	"strconv"
	"strings"
)

// AnyStrategy picks the first discovered target.
type AnyStrategy struct{}

func (AnyStrategy) Select(_ context.Context, _ Request, targets []Target) (*Target, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	t := targets[0]
	return &t, nil
}

// TargetFilter narrows player-fill candidates for a specific virtual host.
// All set predicates must match for a target to be retained.
type TargetFilter struct {
	ServerHost string            `yaml:"server_host"`
	Identifier string            `yaml:"identifier"`
	Meta       map[string]string `yaml:"meta"`
	AllowList  []string          `yaml:"allow_list"` // usernames or player ids
}

// PlayerFillStrategy routes players onto the fullest backend that still has
// room, packing servers instead of spreading load.
type PlayerFillStrategy struct {
	Field      string
	MaxPlayers int
	Filters    []TargetFilter
}

func (s *PlayerFillStrategy) Select(_ context.Context, req Request, targets []Target) (*Target, error) {
	candidates := s.filter(req, targets)

	best := -1
	bestFill := -1
	for i, target := range candidates {
		fill := 0
		if raw, ok := target.Meta[s.Field]; ok {
			if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
				fill = v
			}
		}
		if fill >= s.MaxPlayers {
			continue
		}
		// strict > keeps the earliest candidate on ties
		if fill > bestFill {
			best = i
			bestFill = fill
		}
	}
	if best < 0 {
		return nil, nil
	}
	t := candidates[best]
	return &t, nil
}

// filter applies the first filter whose server_host matches the handshake
// address; without a match all targets pass through.
func (s *PlayerFillStrategy) filter(req Request, targets []Target) []Target {
	var active *TargetFilter
	for i := range s.Filters {
		if s.Filters[i].ServerHost != "" && strings.EqualFold(s.Filters[i].ServerHost, req.ServerAddress) {
			active = &s.Filters[i]
			break
		}
	}
	if active == nil {
		return targets
	}

	if !active.allows(req) {
		return nil
	}

	var out []Target
	for _, target := range targets {
		if active.Identifier != "" && active.Identifier != target.ID {
			continue
		}
		if !metaMatches(active.Meta, target.Meta) {
			continue
		}
		out = append(out, target)
	}
	return out
}

func (f *TargetFilter) allows(req Request) bool {
	if len(f.AllowList) == 0 {
		return true
	}
	for _, entry := range f.AllowList {
		if strings.EqualFold(entry, req.Username) || strings.EqualFold(entry, req.UserID.String()) {
			return true
		}
	}
	return false
}

func metaMatches(want, have map[string]string) bool {
	for key, value := range want {
		if have[key] != value {
			return false
		}
	}
	return true
}
