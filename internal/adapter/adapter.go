// Package adapter defines the pluggable routing contracts of the proxy: who
// answers server-list pings, which backends exist, and which one a player is
// sent to. Connections see only the contracts; variants are resolved once at
// process start.
package adapter

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Target is a selectable backend game server.
type Target struct {
	ID   string            `json:"id" yaml:"id"`
	Addr string            `json:"addr" yaml:"addr"`
	Meta map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// ServerVersion is the advertised protocol version of the proxy.
type ServerVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

// ServerPlayer is one sampled player entry shown on version hover.
type ServerPlayer struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ServerPlayers is the online/max/sample block of a status response.
type ServerPlayers struct {
	Online int            `json:"online"`
	Max    int            `json:"max"`
	Sample []ServerPlayer `json:"sample,omitempty"`
}

// ServerStatus is the JSON body of a status response.
type ServerStatus struct {
	Version            ServerVersion   `json:"version"`
	Players            *ServerPlayers  `json:"players"`
	Description        json.RawMessage `json:"description,omitempty"`
	Favicon            string          `json:"favicon,omitempty"`
	EnforcesSecureChat *bool           `json:"enforcesSecureChat,omitempty"`
}

// Request carries the connection context every adapter call receives.
// Username and UserID are empty until login has progressed far enough.
type Request struct {
	ClientAddr    string
	ServerAddress string
	ServerPort    uint16
	Protocol      int32
	Username      string
	UserID        uuid.UUID
}

// StatusSupplier answers server-list pings. A nil status with nil error means
// the connection is dropped without a response (hidden server).
type StatusSupplier interface {
	Status(ctx context.Context, req Request) (*ServerStatus, error)
}

// Discovery produces the ordered candidate targets for a player.
type Discovery interface {
	Targets(ctx context.Context, req Request) ([]Target, error)
}

// Strategy picks at most one target from the discovered candidates.
type Strategy interface {
	Select(ctx context.Context, req Request, targets []Target) (*Target, error)
}

// ResourcePack is one pack offered during Configuration.
type ResourcePack struct {
	ID     uuid.UUID `yaml:"id"`
	URL    string    `yaml:"url"`
	Hash   string    `yaml:"hash"`
	Forced bool      `yaml:"forced"`
	Prompt string    `yaml:"prompt"`
}

// PackSupplier decides which resource packs a joining player is offered.
type PackSupplier interface {
	Packs(ctx context.Context, req Request) ([]ResourcePack, error)
}

// Set bundles the resolved adapter variants.
type Set struct {
	Status    StatusSupplier
	Discovery Discovery
	Strategy  Strategy
	Packs     PackSupplier
}
