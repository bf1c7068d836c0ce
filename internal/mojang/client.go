// Package mojang talks to the external account authority that confirms a
// join attempt and returns the verified player profile.
package mojang

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/passage/internal/protocol"
)

// DefaultBaseURL is the official session server.
const DefaultBaseURL = "https://sessionserver.mojang.com"

// defaultTimeout bounds one hasJoined round-trip. It stays well below the
// connection's overall deadline.
const defaultTimeout = 15 * time.Second

// Profile is the verified identity of a joining player.
type Profile struct {
	ID         uuid.UUID                  `json:"id"`
	Name       string                     `json:"name"`
	Properties []protocol.ProfileProperty `json:"properties"`
}

// UnmarshalJSON accepts the authority's hyphenless hex ids.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string                     `json:"id"`
		Name       string                     `json:"name"`
		Properties []protocol.ProfileProperty `json:"properties"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := uuid.Parse(raw.ID)
	if err != nil {
		return fmt.Errorf("parsing profile id %q: %w", raw.ID, err)
	}
	p.ID = id
	p.Name = raw.Name
	p.Properties = raw.Properties
	return nil
}

// Client issues hasJoined requests. Shared by all connections.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// HasJoined confirms that the named player initiated a join against this
// server's key. serverID is the join hash; ip is the observed peer address
// and may be empty. Any non-200 response fails the login.
func (c *Client) HasJoined(ctx context.Context, username, serverID, ip string) (*Profile, error) {
	query := url.Values{}
	query.Set("username", username)
	query.Set("serverId", serverID)
	if ip != "" {
		query.Set("ip", ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/session/minecraft/hasJoined?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building hasJoined request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hasJoined request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hasJoined returned status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding hasJoined response: %w", err)
	}
	return &profile, nil
}
