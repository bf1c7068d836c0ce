package adapter

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillTargets() []Target {
	return []Target{
		{ID: "hub-1", Addr: "10.0.0.1:25565", Meta: map[string]string{"players": "5"}},
		{ID: "hub-2", Addr: "10.0.0.2:25565", Meta: map[string]string{"players": "17"}},
		{ID: "hub-3", Addr: "10.0.0.3:25565", Meta: map[string]string{"players": "17"}},
		{ID: "hub-4", Addr: "10.0.0.4:25565", Meta: map[string]string{"players": "20"}},
	}
}

func TestAnyStrategyPicksFirst(t *testing.T) {
	got, err := AnyStrategy{}.Select(context.Background(), Request{}, fillTargets())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hub-1", got.ID)
}

func TestAnyStrategyEmpty(t *testing.T) {
	got, err := AnyStrategy{}.Select(context.Background(), Request{}, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPlayerFillPicksFullestBelowCap(t *testing.T) {
	s := &PlayerFillStrategy{Field: "players", MaxPlayers: 20}

	got, err := s.Select(context.Background(), Request{}, fillTargets())
	require.NoError(t, err)
	require.NotNil(t, got)
	// hub-4 is full, hub-2 wins the tie with hub-3 by discovery order
	assert.Equal(t, "hub-2", got.ID)
}

func TestPlayerFillTreatsBadMetaAsEmpty(t *testing.T) {
	s := &PlayerFillStrategy{Field: "players", MaxPlayers: 20}
	targets := []Target{
		{ID: "a", Meta: map[string]string{"players": "garbage"}},
		{ID: "b", Meta: map[string]string{"players": "-3"}},
		{ID: "c"},
	}

	got, err := s.Select(context.Background(), Request{}, targets)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.ID, "all parse to zero, first wins")
}

func TestPlayerFillAllFull(t *testing.T) {
	s := &PlayerFillStrategy{Field: "players", MaxPlayers: 5}
	got, err := s.Select(context.Background(), Request{}, fillTargets())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPlayerFillFilterByHostAndIdentifier(t *testing.T) {
	s := &PlayerFillStrategy{
		Field:      "players",
		MaxPlayers: 20,
		Filters: []TargetFilter{
			{ServerHost: "minigames.example.com", Identifier: "hub-3"},
		},
	}

	req := Request{ServerAddress: "MINIGAMES.example.com"}
	got, err := s.Select(context.Background(), req, fillTargets())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hub-3", got.ID, "host match is case-insensitive")

	// a host with no filter sees every target
	got, err = s.Select(context.Background(), Request{ServerAddress: "other.example.com"}, fillTargets())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hub-2", got.ID)
}

func TestPlayerFillFilterByMeta(t *testing.T) {
	s := &PlayerFillStrategy{
		Field:      "players",
		MaxPlayers: 20,
		Filters: []TargetFilter{
			{ServerHost: "play.example.com", Meta: map[string]string{"players": "5"}},
		},
	}

	got, err := s.Select(context.Background(), Request{ServerAddress: "play.example.com"}, fillTargets())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hub-1", got.ID)
}

func TestPlayerFillAllowList(t *testing.T) {
	id := uuid.New()
	s := &PlayerFillStrategy{
		Field:      "players",
		MaxPlayers: 20,
		Filters: []TargetFilter{
			{ServerHost: "staff.example.com", AllowList: []string{"Notch", id.String()}},
		},
	}

	req := Request{ServerAddress: "staff.example.com", Username: "notch"}
	got, err := s.Select(context.Background(), req, fillTargets())
	require.NoError(t, err)
	assert.NotNil(t, got, "allow list matches usernames case-insensitively")

	req = Request{ServerAddress: "staff.example.com", Username: "Griefer", UserID: id}
	got, err = s.Select(context.Background(), req, fillTargets())
	require.NoError(t, err)
	assert.NotNil(t, got, "allow list matches player ids")

	req = Request{ServerAddress: "staff.example.com", Username: "Griefer", UserID: uuid.New()}
	got, err = s.Select(context.Background(), req, fillTargets())
	require.NoError(t, err)
	assert.Nil(t, got, "unlisted players get no target")
}
