package adapter

import (
	"context"
	"encoding/json"
)

// FixedStatus serves a status assembled from configuration. The advertised
// protocol is rewritten so compatible clients never see an incompatibility
// marker: a client protocol within [MinVersion, MaxVersion] is echoed back,
// anything outside is answered with PreferredVersion.
type FixedStatus struct {
	VersionName        string
	PreferredVersion   int32
	MinVersion         int32
	MaxVersion         int32
	Description        json.RawMessage
	PlayersOnline      int
	PlayersMax         int
	Favicon            string
	EnforcesSecureChat *bool
}

func (s *FixedStatus) Status(_ context.Context, req Request) (*ServerStatus, error) {
	protocol := s.PreferredVersion
	if req.Protocol >= s.MinVersion && req.Protocol <= s.MaxVersion {
		protocol = req.Protocol
	}

	return &ServerStatus{
		Version: ServerVersion{Name: s.VersionName, Protocol: protocol},
		Players: &ServerPlayers{
			Online: s.PlayersOnline,
			Max:    s.PlayersMax,
		},
		Description:        s.Description,
		Favicon:            s.Favicon,
		EnforcesSecureChat: s.EnforcesSecureChat,
	}, nil
}

// NoneStatus hides the server: every ping is dropped without a response.
type NoneStatus struct{}

func (NoneStatus) Status(context.Context, Request) (*ServerStatus, error) {
	return nil, nil
}
