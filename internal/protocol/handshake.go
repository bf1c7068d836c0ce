package protocol

import "fmt"

// Next-state values carried in the handshake.
const (
	NextStateStatus   int32 = 1
	NextStateLogin    int32 = 2
	NextStateTransfer int32 = 3
)

// Serverbound handshake packet ids.
const IDHandshake int32 = 0x00

// Handshake is the first packet of every connection.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       int32
}

func (p *Handshake) Unmarshal(payload []byte) error {
	r := NewReader(payload)
	var err error
	if p.ProtocolVersion, err = r.ReadVarInt(); err != nil {
		return fmt.Errorf("handshake protocol version: %w", err)
	}
	if p.ServerAddress, err = r.ReadString(255); err != nil {
		return fmt.Errorf("handshake server address: %w", err)
	}
	if p.ServerPort, err = r.ReadUint16(); err != nil {
		return fmt.Errorf("handshake server port: %w", err)
	}
	if p.NextState, err = r.ReadVarInt(); err != nil {
		return fmt.Errorf("handshake next state: %w", err)
	}
	return nil
}
