package protocol

import "fmt"

// Status state packet ids.
const (
	IDStatusRequest  int32 = 0x00 // serverbound
	IDPing           int32 = 0x01 // serverbound
	IDStatusResponse int32 = 0x00 // clientbound
	IDPong           int32 = 0x01 // clientbound
)

// StatusRequest has an empty payload.
type StatusRequest struct{}

func (p *StatusRequest) Unmarshal([]byte) error { return nil }

// Ping carries an opaque 8-byte payload the client expects echoed back.
type Ping struct {
	Payload int64
}

func (p *Ping) Unmarshal(payload []byte) error {
	r := NewReader(payload)
	var err error
	if p.Payload, err = r.ReadInt64(); err != nil {
		return fmt.Errorf("ping payload: %w", err)
	}
	return nil
}

// StatusResponse carries the JSON status body.
type StatusResponse struct {
	Body string
}

func (p *StatusResponse) ID() int32 { return IDStatusResponse }

func (p *StatusResponse) Marshal(w *Writer) {
	w.WriteString(p.Body)
}

// Pong echoes the ping payload.
type Pong struct {
	Payload int64
}

func (p *Pong) ID() int32 { return IDPong }

func (p *Pong) Marshal(w *Writer) {
	w.WriteInt64(p.Payload)
}
