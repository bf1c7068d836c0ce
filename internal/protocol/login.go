package protocol

import (
	"fmt"

	"github.com/google/uuid"
)

// Login state packet ids.
const (
	IDLoginStart          int32 = 0x00 // serverbound
	IDEncryptionResponse  int32 = 0x01 // serverbound
	IDLoginAcknowledged   int32 = 0x03 // serverbound
	IDLoginCookieResponse int32 = 0x04 // serverbound

	IDLoginDisconnect    int32 = 0x00 // clientbound
	IDEncryptionRequest  int32 = 0x01 // clientbound
	IDLoginSuccess       int32 = 0x02 // clientbound
	IDLoginCookieRequest int32 = 0x05 // clientbound
)

// ProfileProperty is a signed name/value pair of a player profile.
type ProfileProperty struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

// LoginStart opens the login exchange.
type LoginStart struct {
	Name string
	ID   uuid.UUID
}

func (p *LoginStart) Unmarshal(payload []byte) error {
	r := NewReader(payload)
	var err error
	if p.Name, err = r.ReadString(16); err != nil {
		return fmt.Errorf("login start name: %w", err)
	}
	if p.ID, err = r.ReadUUID(); err != nil {
		return fmt.Errorf("login start uuid: %w", err)
	}
	return nil
}

// EncryptionResponse carries the RSA-encrypted shared secret and verify token.
type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken  []byte
}

func (p *EncryptionResponse) Unmarshal(payload []byte) error {
	r := NewReader(payload)
	var err error
	if p.SharedSecret, err = r.ReadBytes(); err != nil {
		return fmt.Errorf("encryption response shared secret: %w", err)
	}
	if p.VerifyToken, err = r.ReadBytes(); err != nil {
		return fmt.Errorf("encryption response verify token: %w", err)
	}
	return nil
}

// LoginAcknowledged transitions the client into Configuration.
type LoginAcknowledged struct{}

func (p *LoginAcknowledged) Unmarshal([]byte) error { return nil }

// CookieResponse returns a previously stored cookie, if the client has one.
// Shared between the Login and Configuration states (same wire shape).
type CookieResponse struct {
	Key     string
	Payload []byte // nil when the client has no cookie under Key
}

func (p *CookieResponse) Unmarshal(payload []byte) error {
	r := NewReader(payload)
	var err error
	if p.Key, err = r.ReadString(MaxStringLength); err != nil {
		return fmt.Errorf("cookie response key: %w", err)
	}
	present, err := r.ReadBool()
	if err != nil {
		return fmt.Errorf("cookie response flag: %w", err)
	}
	if present {
		if p.Payload, err = r.ReadBytes(); err != nil {
			return fmt.Errorf("cookie response payload: %w", err)
		}
	}
	return nil
}

// LoginDisconnect closes a login with a JSON chat component reason.
type LoginDisconnect struct {
	Reason string
}

func (p *LoginDisconnect) ID() int32 { return IDLoginDisconnect }

func (p *LoginDisconnect) Marshal(w *Writer) {
	w.WriteString(p.Reason)
}

// EncryptionRequest starts the key exchange.
type EncryptionRequest struct {
	ServerID           string
	PublicKey          []byte
	VerifyToken        []byte
	ShouldAuthenticate bool
}

func (p *EncryptionRequest) ID() int32 { return IDEncryptionRequest }

func (p *EncryptionRequest) Marshal(w *Writer) {
	w.WriteString(p.ServerID)
	w.WriteBytes(p.PublicKey)
	w.WriteBytes(p.VerifyToken)
	w.WriteBool(p.ShouldAuthenticate)
}

// Unmarshal is used by the in-process test client.
func (p *EncryptionRequest) Unmarshal(payload []byte) error {
	r := NewReader(payload)
	var err error
	if p.ServerID, err = r.ReadString(20); err != nil {
		return fmt.Errorf("encryption request server id: %w", err)
	}
	if p.PublicKey, err = r.ReadBytes(); err != nil {
		return fmt.Errorf("encryption request public key: %w", err)
	}
	if p.VerifyToken, err = r.ReadBytes(); err != nil {
		return fmt.Errorf("encryption request verify token: %w", err)
	}
	if p.ShouldAuthenticate, err = r.ReadBool(); err != nil {
		return fmt.Errorf("encryption request auth flag: %w", err)
	}
	return nil
}

// LoginSuccess completes the login with the verified profile.
type LoginSuccess struct {
	UUID       uuid.UUID
	Name       string
	Properties []ProfileProperty
}

func (p *LoginSuccess) ID() int32 { return IDLoginSuccess }

func (p *LoginSuccess) Marshal(w *Writer) {
	w.WriteUUID(p.UUID)
	w.WriteString(p.Name)
	w.WriteVarInt(int32(len(p.Properties)))
	for _, prop := range p.Properties {
		w.WriteString(prop.Name)
		w.WriteString(prop.Value)
		w.WriteBool(prop.Signature != "")
		if prop.Signature != "" {
			w.WriteString(prop.Signature)
		}
	}
}

// Unmarshal is used by the in-process test client.
func (p *LoginSuccess) Unmarshal(payload []byte) error {
	r := NewReader(payload)
	var err error
	if p.UUID, err = r.ReadUUID(); err != nil {
		return fmt.Errorf("login success uuid: %w", err)
	}
	if p.Name, err = r.ReadString(16); err != nil {
		return fmt.Errorf("login success name: %w", err)
	}
	count, err := r.ReadVarInt()
	if err != nil {
		return fmt.Errorf("login success property count: %w", err)
	}
	for i := int32(0); i < count; i++ {
		var prop ProfileProperty
		if prop.Name, err = r.ReadString(MaxStringLength); err != nil {
			return fmt.Errorf("login success property name: %w", err)
		}
		if prop.Value, err = r.ReadString(MaxStringLength); err != nil {
			return fmt.Errorf("login success property value: %w", err)
		}
		signed, err := r.ReadBool()
		if err != nil {
			return fmt.Errorf("login success property flag: %w", err)
		}
		if signed {
			if prop.Signature, err = r.ReadString(MaxStringLength); err != nil {
				return fmt.Errorf("login success property signature: %w", err)
			}
		}
		p.Properties = append(p.Properties, prop)
	}
	return nil
}

// CookieRequest asks the client for a stored cookie. Shared between the
// Login and Configuration states; the id differs per state.
type CookieRequest struct {
	Key     string
	StateID int32
}

func (p *CookieRequest) ID() int32 { return p.StateID }

func (p *CookieRequest) Marshal(w *Writer) {
	w.WriteString(p.Key)
}
