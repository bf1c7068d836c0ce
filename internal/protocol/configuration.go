package protocol

import (
	"fmt"

	"github.com/google/uuid"
)

// Configuration state packet ids.
const (
	IDClientInformation    int32 = 0x00 // serverbound
	IDConfigCookieResponse int32 = 0x01 // serverbound
	IDPluginMessage        int32 = 0x02 // serverbound
	IDAckFinishConfig      int32 = 0x03 // serverbound
	IDConfigKeepAliveIn    int32 = 0x04 // serverbound
	IDConfigPong           int32 = 0x05 // serverbound
	IDResourcePackResponse int32 = 0x06 // serverbound
	IDKnownPacks           int32 = 0x07 // serverbound

	IDConfigCookieRequest int32 = 0x00 // clientbound
	IDConfigDisconnect    int32 = 0x02 // clientbound
	IDConfigKeepAliveOut  int32 = 0x04 // clientbound
	IDAddResourcePack     int32 = 0x09 // clientbound
	IDStoreCookie         int32 = 0x0A // clientbound
	IDTransfer            int32 = 0x0B // clientbound
)

// Resource pack response outcomes.
const (
	PackSuccessfullyLoaded int32 = 0
	PackDeclined           int32 = 1
	PackFailedDownload     int32 = 2
	PackAccepted           int32 = 3
	PackDownloaded         int32 = 4
	PackInvalidURL         int32 = 5
	PackFailedReload       int32 = 6
	PackDiscarded          int32 = 7
)

// TerminalPackOutcome reports whether the outcome ends the pack exchange for
// that pack. Accepted and downloaded are intermediate.
func TerminalPackOutcome(outcome int32) bool {
	switch outcome {
	case PackAccepted, PackDownloaded:
		return false
	default:
		return true
	}
}

// ClientInformation carries the client locale and unused client prefs.
type ClientInformation struct {
	Locale            string
	ViewDistance      uint8
	ChatMode          int32
	ChatColors        bool
	SkinParts         uint8
	MainHand          int32
	TextFiltering     bool
	AllowServerListed bool
}

func (p *ClientInformation) Unmarshal(payload []byte) error {
	r := NewReader(payload)
	var err error
	if p.Locale, err = r.ReadString(16); err != nil {
		return fmt.Errorf("client information locale: %w", err)
	}
	// the remaining prefs are read for completeness but not acted on
	if p.ViewDistance, err = r.ReadUint8(); err != nil {
		return fmt.Errorf("client information view distance: %w", err)
	}
	if p.ChatMode, err = r.ReadVarInt(); err != nil {
		return fmt.Errorf("client information chat mode: %w", err)
	}
	if p.ChatColors, err = r.ReadBool(); err != nil {
		return fmt.Errorf("client information chat colors: %w", err)
	}
	if p.SkinParts, err = r.ReadUint8(); err != nil {
		return fmt.Errorf("client information skin parts: %w", err)
	}
	if p.MainHand, err = r.ReadVarInt(); err != nil {
		return fmt.Errorf("client information main hand: %w", err)
	}
	if p.TextFiltering, err = r.ReadBool(); err != nil {
		return fmt.Errorf("client information text filtering: %w", err)
	}
	if p.AllowServerListed, err = r.ReadBool(); err != nil {
		return fmt.Errorf("client information server listing: %w", err)
	}
	return nil
}

// ResourcePackResponse acknowledges a pack with a (possibly intermediate) outcome.
type ResourcePackResponse struct {
	ID      uuid.UUID
	Outcome int32
}

func (p *ResourcePackResponse) Unmarshal(payload []byte) error {
	r := NewReader(payload)
	var err error
	if p.ID, err = r.ReadUUID(); err != nil {
		return fmt.Errorf("resource pack response uuid: %w", err)
	}
	if p.Outcome, err = r.ReadVarInt(); err != nil {
		return fmt.Errorf("resource pack response outcome: %w", err)
	}
	return nil
}

// ConfigKeepAlive is the serverbound keep-alive echo.
type ConfigKeepAlive struct {
	ID int64
}

func (p *ConfigKeepAlive) Unmarshal(payload []byte) error {
	r := NewReader(payload)
	var err error
	if p.ID, err = r.ReadInt64(); err != nil {
		return fmt.Errorf("keep alive id: %w", err)
	}
	return nil
}

// ConfigDisconnect closes a configuration-state connection with a chat reason.
type ConfigDisconnect struct {
	Reason string
}

func (p *ConfigDisconnect) ID() int32 { return IDConfigDisconnect }

func (p *ConfigDisconnect) Marshal(w *Writer) {
	// NBT TAG_String text component: tag byte, u16 length, utf-8 bytes
	w.WriteUint8(0x08)
	w.WriteUint16(uint16(len(p.Reason)))
	w.WriteRaw([]byte(p.Reason))
}

// KeepAliveOut is the clientbound keep-alive probe.
type KeepAliveOut struct {
	KeepAliveID int64
}

func (p *KeepAliveOut) ID() int32 { return IDConfigKeepAliveOut }

func (p *KeepAliveOut) Marshal(w *Writer) {
	w.WriteInt64(p.KeepAliveID)
}

// AddResourcePack offers a pack to the client.
type AddResourcePack struct {
	PackID uuid.UUID
	URL    string
	Hash   string
	Forced bool
	Prompt string // JSON chat component, optional
}

func (p *AddResourcePack) ID() int32 { return IDAddResourcePack }

func (p *AddResourcePack) Marshal(w *Writer) {
	w.WriteUUID(p.PackID)
	w.WriteString(p.URL)
	w.WriteString(p.Hash)
	w.WriteBool(p.Forced)
	w.WriteBool(p.Prompt != "")
	if p.Prompt != "" {
		// same NBT TAG_String shape as disconnect reasons
		w.WriteUint8(0x08)
		w.WriteUint16(uint16(len(p.Prompt)))
		w.WriteRaw([]byte(p.Prompt))
	}
}

// StoreCookie persists a cookie on the client.
type StoreCookie struct {
	Key     string
	Payload []byte
}

func (p *StoreCookie) ID() int32 { return IDStoreCookie }

func (p *StoreCookie) Marshal(w *Writer) {
	w.WriteString(p.Key)
	w.WriteBytes(p.Payload)
}

// Transfer redirects the client to another server and ends this connection.
type Transfer struct {
	Host string
	Port int32
}

func (p *Transfer) ID() int32 { return IDTransfer }

func (p *Transfer) Marshal(w *Writer) {
	w.WriteString(p.Host)
	w.WriteVarInt(p.Port)
}
