package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/passage/internal/adapter"
	"github.com/udisondev/passage/internal/cookie"
	"github.com/udisondev/passage/internal/crypto"
	"github.com/udisondev/passage/internal/localization"
	"github.com/udisondev/passage/internal/protocol"
	"github.com/udisondev/passage/internal/proxyproto"
)

// keepAliveInterval paces the clientbound probes while a resource pack is
// downloading; maxOutstandingKeepAlives unanswered probes end the connection.
const (
	keepAliveInterval        = 10 * time.Second
	maxOutstandingKeepAlives = 2
)

type phase int

const (
	phaseHandshake phase = iota
	phaseStatus
	phaseLogin
	phaseConfiguration
)

// connection drives one client from accept to transfer or disconnect.
type connection struct {
	srv    *Server
	conn   net.Conn
	br     *bufio.Reader
	stream *crypto.CipherStream
	log    *slog.Logger

	deadline   time.Time
	clientAddr netip.AddrPort
	phase      phase
	locale     string

	handshake protocol.Handshake

	username   string
	userID     uuid.UUID
	properties []protocol.ProfileProperty

	authCookie    *cookie.Auth
	sessionCookie *cookie.Session
}

func newConnection(s *Server, conn net.Conn, deadline time.Time) *connection {
	br := bufio.NewReader(conn)
	return &connection{
		srv:      s,
		conn:     conn,
		br:       br,
		stream:   crypto.NewCipherStream(br, conn),
		log:      slog.With("remote", conn.RemoteAddr()),
		deadline: deadline,
	}
}

func (c *connection) run(ctx context.Context) error {
	if err := c.resolvePeer(); err != nil {
		return err
	}
	c.log = slog.With("client", c.clientAddr)

	if lim := c.srv.limiter; lim != nil && !lim.Allow(c.clientAddr.Addr().String()) {
		c.log.Warn("connection rate limited")
		return nil
	}

	// pre-Netty clients open with a bare 0xFE instead of a framed handshake
	head, err := c.br.Peek(1)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("peeking first byte: %w", err)
	}
	if head[0] == protocol.LegacyPingByte {
		return c.serveLegacy(ctx)
	}

	id, payload, err := protocol.ReadPacket(c.stream, c.srv.cfg.MaxPacketLength)
	if err != nil {
		return fmt.Errorf("reading handshake: %w", err)
	}
	if id != protocol.IDHandshake {
		return fmt.Errorf("expected handshake, got packet 0x%02X", id)
	}
	if err := c.handshake.Unmarshal(payload); err != nil {
		return err
	}

	switch c.handshake.NextState {
	case protocol.NextStateStatus:
		c.phase = phaseStatus
		return c.serveStatus(ctx)
	case protocol.NextStateLogin, protocol.NextStateTransfer:
		c.phase = phaseLogin
		return c.serveLogin(ctx)
	default:
		return fmt.Errorf("unknown next state %d", c.handshake.NextState)
	}
}

// resolvePeer settles the client address: the PROXY preamble when enabled,
// the socket peer otherwise.
func (c *connection) resolvePeer() error {
	if c.srv.cfg.ProxyProtocol.Enabled {
		addr, err := proxyproto.ReadHeader(c.br, proxyproto.Config{
			AllowV1: c.srv.cfg.ProxyProtocol.AllowV1,
			AllowV2: c.srv.cfg.ProxyProtocol.AllowV2,
		})
		if err != nil {
			return fmt.Errorf("proxy protocol: %w", err)
		}
		c.clientAddr = addr
		return nil
	}

	addr, err := netip.ParseAddrPort(c.conn.RemoteAddr().String())
	if err != nil {
		return fmt.Errorf("parsing peer address: %w", err)
	}
	c.clientAddr = addr
	return nil
}

// request snapshots the connection context for adapter calls.
func (c *connection) request() adapter.Request {
	return adapter.Request{
		ClientAddr:    c.clientAddr.String(),
		ServerAddress: c.handshake.ServerAddress,
		ServerPort:    c.handshake.ServerPort,
		Protocol:      c.handshake.ProtocolVersion,
		Username:      c.username,
		UserID:        c.userID,
	}
}

func (c *connection) serveLegacy(ctx context.Context) error {
	status, err := c.srv.adapters.Status.Status(ctx, c.request())
	if err != nil {
		return fmt.Errorf("legacy status: %w", err)
	}
	if status == nil {
		c.log.Debug("legacy ping dropped, server hidden")
		return nil
	}

	var online, max int
	if status.Players != nil {
		online, max = status.Players.Online, status.Players.Max
	}
	return protocol.WriteLegacyResponse(c.conn, status.Version.Name, plainText(status.Description), online, max)
}

// plainText extracts the text of a chat component for the legacy line.
func plainText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var component struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &component); err == nil && component.Text != "" {
		return component.Text
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func (c *connection) serveStatus(ctx context.Context) error {
	for {
		id, payload, err := protocol.ReadPacket(c.stream, c.srv.cfg.MaxPacketLength)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch id {
		case protocol.IDStatusRequest:
			status, err := c.srv.adapters.Status.Status(ctx, c.request())
			if err != nil {
				return fmt.Errorf("supplying status: %w", err)
			}
			if status == nil {
				c.log.Debug("status request dropped, server hidden")
				return nil
			}
			body, err := json.Marshal(status)
			if err != nil {
				return fmt.Errorf("encoding status: %w", err)
			}
			if err := protocol.WritePacket(c.stream, &protocol.StatusResponse{Body: string(body)}); err != nil {
				return err
			}
		case protocol.IDPing:
			var ping protocol.Ping
			if err := ping.Unmarshal(payload); err != nil {
				return err
			}
			return protocol.WritePacket(c.stream, &protocol.Pong{Payload: ping.Payload})
		default:
			return fmt.Errorf("unexpected status packet 0x%02X", id)
		}
	}
}

func (c *connection) serveLogin(ctx context.Context) error {
	id, payload, err := protocol.ReadPacket(c.stream, c.srv.cfg.MaxPacketLength)
	if err != nil {
		return fmt.Errorf("reading login start: %w", err)
	}
	if id != protocol.IDLoginStart {
		return fmt.Errorf("expected login start, got packet 0x%02X", id)
	}
	var start protocol.LoginStart
	if err := start.Unmarshal(payload); err != nil {
		return err
	}
	c.username = start.Name
	c.userID = start.ID
	c.log = c.log.With("player", c.username)

	if err := c.collectCookies(); err != nil {
		return err
	}

	secret, err := c.exchangeKeys()
	if err != nil {
		return err
	}

	if c.authCookie != nil {
		c.username = c.authCookie.UserName
		c.userID = c.authCookie.UserID
		c.properties = c.authCookie.ProfileProperties
		c.log.Debug("identity restored from auth cookie")
	} else {
		hash := crypto.JoinHash("", secret, c.srv.keyPair.PublicDER)
		profile, err := c.srv.sessions.HasJoined(ctx, c.username, hash, c.clientAddr.Addr().String())
		if err != nil {
			c.log.Warn("authentication failed", "err", err)
			c.disconnectLogin(localization.KeyDisconnectFailedAuth)
			return nil
		}
		c.username = profile.Name
		c.userID = profile.ID
		c.properties = profile.Properties
		c.log.Info("player authenticated", "uuid", c.userID)
	}

	success := &protocol.LoginSuccess{UUID: c.userID, Name: c.username, Properties: c.properties}
	if err := protocol.WritePacket(c.stream, success); err != nil {
		return err
	}

	id, _, err = protocol.ReadPacket(c.stream, c.srv.cfg.MaxPacketLength)
	if err != nil {
		return fmt.Errorf("reading login acknowledged: %w", err)
	}
	if id != protocol.IDLoginAcknowledged {
		return fmt.Errorf("expected login acknowledged, got packet 0x%02X", id)
	}

	c.phase = phaseConfiguration
	return c.serveConfiguration(ctx)
}

// collectCookies requests both stored cookies and parses what comes back.
// Invalid or stale cookies are discarded, never fatal.
func (c *connection) collectCookies() error {
	for _, key := range []string{cookie.AuthKey, cookie.SessionKey} {
		req := &protocol.CookieRequest{Key: key, StateID: protocol.IDLoginCookieRequest}
		if err := protocol.WritePacket(c.stream, req); err != nil {
			return err
		}
	}

	for i := 0; i < 2; i++ {
		id, payload, err := protocol.ReadPacket(c.stream, c.srv.cfg.MaxPacketLength)
		if err != nil {
			return fmt.Errorf("reading cookie response: %w", err)
		}
		if id != protocol.IDLoginCookieResponse {
			return fmt.Errorf("expected cookie response, got packet 0x%02X", id)
		}
		var resp protocol.CookieResponse
		if err := resp.Unmarshal(payload); err != nil {
			return err
		}
		if resp.Payload == nil {
			continue
		}

		switch resp.Key {
		case cookie.AuthKey:
			if len(c.srv.secret) == 0 {
				continue
			}
			expiry := time.Duration(c.srv.cfg.AuthCookieExpirySecs) * time.Second
			auth, err := cookie.OpenAuth(resp.Payload, c.srv.secret, c.clientAddr.Addr().String(), expiry, time.Now())
			if err != nil {
				c.log.Debug("auth cookie rejected", "err", err)
				continue
			}
			c.authCookie = auth
		case cookie.SessionKey:
			sess, err := cookie.DecodeSession(resp.Payload)
			if err != nil {
				c.log.Debug("session cookie rejected", "err", err)
				continue
			}
			c.sessionCookie = sess
		}
	}
	return nil
}

// exchangeKeys runs the RSA handshake and switches the stream to AES-CFB8.
// A client holding a valid auth cookie is told to skip the account authority.
func (c *connection) exchangeKeys() ([]byte, error) {
	token, err := crypto.GenerateVerifyToken()
	if err != nil {
		return nil, err
	}

	req := &protocol.EncryptionRequest{
		ServerID:           "",
		PublicKey:          c.srv.keyPair.PublicDER,
		VerifyToken:        token,
		ShouldAuthenticate: c.authCookie == nil,
	}
	if err := protocol.WritePacket(c.stream, req); err != nil {
		return nil, err
	}

	id, payload, err := protocol.ReadPacket(c.stream, c.srv.cfg.MaxPacketLength)
	if err != nil {
		return nil, fmt.Errorf("reading encryption response: %w", err)
	}
	if id != protocol.IDEncryptionResponse {
		return nil, fmt.Errorf("expected encryption response, got packet 0x%02X", id)
	}
	var resp protocol.EncryptionResponse
	if err := resp.Unmarshal(payload); err != nil {
		return nil, err
	}

	secret, err := c.srv.keyPair.Decrypt(resp.SharedSecret)
	if err != nil {
		return nil, err
	}
	echoed, err := c.srv.keyPair.Decrypt(resp.VerifyToken)
	if err != nil {
		return nil, err
	}
	if !crypto.VerifyTokenMatch(token, echoed) {
		return nil, errors.New("verify token mismatch")
	}

	if err := c.stream.EnableEncryption(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

func (c *connection) serveConfiguration(ctx context.Context) error {
	if err := c.readClientInformation(); err != nil {
		return err
	}

	if err := c.applyResourcePacks(ctx); err != nil {
		return err
	}

	target, err := c.pickTarget(ctx)
	if err != nil {
		return err
	}
	if target == nil {
		c.log.Info("no target available")
		c.disconnectConfig(localization.KeyDisconnectNoTarget)
		return nil
	}

	host, portStr, err := net.SplitHostPort(target.Addr)
	if err != nil {
		return fmt.Errorf("target address %q: %w", target.Addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("target port %q: %w", portStr, err)
	}

	if err := c.storeCookies(target); err != nil {
		return err
	}

	if err := protocol.WritePacket(c.stream, &protocol.Transfer{Host: host, Port: int32(port)}); err != nil {
		return err
	}
	c.log.Info("player transferred", "target", target.ID, "addr", target.Addr)
	return nil
}

// readClientInformation waits for the locale, skipping the brand plugin
// message and anything else the client volunteers first.
func (c *connection) readClientInformation() error {
	for {
		id, payload, err := protocol.ReadPacket(c.stream, c.srv.cfg.MaxPacketLength)
		if err != nil {
			return fmt.Errorf("reading client information: %w", err)
		}
		if id != protocol.IDClientInformation {
			continue
		}
		var info protocol.ClientInformation
		if err := info.Unmarshal(payload); err != nil {
			return err
		}
		c.locale = info.Locale
		return nil
	}
}

// applyResourcePacks offers the supplier's packs and waits for a terminal
// outcome on every forced one, keeping the client alive while it downloads.
func (c *connection) applyResourcePacks(ctx context.Context) error {
	packs, err := c.srv.adapters.Packs.Packs(ctx, c.request())
	if err != nil {
		return fmt.Errorf("supplying resource packs: %w", err)
	}
	if len(packs) == 0 {
		return nil
	}

	pending := make(map[uuid.UUID]bool) // pack id -> forced
	for _, pack := range packs {
		prompt := pack.Prompt
		if prompt == "" {
			prompt = c.resolve(localization.KeyResourcePackPrompt)
		}
		offer := &protocol.AddResourcePack{
			PackID: pack.ID,
			URL:    pack.URL,
			Hash:   pack.Hash,
			Forced: pack.Forced,
			Prompt: prompt,
		}
		if err := protocol.WritePacket(c.stream, offer); err != nil {
			return err
		}
		if pack.Forced {
			pending[pack.ID] = true
		}
	}
	if len(pending) == 0 {
		return nil
	}

	defer c.conn.SetReadDeadline(c.deadline)

	outstanding := 0
	nextProbe := time.Now().Add(keepAliveInterval)
	for len(pending) > 0 {
		readDeadline := nextProbe
		if c.deadline.Before(readDeadline) {
			readDeadline = c.deadline
		}
		if err := c.conn.SetReadDeadline(readDeadline); err != nil {
			return err
		}

		id, payload, err := protocol.ReadPacket(c.stream, c.srv.cfg.MaxPacketLength)
		if err != nil {
			if !errors.Is(err, os.ErrDeadlineExceeded) {
				return err
			}
			if !time.Now().Before(c.deadline) {
				return fmt.Errorf("resource pack wait: %w", os.ErrDeadlineExceeded)
			}
			if outstanding >= maxOutstandingKeepAlives {
				return errors.New("client stopped answering keep-alives")
			}
			probe := &protocol.KeepAliveOut{KeepAliveID: time.Now().UnixMilli()}
			if err := protocol.WritePacket(c.stream, probe); err != nil {
				return err
			}
			outstanding++
			nextProbe = time.Now().Add(keepAliveInterval)
			continue
		}

		switch id {
		case protocol.IDResourcePackResponse:
			var resp protocol.ResourcePackResponse
			if err := resp.Unmarshal(payload); err != nil {
				return err
			}
			if !protocol.TerminalPackOutcome(resp.Outcome) {
				continue
			}
			if _, forced := pending[resp.ID]; forced && resp.Outcome != protocol.PackSuccessfullyLoaded {
				c.log.Info("forced resource pack rejected", "pack", resp.ID, "outcome", resp.Outcome)
				c.disconnectConfig(localization.KeyDisconnectFailedPack)
				return errAlreadyHandled
			}
			delete(pending, resp.ID)
		case protocol.IDConfigKeepAliveIn:
			outstanding = 0
		default:
			// brand messages, pongs and other chatter are irrelevant here
		}
	}
	return nil
}

// pickTarget runs discovery and the strategy; nil means no backend fits.
func (c *connection) pickTarget(ctx context.Context) (*adapter.Target, error) {
	targets, err := c.srv.adapters.Discovery.Targets(ctx, c.request())
	if err != nil {
		return nil, fmt.Errorf("discovering targets: %w", err)
	}
	target, err := c.srv.adapters.Strategy.Select(ctx, c.request(), targets)
	if err != nil {
		return nil, fmt.Errorf("selecting target: %w", err)
	}
	return target, nil
}

// storeCookies persists identity for the next hop: the auth cookie resealed
// (or freshly issued) for the chosen target, the session cookie as-is or
// minted for a first join.
func (c *connection) storeCookies(target *adapter.Target) error {
	now := time.Now()

	if len(c.srv.secret) > 0 {
		var sealed []byte
		var err error
		if c.authCookie != nil {
			sealed, err = cookie.Reseal(c.authCookie, target.ID, c.srv.secret, now)
		} else {
			sealed, err = cookie.SealAuth(&cookie.Auth{
				Timestamp:         uint64(now.Unix()),
				ClientAddr:        c.clientAddr.Addr().String(),
				UserName:          c.username,
				UserID:            c.userID,
				Target:            target.ID,
				ProfileProperties: c.properties,
			}, c.srv.secret)
		}
		if err != nil {
			return err
		}
		store := &protocol.StoreCookie{Key: cookie.AuthKey, Payload: sealed}
		if err := protocol.WritePacket(c.stream, store); err != nil {
			return err
		}
	}

	sess := c.sessionCookie
	if sess == nil {
		sess = &cookie.Session{
			ID:            uuid.New(),
			ServerAddress: c.handshake.ServerAddress,
			ServerPort:    c.handshake.ServerPort,
		}
	}
	raw, err := cookie.EncodeSession(sess)
	if err != nil {
		return err
	}
	return protocol.WritePacket(c.stream, &protocol.StoreCookie{Key: cookie.SessionKey, Payload: raw})
}

func (c *connection) resolve(key string) string {
	return c.srv.loc.Resolve(c.locale, key, map[string]string{
		"player": c.username,
		"server": c.handshake.ServerAddress,
	})
}

func (c *connection) disconnectLogin(key string) {
	if reason := c.resolve(key); reason != "" {
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_ = protocol.WritePacket(c.stream, &protocol.LoginDisconnect{Reason: reason})
	}
}

func (c *connection) disconnectConfig(key string) {
	if reason := c.resolve(key); reason != "" {
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_ = protocol.WritePacket(c.stream, &protocol.ConfigDisconnect{Reason: reason})
	}
}

// errAlreadyHandled marks errors whose disconnect has been sent already.
var errAlreadyHandled = errors.New("connection already handled")

// fail logs a connection error and, where the state allows it, delivers a
// best-effort localized disconnect before the socket closes.
func (c *connection) fail(err error) {
	if errors.Is(err, errAlreadyHandled) {
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		c.log.Debug("client went away", "err", err)
		return
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		c.log.Info("connection timed out", "phase", c.phase)
		switch c.phase {
		case phaseLogin:
			c.disconnectLogin(localization.KeyDisconnectTimeout)
		case phaseConfiguration:
			c.disconnectConfig(localization.KeyDisconnectTimeout)
		}
		return
	}

	c.log.Warn("connection failed", "phase", c.phase, "err", err)
}
