package wa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

var (
	// ErrSessionNotReady means there is no live, authenticated connection.
	// Callers should retry later; nothing is queued.
	ErrSessionNotReady = errors.New("session not ready")
	// ErrDeliveryFailed wraps a transport-level send or upload failure.
	ErrDeliveryFailed = errors.New("delivery failed")
)

// State is the session lifecycle position.
type State int

const (
	StateConnecting State = iota
	StateAwaitingPairing
	StateConnected
	// StateClosed is terminal: the server logged this device out and the
	// manager will not reconnect. Operator re-pairing is required.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingPairing:
		return "awaiting_pairing"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot for external display. Challenge is only
// populated while pairing is pending.
type Status struct {
	State     State
	Challenge string
}

type eventKind int

const (
	evChallenge eventKind = iota
	evConnected
	evClosed
	evRetry
)

type lifecycleEvent struct {
	kind      eventKind
	challenge string
	loggedOut bool
}

// SessionManager owns the single long-lived WhatsApp connection. The
// connection handle, state, and cached pairing challenge are replaced
// wholesale under one RWMutex; readers never observe a partially-built
// handle. All lifecycle transitions run on the Run goroutine, fed by a
// channel — whatsmeow callbacks only translate events onto that channel.
type SessionManager struct {
	factory ClientFactory
	delay   time.Duration
	printQR bool
	log     *logrus.Entry

	mu        sync.RWMutex
	state     State
	challenge string
	client    Client

	events chan lifecycleEvent

	// retryArmed is only touched from the Run goroutine.
	retryArmed bool
}

// Option configures a SessionManager.
type Option func(*SessionManager)

// WithReconnectDelay overrides the fixed delay before a reconnect attempt.
func WithReconnectDelay(d time.Duration) Option {
	return func(m *SessionManager) { m.delay = d }
}

// WithTerminalQR controls printing pairing codes to stdout as scannable
// blocks. On by default; tests turn it off.
func WithTerminalQR(enabled bool) Option {
	return func(m *SessionManager) { m.printQR = enabled }
}

func NewSessionManager(factory ClientFactory, opts ...Option) *SessionManager {
	m := &SessionManager{
		factory: factory,
		delay:   time.Second,
		printQR: true,
		log:     logrus.WithField("component", "session"),
		state:   StateConnecting,
		events:  make(chan lifecycleEvent, 16),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run drives the lifecycle until ctx is cancelled or the session is logged
// out. It performs the initial connection itself.
func (m *SessionManager) Run(ctx context.Context) {
	m.connect(ctx)
	for {
		select {
		case <-ctx.Done():
			m.teardown()
			return
		case ev := <-m.events:
			m.handle(ctx, ev)
		}
	}
}

func (m *SessionManager) handle(ctx context.Context, ev lifecycleEvent) {
	switch ev.kind {
	case evChallenge:
		m.mu.Lock()
		if m.state == StateClosed {
			m.mu.Unlock()
			return
		}
		m.state = StateAwaitingPairing
		m.challenge = ev.challenge
		m.mu.Unlock()
		m.log.Info("pairing challenge received, scan to authenticate")
		if m.printQR {
			qrterminal.GenerateHalfBlock(ev.challenge, qrterminal.L, os.Stdout)
		}

	case evConnected:
		m.mu.Lock()
		if m.state == StateClosed {
			m.mu.Unlock()
			return
		}
		m.state = StateConnected
		m.challenge = ""
		m.mu.Unlock()
		m.log.Info("connected to WhatsApp")

	case evClosed:
		if ev.loggedOut {
			m.mu.Lock()
			m.state = StateClosed
			m.challenge = ""
			old := m.client
			m.client = nil
			m.mu.Unlock()
			if old != nil {
				old.Disconnect()
			}
			m.log.Warn("device logged out by server; halting, re-pairing required")
			return
		}
		m.mu.Lock()
		if m.state == StateClosed {
			m.mu.Unlock()
			return
		}
		m.state = StateConnecting
		m.challenge = ""
		m.mu.Unlock()
		m.scheduleRetry(ctx)

	case evRetry:
		m.retryArmed = false
		m.connect(ctx)
	}
}

// scheduleRetry arms exactly one pending reconnect. Further close events
// while the timer runs are absorbed.
func (m *SessionManager) scheduleRetry(ctx context.Context) {
	if m.retryArmed {
		return
	}
	m.retryArmed = true
	m.log.WithField("delay", m.delay).Info("connection closed, scheduling reconnect")
	go func() {
		select {
		case <-time.After(m.delay):
			select {
			case m.events <- lifecycleEvent{kind: evRetry}:
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	}()
}

// connect discards any previous handle and builds a fresh one from the
// factory. Only called from the Run goroutine.
func (m *SessionManager) connect(ctx context.Context) {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.challenge = ""
	old := m.client
	m.client = nil
	m.mu.Unlock()
	if old != nil {
		old.Disconnect()
	}

	client, err := m.factory(ctx)
	if err != nil {
		m.log.WithError(err).Error("building client failed")
		m.scheduleRetry(ctx)
		return
	}

	client.AddEventHandler(m.translate)

	if !client.HasSession() {
		qrChan, err := client.GetQRChannel(ctx)
		if err != nil {
			m.log.WithError(err).Warn("QR channel unavailable")
		} else {
			go m.pumpQR(qrChan)
		}
	}

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()

	if err := client.Connect(); err != nil {
		m.log.WithError(err).Error("connect failed")
		m.scheduleRetry(ctx)
	}
}

// translate maps whatsmeow socket events onto the lifecycle channel. It runs
// on whatsmeow's event goroutine and must not block, so a full channel drops
// the event (the next socket event re-establishes truth).
func (m *SessionManager) translate(evt interface{}) {
	switch evt.(type) {
	case *events.Connected:
		m.push(lifecycleEvent{kind: evConnected})
	case *events.Disconnected:
		m.push(lifecycleEvent{kind: evClosed})
	case *events.StreamReplaced:
		// Another client took over the socket. Not a logout: retry.
		m.push(lifecycleEvent{kind: evClosed})
	case *events.LoggedOut:
		m.push(lifecycleEvent{kind: evClosed, loggedOut: true})
	}
}

func (m *SessionManager) pumpQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		if item.Event == "code" {
			m.push(lifecycleEvent{kind: evChallenge, challenge: item.Code})
		}
		// "success" is followed by *events.Connected on the socket, which
		// clears the cached challenge; nothing to do here.
	}
}

func (m *SessionManager) push(ev lifecycleEvent) {
	select {
	case m.events <- ev:
	default:
		m.log.WithField("kind", ev.kind).Warn("lifecycle event dropped, channel full")
	}
}

func (m *SessionManager) teardown() {
	m.mu.Lock()
	old := m.client
	m.client = nil
	if m.state != StateClosed {
		m.state = StateConnecting
	}
	m.mu.Unlock()
	if old != nil {
		old.Disconnect()
	}
}

func (m *SessionManager) snapshot() (Client, State) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client, m.state
}

// Status returns the current pairing state without blocking.
func (m *SessionManager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{State: m.state, Challenge: m.challenge}
}

// Send forwards one message to the live connection. No internal retry: a
// failure is reported once to the caller.
func (m *SessionManager) Send(ctx context.Context, to types.JID, msg *waE2E.Message) (whatsmeow.SendResponse, error) {
	client, state := m.snapshot()
	if state != StateConnected || client == nil {
		return whatsmeow.SendResponse{}, ErrSessionNotReady
	}
	resp, err := client.SendMessage(ctx, to, msg)
	if err != nil {
		return resp, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return resp, nil
}

// Upload pushes media bytes to WhatsApp's servers ahead of a media send,
// guarded by the same readiness check as Send.
func (m *SessionManager) Upload(ctx context.Context, data []byte, mediaType whatsmeow.MediaType) (whatsmeow.UploadResponse, error) {
	client, state := m.snapshot()
	if state != StateConnected || client == nil {
		return whatsmeow.UploadResponse{}, ErrSessionNotReady
	}
	resp, err := client.Upload(ctx, data, mediaType)
	if err != nil {
		return resp, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return resp, nil
}
