package channel

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aria-labs/ariactl/internal/observability"
	"github.com/aria-labs/ariactl/internal/protocol"
	"github.com/aria-labs/ariactl/internal/state"
)

// EventSink receives decoded channel traffic in delivery order.
type EventSink interface {
	HandleEvent(ev protocol.Event)
	HandleConnection(status state.ConnectionStatus)
}

// Phase is the supervisor's connection state machine position.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
	// PhaseClosing is entered only on intentional teardown (session
	// switch or facade disposal) and suppresses reconnection for that
	// one closure.
	PhaseClosing
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

// Supervisor owns at most one live channel at a time.
//
// Every activation bumps a generation counter; dial results, read-loop
// exits and retry timers from a replaced generation are discarded, so a
// scheduled close can never race an incoming error callback into a
// spurious reconnect.
type Supervisor struct {
	cfg    Config
	dialer Dialer
	sink   EventSink
	log    zerolog.Logger
	rng    *rand.Rand

	mu         sync.Mutex
	phase      Phase
	gen        uint64
	sessionID  string
	credential string
	conn       Conn
	attempt    int
	retryTimer *time.Timer
}

// NewSupervisor constructs an inactive supervisor. A nil dialer selects
// the websocket dialer.
func NewSupervisor(cfg Config, dialer Dialer, sink EventSink, log zerolog.Logger) (*Supervisor, error) {
	cfg = cfg.WithDefaults()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrBaseURLRequired
	}
	if dialer == nil {
		dialer = WebSocketDialer{WriteTimeout: cfg.WriteTimeout}
	}
	return &Supervisor{
		cfg:    cfg,
		dialer: dialer,
		sink:   sink,
		log:    log.With().Str("component", "channel").Logger(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		phase:  PhaseDisconnected,
	}, nil
}

// Phase returns the current state machine position.
func (s *Supervisor) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SessionID returns the active session identifier, if any.
func (s *Supervisor) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Activate opens a channel for the session, tearing down any channel
// for a previous session first. Missing session id or credential makes
// the call a no-op: the supervisor stays disconnected.
func (s *Supervisor) Activate(sessionID, credential string) {
	sessionID = strings.TrimSpace(sessionID)
	credential = strings.TrimSpace(credential)
	if sessionID == "" || credential == "" {
		s.log.Warn().Str("session", sessionID).Msg("activate ignored: session id and credential required")
		return
	}

	s.mu.Lock()
	s.teardownLocked()
	s.gen++
	gen := s.gen
	s.sessionID = sessionID
	s.credential = credential
	s.attempt = 0
	s.phase = PhaseConnecting
	s.sink.HandleConnection(state.ConnectionConnecting)
	s.mu.Unlock()

	s.log.Info().Str("session", sessionID).Msg("channel activating")
	go s.connect(gen)
}

// Deactivate closes the live channel intentionally and cancels any
// pending reconnect.
func (s *Supervisor) Deactivate() {
	s.mu.Lock()
	s.teardownLocked()
	s.gen++
	s.sessionID = ""
	s.credential = ""
	s.attempt = 0
	s.sink.HandleConnection(state.ConnectionDisconnected)
	s.mu.Unlock()
}

// Send forwards user text over the live channel. Sends while not
// connected fail with ErrNotConnected and are never queued.
func (s *Supervisor) Send(text string) error {
	frame, err := protocol.EncodeUserMessage(text)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.phase != PhaseConnected || s.conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	conn := s.conn
	s.mu.Unlock()
	if err := conn.WriteMessage(frame); err != nil {
		// The read loop observes the broken transport and drives the
		// reconnect; the send itself just fails.
		return fmt.Errorf("channel: send failed: %w", err)
	}
	return nil
}

// teardownLocked closes any live channel and cancels a pending retry.
// With a live channel the supervisor stays in Closing until its read
// loop confirms the exit; handleClosed completes the transition to
// Disconnected. Callers must hold s.mu and bump s.gen afterwards.
func (s *Supervisor) teardownLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	if s.conn != nil {
		s.phase = PhaseClosing
		_ = s.conn.Close()
		s.conn = nil
		return
	}
	s.phase = PhaseDisconnected
}

func (s *Supervisor) connect(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	sessionID, credential := s.sessionID, s.credential
	s.mu.Unlock()

	target, err := s.channelURL(sessionID, credential)
	if err != nil {
		s.log.Error().Err(err).Str("session", sessionID).Msg("bad channel url")
		s.failConnect(gen)
		return
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DialTimeout)
	conn, err := s.dialer.Dial(ctx, target)
	cancel()
	observability.ObserveChannelConnect(time.Since(start), err == nil)
	if err != nil {
		s.log.Warn().Err(err).Str("session", sessionID).Msg("channel dial failed")
		s.failConnect(gen)
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.phase = PhaseConnected
	s.attempt = 0
	// The notification happens inside the critical section so a
	// concurrent Activate cannot reset state between the generation
	// check and the apply.
	s.sink.HandleConnection(state.ConnectionConnected)
	s.mu.Unlock()

	s.log.Info().Str("session", sessionID).Msg("channel connected")
	go s.readLoop(gen, conn)
}

func (s *Supervisor) failConnect(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseDisconnected
	s.scheduleRetryLocked(gen)
	s.sink.HandleConnection(state.ConnectionDisconnected)
	s.mu.Unlock()
}

func (s *Supervisor) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			s.handleClosed(gen, err)
			return
		}
		ev, derr := protocol.Decode(data)
		if derr != nil {
			// Malformed frames are dropped; the channel stays open.
			observability.RecordChannelDecodeFailure()
			s.log.Warn().Err(derr).Msg("dropping undecodable frame")
			continue
		}
		// Staleness check and sink apply share the critical section:
		// once teardown has bumped the generation under s.mu, no frame
		// from the old channel can reach the sink.
		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		observability.RecordChannelFrame(string(ev.Type))
		s.sink.HandleEvent(ev)
		s.mu.Unlock()
	}
}

// handleClosed reacts to a read-loop exit. A supervisor parked in
// Closing by an intentional teardown completes the move to
// Disconnected here; a stale generation otherwise means no reconnect.
func (s *Supervisor) handleClosed(gen uint64, cause error) {
	s.mu.Lock()
	if s.phase == PhaseClosing {
		s.phase = PhaseDisconnected
		s.mu.Unlock()
		return
	}
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.phase = PhaseDisconnected
	s.scheduleRetryLocked(gen)
	sessionID := s.sessionID
	s.sink.HandleConnection(state.ConnectionDisconnected)
	s.mu.Unlock()
	s.log.Warn().Err(cause).Str("session", sessionID).Msg("channel closed, reconnect scheduled")
}

// scheduleRetryLocked arms the reconnect timer. Callers hold s.mu.
func (s *Supervisor) scheduleRetryLocked(gen uint64) {
	s.attempt++
	delay := NextRetryDelay(s.cfg.Retry, s.attempt, s.rng)
	observability.RecordChannelReconnect()
	s.retryTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.retryTimer = nil
		s.phase = PhaseConnecting
		s.sink.HandleConnection(state.ConnectionConnecting)
		s.mu.Unlock()
		s.connect(gen)
	})
}

func (s *Supervisor) channelURL(sessionID, credential string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(s.cfg.BaseURL))
	if err != nil {
		return "", fmt.Errorf("channel: parse base url: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + url.PathEscape(sessionID)
	q := u.Query()
	q.Set("token", credential)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
