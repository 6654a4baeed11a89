package client

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aria-labs/ariactl/internal/channel"
	"github.com/aria-labs/ariactl/internal/jobpoll"
	"github.com/aria-labs/ariactl/internal/protocol"
	"github.com/aria-labs/ariactl/internal/state"
)

var (
	ErrSessionRequired    = errors.New("client: session id required")
	ErrCredentialRequired = errors.New("client: credential required")
	ErrUnknownKind        = errors.New("client: unknown session kind")
	ErrNoChannel          = errors.New("client: no channel endpoint configured")
	ErrNoJobFetcher       = errors.New("client: no job fetcher configured")
	ErrClosed             = errors.New("client: closed")
)

// Kind selects the transport strategy for one session.
type Kind string

const (
	// KindStream sessions hold a live bidirectional channel.
	KindStream Kind = "stream"
	// KindJob sessions expose only a job handle and are polled.
	KindJob Kind = "job"
)

// Session identifies one activatable conversation or job context.
type Session struct {
	ID         string
	Kind       Kind
	Credential string
}

// Options configures a Client.
type Options struct {
	// Channel configures the streaming transport. An empty BaseURL
	// disables stream sessions.
	Channel channel.Config
	// Dialer overrides the websocket dialer; nil selects it.
	Dialer channel.Dialer
	// Fetcher enables job sessions. Nil disables them.
	Fetcher jobpoll.Fetcher
	// PollInterval overrides the job poll cadence.
	PollInterval time.Duration
	Logger       zerolog.Logger
}

// Client combines the connection supervisor, the job poll fallback and
// the status projector behind one session-keyed interface.
//
// At most one of the two transports is active per client. All events
// funnel through the projector's apply path, so observers always see
// whole-state snapshots.
type Client struct {
	log    zerolog.Logger
	proj   *state.Projector
	sup    *channel.Supervisor
	poller *jobpoll.Poller

	lifecycleMu sync.Mutex
	active      Session
	closed      bool

	subMu   sync.Mutex
	subs    map[uint64]chan state.SessionState
	nextSub uint64
}

// projectorSink funnels both transports into the single state writer.
type projectorSink struct {
	proj *state.Projector
}

func (s projectorSink) HandleEvent(ev protocol.Event)              { s.proj.Apply(ev) }
func (s projectorSink) HandleConnection(cs state.ConnectionStatus) { s.proj.SetConnection(cs) }
func (s projectorSink) HandleJobUpdate(job state.JobLifecycle, agents map[string]string) {
	s.proj.SetJob(job, agents)
}
func (s projectorSink) HandleJobEvent(ev protocol.Event) { s.proj.Apply(ev) }
func (s projectorSink) HandleJobDone(jobID string)       { s.proj.ClearJob(jobID) }

// New constructs a Client. Stream and job support are each optional,
// but at least one transport must be configured.
func New(opts Options) (*Client, error) {
	log := opts.Logger.With().Str("component", "client").Logger()
	c := &Client{
		log:  log,
		proj: state.NewProjector(opts.Logger),
		subs: make(map[uint64]chan state.SessionState),
	}
	c.proj.OnChange(c.fanout)
	sink := projectorSink{proj: c.proj}

	if strings.TrimSpace(opts.Channel.BaseURL) != "" {
		sup, err := channel.NewSupervisor(opts.Channel, opts.Dialer, sink, opts.Logger)
		if err != nil {
			return nil, err
		}
		c.sup = sup
	}
	if opts.Fetcher != nil {
		c.poller = jobpoll.NewPoller(opts.Fetcher, sink, opts.PollInterval, opts.Logger)
	}
	if c.sup == nil && c.poller == nil {
		return nil, ErrNoChannel
	}
	return c, nil
}

// State returns a deep-copied snapshot of the current session state.
func (c *Client) State() state.SessionState {
	return c.proj.Snapshot()
}

// Subscribe registers a state-change observer. Snapshots are delivered
// best-effort: a slow observer drops intermediate updates, never blocks
// the apply path. The returned func cancels the subscription.
func (c *Client) Subscribe() (<-chan state.SessionState, func()) {
	ch := make(chan state.SessionState, 16)
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
		c.subMu.Unlock()
	}
	return ch, cancel
}

// Activate switches the client to the given session, tearing down the
// previous transport intentionally and resetting the session state.
func (c *Client) Activate(s Session) error {
	s.ID = strings.TrimSpace(s.ID)
	s.Credential = strings.TrimSpace(s.Credential)
	if s.ID == "" {
		return ErrSessionRequired
	}
	switch s.Kind {
	case KindStream:
		if c.sup == nil {
			return ErrNoChannel
		}
		if s.Credential == "" {
			return ErrCredentialRequired
		}
	case KindJob:
		if c.poller == nil {
			return ErrNoJobFetcher
		}
	default:
		return ErrUnknownKind
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.teardownTransports()
	c.proj.Reset(s.ID)
	c.active = s

	activation := uuid.NewString()
	c.log.Info().
		Str("session", s.ID).
		Str("kind", string(s.Kind)).
		Str("activation", activation).
		Msg("session activated")

	if s.Kind == KindJob {
		return c.poller.Start(s.ID)
	}
	c.sup.Activate(s.ID, s.Credential)
	return nil
}

// Send forwards user text over the live channel and, on success,
// appends the optimistic user entry to the transcript. Sends while not
// connected (including all job sessions) fail with ErrNotConnected and
// are never queued.
func (c *Client) Send(text string) error {
	c.lifecycleMu.Lock()
	active := c.active
	closed := c.closed
	c.lifecycleMu.Unlock()
	if closed {
		return ErrClosed
	}
	if active.Kind != KindStream || c.sup == nil {
		return channel.ErrNotConnected
	}
	if err := c.sup.Send(text); err != nil {
		return err
	}
	c.proj.AppendUser(strings.TrimSpace(text))
	return nil
}

// Deactivate tears down the active transport intentionally and clears
// the session state.
func (c *Client) Deactivate() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.closed {
		return
	}
	c.teardownTransports()
	c.active = Session{}
	c.proj.Reset("")
}

// Close deactivates and permanently disposes the client. Subscriber
// channels are closed.
func (c *Client) Close() {
	c.lifecycleMu.Lock()
	if c.closed {
		c.lifecycleMu.Unlock()
		return
	}
	c.teardownTransports()
	c.active = Session{}
	c.closed = true
	c.lifecycleMu.Unlock()

	c.subMu.Lock()
	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub)
	}
	c.subMu.Unlock()
}

// teardownTransports stops both strategies. Callers hold lifecycleMu.
func (c *Client) teardownTransports() {
	if c.poller != nil {
		c.poller.Stop()
	}
	if c.sup != nil {
		c.sup.Deactivate()
	}
}

func (c *Client) fanout(snapshot state.SessionState) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, sub := range c.subs {
		select {
		case sub <- snapshot:
		default:
		}
	}
}
