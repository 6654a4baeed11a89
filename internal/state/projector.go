package state

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aria-labs/ariactl/internal/protocol"
)

// Projector folds protocol events and job updates into SessionState.
//
// It is the single writer of the state. Every mutation is applied
// atomically under the projector's lock and published as a deep-copied
// snapshot, so observers never see partial application. Events are
// applied in delivery order; the projector does not reorder or
// deduplicate (the backend contract is in-order, non-duplicated
// delivery per connection).
type Projector struct {
	log zerolog.Logger

	mu       sync.Mutex
	current  SessionState
	onChange func(SessionState)
}

// NewProjector returns a projector with empty state for no session.
func NewProjector(log zerolog.Logger) *Projector {
	return &Projector{
		log:     log.With().Str("component", "projector").Logger(),
		current: newSessionState(""),
	}
}

// OnChange registers the single state-change callback. The callback is
// invoked outside the projector's lock with a deep-copied snapshot.
func (p *Projector) OnChange(fn func(SessionState)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Snapshot returns a deep copy of the current state.
func (p *Projector) Snapshot() SessionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Copy()
}

// Reset clears all session-scoped state for a session switch.
func (p *Projector) Reset(sessionID string) {
	p.publish(func(s *SessionState) {
		*s = newSessionState(sessionID)
	})
}

// SetConnection records a channel lifecycle transition.
func (p *Projector) SetConnection(status ConnectionStatus) {
	p.publish(func(s *SessionState) {
		s.Connection = status
		if status != ConnectionConnected {
			s.Activity = ""
		}
	})
}

// Apply folds one decoded protocol event into the state.
func (p *Projector) Apply(ev protocol.Event) {
	switch ev.Type {
	case protocol.EventHistory:
		p.applyHistory(ev.Messages)
	case protocol.EventMessage:
		p.appendMessage(RoleAssistant, ev.Content, "")
	case protocol.EventStatus:
		p.applyStatus(ev.Agent, ev.Content)
	case protocol.EventError:
		p.applyBackendError(ev.Content)
	default:
		p.log.Warn().Str("type", string(ev.Type)).Msg("projector: unhandled event type")
	}
}

// AppendUser appends an optimistic user message after a successful send.
func (p *Projector) AppendUser(content string) {
	p.appendMessage(RoleUser, content, "")
}

// SetJob replaces the job lifecycle and folds per-agent statuses from a
// poll response. The backend values are authoritative, including
// progress that moves backwards.
func (p *Projector) SetJob(job JobLifecycle, agents map[string]string) {
	p.publish(func(s *SessionState) {
		copied := job
		s.Job = &copied
		for key, phase := range agents {
			key := strings.TrimSpace(key)
			if key == "" {
				continue
			}
			s.Agents[AgentKey(key)] = AgentPhase(phase)
		}
	})
}

// ClearJob drops the job lifecycle once terminal and consumed. A stale
// jobID (from a poll that outlived a session switch) is ignored.
func (p *Projector) ClearJob(jobID string) {
	p.publish(func(s *SessionState) {
		if s.Job == nil || s.Job.JobID != jobID {
			return
		}
		s.Job = nil
	})
}

func (p *Projector) applyHistory(messages []protocol.HistoryMessage) {
	p.publish(func(s *SessionState) {
		transcript := make([]ChatMessage, 0, len(messages))
		for _, m := range messages {
			ts := m.Timestamp
			if ts.IsZero() {
				ts = time.Now()
			}
			transcript = append(transcript, ChatMessage{
				ID:        uuid.NewString(),
				Role:      Role(m.Role),
				Content:   m.Content,
				Agent:     AgentKey(m.Agent),
				Timestamp: ts,
			})
		}
		s.Transcript = transcript
		// A history frame is only sent on a live channel; treat it as
		// confirmation even if the open callback raced behind it.
		s.Connection = ConnectionConnected
	})
}

func (p *Projector) appendMessage(role Role, content string, agent AgentKey) {
	p.publish(func(s *SessionState) {
		s.Transcript = append(s.Transcript, ChatMessage{
			ID:        uuid.NewString(),
			Role:      role,
			Content:   content,
			Agent:     agent,
			Timestamp: time.Now(),
		})
		if role == RoleAssistant {
			s.Activity = ""
		}
	})
}

func (p *Projector) applyStatus(agent, content string) {
	if agent == "" {
		// Coarse activity label ("thinking"); layered on top of the
		// connection status, never a transition of it.
		p.publish(func(s *SessionState) {
			s.Activity = content
		})
		return
	}
	p.publish(func(s *SessionState) {
		s.Agents[AgentKey(agent)] = AgentPhase(content)
	})
}

func (p *Projector) applyBackendError(content string) {
	p.log.Warn().Str("content", content).Msg("backend error event")
	// Backend-reported errors surface in the transcript; the channel
	// stays usable unless the transport also closes.
	p.appendMessage(RoleAssistant, content, "")
}

func (p *Projector) publish(mutate func(*SessionState)) {
	p.mu.Lock()
	mutate(&p.current)
	snapshot := p.current.Copy()
	notify := p.onChange
	p.mu.Unlock()
	if notify != nil {
		notify(snapshot)
	}
}
