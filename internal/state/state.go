package state

import (
	"encoding/json"
	"maps"
	"time"
)

// Role identifies the author of one transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConnectionStatus is the channel lifecycle as seen by observers.
type ConnectionStatus string

const (
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionConnecting   ConnectionStatus = "connecting"
	ConnectionConnected    ConnectionStatus = "connected"
)

// AgentKey identifies one pipeline stage.
type AgentKey string

const (
	AgentSupervisor  AgentKey = "supervisor"
	AgentWebResearch AgentKey = "web_research"
	AgentToolBuilder AgentKey = "tool_builder"
	AgentAnalysis    AgentKey = "analysis"
	AgentOutput      AgentKey = "output"
)

// AgentPhase is the reported phase of one pipeline stage. Unrecognized
// backend values are stored verbatim for forward compatibility.
type AgentPhase string

const (
	PhaseIdle      AgentPhase = "idle"
	PhaseRunning   AgentPhase = "running"
	PhaseCompleted AgentPhase = "completed"
	PhaseFailed    AgentPhase = "failed"
)

// JobStatus is the backend-reported lifecycle of a poll-based job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ChatMessage is one transcript entry. Append-only after insertion.
type ChatMessage struct {
	ID        string
	Role      Role
	Content   string
	Agent     AgentKey
	Timestamp time.Time
}

// JobLifecycle tracks one poll-based job while it is active.
type JobLifecycle struct {
	JobID       string
	Status      JobStatus
	Progress    int
	CurrentStep string
	Result      json.RawMessage
	Error       string
}

// SessionState is the full client-side view of one session.
//
// It is owned exclusively by the Projector; every value handed to
// observers is a deep copy and safe to retain.
type SessionState struct {
	SessionID  string
	Transcript []ChatMessage
	Connection ConnectionStatus
	Activity   string
	Agents     map[AgentKey]AgentPhase
	Job        *JobLifecycle
}

// Copy returns a deep copy of the state.
func (s SessionState) Copy() SessionState {
	out := s
	out.Transcript = make([]ChatMessage, len(s.Transcript))
	copy(out.Transcript, s.Transcript)
	out.Agents = maps.Clone(s.Agents)
	if s.Job != nil {
		job := *s.Job
		job.Result = append(json.RawMessage(nil), s.Job.Result...)
		out.Job = &job
	}
	return out
}

func newSessionState(sessionID string) SessionState {
	return SessionState{
		SessionID:  sessionID,
		Transcript: []ChatMessage{},
		Connection: ConnectionDisconnected,
		Agents:     make(map[AgentKey]AgentPhase),
	}
}
