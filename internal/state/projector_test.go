package state

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aria-labs/ariactl/internal/protocol"
	"github.com/aria-labs/ariactl/internal/testutil/testlog"
)

func newTestProjector() *Projector {
	return NewProjector(zerolog.Nop())
}

func transcriptContents(s SessionState) []string {
	out := make([]string, 0, len(s.Transcript))
	for _, m := range s.Transcript {
		out = append(out, m.Content)
	}
	return out
}

func TestResetClearsSessionScopedState(t *testing.T) {
	testlog.Start(t)
	p := newTestProjector()
	p.Reset("conv-a")
	p.Apply(protocol.Event{Type: protocol.EventMessage, Content: "hello"})
	p.Apply(protocol.Event{Type: protocol.EventStatus, Agent: "analysis", Content: "running"})
	p.SetJob(JobLifecycle{JobID: "job-1", Status: JobRunning}, nil)

	p.Reset("conv-b")
	s := p.Snapshot()
	if s.SessionID != "conv-b" {
		t.Fatalf("unexpected session id: %q", s.SessionID)
	}
	if len(s.Transcript) != 0 {
		t.Fatalf("transcript not cleared: %v", transcriptContents(s))
	}
	if len(s.Agents) != 0 {
		t.Fatalf("agent status not cleared: %v", s.Agents)
	}
	if s.Job != nil {
		t.Fatalf("job lifecycle not cleared: %+v", s.Job)
	}
	if s.Connection != ConnectionDisconnected {
		t.Fatalf("unexpected connection: %q", s.Connection)
	}
}

func TestHistoryReplaceIsIdempotent(t *testing.T) {
	testlog.Start(t)
	p := newTestProjector()
	p.Reset("conv-a")
	p.Apply(protocol.Event{Type: protocol.EventMessage, Content: "stale"})

	history := protocol.Event{Type: protocol.EventHistory, Messages: []protocol.HistoryMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}}
	p.Apply(history)
	once := transcriptContents(p.Snapshot())
	p.Apply(history)
	twice := transcriptContents(p.Snapshot())

	if !reflect.DeepEqual(once, []string{"hi", "hello"}) {
		t.Fatalf("unexpected transcript after replace: %v", once)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("history replace not idempotent: %v vs %v", once, twice)
	}
}

func TestHistoryMarksConnected(t *testing.T) {
	testlog.Start(t)
	p := newTestProjector()
	p.Reset("conv-a")
	p.SetConnection(ConnectionConnecting)
	p.Apply(protocol.Event{Type: protocol.EventHistory, Messages: nil})
	if got := p.Snapshot().Connection; got != ConnectionConnected {
		t.Fatalf("expected connected after history, got %q", got)
	}
}

func TestMessageAppendsAssistantEntry(t *testing.T) {
	testlog.Start(t)
	p := newTestProjector()
	p.Reset("conv-a")
	p.AppendUser("question")
	p.Apply(protocol.Event{Type: protocol.EventMessage, Content: "answer"})

	s := p.Snapshot()
	if len(s.Transcript) != 2 {
		t.Fatalf("unexpected transcript length: %d", len(s.Transcript))
	}
	if s.Transcript[0].Role != RoleUser || s.Transcript[1].Role != RoleAssistant {
		t.Fatalf("unexpected roles: %q %q", s.Transcript[0].Role, s.Transcript[1].Role)
	}
	if s.Transcript[1].ID == "" || s.Transcript[0].ID == s.Transcript[1].ID {
		t.Fatalf("messages missing distinct ids")
	}
}

func TestAgentStatusUpdatesAreIndependentPerKey(t *testing.T) {
	testlog.Start(t)
	p := newTestProjector()
	p.Reset("conv-a")
	p.Apply(protocol.Event{Type: protocol.EventStatus, Agent: "web_research", Content: "completed"})
	p.Apply(protocol.Event{Type: protocol.EventStatus, Agent: "analysis", Content: "running"})
	p.Apply(protocol.Event{Type: protocol.EventStatus, Agent: "analysis", Content: "completed"})

	s := p.Snapshot()
	if s.Agents[AgentAnalysis] != PhaseCompleted {
		t.Fatalf("unexpected analysis phase: %q", s.Agents[AgentAnalysis])
	}
	if s.Agents[AgentWebResearch] != PhaseCompleted {
		t.Fatalf("other agent keys must be untouched: %q", s.Agents[AgentWebResearch])
	}
	if len(s.Agents) != 2 {
		t.Fatalf("unexpected agent map: %v", s.Agents)
	}
}

func TestUnrecognizedAgentPhaseStoredVerbatim(t *testing.T) {
	testlog.Start(t)
	p := newTestProjector()
	p.Reset("conv-a")
	p.Apply(protocol.Event{Type: protocol.EventStatus, Agent: "analysis", Content: "warming_up"})
	if got := p.Snapshot().Agents[AgentAnalysis]; got != AgentPhase("warming_up") {
		t.Fatalf("unexpected phase: %q", got)
	}
}

func TestStatusWithoutAgentSetsActivityOnly(t *testing.T) {
	testlog.Start(t)
	p := newTestProjector()
	p.Reset("conv-a")
	p.SetConnection(ConnectionConnected)
	p.Apply(protocol.Event{Type: protocol.EventStatus, Content: "thinking"})

	s := p.Snapshot()
	if s.Activity != "thinking" {
		t.Fatalf("unexpected activity: %q", s.Activity)
	}
	if s.Connection != ConnectionConnected {
		t.Fatalf("activity label must not alter connection: %q", s.Connection)
	}
	p.Apply(protocol.Event{Type: protocol.EventMessage, Content: "done"})
	if got := p.Snapshot().Activity; got != "" {
		t.Fatalf("activity should clear on assistant message: %q", got)
	}
}

func TestBackendErrorSurfacesInTranscriptWithoutConnectionChange(t *testing.T) {
	testlog.Start(t)
	p := newTestProjector()
	p.Reset("conv-a")
	p.SetConnection(ConnectionConnected)
	p.Apply(protocol.Event{Type: protocol.EventError, Content: "message too long"})

	s := p.Snapshot()
	if len(s.Transcript) != 1 || s.Transcript[0].Role != RoleAssistant {
		t.Fatalf("backend error should append assistant entry: %+v", s.Transcript)
	}
	if s.Connection != ConnectionConnected {
		t.Fatalf("backend error must not change connection: %q", s.Connection)
	}
}

func TestSetJobFoldsAgentStatuses(t *testing.T) {
	testlog.Start(t)
	p := newTestProjector()
	p.Reset("job-session")
	result := json.RawMessage(`{"kpis":[]}`)
	p.SetJob(JobLifecycle{
		JobID:       "job-1",
		Status:      JobRunning,
		Progress:    40,
		CurrentStep: "web research",
		Result:      result,
	}, map[string]string{"supervisor": "running", "web_research": "running"})

	s := p.Snapshot()
	if s.Job == nil || s.Job.Progress != 40 || s.Job.CurrentStep != "web research" {
		t.Fatalf("unexpected job lifecycle: %+v", s.Job)
	}
	if s.Agents[AgentSupervisor] != PhaseRunning || s.Agents[AgentWebResearch] != PhaseRunning {
		t.Fatalf("agent statuses not folded: %v", s.Agents)
	}

	// Backend progress is authoritative, including regressions.
	p.SetJob(JobLifecycle{JobID: "job-1", Status: JobRunning, Progress: 25}, nil)
	if got := p.Snapshot().Job.Progress; got != 25 {
		t.Fatalf("progress must follow backend value: %d", got)
	}
}

func TestClearJobIgnoresStaleJobID(t *testing.T) {
	testlog.Start(t)
	p := newTestProjector()
	p.Reset("job-session")
	p.SetJob(JobLifecycle{JobID: "job-2", Status: JobRunning}, nil)
	p.ClearJob("job-1")
	if p.Snapshot().Job == nil {
		t.Fatalf("stale clear must not drop active job")
	}
	p.ClearJob("job-2")
	if p.Snapshot().Job != nil {
		t.Fatalf("active job should clear")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	testlog.Start(t)
	p := newTestProjector()
	p.Reset("conv-a")
	p.Apply(protocol.Event{Type: protocol.EventMessage, Content: "original"})
	s := p.Snapshot()
	s.Transcript[0].Content = "mutated"
	s.Agents["analysis"] = PhaseFailed

	fresh := p.Snapshot()
	if fresh.Transcript[0].Content != "original" {
		t.Fatalf("snapshot mutation leaked into projector state")
	}
	if len(fresh.Agents) != 0 {
		t.Fatalf("snapshot agent map shares storage with projector state")
	}
}

func TestOnChangeDeliversSnapshots(t *testing.T) {
	testlog.Start(t)
	p := newTestProjector()
	var seen []SessionState
	p.OnChange(func(s SessionState) { seen = append(seen, s) })
	p.Reset("conv-a")
	p.Apply(protocol.Event{Type: protocol.EventMessage, Content: "hi"})
	if len(seen) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(seen))
	}
	if len(seen[1].Transcript) != 1 {
		t.Fatalf("notification missing transcript: %+v", seen[1])
	}
}
