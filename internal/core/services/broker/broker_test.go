package broker

import (
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/gearbroker.net/internal/domain"
	"gitlab.com/gearbroker.net/internal/tcp/defs"
)

type mockLogger struct{}

func (mockLogger) Debug(string, ...interface{}) {}
func (mockLogger) Info(string, ...interface{})  {}
func (mockLogger) Warn(string, ...interface{})  {}
func (mockLogger) Error(string, ...interface{}) {}

type recordingSender struct {
	mu      sync.Mutex
	packets []*defs.Packet
}

func (s *recordingSender) Send(p *defs.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = append(s.packets, p)
}

// take returns and clears everything sent so far
func (s *recordingSender) take() []*defs.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.packets
	s.packets = nil
	return out
}

func types(packets []*defs.Packet) []defs.PacketType {
	out := make([]defs.PacketType, 0, len(packets))
	for _, p := range packets {
		out = append(out, p.Type)
	}
	return out
}

type recordingPublisher struct {
	events []domain.JobEvent
}

func (p *recordingPublisher) Publish(ev domain.JobEvent) {
	p.events = append(p.events, ev)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

type peer struct {
	conn *Connection
	out  *recordingSender
}

type harness struct {
	t      *testing.T
	broker *Broker
	events *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	events := &recordingPublisher{}
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	b := NewBroker(mockLogger{},
		WithIDGenerator(sequentialIDs()),
		WithClock(func() time.Time { return fixed }),
		WithEventPublisher(events),
		WithRecentJobs(8),
	)
	return &harness{t: t, broker: b, events: events}
}

func (h *harness) connect() *peer {
	out := &recordingSender{}
	return &peer{conn: h.broker.Connect("127.0.0.1:5000", out), out: out}
}

func (h *harness) send(p *peer, t defs.PacketType, args map[string]string, body []byte) {
	h.broker.Handle(p.conn, defs.NewRequest(t, args, body))
}

func (h *harness) submit(p *peer, function, body string) string {
	h.send(p, defs.SubmitJob, map[string]string{"function": function, "uniqueid": ""}, []byte(body))
	out := p.out.take()
	require.Len(h.t, out, 1)
	require.Equal(h.t, defs.JobCreated, out[0].Type)
	return out[0].Arg("job")
}

func (h *harness) canDo(p *peer, function string) {
	h.send(p, defs.CanDo, map[string]string{"function": function}, nil)
}

func (h *harness) grab(p *peer) *defs.Packet {
	h.send(p, defs.GrabJob, nil, nil)
	out := p.out.take()
	require.Len(h.t, out, 1)
	return out[0]
}

func TestSubmitCompleteRoundTrip(t *testing.T) {
	h := newHarness(t)
	client := h.connect()
	worker := h.connect()

	h.canDo(worker, "toUpper")
	jobID := h.submit(client, "toUpper", "hello")

	assign := h.grab(worker)
	require.Equal(t, defs.JobAssign, assign.Type)
	assert.Equal(t, jobID, assign.Arg("job"))
	assert.Equal(t, "toUpper", assign.Arg("function"))
	assert.Equal(t, []byte("hello"), assign.Body)

	h.send(worker, defs.WorkComplete, map[string]string{"job": jobID}, []byte("HELLO"))

	out := client.out.take()
	require.Len(t, out, 1)
	assert.Equal(t, defs.WorkComplete, out[0].Type)
	assert.Equal(t, defs.KindResponse, out[0].Kind)
	assert.Equal(t, jobID, out[0].Arg("job"))
	assert.Equal(t, []byte("HELLO"), out[0].Body)

	_, live := h.broker.jobByID(jobID)
	assert.False(t, live)
	assert.Empty(t, worker.conn.worker.assigned)

	info, ok := h.broker.Job(jobID)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusCompleted, info.Status)
	assert.NotNil(t, info.FinishedAt)

	var got []domain.JobEventType
	for _, ev := range h.events.events {
		got = append(got, ev.Type)
	}
	assert.Equal(t, []domain.JobEventType{domain.JobEventCreated, domain.JobEventAssigned, domain.JobEventCompleted}, got)
}

func TestGrabJobUniqCarriesJobID(t *testing.T) {
	h := newHarness(t)
	client := h.connect()
	worker := h.connect()

	jobID := h.submit(client, "reverse", "abc")
	h.canDo(worker, "reverse")
	h.send(worker, defs.GrabJobUniq, nil, nil)

	out := worker.out.take()
	require.Len(t, out, 1)
	assert.Equal(t, defs.JobAssignUniq, out[0].Type)
	assert.Equal(t, jobID, out[0].Arg("job"))
	assert.Equal(t, jobID, out[0].Arg("uniqueid"))
}

func TestFIFOPerFunction(t *testing.T) {
	h := newHarness(t)
	client := h.connect()

	first := h.submit(client, "resize", "A")
	second := h.submit(client, "resize", "B")

	worker := h.connect()
	h.canDo(worker, "resize")

	a := h.grab(worker)
	b := h.grab(worker)
	assert.Equal(t, first, a.Arg("job"))
	assert.Equal(t, []byte("A"), a.Body)
	assert.Equal(t, second, b.Arg("job"))
	assert.Equal(t, []byte("B"), b.Body)

	assert.Equal(t, defs.NoJob, h.grab(worker).Type)
}

func TestLateWorkerReceivesEarlierJob(t *testing.T) {
	h := newHarness(t)
	client := h.connect()
	jobID := h.submit(client, "late", "payload")

	worker := h.connect()
	h.canDo(worker, "late")
	h.send(worker, defs.PreSleep, nil, nil)
	assert.Equal(t, []defs.PacketType{defs.Noop}, types(worker.out.take()))

	assign := h.grab(worker)
	assert.Equal(t, defs.JobAssign, assign.Type)
	assert.Equal(t, jobID, assign.Arg("job"))
}

func TestPreSleepWithPendingJobsSendsSingleNoop(t *testing.T) {
	h := newHarness(t)
	c1 := h.connect()
	c2 := h.connect()
	h.submit(c1, "f", "1")
	h.submit(c1, "g", "2")
	h.submit(c2, "f", "3")

	worker := h.connect()
	h.canDo(worker, "f")
	h.canDo(worker, "g")
	h.send(worker, defs.PreSleep, nil, nil)

	assert.Equal(t, []defs.PacketType{defs.Noop}, types(worker.out.take()))
	assert.False(t, worker.conn.worker.isAsleep())
}

func TestPreSleepWithoutWorkStaysAsleep(t *testing.T) {
	h := newHarness(t)
	client := h.connect()
	h.submit(client, "other", "x")

	worker := h.connect()
	h.canDo(worker, "f")
	h.send(worker, defs.PreSleep, nil, nil)

	assert.Empty(t, worker.out.take())
	assert.True(t, worker.conn.worker.isAsleep())
}

func TestSubmissionWakesSleepingWorkersOnce(t *testing.T) {
	h := newHarness(t)
	w1 := h.connect()
	w2 := h.connect()
	idle := h.connect()
	h.canDo(w1, "f")
	h.canDo(w2, "f")
	h.canDo(idle, "g")
	for _, w := range []*peer{w1, w2, idle} {
		h.send(w, defs.PreSleep, nil, nil)
	}

	client := h.connect()
	h.submit(client, "f", "1")
	h.submit(client, "f", "2")

	assert.Equal(t, []defs.PacketType{defs.Noop}, types(w1.out.take()))
	assert.Equal(t, []defs.PacketType{defs.Noop}, types(w2.out.take()))
	assert.Empty(t, idle.out.take())
}

func TestWakeUpCoalescesWithinTurn(t *testing.T) {
	h := newHarness(t)
	worker := h.connect()

	h.broker.mu.Lock()
	worker.conn.worker.wakeUp()
	worker.conn.worker.wakeUp()
	worker.conn.worker.wakeUp()
	h.broker.flushWakes()
	h.broker.mu.Unlock()

	assert.Equal(t, []defs.PacketType{defs.Noop}, types(worker.out.take()))
}

func TestDuplicateWorkCompleteIsNoop(t *testing.T) {
	h := newHarness(t)
	client := h.connect()
	worker := h.connect()
	h.canDo(worker, "f")
	jobID := h.submit(client, "f", "x")
	h.grab(worker)

	complete := map[string]string{"job": jobID}
	h.send(worker, defs.WorkComplete, complete, []byte("done"))
	require.NotPanics(t, func() {
		h.send(worker, defs.WorkComplete, complete, []byte("done again"))
	})

	out := client.out.take()
	require.Len(t, out, 1)
	assert.Equal(t, []byte("done"), out[0].Body)

	h.broker.mu.Lock()
	h.broker.unregisterJob(jobID)
	h.broker.unregisterJob("never-existed")
	h.broker.mu.Unlock()
}

func TestResetAbilitiesBlocksAssignment(t *testing.T) {
	h := newHarness(t)
	client := h.connect()
	worker := h.connect()
	jobID := h.submit(client, "f", "x")

	h.canDo(worker, "f")
	h.send(worker, defs.ResetAbilities, nil, nil)
	assert.Equal(t, defs.NoJob, h.grab(worker).Type)

	h.canDo(worker, "f")
	assign := h.grab(worker)
	assert.Equal(t, defs.JobAssign, assign.Type)
	assert.Equal(t, jobID, assign.Arg("job"))
}

func TestCantDoRemovesCapability(t *testing.T) {
	h := newHarness(t)
	client := h.connect()
	worker := h.connect()
	h.submit(client, "f", "x")

	h.canDo(worker, "f")
	h.canDo(worker, "g")
	h.send(worker, defs.CantDo, map[string]string{"function": "f"}, nil)

	assert.Equal(t, []string{"g"}, worker.conn.worker.capabilityNames())
	assert.Equal(t, defs.NoJob, h.grab(worker).Type)
}

func TestCanDoTimeoutStoresMilliseconds(t *testing.T) {
	h := newHarness(t)
	worker := h.connect()

	h.send(worker, defs.CanDoTimeout, map[string]string{"function": "slow", "timeout": "30"}, nil)
	h.canDo(worker, "fast")
	h.send(worker, defs.CanDoTimeout, map[string]string{"function": "broken", "timeout": "soon"}, nil)
	h.send(worker, defs.CanDoTimeout, map[string]string{"function": "huge", "timeout": strconv.Itoa(maxTimeoutSeconds + 1)}, nil)
	h.send(worker, defs.CanDoTimeout, map[string]string{"function": "negative", "timeout": "-2"}, nil)
	h.send(worker, defs.CanDoTimeout, map[string]string{"function": "edge", "timeout": strconv.Itoa(maxTimeoutSeconds)}, nil)

	caps := worker.conn.worker.capabilities
	assert.Equal(t, 30000, caps["slow"])
	assert.Equal(t, NoTimeout, caps["fast"])
	assert.Equal(t, NoTimeout, caps["broken"])
	assert.Equal(t, NoTimeout, caps["huge"])
	assert.Equal(t, NoTimeout, caps["negative"])
	assert.Equal(t, maxTimeoutSeconds*1000, caps["edge"])
	assert.Positive(t, caps["edge"])
	assert.Equal(t, []string{"slow", "fast", "broken", "huge", "negative", "edge"}, worker.conn.worker.capabilityNames())
}

func TestNonTerminalResultsKeepJob(t *testing.T) {
	h := newHarness(t)
	client := h.connect()
	worker := h.connect()
	h.canDo(worker, "f")
	jobID := h.submit(client, "f", "x")
	h.grab(worker)

	job := map[string]string{"job": jobID}
	h.send(worker, defs.WorkData, job, []byte("part-1"))
	h.send(worker, defs.WorkWarning, job, []byte("careful"))
	h.send(worker, defs.WorkException, job, []byte("oops"))
	h.send(worker, defs.WorkStatus, map[string]string{"job": jobID, "numerator": "1", "denominator": "4"}, nil)

	_, live := h.broker.jobByID(jobID)
	assert.True(t, live)

	h.send(worker, defs.WorkFail, job, nil)
	out := client.out.take()
	assert.Equal(t, []defs.PacketType{defs.WorkData, defs.WorkWarning, defs.WorkException, defs.WorkStatus, defs.WorkFail}, types(out))
	assert.Equal(t, []byte("part-1"), out[0].Body)
	assert.Equal(t, "4", out[3].Arg("denominator"))

	info, ok := h.broker.Job(jobID)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusFailed, info.Status)
}

func TestResultForUnknownJobIsDropped(t *testing.T) {
	h := newHarness(t)
	worker := h.connect()
	h.send(worker, defs.WorkComplete, map[string]string{"job": "missing"}, []byte("x"))
	h.send(worker, defs.WorkData, map[string]string{"job": "missing"}, []byte("x"))
	assert.Empty(t, worker.out.take())
}

func TestResultFromUnassignedWorkerIsDropped(t *testing.T) {
	h := newHarness(t)
	client := h.connect()
	rogue := h.connect()
	worker := h.connect()
	h.canDo(worker, "f")
	jobID := h.submit(client, "f", "x")

	// still pending, nobody holds it
	h.send(rogue, defs.WorkComplete, map[string]string{"job": jobID}, []byte("forged"))
	h.send(rogue, defs.WorkData, map[string]string{"job": jobID}, []byte("forged"))
	assert.Empty(t, client.out.take())
	_, live := h.broker.jobByID(jobID)
	require.True(t, live)
	require.True(t, client.conn.client.hasPendingJobs())

	assign := h.grab(worker)
	require.Equal(t, defs.JobAssign, assign.Type)
	assert.Equal(t, jobID, assign.Arg("job"))

	// assigned to another connection
	h.send(rogue, defs.WorkFail, map[string]string{"job": jobID}, nil)
	assert.Empty(t, client.out.take())
	_, live = h.broker.jobByID(jobID)
	require.True(t, live)

	h.send(worker, defs.WorkComplete, map[string]string{"job": jobID}, []byte("done"))
	out := client.out.take()
	require.Len(t, out, 1)
	assert.Equal(t, defs.WorkComplete, out[0].Type)
	assert.Equal(t, []byte("done"), out[0].Body)
	assert.Empty(t, worker.conn.worker.assigned)

	h.broker.Disconnect(worker.conn)
	assert.Empty(t, client.out.take())
}

func TestCommonRole(t *testing.T) {
	h := newHarness(t)
	p := h.connect()

	h.send(p, defs.OptionReq, map[string]string{"option": "exceptions"}, nil)
	h.send(p, defs.EchoReq, nil, []byte("ping\x00pong"))

	out := p.out.take()
	require.Len(t, out, 2)
	assert.Equal(t, defs.OptionRes, out[0].Type)
	assert.Equal(t, "exceptions", out[0].Arg("option"))
	assert.Equal(t, defs.EchoRes, out[1].Type)
	assert.Equal(t, []byte("ping\x00pong"), out[1].Body)
}

func TestUnhandledPacketTypeIsDropped(t *testing.T) {
	h := newHarness(t)
	p := h.connect()

	h.send(p, defs.SubmitJobBg, map[string]string{"function": "f"}, nil)
	h.send(p, defs.PacketType(999), nil, []byte("?"))

	assert.Empty(t, p.out.take())
	assert.Empty(t, h.broker.Jobs())
}

func TestGetStatus(t *testing.T) {
	h := newHarness(t)
	client := h.connect()
	worker := h.connect()
	h.canDo(worker, "f")
	jobID := h.submit(client, "f", "x")

	h.send(client, defs.GetStatus, map[string]string{"job": jobID}, nil)
	res := client.out.take()[0]
	assert.Equal(t, defs.StatusRes, res.Type)
	assert.Equal(t, "1", res.Arg("known"))
	assert.Equal(t, "0", res.Arg("running"))

	h.grab(worker)
	h.send(worker, defs.WorkStatus, map[string]string{"job": jobID, "numerator": "3", "denominator": "10"}, nil)
	client.out.take()

	h.send(client, defs.GetStatus, map[string]string{"job": jobID}, nil)
	res = client.out.take()[0]
	assert.Equal(t, "1", res.Arg("running"))
	assert.Equal(t, "3", res.Arg("numerator"))
	assert.Equal(t, "10", res.Arg("denominator"))

	h.send(client, defs.GetStatus, map[string]string{"job": "nope"}, nil)
	res = client.out.take()[0]
	assert.Equal(t, "0", res.Arg("known"))
}

func TestClientDisconnectDiscardsPendingJobs(t *testing.T) {
	h := newHarness(t)
	client := h.connect()
	jobID := h.submit(client, "f", "x")
	h.submit(client, "g", "y")

	h.broker.Disconnect(client.conn)
	h.broker.Disconnect(client.conn)

	assert.Empty(t, h.broker.Jobs())
	info, ok := h.broker.Job(jobID)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusDiscarded, info.Status)

	worker := h.connect()
	h.canDo(worker, "f")
	assert.Equal(t, defs.NoJob, h.grab(worker).Type)
}

func TestWorkerDisconnectFailsAssignedJobs(t *testing.T) {
	h := newHarness(t)
	client := h.connect()
	worker := h.connect()
	h.canDo(worker, "f")
	jobID := h.submit(client, "f", "x")
	h.grab(worker)

	h.broker.Disconnect(worker.conn)

	out := client.out.take()
	require.Len(t, out, 1)
	assert.Equal(t, defs.WorkFail, out[0].Type)
	assert.Equal(t, jobID, out[0].Arg("job"))
	_, live := h.broker.jobByID(jobID)
	assert.False(t, live)
}

func TestResultAfterClientDisconnectIsDropped(t *testing.T) {
	h := newHarness(t)
	client := h.connect()
	worker := h.connect()
	h.canDo(worker, "f")
	jobID := h.submit(client, "f", "x")
	h.grab(worker)

	h.broker.Disconnect(client.conn)
	_, live := h.broker.jobByID(jobID)
	require.True(t, live)

	h.send(worker, defs.WorkComplete, map[string]string{"job": jobID}, []byte("late"))
	assert.Empty(t, client.out.take())
	_, live = h.broker.jobByID(jobID)
	assert.False(t, live)
}

func TestPacketsAfterDisconnectAreIgnored(t *testing.T) {
	h := newHarness(t)
	p := h.connect()
	h.broker.Disconnect(p.conn)

	h.send(p, defs.EchoReq, nil, []byte("x"))
	assert.Empty(t, p.out.take())
}

func TestStatusAndWorkersSnapshot(t *testing.T) {
	h := newHarness(t)
	client := h.connect()
	worker := h.connect()
	h.send(worker, defs.SetClientID, map[string]string{"id": "resizer-1"}, nil)
	h.canDo(worker, "resize")
	h.canDo(worker, "crop")

	h.submit(client, "resize", "1")
	h.submit(client, "resize", "2")
	h.submit(client, "encode", "3")
	h.grab(worker)

	status := h.broker.Status()
	require.Len(t, status, 3)
	assert.Equal(t, domain.FunctionStatus{Name: "crop", AvailableWorkers: 1}, *status[0])
	assert.Equal(t, domain.FunctionStatus{Name: "encode", Total: 1}, *status[1])
	assert.Equal(t, domain.FunctionStatus{Name: "resize", Total: 2, Running: 1, AvailableWorkers: 1}, *status[2])

	workers := h.broker.Workers()
	require.Len(t, workers, 2)
	assert.Equal(t, worker.conn.ID(), workers[1].ConnectionID)
	assert.Equal(t, "resizer-1", workers[1].ClientID)
	assert.Equal(t, []string{"resize", "crop"}, workers[1].Functions)
	assert.Equal(t, 1, workers[1].AssignedJobs)

	assert.Len(t, h.broker.Jobs(), 3)
}
