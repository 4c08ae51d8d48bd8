package states

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"ocpp_station_sim/internal/correlator"
	"ocpp_station_sim/internal/evse"
	"ocpp_station_sim/internal/message"
	"ocpp_station_sim/internal/scheduler"
	"ocpp_station_sim/internal/sender"
	"ocpp_station_sim/internal/store"
	"ocpp_station_sim/internal/txid"
)

type fakeStore struct {
	mu      sync.Mutex
	timeout int
	start   store.TxPoints
	stop    store.TxPoints
}

func (s *fakeStore) EVConnectionTimeOut() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout
}

func (s *fakeStore) TxStartPoints() store.TxPoints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start
}

func (s *fakeStore) TxStopPoints() store.TxPoints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop
}

type fakeScheduler struct {
	mu        sync.Mutex
	next      scheduler.Handle
	delays    map[scheduler.Handle]time.Duration
	actions   map[scheduler.Handle]func()
	cancelled map[scheduler.Handle]bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		delays:    make(map[scheduler.Handle]time.Duration),
		actions:   make(map[scheduler.Handle]func()),
		cancelled: make(map[scheduler.Handle]bool),
	}
}

func (s *fakeScheduler) Schedule(delay time.Duration, action func()) scheduler.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.delays[s.next] = delay
	s.actions[s.next] = action
	return s.next
}

func (s *fakeScheduler) Cancel(h scheduler.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[h]; !ok {
		return false
	}
	delete(s.actions, h)
	s.cancelled[h] = true
	return true
}

// fire runs the action of h unless it was cancelled.
func (s *fakeScheduler) fire(h scheduler.Handle) bool {
	s.mu.Lock()
	action, ok := s.actions[h]
	delete(s.actions, h)
	s.mu.Unlock()
	if !ok {
		return false
	}
	action()
	return true
}

type sentMessage struct {
	id  string
	req message.Request
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (r *recordingTransport) Send(_ context.Context, id string, req message.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{id: id, req: req})
	return r.err
}

type harness struct {
	t     *testing.T
	m     *Manager
	tr    *recordingTransport
	corr  *correlator.Correlator
	sched *fakeScheduler
	store *fakeStore

	mu          sync.Mutex
	transitions []string
}

func newHarness(t *testing.T, evses ...*evse.Evse) *harness {
	t.Helper()
	if len(evses) == 0 {
		evses = []*evse.Evse{evse.New(1, 1)}
	}
	logger, _ := test.NewNullLogger()
	log := logrus.NewEntry(logger)

	h := &harness{
		t:     t,
		tr:    &recordingTransport{},
		sched: newFakeScheduler(),
		store: &fakeStore{
			timeout: 30,
			start:   store.TxPoints{store.TxPointEVConnected},
			stop:    store.TxPoints{store.TxPointEVConnected},
		},
	}
	h.corr = correlator.New(h.tr, log)
	h.m = NewManager(evses, Dependencies{
		Store:     h.store,
		Sender:    sender.New(h.corr, log),
		Scheduler: h.sched,
		IDs:       txid.New(0),
		Log:       log,
		Observer: func(_ int, from, to State) {
			h.mu.Lock()
			h.transitions = append(h.transitions, from.Name()+"->"+to.Name())
			h.mu.Unlock()
		},
	})
	return h
}

// lastPending returns the most recent request of action awaiting a response.
func (h *harness) lastPending(action string) sentMessage {
	h.t.Helper()
	h.tr.mu.Lock()
	defer h.tr.mu.Unlock()
	for i := len(h.tr.sent) - 1; i >= 0; i-- {
		if s := h.tr.sent[i]; s.id != "" && s.req.Action() == action {
			return s
		}
	}
	h.t.Fatalf("no pending %s request", action)
	return sentMessage{}
}

func (h *harness) resolve(action string, resp message.Response) {
	h.t.Helper()
	require.True(h.t, h.corr.Resolve(h.lastPending(action).id, resp))
}

func (h *harness) transactionEvents() []*message.TransactionEventRequest {
	h.tr.mu.Lock()
	defer h.tr.mu.Unlock()
	var out []*message.TransactionEventRequest
	for _, s := range h.tr.sent {
		if req, ok := s.req.(*message.TransactionEventRequest); ok {
			out = append(out, req)
		}
	}
	return out
}

func (h *harness) statusNotifications() []*message.StatusNotificationRequest {
	h.tr.mu.Lock()
	defer h.tr.mu.Unlock()
	var out []*message.StatusNotificationRequest
	for _, s := range h.tr.sent {
		if req, ok := s.req.(*message.StatusNotificationRequest); ok {
			out = append(out, req)
		}
	}
	return out
}

func (h *harness) state(evseID int) State {
	h.t.Helper()
	s, err := h.m.State(evseID)
	require.NoError(h.t, err)
	return s
}

func (h *harness) view(evseID int) EvseView {
	h.t.Helper()
	for _, v := range h.m.Snapshot() {
		if v.ID == evseID {
			return v
		}
	}
	h.t.Fatalf("evse %d not in snapshot", evseID)
	return EvseView{}
}

func (h *harness) dispatch(evseID int, ev Event) *Future {
	h.t.Helper()
	f, err := h.m.Dispatch(evseID, ev)
	require.NoError(h.t, err)
	require.NotNil(h.t, f)
	return f
}

func requireResult(t *testing.T, f *Future, want Result) {
	t.Helper()
	got, ok := f.Result()
	require.True(t, ok, "future not completed")
	require.Equal(t, want, got)
}

func accepted(evseIDs ...int) *message.AuthorizeResponse {
	return &message.AuthorizeResponse{IdTokenInfo: message.IdTokenInfo{
		Status:  message.AuthorizationStatusAccepted,
		EvseIDs: evseIDs,
	}}
}

func contextWithTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	return ctx
}
