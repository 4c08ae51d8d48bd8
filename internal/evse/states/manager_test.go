package states

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocpp_station_sim/internal/evse"
	"ocpp_station_sim/internal/message"
	"ocpp_station_sim/internal/scheduler"
)

func TestUnknownEvse(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Dispatch(7, Plug{ConnectorID: 1})
	assert.ErrorIs(t, err, ErrUnknownEvse)
	assert.ErrorIs(t, h.m.SetStateForEvse(7, Faulted{}), ErrUnknownEvse)
	assert.ErrorIs(t, h.m.Fault(7), ErrUnknownEvse)
	_, err = h.m.State(7)
	assert.ErrorIs(t, err, ErrUnknownEvse)
}

func TestUnknownConnector(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Dispatch(1, Plug{ConnectorID: 3})
	assert.ErrorIs(t, err, evse.ErrUnknownConnector)
	assert.Equal(t, Available{}, h.state(1))
}

func TestDefaultEvseIsLowestID(t *testing.T) {
	h := newHarness(t, evse.New(3, 1), evse.New(2, 1))

	assert.Equal(t, 2, h.m.DefaultEvseID())
	assert.Equal(t, []int{2, 3}, h.m.EvseIDs())

	views := h.m.Snapshot()
	require.Len(t, views, 2)
	assert.Equal(t, 2, views[0].ID)
	assert.Equal(t, "Available", views[0].State)
}

func TestSetStateForEvseNotifiesObserver(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.m.SetStateForEvse(1, Faulted{}))
	require.NoError(t, h.m.SetStateForEvse(1, Faulted{}))
	assert.Equal(t, []string{"Available->Faulted"}, h.transitions)
}

func TestFaultAndRecover(t *testing.T) {
	h := newHarness(t)
	plugAndAuthorize(t, h, "tag")

	require.NoError(t, h.m.Fault(1))
	assert.Equal(t, Faulted{}, h.state(1))
	v := h.view(1)
	assert.Empty(t, v.TransactionID)
	assert.Empty(t, v.Token)
	assert.Equal(t, string(evse.CableStatusPlugged), v.Connectors[0].CableStatus)

	events := h.transactionEvents()
	last := events[len(events)-1]
	assert.Equal(t, message.TriggerReasonAbnormalCondition, last.TriggerReason)
	notes := h.statusNotifications()
	assert.Equal(t, message.ConnectorStatusFaulted, notes[len(notes)-1].ConnectorStatus)

	for _, ev := range []Event{Plug{ConnectorID: 1}, Unplug{ConnectorID: 1}, Authorize{IdToken: "x"}, RemoteStart{}, RemoteStop{}, CancelRemoteStart{}} {
		requireResult(t, h.dispatch(1, ev), NotExecuted)
	}
	require.NoError(t, h.m.Fault(1))

	require.NoError(t, h.m.Recover(1))
	assert.Equal(t, WaitingForAuthorization{}, h.state(1), "cable is still in")
	assert.ErrorIs(t, h.m.Recover(1), evse.ErrInvalidState)
}

func TestRecoverWithoutCable(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.m.Fault(1))
	require.NoError(t, h.m.Recover(1))
	assert.Equal(t, Available{}, h.state(1))

	notes := h.statusNotifications()
	assert.Equal(t, message.ConnectorStatusAvailable, notes[len(notes)-1].ConnectorStatus)
}

func TestConcurrentPlugsSerialized(t *testing.T) {
	h := newHarness(t, evse.New(1, 1), evse.New(2, 1))

	var wg sync.WaitGroup
	var ok, invalid [3]atomic.Int32
	for i := 0; i < 16; i++ {
		for _, id := range []int{1, 2} {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				_, err := h.m.Dispatch(id, Plug{ConnectorID: 1})
				switch {
				case err == nil:
					ok[id].Add(1)
				case errors.Is(err, evse.ErrInvalidState):
					invalid[id].Add(1)
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []int{1, 2} {
		assert.Equal(t, int32(1), ok[id].Load())
		assert.Equal(t, int32(15), invalid[id].Load())
		assert.Equal(t, WaitingForAuthorization{}, h.state(id))
	}
}

func TestConcurrentResponsesAndTimeouts(t *testing.T) {
	logger, _ := test.NewNullLogger()
	log := logrus.NewEntry(logger)
	h := newHarness(t)
	sched := scheduler.New(log)
	t.Cleanup(sched.Stop)
	h.m.deps.Scheduler = sched
	h.store.timeout = 0

	requireResult(t, h.dispatch(1, RemoteStart{RemoteStartID: 1, IdToken: "remote"}), Successful)

	assert.Eventually(t, func() bool {
		s, _ := h.m.State(1)
		return s == Available{}
	}, time.Second, time.Millisecond)
	assert.Empty(t, h.view(1).TransactionID)
	assert.Equal(t, 0, sched.Pending())
}

func TestFutureWait(t *testing.T) {
	f := newFuture()
	_, done := f.Result()
	assert.False(t, done)

	go f.complete(Successful)
	got, err := f.Wait(contextWithTimeout(t))
	require.NoError(t, err)
	assert.Equal(t, Successful, got)

	f.complete(Failed)
	got, _ = f.Result()
	assert.Equal(t, Successful, got, "first result wins")

	select {
	case <-Completed(NotExecuted).Done():
	default:
		t.Fatal("completed future not done")
	}
}
