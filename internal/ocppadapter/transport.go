// Package ocppadapter connects the station core to a CSMS over OCPP 2.0.1
// using ocpp-go.
package ocppadapter

import (
	"context"
	"errors"
	"sync"

	"github.com/lorenzodonini/ocpp-go/ocpp"
	ocpp2 "github.com/lorenzodonini/ocpp-go/ocpp2.0.1"
	"github.com/lorenzodonini/ocpp-go/ws"
	"github.com/sirupsen/logrus"

	"ocpp_station_sim/internal/evse/states"
	"ocpp_station_sim/internal/message"
)

var ErrNotConnected = errors.New("charging station not connected")

// Resolver receives the outcome of a correlated request.
type Resolver interface {
	Resolve(id string, resp message.Response) bool
	Fail(id string, err error) bool
}

// Station is where remote commands from the CSMS are delivered.
type Station interface {
	Dispatch(evseID int, ev states.Event) (*states.Future, error)
	RemoteStop(txID string) (*states.Future, error)
	DefaultEvseID() int
	Snapshot() []states.EvseView
}

// TriggerFunc sends the message named by a TriggerMessage request and
// reports whether it is supported.
type TriggerFunc func(requested string) bool

type Transport struct {
	id  string
	log *logrus.Entry

	mu sync.RWMutex
	cs ocpp2.ChargingStation

	resolver  Resolver
	station   Station
	trigger   TriggerFunc
	variables Variables
	profiles  Profiles
	reset     ResetFunc
}

func New(chargingStationID string, log *logrus.Entry) *Transport {
	ws.SetLogger(log.Logger)
	return &Transport{id: chargingStationID, log: log}
}

// Attach wires the transport to the core. It must be called once, before
// Start.
func (t *Transport) Attach(r Resolver, s Station, trigger TriggerFunc) {
	t.resolver = r
	t.station = s
	t.trigger = trigger
}

// Start connects to the CSMS through a fresh OCPP session on client. A nil
// client uses a plain websocket client.
func (t *Transport) Start(csmsURL string, client ws.WsClient) error {
	cs := ocpp2.NewChargingStation(t.id, nil, client)
	cs.SetRemoteControlHandler(t)
	cs.SetProvisioningHandler(t)

	t.mu.Lock()
	t.cs = cs
	t.mu.Unlock()

	t.log.WithField("csms", csmsURL).Infoln("connecting to csms")
	return cs.Start(csmsURL)
}

func (t *Transport) Stop() {
	if cs := t.session(); cs != nil {
		cs.Stop()
	}
}

func (t *Transport) IsConnected() bool {
	cs := t.session()
	return cs != nil && cs.IsConnected()
}

func (t *Transport) session() ocpp2.ChargingStation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cs
}

// Send transmits req. The response, or the error reported for it, is handed
// to the resolver under correlationID unless the id is empty.
func (t *Transport) Send(_ context.Context, correlationID string, req message.Request) error {
	cs := t.session()
	if cs == nil || !cs.IsConnected() {
		return ErrNotConnected
	}
	wire, err := toOCPP(req)
	if err != nil {
		return err
	}
	entry := t.log.WithField("action", req.Action())
	if correlationID != "" {
		entry = entry.WithField("correlation_id", correlationID)
	}

	return cs.SendRequestAsync(wire, func(resp ocpp.Response, err error) {
		if correlationID == "" {
			if err != nil {
				entry.WithError(err).Warnln("request failed")
			}
			return
		}
		if err != nil {
			t.resolver.Fail(correlationID, err)
			return
		}
		domain, err := fromOCPP(resp)
		if err != nil {
			entry.WithError(err).Warnln("failed to read response")
			t.resolver.Fail(correlationID, err)
			return
		}
		t.resolver.Resolve(correlationID, domain)
	})
}
