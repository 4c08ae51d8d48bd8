// Package notifier exposes the station on a NATS bus: operator commands
// arrive with request/reply and EVSE state changes are published.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"ocpp_station_sim/internal/command"
	"ocpp_station_sim/internal/evse/states"
)

// Request is the envelope received on the request subject. Payload carries
// the command fields other than the action.
type Request struct {
	Action            string          `json:"action" validate:"required"`
	ChargingStationID string          `json:"chargingStationId" validate:"required"`
	Payload           json.RawMessage `json:"payload"`
}

// StateEvent is published on every EVSE state change.
type StateEvent struct {
	ChargingStationID string    `json:"chargingStationId"`
	EvseID            int       `json:"evseId"`
	From              string    `json:"from"`
	To                string    `json:"to"`
	Timestamp         time.Time `json:"timestamp"`
}

type Executor interface {
	Execute(ctx context.Context, cmd command.Command) command.Response
}

type Notifier struct {
	stationID string
	log       *logrus.Entry
	validate  *validator.Validate
	timeout   time.Duration

	conn    *nats.Conn
	sub     *nats.Subscription
	exec    Executor
	publish func(subject string, data []byte) error
}

func New(stationID string, log *logrus.Entry) *Notifier {
	return &Notifier{
		stationID: stationID,
		log:       log.WithField("component", "nats"),
		validate:  validator.New(),
		timeout:   30 * time.Second,
	}
}

func (n *Notifier) SetTimeout(timeout time.Duration) {
	n.timeout = timeout
}

func (n *Notifier) RequestSubject() string {
	return fmt.Sprintf("station.%s.request", n.stationID)
}

func (n *Notifier) EventSubject() string {
	return fmt.Sprintf("station.%s.events", n.stationID)
}

// Start connects to url and serves commands with exec.
func (n *Notifier) Start(url string, exec Executor) error {
	nc, err := nats.Connect(url, nats.Name("ocpp-station-sim "+n.stationID))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	n.conn = nc
	n.exec = exec
	n.publish = nc.Publish

	sub, err := nc.Subscribe(n.RequestSubject(), func(m *nats.Msg) {
		if err := m.Respond(n.handle(m.Data)); err != nil {
			n.log.WithError(err).Warnln("failed to respond")
		}
	})
	if err != nil {
		nc.Close()
		return err
	}
	n.sub = sub
	n.log.WithField("url", url).WithField("subject", n.RequestSubject()).Infoln("listening for commands")
	return nil
}

func (n *Notifier) Stop() {
	if n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
	n.log.Infoln("NATS stopped")
}

// StateChanged publishes the transition. It is a states.Observer.
func (n *Notifier) StateChanged(evseID int, from, to states.State) {
	if n.publish == nil {
		return
	}
	bt, err := json.Marshal(StateEvent{
		ChargingStationID: n.stationID,
		EvseID:            evseID,
		From:              from.Name(),
		To:                to.Name(),
		Timestamp:         time.Now(),
	})
	if err != nil {
		n.log.Error(err)
		return
	}
	if err := n.publish(n.EventSubject(), bt); err != nil {
		n.log.WithError(err).Warnln("failed to publish state change")
	}
}

func (n *Notifier) handle(data []byte) []byte {
	n.log.Debugf("request %s", data)

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return n.reply(errorResponse("command.format.not.valid", "the command is not valid JSON"))
	}
	if err := n.validate.Struct(&req); err != nil {
		return n.reply(errorResponse("command.format.not.valid", "the command is not valid"))
	}
	if req.ChargingStationID != n.stationID {
		return n.reply(errorResponse("command.station.not.found", fmt.Sprintf("no charging station %q", req.ChargingStationID)))
	}

	var cmd command.Command
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &cmd); err != nil {
			return n.reply(errorResponse("command.format.not.valid", "the payload is not valid"))
		}
	}
	cmd.Action = req.Action

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	done := make(chan command.Response, 1)
	go func() {
		done <- n.exec.Execute(ctx, cmd)
	}()

	select {
	case resp := <-done:
		return n.reply(resp)
	case <-ctx.Done():
		return n.reply(errorResponse("request.timeout", "the request timed out"))
	}
}

func (n *Notifier) reply(resp command.Response) []byte {
	bt, err := json.Marshal(resp)
	if err != nil {
		n.log.Error(err)
		return nil
	}
	if resp.Err != nil {
		n.log.WithField("code", resp.Err.Code).Warnln(resp.Err.Message)
	}
	return bt
}

func errorResponse(code, message string) command.Response {
	return command.Response{Err: &command.Error{Code: code, Message: message}}
}
