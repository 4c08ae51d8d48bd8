// Package sender builds the station's outbound protocol messages and hands
// them to the correlator.
package sender

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ocpp_station_sim/internal/correlator"
	"ocpp_station_sim/internal/message"
)

type Sender struct {
	correlator *correlator.Correlator
	log        *logrus.Entry
	now        func() time.Time
}

func New(c *correlator.Correlator, log *logrus.Entry) *Sender {
	return &Sender{correlator: c, log: log, now: time.Now}
}

func (s *Sender) SendStatusNotificationAndSubscribe(evseID, connectorID int, status message.ConnectorStatus,
	fn func(*message.StatusNotificationRequest, *message.StatusNotificationResponse, error)) {
	req := s.statusNotification(evseID, connectorID, status)
	s.correlator.SendAndSubscribe(context.Background(), req, func(_ message.Request, resp message.Response, err error) {
		var typed *message.StatusNotificationResponse
		if err == nil {
			typed, err = responseAs[*message.StatusNotificationResponse](resp)
		}
		fn(req, typed, err)
	})
}

func (s *Sender) SendStatusNotification(evseID, connectorID int, status message.ConnectorStatus) {
	s.correlator.SendFireAndForget(context.Background(), s.statusNotification(evseID, connectorID, status))
}

func (s *Sender) SendAuthorizeAndSubscribe(tokenID string, evseIDs []int,
	fn func(*message.AuthorizeRequest, *message.AuthorizeResponse, error)) {
	req := &message.AuthorizeRequest{IdToken: tokenID, EvseIDs: evseIDs}
	s.log.WithField("token", tokenID).Debugln("sending authorize")
	s.correlator.SendAndSubscribe(context.Background(), req, func(_ message.Request, resp message.Response, err error) {
		var typed *message.AuthorizeResponse
		if err == nil {
			typed, err = responseAs[*message.AuthorizeResponse](resp)
		}
		fn(req, typed, err)
	})
}

// SendTransactionEvent transmits req without waiting for the CSMS answer.
// A zero timestamp is stamped with the current time.
func (s *Sender) SendTransactionEvent(req *message.TransactionEventRequest) {
	if req.Timestamp.IsZero() {
		req.Timestamp = s.now()
	}
	s.log.WithFields(logrus.Fields{
		"event":          req.EventType,
		"trigger_reason": req.TriggerReason,
		"transaction_id": req.TransactionInfo.TransactionID,
		"seq_no":         req.SeqNo,
	}).Infoln("transaction event")
	s.correlator.SendFireAndForget(context.Background(), req)
}

func (s *Sender) SendBootNotificationAndSubscribe(req *message.BootNotificationRequest,
	fn func(*message.BootNotificationResponse, error)) {
	s.correlator.SendAndSubscribe(context.Background(), req, func(_ message.Request, resp message.Response, err error) {
		var typed *message.BootNotificationResponse
		if err == nil {
			typed, err = responseAs[*message.BootNotificationResponse](resp)
		}
		fn(typed, err)
	})
}

func (s *Sender) SendHeartbeatAndSubscribe(fn func(*message.HeartbeatResponse, error)) {
	s.correlator.SendAndSubscribe(context.Background(), &message.HeartbeatRequest{}, func(_ message.Request, resp message.Response, err error) {
		var typed *message.HeartbeatResponse
		if err == nil {
			typed, err = responseAs[*message.HeartbeatResponse](resp)
		}
		fn(typed, err)
	})
}

func (s *Sender) statusNotification(evseID, connectorID int, status message.ConnectorStatus) *message.StatusNotificationRequest {
	s.log.WithField("evse_id", evseID).
		WithField("connector_id", connectorID).
		WithField("status", status).
		Infoln("status notification")
	return &message.StatusNotificationRequest{
		Timestamp:       s.now(),
		ConnectorStatus: status,
		EvseID:          evseID,
		ConnectorID:     connectorID,
	}
}

func responseAs[T message.Response](resp message.Response) (T, error) {
	typed, ok := resp.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected response %T", resp)
	}
	return typed, nil
}
