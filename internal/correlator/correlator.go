// Package correlator pairs outbound requests with their eventual response.
package correlator

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ocpp_station_sim/internal/message"
)

var ErrCancelled = errors.New("correlation cancelled")

// Continuation receives the original request and either the response or
// the error reported for it. It is invoked at most once.
type Continuation func(req message.Request, resp message.Response, err error)

// Transport transmits a request. An empty correlationID marks a
// fire-and-forget message whose response must not be resolved.
type Transport interface {
	Send(ctx context.Context, correlationID string, req message.Request) error
}

type registration struct {
	req message.Request
	fn  Continuation
}

type Correlator struct {
	transport Transport
	log       *logrus.Entry
	pending   sync.Map
	newID     func() string
}

func New(transport Transport, log *logrus.Entry) *Correlator {
	return &Correlator{
		transport: transport,
		log:       log,
		newID:     uuid.NewString,
	}
}

// SendAndSubscribe registers fn under a fresh correlation id and transmits
// req. A transmit error is delivered to fn on a separate goroutine, never on
// the caller's stack.
func (c *Correlator) SendAndSubscribe(ctx context.Context, req message.Request, fn Continuation) string {
	id := c.newID()
	c.pending.Store(id, &registration{req: req, fn: fn})

	if err := c.transport.Send(ctx, id, req); err != nil {
		c.log.WithError(err).
			WithField("correlation_id", id).
			WithField("action", req.Action()).
			Warnln("failed to send request")
		go c.Fail(id, err)
	}
	return id
}

func (c *Correlator) SendFireAndForget(ctx context.Context, req message.Request) error {
	if err := c.transport.Send(ctx, "", req); err != nil {
		c.log.WithError(err).WithField("action", req.Action()).Warnln("failed to send request")
		return err
	}
	return nil
}

// Resolve delivers resp to the continuation registered under id. It reports
// false when nothing is registered, which is logged as a protocol anomaly.
func (c *Correlator) Resolve(id string, resp message.Response) bool {
	return c.complete(id, resp, nil)
}

// Fail delivers err to the continuation registered under id.
func (c *Correlator) Fail(id string, err error) bool {
	return c.complete(id, nil, err)
}

// Cancel drops the registration; the continuation is invoked with
// ErrCancelled so callers waiting on it are released.
func (c *Correlator) Cancel(id string) bool {
	v, ok := c.pending.LoadAndDelete(id)
	if !ok {
		return false
	}
	r := v.(*registration)
	r.fn(r.req, nil, ErrCancelled)
	return true
}

func (c *Correlator) Pending() int {
	n := 0
	c.pending.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *Correlator) complete(id string, resp message.Response, err error) bool {
	v, ok := c.pending.LoadAndDelete(id)
	if !ok {
		entry := c.log.WithField("correlation_id", id)
		if resp != nil {
			entry = entry.WithField("action", resp.Action())
		}
		entry.Warnln("no pending request for response")
		return false
	}
	r := v.(*registration)
	r.fn(r.req, resp, err)
	return true
}
