package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
)

// ErrNoRecipients means a channel had nobody to deliver to. It is logged as
// a warning, not a failure.
var ErrNoRecipients = errors.New("no recipients")

// Notification is one accepted alert ready for delivery.
type Notification struct {
	Alert   models.AlertEvent
	AlertID string
	RowID   int64
	Token   string
	Link    string
}

// Channel is one delivery path.
type Channel interface {
	Name() string
	Accepts(n Notification) bool
	Send(ctx context.Context, n Notification) error
}

// Attempt records the outcome of one channel for one notification.
type Attempt struct {
	Channel   string `json:"channel"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	log      *logger.Logger
}

func NewDispatcher(log *logger.Logger, timeout time.Duration, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		channels: channels,
		timeout:  timeout,
		log:      log.Named("notify"),
	}
}

// Channels lists the configured channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Dispatch offers n to every channel that accepts it. A failing or
// panicking channel never stops the others.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) []Attempt {
	attempts := make([]Attempt, 0, len(d.channels))
	for _, ch := range d.channels {
		if !ch.Accepts(n) {
			continue
		}
		attempts = append(attempts, d.send(ctx, ch, n))
	}
	return attempts
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, n Notification) (a Attempt) {
	a.Channel = ch.Name()

	defer func() {
		if r := recover(); r != nil {
			a.Delivered = false
			a.Error = fmt.Sprintf("panic: %v", r)
			d.log.Error("%s channel panicked for %s: %v", a.Channel, n.AlertID, r)
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := ch.Send(cctx, n)
	switch {
	case err == nil:
		a.Delivered = true
		d.log.Info("%s delivered %s", a.Channel, n.AlertID)
	case errors.Is(err, ErrNoRecipients):
		a.Error = err.Error()
		d.log.Warn("%s has no recipients for %s", a.Channel, n.AlertID)
	default:
		a.Error = err.Error()
		d.log.Error("%s failed for %s: %v", a.Channel, n.AlertID, err)
	}
	return a
}
