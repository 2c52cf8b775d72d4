// Package notify turns lifecycle notification intents into push messages and
// delivers them without holding up the caller.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"barberbook/internal/domain"
)

type Message struct {
	Target string
	Title  string
	Body   string
	Data   map[string]string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Render builds the message for an intent. It reports false when the intent
// carries nothing to send.
func Render(intent domain.Intent) (Message, bool) {
	if intent.Empty() {
		return Message{}, false
	}

	msg := Message{
		Target: intent.Target,
		Data: map[string]string{
			"appointment_id": intent.AppointmentID,
			"status":         string(intent.Status),
			"kind":           string(intent.Kind),
			"date":           intent.Slot.Date.String(),
			"time":           intent.Slot.Time.String(),
		},
	}
	when := intent.Slot.Date.String() + " at " + intent.Slot.Time.String()

	switch intent.Kind {
	case domain.NotifyAccepted:
		msg.Title = "Appointment confirmed"
		msg.Body = "Your appointment on " + when + " is confirmed."
	case domain.NotifySuggestion:
		suggested := intent.Slot.Time
		if intent.Suggestion != nil {
			suggested = *intent.Suggestion
			msg.Data["suggestion_time"] = suggested.String()
		}
		msg.Title = "New time suggested"
		msg.Body = "The barber suggested " + intent.Slot.Date.String() + " at " + suggested.String() + " instead. Open the app to answer."
	case domain.NotifyRejected:
		msg.Title = "Appointment declined"
		msg.Body = "Your request for " + when + " could not be accepted."
	default:
		return Message{}, false
	}
	return msg, true
}

// Dispatcher sends each intent on its own goroutine with a fresh timeout, so
// a slow or failing sender never reaches the transition that emitted it.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	log     *slog.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, timeout time.Duration, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		sender:  sender,
		timeout: timeout,
		log:     log.With(slog.String("component", "notify")),
	}
}

func (d *Dispatcher) Notify(ctx context.Context, intent domain.Intent) {
	msg, ok := Render(intent)
	if !ok {
		return
	}

	base := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, msg); err != nil {
			d.log.Warn("notification not delivered",
				slog.String("appointment_id", intent.AppointmentID),
				slog.String("kind", string(intent.Kind)),
				slog.Any("err", err),
			)
			return
		}
		d.log.Debug("notification sent", slog.String("appointment_id", intent.AppointmentID), slog.String("kind", string(intent.Kind)))
	}()
}

// Close waits for in-flight sends until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSender only logs. It stands in when no push credentials are configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log.With(slog.String("component", "notify"), slog.String("sender", "log"))}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.log.Info("notification",
		slog.String("title", msg.Title),
		slog.String("body", msg.Body),
		slog.String("appointment_id", msg.Data["appointment_id"]),
	)
	return nil
}
