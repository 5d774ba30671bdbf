// Package notification delivers operational alerts through configured
// channels (webhook, Slack, Telegram).
//
// Every delivery attempt is logged. Credentials come from the environment
// and are handed to senders at startup; channels only carry targets.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Sender is the interface for a single notification channel backend.
type Sender interface {
	// Type returns the channel type identifier ("webhook", "slack", "telegram").
	Type() string
	// Send delivers a message to the target named by the channel.
	Send(ctx context.Context, channel Channel, msg *Message) error
}

// Channel is one configured destination.
type Channel struct {
	Name   string
	Type   string
	Config map[string]string // Sender-specific target: url, channel_id, chat_id.
}

// Message is the payload to be sent through a notification channel.
type Message struct {
	Subject  string            // Used as a heading; plain text.
	Body     string            // Plain text body.
	Metadata map[string]string // Extra data (gateway, rate, ...).
}

// Dispatcher routes notifications to the appropriate Sender based on channel type.
type Dispatcher struct {
	senders  map[string]Sender
	channels []Channel
	timeout  time.Duration
	logger   *slog.Logger

	mu sync.RWMutex
	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher over channels.
func NewDispatcher(channels []Channel, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		senders:  make(map[string]Sender),
		channels: channels,
		timeout:  15 * time.Second,
		logger:   logger,
	}
}

// RegisterSender adds a channel backend.
func (d *Dispatcher) RegisterSender(s Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[s.Type()] = s
}

// Channels returns the configured channel count.
func (d *Dispatcher) Channels() int {
	if d == nil {
		return 0
	}
	return len(d.channels)
}

// Notify sends msg to every channel. Returns per-channel errors keyed by
// channel name (nil = success).
func (d *Dispatcher) Notify(ctx context.Context, msg *Message) map[string]error {
	errs := make(map[string]error, len(d.channels))

	for _, ch := range d.channels {
		d.mu.RLock()
		sender, ok := d.senders[ch.Type]
		d.mu.RUnlock()
		if !ok {
			errs[ch.Name] = fmt.Errorf("no sender registered for channel type %q", ch.Type)
			d.logger.WarnContext(ctx, "notification skipped",
				slog.String("channel", ch.Name),
				slog.String("type", ch.Type),
			)
			continue
		}

		if err := sender.Send(ctx, ch, msg); err != nil {
			errs[ch.Name] = err
			d.logger.WarnContext(ctx, "notification send failed",
				slog.String("channel", ch.Name),
				slog.String("type", ch.Type),
				slog.String("error", err.Error()),
			)
			continue
		}
		errs[ch.Name] = nil
		d.logger.InfoContext(ctx, "notification sent",
			slog.String("channel", ch.Name),
			slog.String("type", ch.Type),
		)
	}
	return errs
}

// NotifyAsync sends msg in the background with the dispatcher timeout.
// Callers on a request path use this so a slow channel never delays a reply.
func (d *Dispatcher) NotifyAsync(msg *Message) {
	if d == nil || len(d.channels) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		d.Notify(ctx, msg)
	}()
}

// Wait blocks until background sends finish.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
