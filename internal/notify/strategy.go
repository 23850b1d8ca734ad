// Package notify delivers alert notifications across channels. It uses
// the strategy pattern to route each channel to its sender.
package notify

import (
	"context"

	"alertcore/internal/model"
)

// ChannelSender is the interface all channel strategies implement.
type ChannelSender interface {
	// Send delivers the alert to one recipient. The recipient format
	// depends on the channel:
	//   - webhook: webhook URL
	//   - slack: incoming-webhook URL
	//   - kafka: downstream topic name
	Send(ctx context.Context, recipient string, alert *model.Alert) error

	// Type returns the channel this sender handles.
	Type() string
}

// Registry manages channel sender strategies.
type Registry struct {
	senders map[string]ChannelSender
}

// NewRegistry creates a new sender registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]ChannelSender)}
}

// Register registers a sender strategy.
func (r *Registry) Register(sender ChannelSender) {
	r.senders[sender.Type()] = sender
}

// Get retrieves a sender strategy by channel.
func (r *Registry) Get(channel string) (ChannelSender, bool) {
	sender, ok := r.senders[channel]
	return sender, ok
}

// List returns all registered channels.
func (r *Registry) List() []string {
	channels := make([]string, 0, len(r.senders))
	for c := range r.senders {
		channels = append(channels, c)
	}
	return channels
}
