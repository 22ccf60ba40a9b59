// Package eventstreamutils builds the configured eventstream.Publisher.
package eventstreamutils

import (
	"fmt"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/kafka"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	ProviderType string
	Brokers      []string
	Topic        string
}

// NewPublisher builds the configured Publisher. An empty provider yields the
// nop publisher.
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", "nop", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: o.Brokers,
			Topic:   o.Topic,
		})
	default:
		return nil, fmt.Errorf("unsupported eventstream provider: %q", o.ProviderType)
	}
}
