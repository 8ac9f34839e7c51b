package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/helpora/api/internal/services"
)

// PubSubBookingPublisher publishes booking lifecycle events to a Pub/Sub topic.
// Vendor notification and analytics pipelines consume the topic downstream.
type PubSubBookingPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubBookingPublisher constructs a Pub/Sub backed booking event publisher.
func NewPubSubBookingPublisher(topic *pubsub.Topic) (*PubSubBookingPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub booking publisher: topic is required")
	}
	return &PubSubBookingPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishBookingEvent enqueues a booking event message on the configured topic.
func (p *PubSubBookingPublisher) PublishBookingEvent(ctx context.Context, event services.BookingEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub booking publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal booking event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "bookingId", event.BookingID)
	setAttr(attrs, "customerId", event.CustomerID)
	setAttr(attrs, "vendorId", event.VendorID)
	setAttr(attrs, "currentStatus", string(event.CurrentStatus))

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish booking event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
