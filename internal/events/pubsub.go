// Mealwise - Dietary-Aware Restaurant Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mealwise

package events

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Config selects and tunes the event transport.
type Config struct {
	// Backend is "memory" or "nats".
	// Default: memory
	Backend string

	// Topic carries preference-updated events.
	// Default: preferences.updated
	Topic string

	// URL of the NATS server when Backend is nats.
	URL string

	// JetStream enables durable delivery. Streams are auto-provisioned.
	JetStream bool

	// QueueGroup load-balances one topic across replicas.
	// Default: mealwise
	QueueGroup string

	// MaxReconnects before the connection is abandoned. -1 retries forever.
	// Default: -1
	MaxReconnects int

	// ReconnectWait between attempts.
	// Default: 2s
	ReconnectWait time.Duration

	// AckWaitTimeout bounds how long a delivery waits for an ack.
	// Default: 30s
	AckWaitTimeout time.Duration

	// BufferSize of the in-process channel backend.
	// Default: 64
	BufferSize int64
}

// DefaultConfig returns the in-process defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendMemory,
		Topic:          DefaultTopic,
		QueueGroup:     "mealwise",
		MaxReconnects:  -1,
		ReconnectWait:  2 * time.Second,
		AckWaitTimeout: 30 * time.Second,
		BufferSize:     64,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	if c.Topic == "" {
		c.Topic = def.Topic
	}
	if c.QueueGroup == "" {
		c.QueueGroup = def.QueueGroup
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = def.MaxReconnects
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = def.ReconnectWait
	}
	if c.AckWaitTimeout <= 0 {
		c.AckWaitTimeout = def.AckWaitTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
}

// Transport is a connected publisher and subscriber pair.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Topic      string
}

// Close shuts both sides down.
func (t *Transport) Close() error {
	perr := t.Publisher.Close()
	if t.Subscriber == nil {
		return perr
	}
	// gochannel uses one value for both sides; closing it twice is a no-op.
	serr := t.Subscriber.Close()
	if perr != nil {
		return perr
	}
	return serr
}

// NewTransport connects the configured backend.
func NewTransport(cfg Config, logger watermill.LoggerAdapter) (*Transport, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	switch cfg.Backend {
	case BackendMemory:
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.BufferSize,
		}, logger)
		return &Transport{Publisher: ch, Subscriber: ch, Topic: cfg.Topic}, nil

	case BackendNATS:
		if cfg.URL == "" {
			return nil, fmt.Errorf("events: nats backend requires a url")
		}
		pub, err := newNATSPublisher(cfg, logger)
		if err != nil {
			return nil, err
		}
		sub, err := newNATSSubscriber(cfg, logger)
		if err != nil {
			_ = pub.Close()
			return nil, err
		}
		return &Transport{Publisher: pub, Subscriber: sub, Topic: cfg.Topic}, nil

	default:
		return nil, fmt.Errorf("events: unknown backend %q", cfg.Backend)
	}
}

func natsOptions(cfg Config, logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}
}

func newNATSPublisher(cfg Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOptions(cfg, logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      !cfg.JetStream,
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}
	return pub, nil
}

func newNATSSubscriber(cfg Config, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     10 * time.Second,
		NatsOptions:      natsOptions(cfg, logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      !cfg.JetStream,
			AutoProvision: true,
			AckAsync:      false,
			DurablePrefix: cfg.QueueGroup,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.DeliverNew(),
				natsgo.AckWait(cfg.AckWaitTimeout),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}
	return sub, nil
}
