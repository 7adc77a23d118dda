// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge relays frames between a radio link and an MQTT broker.
//
// Every frame read from the link is published in its plain encoding to
// <prefix>/rx/<kind>, and failed reads are published as text to
// <prefix>/error. Frames published to <prefix>/tx, either as plain binary
// frames or as hex text, are parsed and written to the link.
package bridge

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync/atomic"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/meshstat/pkg/xbee"
)

// Client is the part of mqtt.Client the bridge uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Options configures a Bridge.
type Options struct {
	// Prefix is the root topic. Defaults to "meshstat".
	Prefix string
	QoS    byte
	// Registry decodes frames from both directions. Defaults to xbee.DefaultRegistry.
	Registry *xbee.Registry
	Logger   zerolog.Logger
}

// Bridge relays frames between an xbee link and MQTT.
type Bridge struct {
	client   Client
	link     *xbee.Writer
	prefix   string
	qos      byte
	registry *xbee.Registry
	log      zerolog.Logger

	published atomic.Uint64
	forwarded atomic.Uint64
	rejected  atomic.Uint64
}

// New creates a bridge that writes frames received on the tx topic to link.
func New(client Client, link *xbee.Writer, opts Options) *Bridge {
	prefix := strings.Trim(opts.Prefix, "/")
	if prefix == "" {
		prefix = "meshstat"
	}
	reg := opts.Registry
	if reg == nil {
		reg = xbee.DefaultRegistry()
	}
	return &Bridge{
		client:   client,
		link:     link,
		prefix:   prefix,
		qos:      opts.QoS,
		registry: reg,
		log:      opts.Logger,
	}
}

// RXTopic returns the topic frames of type t are published to. Unregistered
// codes keep their code in the topic, e.g. rx/unknown_42.
func (b *Bridge) RXTopic(t xbee.FrameType) string {
	if !b.registry.Known(t) {
		return fmt.Sprintf("%s/rx/%s_%02x", b.prefix, strings.ToLower(xbee.UnknownName), uint8(t))
	}
	return b.prefix + "/rx/" + strings.ToLower(b.registry.Name(t))
}

// TXTopic returns the topic the bridge takes outgoing frames from.
func (b *Bridge) TXTopic() string {
	return b.prefix + "/tx"
}

// ErrorTopic returns the topic failed reads are reported on.
func (b *Bridge) ErrorTopic() string {
	return b.prefix + "/error"
}

// Start subscribes to the tx topic.
func (b *Bridge) Start() error {
	token := b.client.Subscribe(b.TXTopic(), b.qos, b.handleTX)
	<-token.Done()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.TXTopic(), err)
	}
	b.log.Info().Str("topic", b.TXTopic()).Msg("subscribed")
	return nil
}

// PublishFrame publishes a frame read from the link.
func (b *Bridge) PublishFrame(f xbee.Frame) error {
	if err := b.publish(b.RXTopic(f.Type), f.Bytes()); err != nil {
		return err
	}
	b.published.Add(1)
	return nil
}

// PublishError reports a failed read.
func (b *Bridge) PublishError(readErr error) error {
	return b.publish(b.ErrorTopic(), []byte(readErr.Error()))
}

func (b *Bridge) publish(topic string, payload []byte) error {
	token := b.client.Publish(topic, b.qos, false, payload)
	<-token.Done()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Run reads frames from r and publishes them until ctx is cancelled or the
// link fails. Idle timeouts are not reported.
func (b *Bridge) Run(ctx context.Context, r *xbee.Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		f, _, err := r.ReadFrame()
		if err != nil {
			if xbee.IsIdle(err) {
				continue
			}
			if xbee.IsLinkClosed(err) {
				return err
			}
			b.log.Debug().Err(err).Msg("read failed")
			if perr := b.PublishError(err); perr != nil {
				b.log.Warn().Err(perr).Msg("could not report read error")
			}
			continue
		}

		if err := b.PublishFrame(f); err != nil {
			b.log.Warn().Err(err).Stringer("type", f.Type).Msg("could not publish frame")
		}
	}
}

func (b *Bridge) handleTX(_ mqtt.Client, msg mqtt.Message) {
	p, err := b.decodeTX(msg.Payload())
	if err != nil {
		b.rejected.Add(1)
		b.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("rejected outgoing frame")
		return
	}
	if err := b.link.WritePacket(p); err != nil {
		b.rejected.Add(1)
		b.log.Error().Err(err).Msg("failed to write frame to link")
		return
	}
	b.forwarded.Add(1)
	b.log.Debug().Str("frame", b.registry.FormatHeader(p)).Msg("forwarded")
}

// decodeTX accepts a plain binary frame, or the same frame as hex text.
func (b *Bridge) decodeTX(payload []byte) (xbee.Packet, error) {
	if len(payload) > 0 && payload[0] == xbee.Delimiter {
		return xbee.Parse(payload, xbee.ModeAPI, b.registry)
	}
	text := bytes.TrimSpace(payload)
	if len(text) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	return xbee.ParseHex(string(text), xbee.ModeAPI, b.registry)
}

// Stats returns how many frames were published, forwarded to the link, and rejected.
func (b *Bridge) Stats() (published, forwarded, rejected uint64) {
	return b.published.Load(), b.forwarded.Load(), b.rejected.Load()
}

// ConnectOptions configures Connect.
type ConnectOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Connect opens an MQTT connection. An empty ClientID gets a random one.
func Connect(opts ConnectOptions) (mqtt.Client, error) {
	clientID := opts.ClientID
	if clientID == "" {
		randomID := make([]byte, 4)
		_, _ = rand.Read(randomID)
		clientID = fmt.Sprintf("meshstat-%x", randomID)
	}

	mo := mqtt.NewClientOptions()
	mo.AddBroker(opts.Broker)
	mo.SetClientID(clientID)
	mo.SetUsername(opts.Username)
	mo.SetPassword(opts.Password)
	mo.SetAutoReconnect(true)
	mo.SetOrderMatters(true)

	client := mqtt.NewClient(mo)
	token := client.Connect()
	<-token.Done()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect MQTT: %w", err)
	}
	return client, nil
}
