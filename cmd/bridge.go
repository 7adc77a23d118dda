// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/meshstat/pkg/bridge"
)

var (
	bridgeBroker   string
	bridgeTopic    string
	bridgeClientID string
	bridgeQoS      int
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Relay frames between the radio and an MQTT broker",
	Long: `Publish every frame received from the radio to MQTT, and transmit frames
published to the tx topic.

Topics (with the default prefix "meshstat"):
  meshstat/rx/<frame type>   received frames, e.g. meshstat/rx/receive_packet
                             (unregistered types: meshstat/rx/unknown_42)
  meshstat/error             frames that failed to parse
  meshstat/tx                frames to transmit (binary frame or hex text)

The MQTT password is read from MESHSTAT_MQTT_PASSWORD.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&bridgeBroker, "broker", "", "MQTT broker URL (e.g. tcp://localhost:1883)")
	bridgeCmd.Flags().StringVar(&bridgeTopic, "topic", "", "Topic prefix")
	bridgeCmd.Flags().StringVar(&bridgeClientID, "client-id", "", "MQTT client ID (random when empty)")
	bridgeCmd.Flags().IntVar(&bridgeQoS, "qos", 0, "MQTT QoS (0-2)")
}

func runBridge(cmd *cobra.Command, args []string) error {
	mqttSettings := settings.MQTT
	if cmd.Flags().Changed("broker") {
		mqttSettings.Broker = bridgeBroker
	}
	if cmd.Flags().Changed("topic") {
		mqttSettings.Topic = bridgeTopic
	}
	if cmd.Flags().Changed("client-id") {
		mqttSettings.ClientID = bridgeClientID
	}
	if cmd.Flags().Changed("qos") {
		if bridgeQoS < 0 || bridgeQoS > 2 {
			return fmt.Errorf("invalid qos %d (must be 0-2)", bridgeQoS)
		}
		mqttSettings.QoS = byte(bridgeQoS)
	}
	if mqttSettings.Broker == "" {
		return fmt.Errorf("no MQTT broker configured (use --broker or [mqtt] broker in the config file)")
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := bridge.Connect(bridge.ConnectOptions{
		Broker:   mqttSettings.Broker,
		ClientID: mqttSettings.ClientID,
		Username: mqttSettings.Username,
		Password: os.Getenv("MESHSTAT_MQTT_PASSWORD"),
	})
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	b := bridge.New(client, newFrameWriter(conn), bridge.Options{
		Prefix: mqttSettings.Topic,
		QoS:    mqttSettings.QoS,
		Logger: logger.With().Str("component", "bridge").Logger(),
	})
	if err := b.Start(); err != nil {
		return err
	}

	logger.Info().
		Str("connection", connInfo).
		Str("broker", mqttSettings.Broker).
		Str("tx_topic", b.TXTopic()).
		Msg("bridge running")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Closing the connection unblocks the reader on shutdown
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	err = b.Run(ctx, newFrameReader(conn))
	published, forwarded, rejected := b.Stats()
	logger.Info().
		Uint64("published", published).
		Uint64("forwarded", forwarded).
		Uint64("rejected", rejected).
		Msg("bridge stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}
