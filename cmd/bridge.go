// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/cardiostat/pkg/acquisition"
	"github.com/Thermoquad/cardiostat/pkg/output/mqtt"
	"github.com/Thermoquad/cardiostat/pkg/telemetry"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	bridgeServer    string
	bridgeTopic     string
	bridgeEncoding  string
	bridgeClientID  string
	bridgeCalibrate bool
)

// Publish failures are logged at most this often
const bridgeErrorLogInterval = 5 * time.Second

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Forward calibrated samples to an MQTT broker",
	Long: `Publish every calibrated sample to <topic>/<channel> and every calibration
result, retained, to <topic>/calibration.

Payloads are JSON by default; --encoding cbor produces compact CBOR maps
with the same keys. The MQTT client id defaults to one derived from the
machine id so that a restarted bridge resumes its broker session.

The MQTT username and password are read from the mqtt section of the
configuration file.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&bridgeServer, "mqtt-server", "", "MQTT broker (tcp://host:port)")
	bridgeCmd.Flags().StringVar(&bridgeTopic, "mqtt-topic", "", "MQTT base topic")
	bridgeCmd.Flags().StringVar(&bridgeEncoding, "encoding", "", "Payload encoding (json or cbor)")
	bridgeCmd.Flags().StringVar(&bridgeClientID, "mqtt-client-id", "", "MQTT client id")
	bridgeCmd.Flags().BoolVar(&bridgeCalibrate, "calibrate", false, "Run a zero-offset calibration on start")
}

func runBridge(cmd *cobra.Command, args []string) error {
	mqttCfg := cfg.MQTT
	if bridgeServer != "" {
		mqttCfg.Server = bridgeServer
	}
	if bridgeTopic != "" {
		mqttCfg.Topic = bridgeTopic
	}
	if bridgeEncoding != "" {
		mqttCfg.Encoding = bridgeEncoding
	}
	if bridgeClientID != "" {
		mqttCfg.ClientID = bridgeClientID
	}

	conn, connInfo, err := OpenConnection(cfg.Serial)
	if err != nil {
		return err
	}
	defer conn.Close()

	out, err := mqtt.New(mqttCfg, cfg.Channels)
	if err != nil {
		return err
	}
	defer out.Close()

	log := logger.WithFields(logrus.Fields{
		"broker": mqttCfg.Server,
		"topic":  mqttCfg.Topic,
	})

	fmt.Printf("Cardiostat - MQTT Bridge\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Broker: %s\n", mqttCfg.Server)
	for ch := uint8(0); ch < telemetry.NumChannels; ch++ {
		fmt.Printf("  %s -> %s\n", telemetry.ChannelName(ch), out.Topic(ch))
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	sink := acquisition.NewChannelSink(cfg.Acquisition.SinkBuffer)
	loop, err := newAcquisition(conn, connInfo,
		acquisition.WithSampleSink(sink),
		acquisition.WithCalibrationSink(sink),
	)
	if err != nil {
		return err
	}
	if bridgeCalibrate || cfg.Calibration.OnStart {
		loop.RequestCalibration()
	}

	ctx, cancel := signalContext()
	defer cancel()
	errc := startLoop(ctx, loop)

	var published, failed uint64
	var lastErrLog time.Time
	report := func(err error) {
		failed++
		if time.Since(lastErrLog) >= bridgeErrorLogInterval {
			log.WithError(err).WithField("failed", failed).Warn("Publish failed")
			lastErrLog = time.Now()
		}
	}
	onSample := func(s telemetry.Sample) {
		if err := out.Publish(s); err != nil {
			report(err)
			return
		}
		published++
	}
	onCalibration := func(r telemetry.CalibrationResult) {
		log.WithField("offsets", r.Offsets).Info("Publishing calibration")
		if err := out.PublishCalibration(r); err != nil {
			report(err)
		}
	}

	for {
		select {
		case s := <-sink.Samples():
			onSample(s)
		case r := <-sink.Calibrations():
			onCalibration(r)
		case err := <-errc:
			drainSink(sink, onSample, onCalibration)
			log.WithFields(logrus.Fields{
				"published": published,
				"failed":    failed,
				"dropped":   sink.Dropped(),
			}).Info("Bridge stopped")
			if errors.Is(err, acquisition.ErrDisconnected) {
				return err
			}
			return loopExitError(err)
		}
	}
}
