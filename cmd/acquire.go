// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/cardiostat/pkg/acquisition"
	"github.com/sirupsen/logrus"
)

const readBufferSize = 128

// newAcquisition builds a loop over conn from the loaded configuration
func newAcquisition(conn Connection, connInfo string, opts ...acquisition.Option) (*acquisition.Loop, error) {
	calibrator, err := cfg.Calibrator()
	if err != nil {
		return nil, err
	}
	estimator, err := cfg.Estimator()
	if err != nil {
		return nil, err
	}

	base := []acquisition.Option{
		acquisition.WithCalibrator(calibrator),
		acquisition.WithEstimator(estimator),
		acquisition.WithCalibrationTarget(cfg.Calibration.Samples, cfg.Calibration.Timeout),
		acquisition.WithPollInterval(cfg.Acquisition.PollInterval),
		acquisition.WithLogger(logger.WithFields(logrus.Fields{"connection": connInfo})),
	}
	source := acquisition.NewReaderSource(conn, readBufferSize)
	return acquisition.New(source, append(base, opts...)...), nil
}

// startLoop runs the loop in the background; the returned channel yields
// its terminal error. The loop is running when startLoop returns, so
// loop.Stop joins it.
func startLoop(ctx context.Context, loop *acquisition.Loop) <-chan error {
	errc := make(chan error, 1)
	if err := loop.StartContext(ctx); err != nil {
		errc <- err
		return errc
	}
	go func() {
		<-loop.Done()
		errc <- loop.Err()
	}()
	return errc
}

// signalContext is canceled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loopExitError maps a loop exit to a command result. Interrupts and a
// closed link end the command normally.
func loopExitError(err error) error {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, acquisition.ErrDisconnected):
		logger.WithError(err).Info("Connection closed")
		return nil
	default:
		return err
	}
}

// drainSink hands whatever is still buffered in sink to the callbacks
func drainSink(sink *acquisition.ChannelSink, onSample acquisition.SampleSinkFunc, onCalibration acquisition.CalibrationSinkFunc) {
	for {
		select {
		case s := <-sink.Samples():
			onSample(s)
		case r := <-sink.Calibrations():
			onCalibration(r)
		default:
			return
		}
	}
}
