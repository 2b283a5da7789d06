// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package acquisition

import (
	"context"

	"github.com/Thermoquad/cardiostat/pkg/telemetry"
)

// calibrate runs one zero-offset pass. Raw samples are collected per
// channel until every channel reaches the target count or the timeout
// elapses. The result is delivered to the calibration sink before the new
// offsets are installed. A stop request abandons the pass and keeps the
// old offsets; only a source failure is returned as an error.
func (l *Loop) calibrate(ctx context.Context) error {
	l.state.Store(int32(StateCalibrating))
	defer l.state.Store(int32(StateAcquiring))

	target := l.calibrationSamples
	started := l.now()
	log := l.logger.WithField("target", target).WithField("timeout", l.calibrationTimeout)
	log.Info("collecting zero offset samples")

	var sets [telemetry.NumChannels][]uint16
	for ch := range sets {
		sets[ch] = make([]uint16, 0, target)
	}
	full := func() bool {
		for _, set := range sets {
			if len(set) < target {
				return false
			}
		}
		return true
	}

	timedOut := false
	for !full() {
		if stop, _ := l.stopping(ctx); stop {
			log.Info("calibration abandoned")
			return nil
		}
		if l.now().Sub(started) >= l.calibrationTimeout {
			timedOut = true
			break
		}

		raw, ok, err := l.next()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if len(sets[raw.Channel]) < target {
			sets[raw.Channel] = append(sets[raw.Channel], raw.Raw)
		}
	}

	result := telemetry.CalibrationResult{
		TimedOut: timedOut,
		Duration: l.now().Sub(started),
	}
	if timedOut {
		log.Info("calibration timeout")
	}
	for ch, set := range sets {
		result.Counts[ch] = len(set)
		if len(set) == 0 {
			result.Starved[ch] = true
			log.WithField("channel", telemetry.ChannelName(uint8(ch))).Warn("no calibration data, offset reset to 0")
			continue
		}
		result.Offsets[ch] = l.estimator.Estimate(set)
	}

	l.calibrations.OnCalibrationDone(result)
	l.calibrator.SetOffsets(result.Offsets)

	log.WithField("offsets", result.Offsets).
		WithField("estimator", l.estimator.Name()).
		Info("calibration complete")
	return nil
}
