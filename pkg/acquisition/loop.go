// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package acquisition runs the telemetry decoder against a live byte
// source on a dedicated goroutine, publishing calibrated samples and
// servicing zero-offset calibration requests.
package acquisition

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/cardiostat/pkg/telemetry"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is the wait between polls of an idle source
const DefaultPollInterval = time.Millisecond

// State is the engine state of the loop
type State int32

const (
	StateAcquiring State = iota
	StateCalibrating
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateAcquiring:
		return "ACQUIRING"
	case StateCalibrating:
		return "CALIBRATING"
	default:
		return "UNKNOWN"
	}
}

// Option configures a Loop
type Option func(*Loop)

// WithSampleSink sets the receiver of calibrated samples
func WithSampleSink(s SampleSink) Option {
	return func(l *Loop) { l.samples = s }
}

// WithCalibrationSink sets the receiver of calibration results
func WithCalibrationSink(s CalibrationSink) Option {
	return func(l *Loop) { l.calibrations = s }
}

// WithCalibrator replaces the default reference calibration
func WithCalibrator(c *telemetry.Calibrator) Option {
	return func(l *Loop) { l.calibrator = c }
}

// WithEstimator selects how a calibration pass derives offsets
func WithEstimator(e telemetry.OffsetEstimator) Option {
	return func(l *Loop) { l.estimator = e }
}

// WithCalibrationTarget sets the per-channel sample count and the time
// bound of a calibration pass
func WithCalibrationTarget(samples int, timeout time.Duration) Option {
	return func(l *Loop) {
		l.calibrationSamples = samples
		l.calibrationTimeout = timeout
	}
}

// WithPollInterval sets the idle wait; zero yields the processor instead
func WithPollInterval(d time.Duration) Option {
	return func(l *Loop) { l.pollInterval = d }
}

// WithLogger sets the diagnostic logger
func WithLogger(logger *logrus.Entry) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// Loop is the acquisition worker. Decoder, calibrator and calibration
// buffers are touched only by the goroutine executing Run; the control
// methods are safe to call from any goroutine.
type Loop struct {
	source       ByteSource
	decoder      *telemetry.Decoder
	calibrator   *telemetry.Calibrator
	estimator    telemetry.OffsetEstimator
	samples      SampleSink
	calibrations CalibrationSink
	logger       *logrus.Entry
	now          func() time.Time

	pollInterval       time.Duration
	calibrationSamples int
	calibrationTimeout time.Duration

	calibrateRequested atomic.Bool
	stopRequested      atomic.Bool
	started            atomic.Bool
	state              atomic.Int32

	done chan struct{}
	err  error // written once before done is closed
}

// New creates a loop reading from source
func New(source ByteSource, opts ...Option) *Loop {
	l := &Loop{
		source:             source,
		decoder:            telemetry.NewDecoder(),
		calibrator:         telemetry.DefaultCalibrator(),
		estimator:          telemetry.ModeEstimator{},
		samples:            discard{},
		calibrations:       discard{},
		logger:             logrus.NewEntry(logrus.StandardLogger()),
		now:                time.Now,
		pollInterval:       DefaultPollInterval,
		calibrationSamples: telemetry.DefaultCalibrationSamples,
		calibrationTimeout: telemetry.DefaultCalibrationTimeout * time.Second,
		done:               make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.WithField("component", "acquisition")
	return l
}

// Start runs the loop on a new goroutine
func (l *Loop) Start() error {
	return l.StartContext(context.Background())
}

// StartContext runs the loop on a new goroutine until Stop is called, ctx
// is canceled or the source fails. The loop is marked started before
// StartContext returns, so a following Stop always waits for it.
func (l *Loop) StartContext(ctx context.Context) error {
	ready := make(chan error, 1)
	go func() {
		l.run(ctx, ready)
	}()
	return <-ready
}

// Run executes the loop on the calling goroutine until Stop is called, ctx
// is canceled or the source fails. A source failure is returned as a
// *DisconnectError; a stop returns nil and a cancellation ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	ready := make(chan error, 1)
	l.run(ctx, ready)
	if err := <-ready; err != nil {
		return err
	}
	return l.err
}

func (l *Loop) run(ctx context.Context, ready chan<- error) {
	if !l.started.CompareAndSwap(false, true) {
		ready <- ErrAlreadyStarted
		return
	}
	ready <- nil

	l.logger.Info("acquisition started")
	l.err = l.loop(ctx)
	if l.err != nil {
		l.logger.WithError(l.err).Warn("acquisition terminated")
	} else {
		l.logger.Info("acquisition stopped")
	}
	close(l.done)
}

// RequestCalibration asks the loop to run a calibration pass on its next
// iteration. Requests made while a pass is running queue one more pass.
func (l *Loop) RequestCalibration() {
	l.calibrateRequested.Store(true)
}

// Stop asks the loop to exit and waits for it. It returns the loop's
// terminal error, if any.
func (l *Loop) Stop() error {
	l.stopRequested.Store(true)
	if !l.started.Load() {
		return nil
	}
	<-l.done
	return l.err
}

// Done is closed when the loop has exited
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Err returns the terminal error once Done is closed
func (l *Loop) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

// State reports whether the loop is acquiring or calibrating
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) loop(ctx context.Context) error {
	for {
		if stop, err := l.stopping(ctx); stop {
			return err
		}

		if l.calibrateRequested.CompareAndSwap(true, false) {
			if err := l.calibrate(ctx); err != nil {
				return err
			}
			continue
		}

		raw, ok, err := l.next()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		l.samples.OnSample(telemetry.Sample{
			Channel:   raw.Channel,
			Raw:       raw.Raw,
			Value:     l.calibrator.Physical(raw.Channel, raw.Raw),
			Timestamp: l.now(),
		})
	}
}

// next reads at most one byte and decodes it. It idles when the source
// has nothing available.
func (l *Loop) next() (telemetry.RawSample, bool, error) {
	if !l.source.IsOpen() {
		return telemetry.RawSample{}, false, l.disconnect(nil)
	}
	b, ok, err := l.source.TryReadOne()
	if err != nil {
		return telemetry.RawSample{}, false, l.disconnect(err)
	}
	if !ok {
		l.idle()
		return telemetry.RawSample{}, false, nil
	}
	raw, ok := l.decoder.DecodeByte(b)
	return raw, ok, nil
}

func (l *Loop) stopping(ctx context.Context) (bool, error) {
	if l.stopRequested.Load() {
		return true, nil
	}
	select {
	case <-ctx.Done():
		return true, ctx.Err()
	default:
		return false, nil
	}
}

func (l *Loop) idle() {
	if l.pollInterval > 0 {
		time.Sleep(l.pollInterval)
		return
	}
	runtime.Gosched()
}

func (l *Loop) disconnect(cause error) error {
	if cause == nil {
		cause = ErrSourceClosed
	}
	return &DisconnectError{Cause: cause}
}
