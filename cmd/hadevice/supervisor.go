package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/graylogic-ha/internal/device"
	"github.com/nerrad567/graylogic-ha/internal/hass"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/logging"
	"github.com/nerrad567/graylogic-ha/internal/infrastructure/mqtt"
)

// minReconnectDelay stops a zero initial_delay from spinning.
const minReconnectDelay = 100 * time.Millisecond

// conn is the transport the supervisor dials for each session.
type conn interface {
	io.ReadWriteCloser
}

// supervisor keeps the device connected: dial, handshake, Run, and on
// failure back off and start again. Each new session re-announces.
type supervisor struct {
	device  *device.Device
	dial    func(ctx context.Context) (conn, error)
	session mqtt.SessionOptions
	logger  *logging.Logger

	initialDelay time.Duration
	maxDelay     time.Duration

	// maxAttempts bounds consecutive failed sessions. Zero retries forever.
	maxAttempts int
}

// run supervises sessions until ctx is cancelled (nil) or maxAttempts
// consecutive sessions fail (the last error).
func (s *supervisor) run(ctx context.Context) error {
	base := max(s.initialDelay, minReconnectDelay)
	delay := base
	failures := 0

	for {
		connected, err := s.runSession(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if connected {
			failures = 0
			delay = base
		}
		failures++
		if s.maxAttempts > 0 && failures >= s.maxAttempts {
			return fmt.Errorf("giving up after %d failed attempts: %w", failures, err)
		}

		s.logger.Warn("MQTT session ended, reconnecting",
			"error", err,
			"attempt", failures,
			"retry_in", delay,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, max(s.maxDelay, base))
	}
}

// runSession performs one dial, handshake and Run. connected reports
// whether the broker accepted the session.
func (s *supervisor) runSession(ctx context.Context) (connected bool, err error) {
	c, err := s.dial(ctx)
	if err != nil {
		return false, err
	}
	defer c.Close()

	if err := mqtt.Handshake(c, s.session); err != nil {
		return false, err
	}
	s.logger.Info("MQTT session established", "client_id", s.session.ClientID)

	err = s.device.Run(ctx, c)
	if ctx.Err() != nil {
		s.goodbye(c)
		return true, nil
	}
	if errors.Is(err, device.ErrAlreadyRunning) {
		return false, err
	}
	return true, err
}

// goodbye marks the device offline and ends the session cleanly. The will
// is not published after a DISCONNECT, so offline is sent explicitly.
func (s *supervisor) goodbye(w io.Writer) {
	if err := mqtt.WritePublish(w, s.device.AvailabilityTopic(), []byte(hass.PayloadOffline), true); err != nil {
		s.logger.Warn("publishing offline failed", "error", err)
		return
	}
	if err := mqtt.WriteDisconnect(w); err != nil {
		s.logger.Warn("sending DISCONNECT failed", "error", err)
	}
}

// sessionOptions adds the device's will and command subscription to the
// connection settings.
func sessionOptions(base mqtt.SessionOptions, dev *device.Device) mqtt.SessionOptions {
	base.WillTopic = dev.AvailabilityTopic()
	base.WillPayload = []byte(hass.PayloadOffline)
	base.WillRetain = true
	base.Subscriptions = []string{dev.CommandFilter()}
	return base
}

// pingInterval leaves headroom below the keep-alive announced to the broker.
func pingInterval(keepAlive time.Duration) time.Duration {
	return keepAlive * 3 / 4
}
