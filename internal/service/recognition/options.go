package recognition

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"asr-session-client/internal/models"
	"asr-session-client/internal/observability/metrics"
)

// DefaultStopGracePeriod bounds how long Stop waits for final results when
// the caller's context has no deadline.
const DefaultStopGracePeriod = 5 * time.Second

// ErrInvalidFeederConfig is returned by FeederConfig.Validate.
var ErrInvalidFeederConfig = errors.New("invalid feeder config")

// KeepAlivePolicy decides what happens when no audio is sent for a while.
type KeepAlivePolicy int

const (
	// KeepAliveSend sends a keep-alive frame after KeepAliveInterval of silence.
	KeepAliveSend KeepAlivePolicy = iota
	// KeepAliveNone sends nothing and accepts that the backend disconnects
	// once the inactivity budget is exceeded.
	KeepAliveNone
)

// String returns the configuration name of the policy.
func (p KeepAlivePolicy) String() string {
	switch p {
	case KeepAliveSend:
		return "send"
	case KeepAliveNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParseKeepAlivePolicy parses "send" or "none".
func ParseKeepAlivePolicy(s string) (KeepAlivePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "send":
		return KeepAliveSend, nil
	case "none":
		return KeepAliveNone, nil
	default:
		return KeepAliveSend, fmt.Errorf("unknown keep-alive policy %q", s)
	}
}

// FeederConfig controls chunking, pacing and inactivity handling.
type FeederConfig struct {
	ChunkSize         int           // bytes per chunk
	Interval          time.Duration // delay between chunks
	HeaderBytes       int64         // container header skipped before chunking
	InactivityBudget  time.Duration // backend disconnects after this much silence
	KeepAlive         KeepAlivePolicy
	KeepAliveInterval time.Duration // silence before a keep-alive frame is sent
}

// DefaultFeederConfig returns pacing for 8kHz 16-bit PCM: 4800 bytes every
// 300ms against a 10s inactivity budget.
func DefaultFeederConfig() FeederConfig {
	return FeederConfig{
		ChunkSize:         4800,
		Interval:          300 * time.Millisecond,
		InactivityBudget:  10 * time.Second,
		KeepAlive:         KeepAliveSend,
		KeepAliveInterval: 5 * time.Second,
	}
}

// Validate checks the configuration.
func (c FeederConfig) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidFeederConfig, c.ChunkSize)
	case c.Interval < 0:
		return fmt.Errorf("%w: interval must not be negative, got %v", ErrInvalidFeederConfig, c.Interval)
	case c.HeaderBytes < 0:
		return fmt.Errorf("%w: header bytes must not be negative, got %d", ErrInvalidFeederConfig, c.HeaderBytes)
	case c.InactivityBudget <= 0:
		return fmt.Errorf("%w: inactivity budget must be positive, got %v", ErrInvalidFeederConfig, c.InactivityBudget)
	}

	switch c.KeepAlive {
	case KeepAliveSend:
		if c.KeepAliveInterval <= 0 || c.KeepAliveInterval >= c.InactivityBudget {
			return fmt.Errorf("%w: keep-alive interval %v must be within (0, %v)",
				ErrInvalidFeederConfig, c.KeepAliveInterval, c.InactivityBudget)
		}
	case KeepAliveNone:
		if c.Interval >= c.InactivityBudget {
			return fmt.Errorf("%w: interval %v exceeds inactivity budget %v without keep-alives",
				ErrInvalidFeederConfig, c.Interval, c.InactivityBudget)
		}
	default:
		return fmt.Errorf("%w: unknown keep-alive policy %v", ErrInvalidFeederConfig, c.KeepAlive)
	}
	return nil
}

// Callbacks receive session events. They are invoked one at a time, in
// order, on a delivery goroutine owned by the session; they may run
// concurrently with Feed. Callbacks must not block and must not call Stop.
type Callbacks struct {
	OnBegin         func(models.SentenceEvent)
	OnChanged       func(models.SentenceEvent)
	OnEnd           func(models.SentenceEvent)
	OnProtocolError func(*ProtocolError)
	OnStateChange   func(StateChange)
}

// Options configures a Session.
type Options struct {
	ID              string // generated when empty
	Feeder          FeederConfig
	StopGracePeriod time.Duration
	Callbacks       Callbacks
	Metrics         *metrics.Metrics // metrics.DefaultMetrics when nil
}

// DefaultOptions returns options with default feeder pacing.
func DefaultOptions() Options {
	return Options{
		Feeder:          DefaultFeederConfig(),
		StopGracePeriod: DefaultStopGracePeriod,
	}
}
