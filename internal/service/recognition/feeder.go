package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// SendFunc forwards one audio chunk to the transport.
type SendFunc func(ctx context.Context, chunk []byte) error

// Feeder slices a raw audio source into fixed-size chunks and paces their
// delivery to resemble live capture.
type Feeder struct {
	cfg    FeederConfig
	send   SendFunc
	onSent func(n int)
}

// NewFeeder creates a feeder. onSent, if non-nil, is called after every
// successful send.
func NewFeeder(cfg FeederConfig, send SendFunc, onSent func(n int)) *Feeder {
	return &Feeder{cfg: cfg, send: send, onSent: onSent}
}

// Run skips the configured header, then reads up to ChunkSize bytes at a
// time, sends each chunk and waits Interval before the next read.
//
// It returns nil once src is exhausted, ErrSessionClosed when stop is
// closed, an ErrAudioSource error on read failures and an ErrConnection
// error on send failures. A Read already in progress cannot be interrupted;
// the pacing wait is.
func (f *Feeder) Run(ctx context.Context, src io.Reader, stop <-chan struct{}) error {
	if f.cfg.HeaderBytes > 0 {
		n, err := io.CopyN(io.Discard, src, f.cfg.HeaderBytes)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: source ended after %d of %d header bytes",
					ErrAudioSource, n, f.cfg.HeaderBytes)
			}
			return fmt.Errorf("%w: skip header: %w", ErrAudioSource, err)
		}
	}

	buf := make([]byte, f.cfg.ChunkSize)
	for {
		n, readErr := io.ReadFull(src, buf)
		if closed(stop) {
			return ErrSessionClosed
		}

		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if err := f.send(ctx, chunk); err != nil {
				if closed(stop) {
					return ErrSessionClosed
				}
				return connectionError("send audio", err)
			}
			if f.onSent != nil {
				f.onSent(n)
			}
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("%w: read: %w", ErrAudioSource, readErr)
		}

		if err := f.wait(ctx, stop); err != nil {
			return err
		}
	}
}

func (f *Feeder) wait(ctx context.Context, stop <-chan struct{}) error {
	if f.cfg.Interval <= 0 {
		if closed(stop) {
			return ErrSessionClosed
		}
		return ctx.Err()
	}

	timer := time.NewTimer(f.cfg.Interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-stop:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
