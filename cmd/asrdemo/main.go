// Command asrdemo recognizes one audio file with a streaming session and
// prints the transcript.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"asr-session-client/internal/app"
	"asr-session-client/internal/config"
	"asr-session-client/internal/models"
	"asr-session-client/internal/observability"
	"asr-session-client/internal/service/recognition"
)

func main() {
	audioPath := flag.String("audio", "testdata/sample-8khz.wav", "Path to audio file (8kHz 16-bit mono PCM or WAV)")
	provider := flag.String("provider", "", "STT provider override: mock, websocket or google")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *provider != "" {
		cfg.STT.Provider = *provider
	}

	if err := run(cfg, *audioPath); err != nil {
		log.Fatal().Err(err).Msg("Recognition failed")
	}
}

func run(cfg *config.Configuration, audioPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(audioPath)
	if err != nil {
		return fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	src := bufio.NewReaderSize(f, 64*1024)
	if strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		info, err := inspectWAV(src)
		if err != nil {
			return fmt.Errorf("%s: %w", audioPath, err)
		}
		if int(info.SampleRate) != cfg.STT.SampleRateHz {
			log.Warn().
				Uint32("fileSampleRate", info.SampleRate).
				Int("configuredSampleRate", cfg.STT.SampleRateHz).
				Msg("WAV sample rate differs from configuration")
		}
		cfg.Feeder.HeaderBytes = wavHeaderSize
	}

	a := app.New(cfg)
	if err := a.Start(); err != nil {
		return err
	}
	defer a.Shutdown()

	adapter, err := a.NewAdapter(ctx)
	if err != nil {
		return err
	}
	if c, ok := adapter.(io.Closer); ok {
		defer c.Close()
	}

	s, err := a.NewSession(adapter, recognition.Callbacks{
		OnBegin: func(ev models.SentenceEvent) {
			log.Debug().Int("seq", ev.Seq).Msg("Sentence begin")
		},
		OnChanged: func(ev models.SentenceEvent) {
			log.Debug().Int("seq", ev.Seq).Str("text", ev.Text).Msg("Sentence changed")
		},
		OnEnd: func(ev models.SentenceEvent) {
			log.Info().
				Int("seq", ev.Seq).
				Str("text", ev.Text).
				Dur("begin", ev.BeginTime).
				Dur("end", ev.EndTime).
				Msg("Sentence end")
		},
		OnProtocolError: func(perr *recognition.ProtocolError) {
			log.Warn().Err(perr).Msg("Backend protocol violation")
		},
		OnStateChange: func(sc recognition.StateChange) {
			log.Info().Str("from", sc.From.String()).Str("to", sc.To.String()).Msg("Session state changed")
		},
	})
	if err != nil {
		return err
	}

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		srv := observability.NewServer(addr, func() bool {
			return !s.State().IsTerminal()
		})
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := s.Start(ctx); err != nil {
		return err
	}

	fed := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(fed)
		err := s.Feed(gctx, src)
		switch {
		case err == nil, errors.Is(err, recognition.ErrSessionClosed):
			return nil
		case errors.Is(err, context.Canceled) && gctx.Err() != nil:
			return nil
		}
		return fmt.Errorf("feed audio: %w", err)
	})

	g.Go(func() error {
		select {
		case <-fed:
		case <-gctx.Done():
			log.Info().Msg("Interrupted, stopping session")
		case <-s.Done():
		}
		if s.State() == recognition.StateFailed {
			return nil
		}
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Session.StopGracePeriod)
		defer cancel()
		if err := s.Stop(stopCtx); err != nil {
			return fmt.Errorf("stop session: %w", err)
		}
		return nil
	})

	err = g.Wait()

	// Completed sentences survive a failed session.
	fmt.Print(s.Transcript().Text())
	return err
}
