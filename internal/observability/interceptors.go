// Package observability provides the gRPC client interceptor and the HTTP
// endpoints used to monitor recognition sessions.
package observability

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"asr-session-client/internal/observability/metrics"
)

// StreamClientInterceptor returns a gRPC client stream interceptor that
// records how long each recognition stream stays open and how it ended.
func StreamClientInterceptor(m *metrics.Metrics) grpc.StreamClientInterceptor {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		start := time.Now()

		cs, err := streamer(ctx, desc, cc, method, opts...)
		if err != nil {
			code := status.Code(err)
			m.RecordTransportStream(method, code.String(), time.Since(start).Seconds())
			log.Error().
				Err(err).
				Str("method", method).
				Str("code", code.String()).
				Msg("gRPC stream open failed")
			return nil, err
		}

		return &monitoredStream{ClientStream: cs, method: method, start: start, metrics: m}, nil
	}
}

// monitoredStream reports once, when RecvMsg first returns an error.
type monitoredStream struct {
	grpc.ClientStream
	method  string
	start   time.Time
	metrics *metrics.Metrics
	once    sync.Once
}

func (s *monitoredStream) RecvMsg(msg any) error {
	err := s.ClientStream.RecvMsg(msg)
	if err != nil {
		s.finish(err)
	}
	return err
}

func (s *monitoredStream) finish(err error) {
	s.once.Do(func() {
		code := codes.OK
		if !errors.Is(err, io.EOF) {
			code = status.Code(err)
		}
		duration := time.Since(s.start)
		s.metrics.RecordTransportStream(s.method, code.String(), duration.Seconds())

		log.Info().
			Str("method", s.method).
			Str("code", code.String()).
			Dur("duration", duration).
			Bool("success", code == codes.OK).
			Msg("gRPC stream completed")
	})
}
