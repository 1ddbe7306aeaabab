package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// HTTPStream reads a game's NDJSON event stream from a long-lived HTTP response, the
// way board APIs publish it.
type HTTPStream struct {
	callbacks

	urlFor  func(gameID string) string
	client  *fasthttp.Client
	headers HeaderProvider
	logger  *zap.Logger

	req  *fasthttp.Request
	resp *fasthttp.Response

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
	started  bool
}

type HTTPStreamOption func(*HTTPStream)

func WithStreamHeaders(h HeaderProvider) HTTPStreamOption {
	return func(s *HTTPStream) { s.headers = h }
}

func WithStreamLogger(l *zap.Logger) HTTPStreamOption {
	return func(s *HTTPStream) { s.logger = l }
}

func NewHTTPStream(urlFor func(gameID string) string, opts ...HTTPStreamOption) *HTTPStream {
	s := &HTTPStream{
		urlFor: urlFor,
		client: &fasthttp.Client{
			StreamResponseBody: true,
			WriteTimeout:       10 * time.Second,
		},
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPStream) Connect(ctx context.Context, gameID string) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(s.urlFor(gameID))
	req.Header.Set("Accept", "application/x-ndjson")
	if s.headers != nil {
		for k, v := range s.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
		return err
	}
	// no deadline: the body stays open for the whole game
	if err := s.client.Do(req, resp); err != nil {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
		return fmt.Errorf("open stream: %w", err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		body := string(resp.Body())
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
		return fmt.Errorf("open stream: status=%d body=%s", code, truncate(body, 256))
	}
	s.req, s.resp = req, resp
	s.started = true
	s.emitState(StateConnected)

	go func() {
		defer close(s.doneCh)
		body := resp.BodyStream()
		if body == nil {
			s.deliver(resp.Body(), s.logger)
			s.emitState(StateFinished)
			return
		}
		err := readFrames(context.Background(), body, &s.callbacks, s.stopCh, 0, s.logger)
		if err != nil && !s.stopping() && !errors.Is(err, context.Canceled) {
			s.logger.Warn("stream_http_read_failed", zap.Error(err))
		}
		s.emitState(StateFinished)
	}()
	return nil
}

func (s *HTTPStream) Done() <-chan struct{} { return s.doneCh }

func (s *HTTPStream) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if !s.started {
		return nil
	}
	// closing the body stream unblocks the reader
	err := s.resp.CloseBodyStream()
	select {
	case <-s.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	fasthttp.ReleaseRequest(s.req)
	fasthttp.ReleaseResponse(s.resp)
	return err
}

func (s *HTTPStream) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
