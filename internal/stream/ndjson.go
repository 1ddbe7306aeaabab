package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const maxFrameBytes = 1 << 20

// readFrames emits one message per line until EOF, ctx is done, or stop closes.
func readFrames(ctx context.Context, r io.Reader, cb *callbacks, stop <-chan struct{}, pace time.Duration, logger *zap.Logger) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		cb.deliver(sc.Bytes(), logger)
		if pace > 0 {
			select {
			case <-time.After(pace):
			case <-stop:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return sc.Err()
}

// Reader replays newline-delimited JSON frames from a file or any io.Reader. It is used
// for recorded games and in tests.
type Reader struct {
	callbacks

	open   func(gameID string) (io.ReadCloser, error)
	pace   time.Duration
	logger *zap.Logger

	rc       io.ReadCloser
	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
	errM     sync.Mutex
	err      error
}

type ReaderOption func(*Reader)

// WithPace sleeps between frames so a recording plays back at a watchable speed.
func WithPace(d time.Duration) ReaderOption { return func(r *Reader) { r.pace = d } }

func WithReaderLogger(l *zap.Logger) ReaderOption { return func(r *Reader) { r.logger = l } }

// NewFileReader streams the NDJSON file at path regardless of the requested game id.
func NewFileReader(path string, opts ...ReaderOption) *Reader {
	return newReader(func(string) (io.ReadCloser, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open recording: %w", err)
		}
		return f, nil
	}, opts...)
}

// NewReader streams frames from r.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	return newReader(func(string) (io.ReadCloser, error) { return io.NopCloser(r), nil }, opts...)
}

func newReader(open func(string) (io.ReadCloser, error), opts ...ReaderOption) *Reader {
	r := &Reader{
		open:   open,
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) Connect(ctx context.Context, gameID string) error {
	rc, err := r.open(gameID)
	if err != nil {
		return err
	}
	r.rc = rc
	r.emitState(StateConnected)
	go func() {
		defer close(r.doneCh)
		err := readFrames(context.Background(), rc, &r.callbacks, r.stopCh, r.pace, r.logger)
		if err != nil && !r.stopping() && !errors.Is(err, context.Canceled) {
			r.errM.Lock()
			r.err = err
			r.errM.Unlock()
			r.logger.Warn("stream_reader_failed", zap.Error(err))
		}
		r.emitState(StateFinished)
	}()
	return nil
}

// Done closes when the recording has been fully delivered.
func (r *Reader) Done() <-chan struct{} { return r.doneCh }

// Err is the read error that ended the stream, if any.
func (r *Reader) Err() error {
	r.errM.Lock()
	defer r.errM.Unlock()
	return r.err
}

func (r *Reader) stopping() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

func (r *Reader) Close(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stopCh) })
	if r.rc == nil {
		return nil
	}
	err := r.rc.Close()
	select {
	case <-r.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
