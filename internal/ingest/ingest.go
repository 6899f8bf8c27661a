// Package ingest implements the feed subscriber loop: decompression,
// version gating, deduplication and dispatch, with write-lock backpressure
// into an in-memory dead-letter buffer.
package ingest

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"

	"github.com/aristath/beacon/internal/handlers"
	"github.com/aristath/beacon/internal/writelock"
)

// decompressDeadline bounds the wall-clock time spent inflating one frame.
const decompressDeadline = 5 * time.Second

// defaultDedupCap is the soft cap on the dedup set before the oldest half
// is evicted.
const defaultDedupCap = 50000

// logEvery controls how often throughput is logged, in processed events.
const logEvery = 1000

// Dispatcher routes a decoded envelope to its schema handler.
type Dispatcher interface {
	Dispatch(env *handlers.Envelope) error
}

// Ingestor consumes compressed frames from the upstream feed and feeds the
// stores through a Dispatcher. One Ingestor owns one subscriber socket and
// runs single-threaded; only the counters are read from other goroutines.
type Ingestor struct {
	feedURL    string
	sock       zmq4.Socket
	dispatcher Dispatcher
	lock       *writelock.Lock
	dedup      *dedupSet
	log        zerolog.Logger

	deadLetters [][]byte
	started     time.Time

	processed atomic.Int64
	dropped   atomic.Int64
	dedupSize atomic.Int64
}

// New creates an ingestor for the given feed endpoint.
func New(feedURL string, dispatcher Dispatcher, lock *writelock.Lock, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		feedURL:    feedURL,
		dispatcher: dispatcher,
		lock:       lock,
		dedup:      newDedupSet(defaultDedupCap),
		log:        log.With().Str("component", "ingest").Logger(),
	}
}

// Connect dials the upstream feed and subscribes to all messages.
// Reconnection after transient drops is handled by the transport.
func (i *Ingestor) Connect(ctx context.Context) error {
	sock := zmq4.NewSub(ctx, zmq4.WithAutomaticReconnect(true))
	if err := sock.Dial(i.feedURL); err != nil {
		return fmt.Errorf("failed to dial feed %s: %w", i.feedURL, err)
	}
	if err := sock.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		sock.Close()
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	i.sock = sock
	i.log.Info().Str("url", i.feedURL).Msg("Connected to upstream feed")
	return nil
}

// Run consumes frames until ctx is cancelled. Per-frame errors never
// terminate the loop. On exit the dead-letter buffer is drained best-effort
// and the socket is closed.
func (i *Ingestor) Run(ctx context.Context) error {
	if i.sock == nil {
		return errors.New("ingestor not connected")
	}
	i.started = time.Now()

	for {
		msg, err := i.sock.Recv()
		if err != nil {
			if ctx.Err() != nil {
				i.drainDeadLetters()
				i.sock.Close()
				return nil
			}
			i.log.Warn().Err(err).Msg("Feed receive failed, retrying")
			continue
		}

		frame := msg.Bytes()
		if len(frame) == 0 {
			continue
		}

		if i.lock.Held() {
			i.deadLetters = append(i.deadLetters, frame)
			if len(i.deadLetters)%100 == 0 {
				i.log.Info().
					Int("buffered", len(i.deadLetters)).
					Dur("lockHeld", i.lock.Duration()).
					Msg("Write lock held, buffering frames")
			}
			continue
		}

		// Buffered frames go first so arrival order is preserved across a
		// maintenance window.
		i.drainDeadLetters()
		i.processFrame(frame)
	}
}

func (i *Ingestor) drainDeadLetters() {
	if len(i.deadLetters) == 0 {
		return
	}
	i.log.Info().Int("buffered", len(i.deadLetters)).Msg("Draining buffered frames")
	for _, frame := range i.deadLetters {
		i.processFrame(frame)
	}
	i.deadLetters = nil
}

// processFrame runs one frame through decompress, parse, version gate,
// dedup and dispatch. All failures are logged and swallowed.
func (i *Ingestor) processFrame(frame []byte) {
	start := time.Now()

	payload, err := decompress(frame)
	if err != nil {
		i.dropped.Add(1)
		i.log.Warn().Err(err).Msg("Failed to decompress frame")
		return
	}

	var env handlers.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		i.dropped.Add(1)
		i.log.Warn().Err(err).Msg("Failed to parse frame")
		return
	}

	if !handlers.AcceptedGameVersion(env.Header.GameVersion) {
		i.dropped.Add(1)
		return
	}

	key := env.SchemaRef + "|" + env.Header.DedupTimestamp()
	if i.dedup.Seen(key) {
		i.dropped.Add(1)
		return
	}
	i.dedupSize.Store(int64(i.dedup.Size()))

	if err := i.dispatcher.Dispatch(&env); err != nil {
		if !errors.Is(err, handlers.ErrUnrecognizedSchema) {
			i.log.Warn().Err(err).Str("schema", env.SchemaRef).Msg("Handler failed")
		}
		return
	}

	n := i.processed.Add(1)
	if n%logEvery == 0 {
		elapsed := time.Since(i.started)
		i.log.Info().
			Int64("events", n).
			Float64("eventsPerSecond", float64(n)/elapsed.Seconds()).
			Dur("avgEventLatency", elapsed/time.Duration(n)).
			Dur("lastFrame", time.Since(start)).
			Int("dedupSize", i.dedup.Size()).
			Msg("Ingestion progress")
	}
}

// decompress inflates a zlib frame under the per-frame deadline. A stuck or
// oversized inflate leaks its goroutine rather than stalling the loop.
func decompress(frame []byte) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)

	go func() {
		r, err := zlib.NewReader(bytes.NewReader(frame))
		if err != nil {
			done <- result{err: fmt.Errorf("failed to open zlib frame: %w", err)}
			return
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			done <- result{err: fmt.Errorf("failed to inflate frame: %w", err)}
			return
		}
		done <- result{data: data}
	}()

	select {
	case res := <-done:
		return res.data, res.err
	case <-time.After(decompressDeadline):
		return nil, errors.New("decompression deadline exceeded")
	}
}

// EventCount returns the number of successfully dispatched events.
func (i *Ingestor) EventCount() int64 {
	return i.processed.Load()
}

// DroppedCount returns the number of frames dropped before dispatch.
func (i *Ingestor) DroppedCount() int64 {
	return i.dropped.Load()
}

// DedupSize returns the current size of the dedup set.
func (i *Ingestor) DedupSize() int64 {
	return i.dedupSize.Load()
}
