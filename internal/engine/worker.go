package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/splitget/splitget/internal/domain"
	"github.com/splitget/splitget/internal/fetch"
	"github.com/splitget/splitget/internal/infra/logger"
)

// copyBufferSize is the unit in which a worker claims and writes bytes.
const copyBufferSize = 32 * 1024

// Worker drives one connection against one segment. It keeps fetching the
// segment's unread window until the store tells it, via Rebalance, that
// the segment has closed.
type Worker struct {
	id         int
	job        *domain.DownloadJob
	store      *SegmentStore
	client     *fetch.Client
	file       *os.File
	log        *logger.Logger
	retries    int
	retryDelay time.Duration
}

func NewWorker(id int, job *domain.DownloadJob, store *SegmentStore, client *fetch.Client, file *os.File, log *logger.Logger, opts Options) *Worker {
	return &Worker{
		id:         id,
		job:        job,
		store:      store,
		client:     client,
		file:       file,
		log:        log,
		retries:    opts.StreamRetries,
		retryDelay: opts.StreamRetryDelay,
	}
}

// Run is the drive loop: fetch the unread window, and once it is fully
// delivered ask the store for more work. A stream that dies before
// delivering its window is re-requested a bounded number of times; only
// a fully delivered window reaches Rebalance.
func (w *Worker) Run(ctx context.Context) error {
	defer func() {
		w.file.Sync()
		w.file.Close()
	}()

	attempts := 0
	for {
		win := w.store.Window(w.id)

		if win.Len() > 0 {
			n, err := w.stream(ctx, win)
			if err != nil {
				return err
			}
			if n > 0 {
				// Progress made, reset the retry counter
				attempts = 0
			}

			if rest := w.store.Window(w.id); rest.Len() > 0 {
				attempts++
				if attempts > w.retries {
					return fmt.Errorf("segment %d: stream kept dying at byte %d: %w",
						w.id, rest.Start, io.ErrUnexpectedEOF)
				}
				w.log.Warn("Worker %d: stream ended %d bytes early, retrying (%d/%d)",
					w.id, rest.Len(), attempts, w.retries)
				if err := sleepCtx(ctx, time.Duration(attempts)*w.retryDelay); err != nil {
					return err
				}
				continue
			}
		}

		next, ok := w.store.Rebalance(w.id)
		if !ok {
			w.log.Debug("Worker %d: segment closed", w.id)
			return nil
		}

		attempts = 0
		w.log.Debug("Worker %d: adopted range [%d, %d)", w.id, next.Start, next.End)
	}
}

// stream issues one ranged request over win and writes whatever it can
// claim. It returns the number of bytes written to disk. A nil error with
// an unfinished window means the body ended early or the window was
// shrunk by a split; the caller decides which by re-reading the window.
func (w *Worker) stream(ctx context.Context, win Range) (int64, error) {
	body, err := w.client.GetRange(ctx, w.job.URL, win.Start, win.End)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	var written int64
	buf := make([]byte, copyBufferSize)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			offset, granted := w.store.Claim(w.id, int64(n))
			if granted > 0 {
				if _, err := w.file.WriteAt(buf[:granted], offset); err != nil {
					return written, fmt.Errorf("write at %d: %w", offset, err)
				}
				written += granted
				w.job.BytesWritten.Add(granted)
			}

			// A split shrank the window mid-stream. The surplus bytes
			// belong to another connection now; drop the stream.
			if granted < int64(n) {
				return written, nil
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return written, nil
			}
			if ctx.Err() != nil {
				return written, ctx.Err()
			}

			// Mid-body disconnect. Not fatal here: Run re-requests
			// whatever is still owed.
			w.log.Debug("Worker %d: body read error at byte %d: %v", w.id, win.Start+written, readErr)
			return written, nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
