// Package capture collects images into an ordered batch and submits them to
// the OCR endpoint one at a time.
//
// The Aggregator is a small state machine:
//
//	Idle --Capture--> Capturing --Capture--> Capturing
//	Capturing --Done--> ReadyToProcess --Process--> Idle
//
// Idle always means an empty batch and ReadyToProcess always means a
// non-empty, sealed batch.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ocrpipe/internal/logger"
	"ocrpipe/pkg/models"
)

// State is the aggregator's position in the capture workflow.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateReadyToProcess
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateReadyToProcess:
		return "ready_to_process"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrEmptyBatch is returned by Done when nothing has been captured.
	ErrEmptyBatch = errors.New("capture: batch is empty")

	// ErrBatchSealed is returned by Capture once Done has been called.
	ErrBatchSealed = errors.New("capture: batch is sealed for processing")

	// ErrNotReady is returned by Process before Done has been called.
	ErrNotReady = errors.New("capture: batch is not ready to process")

	// ErrEmptyCapture is returned when a camera yields no image bytes.
	ErrEmptyCapture = errors.New("capture: camera returned an empty image")
)

// Camera produces one image per call.
type Camera interface {
	Capture(ctx context.Context) (models.ImageBlob, error)
}

// Uploader submits one image and returns its OCR result.
type Uploader interface {
	Upload(ctx context.Context, blob models.ImageBlob) (models.OCRResult, error)
}

// Outcome is the per-image result of Process, in capture order.
type Outcome struct {
	Index    int
	Filename string
	Result   models.OCRResult
	Err      error
}

// Aggregator owns the captured batch. It is safe for concurrent use; Process
// holds the lock for the whole batch, so captures wait until it finishes.
type Aggregator struct {
	mu       sync.Mutex
	uploader Uploader
	state    State
	batch    []models.ImageBlob
}

// NewAggregator creates an idle aggregator that submits through uploader.
func NewAggregator(uploader Uploader) *Aggregator {
	return &Aggregator{uploader: uploader}
}

// State returns the current state.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Len returns the number of captured images.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.batch)
}

// Images returns a copy of the batch in capture order.
func (a *Aggregator) Images() []models.ImageBlob {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.ImageBlob(nil), a.batch...)
}

// Capture takes exactly one image from cam and appends it to the batch. On
// error the batch and state are unchanged.
func (a *Aggregator) Capture(ctx context.Context, cam Camera) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateReadyToProcess {
		return ErrBatchSealed
	}

	blob, err := cam.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if blob.IsEmpty() {
		return ErrEmptyCapture
	}

	a.batch = append(a.batch, blob)
	a.state = StateCapturing
	return nil
}

// Done ends capturing and seals the batch.
func (a *Aggregator) Done() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateIdle:
		return ErrEmptyBatch
	case StateCapturing:
		a.state = StateReadyToProcess
	}
	return nil
}

// Reset discards the batch and returns to Idle.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batch = nil
	a.state = StateIdle
}

// Process uploads every image in capture order, one at a time. A failed
// upload is recorded in its Outcome and does not stop the rest. Cancellation
// is checked between uploads: once ctx is done the remaining images are
// skipped with ctx.Err() as their error, and Process returns ctx.Err().
//
// The batch is cleared and the aggregator is Idle when Process returns.
func (a *Aggregator) Process(ctx context.Context) ([]Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateReadyToProcess {
		return nil, ErrNotReady
	}

	log := logger.FromContext(ctx).With().Str("component", "capture").Logger()
	batch := a.batch
	defer func() {
		a.batch = nil
		a.state = StateIdle
	}()

	outcomes := make([]Outcome, 0, len(batch))
	var cancelErr error
	for i, blob := range batch {
		out := Outcome{Index: i, Filename: blob.Filename}

		if cancelErr == nil {
			cancelErr = ctx.Err()
		}
		if cancelErr != nil {
			out.Err = cancelErr
			outcomes = append(outcomes, out)
			continue
		}

		out.Result, out.Err = a.uploader.Upload(ctx, blob)
		if out.Err != nil {
			log.Warn().Err(out.Err).Int("index", i).Str("filename", blob.Filename).Msg("upload failed")
		} else {
			log.Debug().Int("index", i).Str("filename", blob.Filename).Int("text_length", len(out.Result.Text)).Msg("upload succeeded")
		}
		outcomes = append(outcomes, out)
	}

	log.Info().Int("images", len(batch)).Bool("canceled", cancelErr != nil).Msg("batch processed")
	return outcomes, cancelErr
}
