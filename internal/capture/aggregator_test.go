package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ocrpipe/pkg/models"
)

type recordingUploader struct {
	mu       sync.Mutex
	order    []string
	failOn   map[string]error
	onUpload func(name string)
}

func (u *recordingUploader) Upload(ctx context.Context, blob models.ImageBlob) (models.OCRResult, error) {
	u.mu.Lock()
	u.order = append(u.order, blob.Filename)
	u.mu.Unlock()

	if u.onUpload != nil {
		u.onUpload(blob.Filename)
	}
	if err := u.failOn[blob.Filename]; err != nil {
		return models.OCRResult{}, err
	}
	return models.OCRResult{Text: "text of " + blob.Filename}, nil
}

func shot(name string) Camera {
	return CameraFunc(func(context.Context) (models.ImageBlob, error) {
		return models.ImageBlob{Filename: name, ContentType: "image/jpeg", Data: []byte(name)}, nil
	})
}

func TestAggregatorStateTransitions(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(&recordingUploader{})

	if agg.State() != StateIdle {
		t.Fatalf("initial state = %v", agg.State())
	}
	if err := agg.Done(); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Done() on idle = %v, want ErrEmptyBatch", err)
	}
	if _, err := agg.Process(ctx); !errors.Is(err, ErrNotReady) {
		t.Errorf("Process() on idle = %v, want ErrNotReady", err)
	}

	if err := agg.Capture(ctx, shot("a.jpg")); err != nil {
		t.Fatal(err)
	}
	if agg.State() != StateCapturing || agg.Len() != 1 {
		t.Fatalf("after capture: state = %v, len = %d", agg.State(), agg.Len())
	}
	if _, err := agg.Process(ctx); !errors.Is(err, ErrNotReady) {
		t.Errorf("Process() while capturing = %v, want ErrNotReady", err)
	}

	if err := agg.Capture(ctx, shot("b.jpg")); err != nil {
		t.Fatal(err)
	}
	if err := agg.Done(); err != nil {
		t.Fatal(err)
	}
	if agg.State() != StateReadyToProcess {
		t.Fatalf("after Done: state = %v", agg.State())
	}
	if err := agg.Done(); err != nil {
		t.Errorf("second Done() = %v, want nil", err)
	}
	if err := agg.Capture(ctx, shot("c.jpg")); !errors.Is(err, ErrBatchSealed) {
		t.Errorf("Capture() after Done = %v, want ErrBatchSealed", err)
	}
	if agg.Len() != 2 {
		t.Errorf("len = %d, want 2", agg.Len())
	}

	if _, err := agg.Process(ctx); err != nil {
		t.Fatal(err)
	}
	if agg.State() != StateIdle || agg.Len() != 0 {
		t.Errorf("after Process: state = %v, len = %d", agg.State(), agg.Len())
	}
}

func TestAggregatorCaptureFailureLeavesBatchUnchanged(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(&recordingUploader{})

	camErr := errors.New("camera busy")
	err := agg.Capture(ctx, CameraFunc(func(context.Context) (models.ImageBlob, error) {
		return models.ImageBlob{}, camErr
	}))
	if !errors.Is(err, camErr) {
		t.Errorf("error = %v, want camera error", err)
	}
	if err := agg.Capture(ctx, CameraFunc(func(context.Context) (models.ImageBlob, error) {
		return models.ImageBlob{Filename: "empty.jpg"}, nil
	})); !errors.Is(err, ErrEmptyCapture) {
		t.Errorf("error = %v, want ErrEmptyCapture", err)
	}
	if agg.State() != StateIdle || agg.Len() != 0 {
		t.Errorf("state = %v, len = %d, want idle and empty", agg.State(), agg.Len())
	}
}

func TestAggregatorProcessesInCaptureOrder(t *testing.T) {
	ctx := context.Background()
	up := &recordingUploader{}
	agg := NewAggregator(up)

	const k = 5
	var want []string
	for i := 0; i < k; i++ {
		name := fmt.Sprintf("img-%d.jpg", i)
		want = append(want, name)
		if err := agg.Capture(ctx, shot(name)); err != nil {
			t.Fatal(err)
		}
	}
	if err := agg.Done(); err != nil {
		t.Fatal(err)
	}

	outcomes, err := agg.Process(ctx)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(up.order) != k {
		t.Fatalf("uploads = %d, want %d", len(up.order), k)
	}
	for i := range want {
		if up.order[i] != want[i] {
			t.Errorf("upload %d = %q, want %q", i, up.order[i], want[i])
		}
		if outcomes[i].Index != i || outcomes[i].Filename != want[i] {
			t.Errorf("outcome %d = %+v", i, outcomes[i])
		}
		if outcomes[i].Result.Text != "text of "+want[i] {
			t.Errorf("outcome %d text = %q", i, outcomes[i].Result.Text)
		}
	}
}

func TestAggregatorUploadsAreSequential(t *testing.T) {
	ctx := context.Background()
	var inFlight, maxInFlight int
	var mu sync.Mutex
	up := &recordingUploader{onUpload: func(string) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}}
	agg := NewAggregator(up)
	for i := 0; i < 4; i++ {
		_ = agg.Capture(ctx, shot(fmt.Sprintf("%d.jpg", i)))
	}
	_ = agg.Done()
	if _, err := agg.Process(ctx); err != nil {
		t.Fatal(err)
	}
	if maxInFlight != 1 {
		t.Errorf("max in-flight uploads = %d, want 1", maxInFlight)
	}
}

func TestAggregatorFailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	uploadErr := &UploadError{StatusCode: 500, Message: "Error processing image"}
	up := &recordingUploader{failOn: map[string]error{"b.jpg": uploadErr}}
	agg := NewAggregator(up)

	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		if err := agg.Capture(ctx, shot(name)); err != nil {
			t.Fatal(err)
		}
	}
	_ = agg.Done()

	outcomes, err := agg.Process(ctx)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(outcomes) != 3 || len(up.order) != 3 {
		t.Fatalf("outcomes = %d, uploads = %d, want 3 each", len(outcomes), len(up.order))
	}
	if outcomes[0].Err != nil || outcomes[2].Err != nil {
		t.Errorf("unexpected errors: %v, %v", outcomes[0].Err, outcomes[2].Err)
	}
	var ue *UploadError
	if !errors.As(outcomes[1].Err, &ue) || ue.StatusCode != 500 {
		t.Errorf("outcome 1 error = %v, want UploadError 500", outcomes[1].Err)
	}
	if agg.State() != StateIdle || agg.Len() != 0 {
		t.Errorf("batch not cleared: state = %v, len = %d", agg.State(), agg.Len())
	}
}

func TestAggregatorCancellationBetweenUploads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	up := &recordingUploader{onUpload: func(name string) {
		if name == "b.jpg" {
			cancel()
		}
	}}
	agg := NewAggregator(up)
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"} {
		_ = agg.Capture(ctx, shot(name))
	}
	_ = agg.Done()

	outcomes, err := agg.Process(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Process() error = %v, want context.Canceled", err)
	}
	if len(up.order) != 2 {
		t.Errorf("uploads = %v, want only a.jpg and b.jpg", up.order)
	}
	if len(outcomes) != 4 {
		t.Fatalf("outcomes = %d, want 4", len(outcomes))
	}
	for _, o := range outcomes[:2] {
		if o.Err != nil {
			t.Errorf("outcome %s error = %v", o.Filename, o.Err)
		}
	}
	for _, o := range outcomes[2:] {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("outcome %s error = %v, want context.Canceled", o.Filename, o.Err)
		}
	}
	if agg.State() != StateIdle || agg.Len() != 0 {
		t.Errorf("batch not cleared after cancellation")
	}
}

func TestAggregatorReset(t *testing.T) {
	agg := NewAggregator(&recordingUploader{})
	_ = agg.Capture(context.Background(), shot("a.jpg"))
	_ = agg.Done()
	agg.Reset()
	if agg.State() != StateIdle || agg.Len() != 0 {
		t.Errorf("after Reset: state = %v, len = %d", agg.State(), agg.Len())
	}
}

func TestAggregatorImagesIsCopy(t *testing.T) {
	agg := NewAggregator(&recordingUploader{})
	_ = agg.Capture(context.Background(), shot("a.jpg"))

	imgs := agg.Images()
	imgs[0].Filename = "changed"
	if agg.Images()[0].Filename != "a.jpg" {
		t.Error("Images() exposed internal batch")
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle:           "idle",
		StateCapturing:      "capturing",
		StateReadyToProcess: "ready_to_process",
		State(9):            "State(9)",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
