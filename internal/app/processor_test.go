package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"nyaysakhi/api/internal/blob"
	"nyaysakhi/api/internal/extract"
	"nyaysakhi/api/internal/ocr"
	"nyaysakhi/api/internal/store"
)

func TestProcessorRunsSubmittedJobs(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var mu sync.Mutex
	seen := map[string]bool{}
	p := newProcessor(func(_ context.Context, id string) error {
		mu.Lock()
		defer mu.Unlock()
		seen[id] = true
		if id == "doc-bad" {
			return errors.New("boom")
		}
		return nil
	}, 2, zap.NewNop())

	for _, id := range []string{"doc-1", "doc-2", "doc-bad"} {
		if !p.Submit(id) {
			t.Fatalf("submit %s rejected", id)
		}
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("expected 3 jobs run, got %v", seen)
	}
}

func TestProcessorRejectsAfterShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := newProcessor(func(context.Context, string) error { return nil }, 1, zap.NewNop())
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if p.Submit("doc-1") {
		t.Fatal("expected submit to fail after shutdown")
	}
}

func TestProcessorBoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var running, peak atomic.Int32
	release := make(chan struct{})
	p := newProcessor(func(context.Context, string) error {
		n := running.Add(1)
		for {
			current := peak.Load()
			if n <= current || peak.CompareAndSwap(current, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return nil
	}, 2, zap.NewNop())

	for i := 0; i < 6; i++ {
		p.Submit("doc")
	}
	deadline := time.Now().Add(2 * time.Second)
	for running.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(release)
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if got := peak.Load(); got != 2 {
		t.Fatalf("expected at most 2 concurrent jobs, peak was %d", got)
	}
}

func TestProcessorShutdownTimeoutDropsQueuedJobs(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var ran atomic.Int32
	started := make(chan struct{})
	p := newProcessor(func(ctx context.Context, _ string) error {
		ran.Add(1)
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, 1, zap.NewNop())

	p.Submit("doc-slow")
	<-started
	p.Submit("doc-queued")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if got := ran.Load(); got != 1 {
		t.Fatalf("expected queued job to be dropped, %d jobs ran", got)
	}
}

func TestProcessingReason(t *testing.T) {
	cases := map[error]string{
		ocr.ErrNoText:                   "No readable text was found in the document",
		ocr.ErrUnsupportedType:          "This file type cannot be read",
		blob.ErrNotFound:                "The uploaded file is missing",
		blob.ErrNotConfigured:           "File storage is not configured",
		context.DeadlineExceeded:        "Processing timed out",
		errors.New("tesseract crashed"): "Processing failed",
	}
	for err, want := range cases {
		if got := processingReason(err); got != want {
			t.Errorf("processingReason(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestStartRequeuesStuckDocuments(t *testing.T) {
	fs := newFakeStore()
	owner := seedUser(fs, "asha", "user")
	stuck := processedDocument(t, fs, "doc-stuck", owner.ID, extract.Data{})
	stuck.Status = store.DocumentProcessing
	stuck.ProcessedAt = nil
	fs.documents["doc-stuck"] = stuck

	svc := newTestService(t, fs, Deps{OCR: fakeOCR{text: firText}})
	if err := svc.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// No object storage is configured, so the requeued job records why it failed.
	document := waitForStatus(t, fs, "doc-stuck")
	if document.Status != store.DocumentFailed || document.ProcessingError != "File storage is not configured" {
		t.Fatalf("expected the requeued job to run, got %+v", document)
	}
}

func TestProcessDocumentRecordsCompletionFailure(t *testing.T) {
	fs := newFakeStore()
	owner := seedUser(fs, "asha", "user")
	document := processedDocument(t, fs, "doc-1", owner.ID, extract.Data{})
	document.Status = store.DocumentUploaded
	fs.documents["doc-1"] = document
	fs.completeDocumentFn = func(context.Context, string) error { return context.DeadlineExceeded }
	blobs := blob.NewMemory()
	if err := blobs.Put(context.Background(), document.ObjectKey, strings.NewReader(firText), int64(len(firText)), blob.TypeText); err != nil {
		t.Fatalf("put blob: %v", err)
	}
	svc := newTestService(t, fs, Deps{Blobs: blobs, OCR: fakeOCR{text: firText}})

	if err := svc.processDocument(t.Context(), "doc-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	failed := fs.documents["doc-1"]
	if failed.Status != store.DocumentFailed || failed.ProcessingError != "Processing timed out" {
		t.Fatalf("expected the failure to be recorded, got status=%s reason=%q", failed.Status, failed.ProcessingError)
	}

	fs.completeDocumentFn = nil
	if err := svc.processDocument(t.Context(), "doc-1"); err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	if got := fs.documents["doc-1"]; got.Status != store.DocumentProcessed {
		t.Fatalf("expected the retry to complete, got %s", got.Status)
	}
}
