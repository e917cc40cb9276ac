package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"nyaysakhi/api/internal/blob"
	"nyaysakhi/api/internal/extract"
	"nyaysakhi/api/internal/ocr"
	"nyaysakhi/api/internal/store"
)

const processTimeout = 2 * time.Minute

// processor runs document jobs with at most `workers` in flight.
type processor struct {
	run     func(ctx context.Context, documentID string) error
	sem     *semaphore.Weighted
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

func newProcessor(run func(ctx context.Context, documentID string) error, workers int64, log *zap.Logger) *processor {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &processor{
		run:    run,
		sem:    semaphore.NewWeighted(workers),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit queues a document. It reports false once the pool is shut down.
func (p *processor) Submit(documentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)

		ctx, cancel := context.WithTimeout(p.ctx, processTimeout)
		defer cancel()
		started := time.Now()
		if err := p.run(ctx, documentID); err != nil {
			p.log.Warn("document processing failed",
				zap.String("document_id", documentID),
				zap.Duration("duration", time.Since(started)),
				zap.Error(err))
			return
		}
		p.log.Info("document processed",
			zap.String("document_id", documentID),
			zap.Duration("duration", time.Since(started)))
	}()
	return true
}

// Shutdown stops new work and waits for running jobs. Jobs still waiting for
// a slot are dropped when ctx ends; they are picked up again on next start.
func (p *processor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// processDocument turns an uploaded file into OCR text and extracted fields.
func (s *Service) processDocument(ctx context.Context, documentID string) error {
	claimed, err := s.store.MarkDocumentProcessing(ctx, documentID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	document, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return s.failDocument(ctx, documentID, err)
	}

	text, err := s.documentText(ctx, document)
	if err != nil {
		return s.failDocument(ctx, documentID, err)
	}

	data := extract.Extract(text)
	raw, err := json.Marshal(data)
	if err != nil {
		return s.failDocument(ctx, documentID, fmt.Errorf("marshal extracted data: %w", err))
	}
	if err := s.store.CompleteDocument(ctx, documentID, text, raw); err != nil {
		return s.failDocument(ctx, documentID, err)
	}
	return nil
}

// failDocument records why processing stopped so the document can be
// reprocessed. The job context may already be done.
func (s *Service) failDocument(ctx context.Context, documentID string, cause error) error {
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.FailDocument(failCtx, documentID, processingReason(cause)); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (s *Service) documentText(ctx context.Context, document store.Document) (string, error) {
	if s.ocr == nil {
		return "", ocr.ErrUnsupportedType
	}
	reader, _, err := s.blobs.Get(ctx, document.ObjectKey)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	data, err := readAllLimited(reader, s.maxUploadBytes())
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return s.ocr.Text(ctx, data, document.ContentType)
}

// processingReason is the message stored on a failed document.
func processingReason(err error) string {
	switch {
	case errors.Is(err, ocr.ErrNoText):
		return "No readable text was found in the document"
	case errors.Is(err, ocr.ErrUnsupportedType):
		return "This file type cannot be read"
	case errors.Is(err, blob.ErrNotFound):
		return "The uploaded file is missing"
	case errors.Is(err, blob.ErrNotConfigured):
		return "File storage is not configured"
	case errors.Is(err, context.DeadlineExceeded):
		return "Processing timed out"
	default:
		return "Processing failed"
	}
}
