package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/logger"
)

const (
	defaultWriteTimeout = 10 * time.Second
	writerTracerName    = "github.com/abelngansop-dot/studio-sub000/internal/usecase"
)

// PendingCreate is the eventual result of Writer.Add.
type PendingCreate struct {
	done chan struct{}
	ref  *domain.DocumentRef
	err  error
}

func newPendingCreate() *PendingCreate {
	return &PendingCreate{done: make(chan struct{})}
}

func (p *PendingCreate) resolve(ref *domain.DocumentRef, err error) {
	p.ref = ref
	p.err = err
	close(p.done)
}

// Done is closed once the create has finished.
func (p *PendingCreate) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the create finishes or ctx is done. A denied create returns an error matching
// domain.ErrPermissionDenied.
func (p *PendingCreate) Wait(ctx context.Context) (*domain.DocumentRef, error) {
	select {
	case <-p.done:
		return p.ref, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Writer issues store mutations without blocking the caller. Denials are published on the error
// channel; other failures are logged. No method panics or returns the write error to the caller,
// except through the PendingCreate of Add.
type Writer struct {
	deps    Deps
	timeout time.Duration
	tracer  trace.Tracer

	base   context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

// NewWriter constructs a writer. Each write runs with its own timeout; timeout <= 0 uses the default.
func NewWriter(deps Deps, timeout time.Duration) *Writer {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	base, cancel := context.WithCancel(context.Background())
	return &Writer{
		deps:    deps.withDefaults(),
		timeout: timeout,
		tracer:  otel.Tracer(writerTracerName),
		base:    base,
		cancel:  cancel,
		wg:      &sync.WaitGroup{},
	}
}

// WithStore returns a writer that issues its writes to store. It shares in-flight tracking and
// cancellation with w, so Drain and Close on w cover its writes too.
func (w *Writer) WithStore(store port.DocumentStore) *Writer {
	view := *w
	view.deps.Store = store
	return &view
}

// Add creates a document in collection with a generated id.
func (w *Writer) Add(collection *domain.Query, payload map[string]any) *PendingCreate {
	pending := newPendingCreate()
	fields := domain.CloneFields(payload)
	path := collection.Path()

	var created *domain.DocumentRef
	w.dispatch(domain.OperationCreate, path, fields, func(ctx context.Context) error {
		ref, err := w.deps.Store.Add(ctx, collection, fields)
		if err != nil {
			return err
		}
		created = ref
		return nil
	}, func(err error) {
		if err != nil {
			pending.resolve(nil, err)
			return
		}
		pending.resolve(created, nil)
	})
	return pending
}

// Set replaces the document at ref, or merges into it when merge is true. A denial is reported
// as an "update".
func (w *Writer) Set(ref *domain.DocumentRef, payload map[string]any, merge bool) {
	fields := domain.CloneFields(payload)
	w.dispatch(domain.OperationUpdate, ref.Path(), fields, func(ctx context.Context) error {
		return w.deps.Store.Set(ctx, ref, fields, merge)
	}, nil)
}

// Update merges payload into the existing document at ref.
func (w *Writer) Update(ref *domain.DocumentRef, payload map[string]any) {
	fields := domain.CloneFields(payload)
	w.dispatch(domain.OperationUpdate, ref.Path(), fields, func(ctx context.Context) error {
		return w.deps.Store.Update(ctx, ref, fields)
	}, nil)
}

// Delete removes the document at ref.
func (w *Writer) Delete(ref *domain.DocumentRef) {
	w.dispatch(domain.OperationDelete, ref.Path(), nil, func(ctx context.Context) error {
		return w.deps.Store.Delete(ctx, ref)
	}, nil)
}

// dispatch runs write in the background and passes the outcome to onDone. A denial is published
// exactly once, before onDone sees it, and onDone receives the PermissionError in place of the
// store error.
func (w *Writer) dispatch(op domain.Operation, path string, payload map[string]any, write func(context.Context) error, onDone func(error)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ctx, cancel := context.WithTimeout(w.base, w.timeout)
		defer cancel()

		ctx, span := w.tracer.Start(ctx, "writer."+string(op),
			trace.WithAttributes(
				attribute.String("document.path", path),
				attribute.String("document.operation", string(op)),
			),
		)
		defer span.End()

		err := w.run(ctx, write)
		switch {
		case err == nil:
			w.deps.Metrics.WriteFinished(string(op), outcomeOK)
		case domain.IsPermissionDenied(err):
			denied := domain.NewPermissionError(path, op, payload)
			span.SetStatus(codes.Error, "permission denied")
			w.deps.Metrics.WriteFinished(string(op), outcomeDenied)
			w.deps.Metrics.PermissionDenied(string(op))
			if w.deps.Bus != nil {
				w.deps.Bus.Emit(denied)
			}
			err = denied
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			w.deps.Metrics.WriteFinished(string(op), outcomeError)
			w.deps.Logger.Error("non-blocking write failed",
				zap.String("operation", string(op)),
				zap.String("path", path),
				zap.Strings("payload_keys", logger.PayloadKeys(payload)),
				zap.Error(err),
			)
		}

		if onDone != nil {
			onDone(err)
		}
	}()
}

// run invokes write, converting a panic in the store into an error.
func (w *Writer) run(ctx context.Context, write func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("store panicked during write")
			w.deps.Logger.Error("store panicked during write", zap.Any("panic", r))
		}
	}()
	return write(ctx)
}

// Drain waits until every write issued so far has finished or ctx is done.
func (w *Writer) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels writes still in flight.
func (w *Writer) Close() {
	w.cancel()
}
