package alert

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// Recorder accepts transition facts for asynchronous audit persistence.
// Implementations must never block the caller or surface failures to it.
type Recorder interface {
	Record(alertID string, previous *Status, next Status, reason string)
}

// Auditor appends TransitionRecords on a dedicated worker goroutine, fed by
// a buffered channel. Callers enqueue after their own write has committed,
// so the audit trail never causes a primary operation to roll back and never
// adds latency to it. A failed audit write is logged and discarded; ordering
// is guaranteed per enqueue order, not across alerts.
type Auditor struct {
	store   Store
	logger  log.Logger
	metrics *Metrics

	ch        chan *TransitionRecord
	quit      chan struct{} // closed by Close; Record drops after this
	done      chan struct{} // closed when the worker exits
	closeOnce sync.Once

	now func() time.Time
}

// auditQueueSize bounds the in-flight audit backlog. Records beyond it are
// dropped rather than blocking the mutating operation.
const auditQueueSize = 256

// NewAuditor creates an Auditor and starts its worker goroutine. Call Close
// to drain and stop it.
func NewAuditor(store Store, logger log.Logger, metrics *Metrics) *Auditor {
	if logger == nil {
		logger = log.Nop()
	}
	a := &Auditor{
		store:   store,
		logger:  logger,
		metrics: metrics,
		ch:      make(chan *TransitionRecord, auditQueueSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go a.run()
	return a
}

// Record implements Recorder. It never blocks and never panics: if the queue
// is full, or the auditor has been closed, the record is dropped with a log
// line and a metric, because audit emission is best-effort by contract.
func (a *Auditor) Record(alertID string, previous *Status, next Status, reason string) {
	select {
	case <-a.quit:
		a.logger.Warn(context.Background(), "auditor closed, transition record dropped",
			"alert_id", alertID,
			"new_status", string(next),
		)
		if a.metrics != nil {
			a.metrics.AuditWritesTotal.WithLabelValues("dropped").Inc()
		}
		return
	default:
	}

	rec := &TransitionRecord{
		HistoryID:      ulid.Make().String(),
		AlertID:        alertID,
		PreviousStatus: previous,
		NewStatus:      next,
		Reason:         reason,
	}

	select {
	case a.ch <- rec:
		if a.metrics != nil {
			a.metrics.AuditQueueDepth.Set(float64(len(a.ch)))
		}
	default:
		a.logger.Warn(context.Background(), "audit queue full, transition record dropped",
			"alert_id", alertID,
			"new_status", string(next),
		)
		if a.metrics != nil {
			a.metrics.AuditWritesTotal.WithLabelValues("dropped").Inc()
		}
	}
}

// Close stops accepting records, drains the queue, and waits for the worker
// to finish. The channel itself is never closed, so a Record racing Close
// degrades to a drop instead of a send-on-closed-channel panic.
func (a *Auditor) Close() {
	a.closeOnce.Do(func() { close(a.quit) })
	<-a.done
}

func (a *Auditor) run() {
	defer close(a.done)

	for {
		select {
		case rec := <-a.ch:
			a.persist(rec)
		case <-a.quit:
			// Drain whatever was enqueued before shutdown.
			for {
				select {
				case rec := <-a.ch:
					a.persist(rec)
				default:
					return
				}
			}
		}
	}
}

func (a *Auditor) persist(rec *TransitionRecord) {
	// Timestamp is write-time, server-assigned.
	rec.Timestamp = a.now()

	ctx := context.Background()
	if err := a.store.AppendTransition(ctx, rec); err != nil {
		// Log but never rethrow: the primary transition is already
		// durable and a failed audit write must not surface to the
		// operation that triggered it.
		a.logger.Error(ctx, err, "failed to persist transition record",
			"alert_id", rec.AlertID,
			"new_status", string(rec.NewStatus),
		)
		if a.metrics != nil {
			a.metrics.AuditWritesTotal.WithLabelValues("error").Inc()
		}
		return
	}
	if a.metrics != nil {
		a.metrics.AuditWritesTotal.WithLabelValues("ok").Inc()
		a.metrics.AuditQueueDepth.Set(float64(len(a.ch)))
	}
}
