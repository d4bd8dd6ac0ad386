// Package persist implements the save workflow: remote registry write first,
// local store always, index maintenance, and best-effort learning feedback.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mediflow/go-rxdraft/internal/domain/prescription"
	"github.com/mediflow/go-rxdraft/internal/infrastructure/redpanda"
	"github.com/mediflow/go-rxdraft/internal/observability/metrics"
	"github.com/mediflow/go-rxdraft/internal/store"
	"github.com/mediflow/go-rxdraft/pkg/workerpool"
)

// RemoteSink is the remote registry surface the coordinator depends on.
type RemoteSink interface {
	SavePrescription(ctx context.Context, rec *prescription.Record) error
	SendLearningFeedback(ctx context.Context, fb prescription.LearningFeedback) error
}

// EventPublisher is the event stream surface. May be absent.
type EventPublisher interface {
	PublishAsync(ctx context.Context, topic, key string, value []byte, callback func(error))
}

// Outcome reports which sinks a save reached. The operation as a whole
// succeeds when at least one sink did.
type Outcome struct {
	PrescriptionID string
	RemoteSaved    bool
	LocalSaved     bool
	RemoteError    string
	LearningQueued bool
}

// Coordinator orchestrates prescription persistence.
type Coordinator struct {
	remote   RemoteSink
	records  *store.RecordStore
	index    *store.Index
	pool     *workerpool.Pool
	producer EventPublisher
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New creates a coordinator. producer may be nil when no event stream is
// configured; remote may be nil in tests.
func New(remote RemoteSink, records *store.RecordStore, index *store.Index, pool *workerpool.Pool, producer EventPublisher, m *metrics.Metrics, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		remote:   remote,
		records:  records,
		index:    index,
		pool:     pool,
		producer: producer,
		metrics:  m,
		logger:   logger,
	}
}

// Save persists a finalized prescription. The remote write is attempted
// first and its failure is never fatal; the local write always runs. Only
// when both sinks fail does Save return a PersistenceError. Learning
// feedback is queued fire-and-forget and cannot affect the outcome.
func (c *Coordinator) Save(ctx context.Context, id string, rec *prescription.Record, mods []prescription.MedicationEntry) (*Outcome, error) {
	tracer := otel.Tracer("persistence-coordinator")
	ctx, span := tracer.Start(ctx, "save_prescription")
	defer span.End()

	if id == "" || rec == nil {
		return nil, fmt.Errorf("%w: prescription id and data are required", prescription.ErrValidation)
	}
	span.SetAttributes(attribute.String("prescription_id", id))

	start := time.Now()

	rec.ID = id
	if mods != nil {
		rec.DoctorModifications = mods
	}
	rec.Finalize()

	outcome := &Outcome{PrescriptionID: id}

	var remoteErr error
	if c.remote != nil {
		remoteErr = c.remote.SavePrescription(ctx, rec)
	} else {
		remoteErr = fmt.Errorf("remote registry not configured")
	}
	if remoteErr != nil {
		outcome.RemoteError = remoteErr.Error()
		if c.metrics != nil {
			c.metrics.RemoteSaveFailures.Inc()
		}
		c.logger.Warn("registry unavailable, relying on local store",
			zap.String("id", id),
			zap.Error(remoteErr))
	} else {
		outcome.RemoteSaved = true
	}

	localErr := c.records.WriteRecord(rec)
	if localErr != nil {
		if c.metrics != nil {
			c.metrics.LocalSaveFailures.Inc()
		}
		c.logger.Error("local save failed", zap.String("id", id), zap.Error(localErr))
	} else {
		outcome.LocalSaved = true
		c.updateIndex(rec)
	}

	if remoteErr != nil && localErr != nil {
		if c.metrics != nil {
			c.metrics.SavesFailed.Inc()
		}
		return nil, &prescription.PersistenceError{RemoteErr: remoteErr, LocalErr: localErr}
	}

	outcome.LearningQueued = c.queueLearningFeedback(rec)

	if c.metrics != nil {
		c.metrics.SavesTotal.Inc()
		c.metrics.SaveDuration.Observe(time.Since(start).Seconds())
	}

	c.logger.Info("prescription saved",
		zap.String("id", id),
		zap.Bool("remote", outcome.RemoteSaved),
		zap.Bool("local", outcome.LocalSaved),
		zap.Int("medications", len(rec.FinalPrescription)),
	)
	return outcome, nil
}

// Get loads one record from the local store.
func (c *Coordinator) Get(ctx context.Context, id string) (*prescription.Record, error) {
	return c.records.ReadRecord(id)
}

// List returns recent index entries, newest first.
func (c *Coordinator) List(ctx context.Context, limit int) ([]prescription.IndexEntry, int, error) {
	return c.index.List(limit)
}

func (c *Coordinator) updateIndex(rec *prescription.Record) {
	count, err := c.index.Upsert(prescription.NewIndexEntry(rec))
	if err != nil {
		// Index is a cache over record files; losing an update only
		// degrades listing.
		c.logger.Warn("index update failed", zap.String("id", rec.ID), zap.Error(err))
		return
	}
	if c.metrics != nil {
		c.metrics.IndexEntries.Set(float64(count))
	}
}

// queueLearningFeedback fans the feedback record out to the registry, the
// local learning directory and the event stream. All three are best-effort.
func (c *Coordinator) queueLearningFeedback(rec *prescription.Record) bool {
	fb := prescription.NewLearningFeedback(rec)

	if c.producer != nil {
		if payload, err := json.Marshal(fb); err == nil {
			c.producer.PublishAsync(context.Background(), redpanda.TopicLearningFeedback, fb.PrescriptionID, payload, func(err error) {
				if err == nil && c.metrics != nil {
					c.metrics.EventsPublished.Inc()
				}
			})
		}
		if payload, err := json.Marshal(prescription.NewIndexEntry(rec)); err == nil {
			c.producer.PublishAsync(context.Background(), redpanda.TopicPrescriptionSaved, rec.ID, payload, func(err error) {
				if err == nil && c.metrics != nil {
					c.metrics.EventsPublished.Inc()
				}
			})
		}
	}

	if c.pool == nil {
		c.emitLearningFeedback(context.Background(), fb)
		return true
	}

	err := c.pool.Submit(workerpool.Task{
		ID: "learning_" + fb.PrescriptionID,
		Run: func(ctx context.Context) error {
			c.emitLearningFeedback(ctx, fb)
			return nil
		},
	})
	if err != nil {
		c.logger.Warn("learning feedback dropped", zap.String("id", fb.PrescriptionID), zap.Error(err))
		return false
	}
	return true
}

// emitLearningFeedback performs the actual emission. Failures are logged and
// never propagate.
func (c *Coordinator) emitLearningFeedback(ctx context.Context, fb prescription.LearningFeedback) {
	emitted := false

	if c.remote != nil {
		if err := c.remote.SendLearningFeedback(ctx, fb); err != nil {
			c.logger.Warn("learning feedback submission failed",
				zap.String("id", fb.PrescriptionID),
				zap.Error(err))
		} else {
			emitted = true
		}
	}

	if err := c.records.WriteLearning(fb); err != nil {
		c.logger.Warn("local learning feedback write failed",
			zap.String("id", fb.PrescriptionID),
			zap.Error(err))
	} else {
		emitted = true
	}

	if c.metrics != nil {
		if emitted {
			c.metrics.LearningEmitted.Inc()
		} else {
			c.metrics.LearningFailed.Inc()
		}
	}
}
