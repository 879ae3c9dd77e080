package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/metrics"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	PersistStored    = "stored"
	PersistDuplicate = "duplicate"
	PersistOrphaned  = "orphaned"

	// publishTimeout bounds how long a redirect waits on Redis.
	publishTimeout = 150 * time.Millisecond
)

var errLinkGone = errors.New("link no longer exists")

// ClickRecorder turns redirect hits into stored clicks. Hits go to the Redis
// stream when one is configured and healthy, otherwise to an in-process
// buffer. Both paths end in Persist, which is idempotent on EventID.
type ClickRecorder struct {
	db      *gorm.DB
	logger  *slog.Logger
	visitor *VisitorResolver
	stream  *ClickStream
	buffer  chan models.Click
	now     func() time.Time
}

// NewClickRecorder accepts a nil stream; the buffer is then the only queue.
func NewClickRecorder(db *gorm.DB, logger *slog.Logger, visitor *VisitorResolver, stream *ClickStream, bufferSize int) *ClickRecorder {
	return &ClickRecorder{
		db:      db,
		logger:  logger,
		visitor: visitor,
		stream:  stream,
		buffer:  make(chan models.Click, bufferSize),
		now:     time.Now,
	}
}

// NewClick captures the request data of a hit on link. The IP is masked here
// when masking is enabled, so queues never carry the full address.
func (r *ClickRecorder) NewClick(linkID uint, ip, userAgent, referer string) models.Click {
	return models.Click{
		EventID:   uuid.NewString(),
		URLID:     linkID,
		IPAddress: r.visitor.CaptureIP(ip),
		UserAgent: userAgent,
		Referrer:  referer,
		ClickedAt: r.now().UTC(),
	}
}

// Enqueue hands the click off without waiting for the database. It waits at
// most publishTimeout on Redis; when both queues are unavailable the click is
// dropped and logged.
func (r *ClickRecorder) Enqueue(ctx context.Context, click models.Click) {
	if r.stream != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := r.stream.Publish(pubCtx, click)
		cancel()
		if err == nil {
			metrics.ClicksEnqueued.WithLabelValues("stream").Inc()
			return
		}
		r.logger.Warn("Click stream publish failed, using local buffer", "event_id", click.EventID, "error", err)
	}

	select {
	case r.buffer <- click:
		metrics.ClicksEnqueued.WithLabelValues("buffer").Inc()
	default:
		metrics.ClicksEnqueued.WithLabelValues("dropped").Inc()
		r.logger.Warn("Stats channel full, dropping click event", "event_id", click.EventID, "url_id", click.URLID)
	}
}

// Record enriches and stores the click before returning.
func (r *ClickRecorder) Record(ctx context.Context, click models.Click) error {
	result, err := r.Persist(ctx, click)
	if err != nil {
		return err
	}
	if result == PersistOrphaned {
		return NewNotFoundError("URL not found")
	}
	return nil
}

// Start runs the workers until ctx is cancelled. Buffered clicks still
// queued at shutdown are written before Start returns.
func (r *ClickRecorder) Start(ctx context.Context) {
	r.logger.Info("Stats worker starting")

	var wg sync.WaitGroup
	if r.stream != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.stream.Consume(ctx, r.persistFromQueue)
		}()
	}

	for {
		select {
		case click := <-r.buffer:
			_ = r.persistFromQueue(ctx, click)
		case <-ctx.Done():
			r.flush()
			wg.Wait()
			r.logger.Info("Stats worker stopping")
			return
		}
	}
}

func (r *ClickRecorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case click := <-r.buffer:
			_ = r.persistFromQueue(ctx, click)
		default:
			return
		}
	}
}

// persistFromQueue treats a vanished link as done so the entry is acked.
func (r *ClickRecorder) persistFromQueue(ctx context.Context, click models.Click) error {
	result, err := r.Persist(ctx, click)
	if err != nil {
		r.logger.Error("Failed to record click stats", "event_id", click.EventID, "error", err)
		return err
	}
	if result == PersistOrphaned {
		r.logger.Warn("Dropping click for deleted link", "event_id", click.EventID, "url_id", click.URLID)
	}
	return nil
}

// Persist enriches the click and writes it together with the counter
// increment. A click whose EventID is already stored changes nothing.
func (r *ClickRecorder) Persist(ctx context.Context, click models.Click) (string, error) {
	r.enrichClickData(&click)

	result := PersistStored
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).Create(&click)
		if errors.Is(res.Error, gorm.ErrForeignKeyViolated) {
			return errLinkGone
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			result = PersistDuplicate
			return nil
		}

		upd := tx.Model(&models.URL{}).
			Where("id = ?", click.URLID).
			UpdateColumn("clicks", gorm.Expr("clicks + ?", 1))
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return errLinkGone
		}
		return nil
	})

	switch {
	case errors.Is(err, errLinkGone):
		metrics.ClicksPersisted.WithLabelValues(PersistOrphaned).Inc()
		return PersistOrphaned, nil
	case err != nil:
		metrics.ClicksPersisted.WithLabelValues("error").Inc()
		return "", NewStoreError("record click", err)
	}

	metrics.ClicksPersisted.WithLabelValues(result).Inc()
	return result, nil
}

func (r *ClickRecorder) enrichClickData(click *models.Click) {
	info := r.visitor.Resolve(click.IPAddress, click.UserAgent, click.Referrer)
	click.IPAddress = info.IPAddress
	click.Device = info.Device
	click.Browser = info.Browser
	click.OperatingSystem = info.OperatingSystem
	click.Referrer = info.Referrer
	click.Location = info.Location
	if click.ClickedAt.IsZero() {
		click.ClickedAt = r.now().UTC()
	}
	if click.EventID == "" {
		click.EventID = uuid.NewString()
	}
}
