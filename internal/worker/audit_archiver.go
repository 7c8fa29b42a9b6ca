package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
)

// ErrObjectNotFound is returned by an ObjectStore for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the slice of a blob store the archiver needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// AuditSource pages the global audit stream.
type AuditSource interface {
	AuditSince(ctx context.Context, cursor remediation.AuditCursor, limit int) ([]*remediation.AuditRecord, error)
}

const (
	defaultArchiveBatch = 500
	defaultSettleWindow = time.Minute
	maxBatchesPerRun    = 20
	watermarkObject     = "_watermark.json"
)

// AuditArchiver copies audit records newer than the last exported watermark to an
// object store as JSON Lines, one object per batch. Object keys are derived from the
// batch contents, so a batch re-exported after a crash overwrites itself.
//
// Records are stamped before their transaction commits, so a slow commit can land
// behind a cursor that has already moved on. Only records older than the settle
// window are exported; the window must exceed the longest store transaction.
type AuditArchiver struct {
	source AuditSource
	store  ObjectStore
	prefix string
	batch  int
	settle time.Duration
	now    func() time.Time
	logger *logger.Logger
}

// NewAuditArchiver creates a new audit archiver. A non-positive settle uses one minute.
func NewAuditArchiver(source AuditSource, store ObjectStore, prefix string, settle time.Duration, log *logger.Logger) *AuditArchiver {
	if settle <= 0 {
		settle = defaultSettleWindow
	}
	return &AuditArchiver{
		source: source,
		store:  store,
		prefix: prefix,
		batch:  defaultArchiveBatch,
		settle: settle,
		now:    time.Now,
		logger: log,
	}
}

func (a *AuditArchiver) Name() string { return "audit-archiver" }

// Run exports pending records, up to a bounded number of batches per call.
func (a *AuditArchiver) Run(ctx context.Context) error {
	cursor, err := a.loadWatermark(ctx)
	if err != nil {
		return err
	}

	horizon := a.now().Add(-a.settle)
	exported := 0
	for i := 0; i < maxBatchesPerRun; i++ {
		fetched, err := a.source.AuditSince(ctx, cursor, a.batch)
		if err != nil {
			return fmt.Errorf("failed to read audit records: %w", err)
		}
		records := settled(fetched, horizon)
		if len(records) == 0 {
			break
		}

		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("failed to encode audit record %s: %w", rec.ID, err)
			}
		}

		first, last := records[0], records[len(records)-1]
		key := path.Join(a.prefix, first.Timestamp.UTC().Format("2006/01/02"),
			fmt.Sprintf("%s-%s.jsonl", first.Timestamp.UTC().Format("150405.000000000"), first.ID))
		if err := a.store.Put(ctx, key, buf.Bytes(), "application/x-ndjson"); err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}

		cursor = remediation.AuditCursor{Timestamp: last.Timestamp, ID: last.ID}
		if err := a.saveWatermark(ctx, cursor); err != nil {
			return err
		}
		exported += len(records)

		if len(records) < a.batch {
			break
		}
	}

	if exported > 0 {
		a.logger.WithFields(map[string]interface{}{
			"records": exported,
			"prefix":  a.prefix,
		}).Info("Archived audit records")
	}
	return nil
}

// settled returns the leading records stamped at or before horizon. The stream is
// ordered by timestamp, so everything after the first newer record is newer too.
func settled(records []*remediation.AuditRecord, horizon time.Time) []*remediation.AuditRecord {
	for i, rec := range records {
		if rec.Timestamp.After(horizon) {
			return records[:i]
		}
	}
	return records
}

func (a *AuditArchiver) watermarkKey() string {
	return path.Join(a.prefix, watermarkObject)
}

func (a *AuditArchiver) loadWatermark(ctx context.Context) (remediation.AuditCursor, error) {
	var cursor remediation.AuditCursor
	raw, err := a.store.Get(ctx, a.watermarkKey())
	if errors.Is(err, ErrObjectNotFound) {
		return cursor, nil
	}
	if err != nil {
		return cursor, fmt.Errorf("failed to load archive watermark: %w", err)
	}
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return cursor, fmt.Errorf("corrupt archive watermark: %w", err)
	}
	return cursor, nil
}

func (a *AuditArchiver) saveWatermark(ctx context.Context, cursor remediation.AuditCursor) error {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return err
	}
	if err := a.store.Put(ctx, a.watermarkKey(), raw, "application/json"); err != nil {
		return fmt.Errorf("failed to save archive watermark: %w", err)
	}
	return nil
}
