// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"io"
	"time"

	"github.com/sauqing9/api-sitras/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// ID prefixes per collection
const (
	PrefixRaw            = "raw"
	PrefixCalibrated     = "cal"
	PrefixRecommendation = "rec"
	PrefixManual         = "man"
)

// Collection defines the operations every stored entity supports.
// Ordering is by timestamp descending, ties broken by id descending.
type Collection[T any] interface {
	// Insert assigns id and timestamp when absent and stores the document
	Insert(ctx context.Context, doc *T) error
	Get(ctx context.Context, id string) (*T, error)
	// Latest returns a not-found error on an empty collection
	Latest(ctx context.Context) (*T, error)
	Recent(ctx context.Context, limit int) ([]*T, error)
	// Delete returns a not-found error when nothing was deleted
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type RawReadingRepository = Collection[models.RawReading]

type CalibratedReadingRepository = Collection[models.CalibratedReading]

type RecommendationRepository = Collection[models.Recommendation]

// ManualDataRepository adds the extracted-values lookup to the manual collection
type ManualDataRepository interface {
	Collection[models.ManualData]
	LatestWithExtracted(ctx context.Context) (*models.ManualData, error)
}

// Store bundles the collections of one backend
type Store interface {
	Raw() RawReadingRepository
	Calibrated() CalibratedReadingRepository
	Recommendations() RecommendationRepository
	Manual() ManualDataRepository
	Ping(ctx context.Context) error
	Close() error
}

// AttachmentStore defines blob storage for manual file submissions
type AttachmentStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Stamp fills in a missing id and timestamp and normalizes the timestamp
func Stamp(meta *models.Record, prefix string, now time.Time) {
	if meta.ID == "" {
		meta.ID = nuts.NID(prefix, 16)
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = now
	}
	meta.Timestamp = models.StoreTime(meta.Timestamp)
}
