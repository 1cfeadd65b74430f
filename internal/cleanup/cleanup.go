package cleanup

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// Target names a collection that can be cleaned up
type Target string

const (
	TargetRaw             Target = "raw"
	TargetCalibrated      Target = "calibrated"
	TargetRecommendations Target = "recommendation"
	TargetManual          Target = "manual"
)

// Event names are "<target>.deleted" for single deletions and "<target>.purged" for bulk ones
func DeletedEvent(t Target) string { return string(t) + ".deleted" }

func PurgedEvent(t Target) string { return string(t) + ".purged" }

// attachmentPrefix is the key space of manual file submissions
const attachmentPrefix = "manual/"

// CleanupService coordinates deletion across collections and attachments
type CleanupService struct {
	store       repository.Store
	attachments repository.AttachmentStore
	events      *nuts.EventEmitter
	now         func() time.Time
}

// New creates a new CleanupService. attachments may be nil.
func New(store repository.Store, attachments repository.AttachmentStore, events *nuts.EventEmitter) *CleanupService {
	if events == nil {
		events = nuts.NewEventEmitter()
	}
	return &CleanupService{
		store:       store,
		attachments: attachments,
		events:      events,
		now:         time.Now,
	}
}

// Delete removes a single document. A missing id is a not-found error.
func (s *CleanupService) Delete(ctx context.Context, target Target, id string) error {
	var err error
	switch target {
	case TargetRaw:
		err = s.store.Raw().Delete(ctx, id)
	case TargetCalibrated:
		err = s.store.Calibrated().Delete(ctx, id)
	case TargetRecommendations:
		err = s.store.Recommendations().Delete(ctx, id)
	case TargetManual:
		err = s.deleteManual(ctx, id)
	default:
		return errors.NewValidationError(fmt.Sprintf("unknown cleanup target %q", target), nil)
	}
	if err != nil {
		return err
	}

	s.emit(DeletedEvent(target), map[string]string{"id": id})
	return nil
}

// DeleteAll empties a collection and returns how many documents were removed
func (s *CleanupService) DeleteAll(ctx context.Context, target Target) (int64, error) {
	var (
		n   int64
		err error
	)
	switch target {
	case TargetRaw:
		n, err = s.store.Raw().DeleteAll(ctx)
	case TargetCalibrated:
		n, err = s.store.Calibrated().DeleteAll(ctx)
	case TargetRecommendations:
		n, err = s.store.Recommendations().DeleteAll(ctx)
	case TargetManual:
		n, err = s.store.Manual().DeleteAll(ctx)
		if err == nil {
			s.deleteAttachments(ctx, attachmentPrefix)
		}
	default:
		return 0, errors.NewValidationError(fmt.Sprintf("unknown cleanup target %q", target), nil)
	}
	if err != nil {
		return 0, err
	}

	s.emit(PurgedEvent(target), map[string]string{"count": strconv.FormatInt(n, 10)})
	return n, nil
}

// DeleteOlderThan removes raw and calibrated readings older than maxAge
func (s *CleanupService) DeleteOlderThan(ctx context.Context, maxAge time.Duration) (map[Target]int64, error) {
	cutoff := s.now().Add(-maxAge)
	deleted := make(map[Target]int64, 2)

	for _, target := range []Target{TargetRaw, TargetCalibrated} {
		var (
			n   int64
			err error
		)
		if target == TargetRaw {
			n, err = s.store.Raw().DeleteBefore(ctx, cutoff)
		} else {
			n, err = s.store.Calibrated().DeleteBefore(ctx, cutoff)
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to delete old %s readings: %w", target, err)
		}
		deleted[target] = n
		if n > 0 {
			s.emit(PurgedEvent(target), map[string]string{
				"count":  strconv.FormatInt(n, 10),
				"before": cutoff.UTC().Format(time.RFC3339),
			})
		}
	}
	return deleted, nil
}

// Run sweeps old readings every interval until ctx is cancelled
func (s *CleanupService) Run(ctx context.Context, interval, maxAge time.Duration) {
	nuts.L.Infof("[Cleanup] Retention sweeper started (max age %v, every %v)", maxAge, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			nuts.L.Infof("[Cleanup] Retention sweeper stopped")
			return
		case <-ticker.C:
			deleted, err := s.DeleteOlderThan(ctx, maxAge)
			if err != nil {
				nuts.L.Errorf("[Cleanup] Retention sweep failed: %v", err)
				continue
			}
			if deleted[TargetRaw]+deleted[TargetCalibrated] > 0 {
				nuts.L.Infof("[Cleanup] Retention sweep removed %d raw and %d calibrated readings",
					deleted[TargetRaw], deleted[TargetCalibrated])
			}
		}
	}
}

// OnCleanup registers a callback for cleanup events
func (s *CleanupService) OnCleanup(event string, handler func(labels map[string]string)) {
	if _, err := s.events.On(event, nuts.NID("cleanup", 8), handler); err != nil {
		nuts.L.Errorf("[Cleanup] Failed to register handler for %s: %v", event, err)
	}
}

func (s *CleanupService) emit(event string, labels map[string]string) {
	if err := s.events.Emit(event, labels); err != nil {
		nuts.L.Errorf("[Cleanup] Failed to emit %s: %v", event, err)
	}
}

func (s *CleanupService) deleteManual(ctx context.Context, id string) error {
	if err := s.store.Manual().Delete(ctx, id); err != nil {
		return err
	}
	s.deleteAttachments(ctx, attachmentPrefix+id+"/")
	return nil
}

// deleteAttachments is best effort; orphaned blobs are logged, never fatal
func (s *CleanupService) deleteAttachments(ctx context.Context, prefix string) {
	if s.attachments == nil {
		return
	}
	n, err := s.attachments.DeletePrefix(ctx, prefix)
	if err != nil {
		nuts.L.Warnf("[Cleanup] Failed to delete attachments under %s: %v", prefix, err)
		return
	}
	if n > 0 {
		nuts.L.Infof("[Cleanup] Deleted %d attachments under %s", n, prefix)
	}
}
