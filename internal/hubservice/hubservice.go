package hubservice

import (
	"context"
	"time"

	"github.com/sauqing9/api-sitras/internal/cleanup"
	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/mlproxy"
	"github.com/sauqing9/api-sitras/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// Events emitted by the pipelines. Labels are passed as map[string]string.
const (
	EventRawCreated            = "raw.created"
	EventCalibrationSucceeded  = "calibration.succeeded"
	EventCalibrationFailed     = "calibration.failed"
	EventRecommendationCreated = "recommendation.created"
	EventRecommendationFailed  = "recommendation.failed"
)

// Calibrator corrects raw pH/N/P/K values
type Calibrator interface {
	Calibrate(ctx context.Context, req mlproxy.CalibrationRequest) (*mlproxy.CalibrationResult, error)
}

// Recommender computes fertilizer doses
type Recommender interface {
	Recommend(ctx context.Context, req mlproxy.RecommendationRequest) (*mlproxy.RecommendationResult, error)
}

// Options tunes the pipelines
type Options struct {
	// CalibrationTimeout bounds the calibration step independently of the request
	CalibrationTimeout time.Duration
	MaxFileSize        int64
	AllowedMimeTypes   []string
}

// HubService contains the store, the ML proxies and service-wide dependencies
type HubService struct {
	Store       repository.Store
	Attachments repository.AttachmentStore
	Calibrator  Calibrator
	Recommender Recommender
	Cleanup     *cleanup.CleanupService

	events  *nuts.EventEmitter
	options Options
	now     func() time.Time
}

// New creates a new HubService instance. attachments and calibrator may be nil.
func New(
	store repository.Store,
	attachments repository.AttachmentStore,
	calibrator Calibrator,
	recommender Recommender,
	options Options,
) *HubService {
	if options.CalibrationTimeout <= 0 {
		options.CalibrationTimeout = 5 * time.Second
	}
	events := nuts.NewEventEmitter()
	return &HubService{
		Store:       store,
		Attachments: attachments,
		Calibrator:  calibrator,
		Recommender: recommender,
		Cleanup:     cleanup.New(store, attachments, events),
		events:      events,
		options:     options,
		now:         time.Now,
	}
}

// On registers a handler for a pipeline or cleanup event
func (s *HubService) On(event string, handler func(labels map[string]string)) {
	if _, err := s.events.On(event, nuts.NID("hub", 8), handler); err != nil {
		nuts.L.Errorf("[HubService] Failed to register handler for %s: %v", event, err)
	}
}

func (s *HubService) emit(event string, labels map[string]string) {
	if err := s.events.Emit(event, labels); err != nil {
		nuts.L.Errorf("[HubService] Failed to emit %s: %v", event, err)
	}
}

// Validate checks if all required dependencies are initialized
func (s *HubService) Validate() error {
	if s.Store == nil {
		return ErrMissingDependency("store")
	}
	if s.Recommender == nil {
		return ErrMissingDependency("recommender")
	}
	return nil
}

// Ping reports whether the store is reachable
func (s *HubService) Ping(ctx context.Context) error {
	return s.Store.Ping(ctx)
}

func ErrMissingDependency(name string) error {
	return errors.NewInternalError("missing dependency: "+name, nil)
}
