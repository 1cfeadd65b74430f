package hubservice

import (
	"context"
	"encoding/json"

	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/mlproxy"
	"github.com/sauqing9/api-sitras/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

const msgRecommendationFailed = "Error generating ML recommendation"

// Recommend calls the recommendation service and persists its answer.
// Any upstream failure fails the whole call and nothing is stored.
func (s *HubService) Recommend(ctx context.Context, params models.RecommendationParams) (*models.RecommendationResult, error) {
	res, err := s.requestRecommendation(ctx, params)
	if err != nil {
		return nil, err
	}

	rec := &models.Recommendation{
		Input:             params,
		Recommendation:    res.Doses,
		Reasons:           res.Reasons,
		Tips:              res.Tips,
		ConversionResults: res.ConversionResults,
	}
	if err := s.Store.Recommendations().Insert(ctx, rec); err != nil {
		return nil, err
	}
	nuts.L.Infof("[RecommendationPipeline] Stored recommendation %s (target %s)", rec.ID, params.TargetPadi.Code())
	s.emit(EventRecommendationCreated, map[string]string{"id": rec.ID, "source": "ml"})

	return &models.RecommendationResult{
		Recommendation:    rec.Recommendation,
		Timestamp:         rec.Timestamp,
		ConversionResults: rec.ConversionResults,
	}, nil
}

// PreviewRecommendation calls the recommendation service without persisting anything
// and returns the service's response envelope as received.
func (s *HubService) PreviewRecommendation(ctx context.Context, params models.RecommendationParams) (json.RawMessage, error) {
	res, err := s.requestRecommendation(ctx, params)
	if err != nil {
		return nil, err
	}
	return res.Envelope, nil
}

// SaveRecommendation persists a precomputed recommendation without calling the service
func (s *HubService) SaveRecommendation(ctx context.Context, bundle *models.PrecomputedRecommendation) (*models.Recommendation, error) {
	rec, err := bundle.ToRecommendation()
	if err != nil {
		return nil, err
	}
	if err := s.Store.Recommendations().Insert(ctx, rec); err != nil {
		return nil, err
	}
	nuts.L.Infof("[RecommendationPipeline] Stored precomputed recommendation %s", rec.ID)
	s.emit(EventRecommendationCreated, map[string]string{"id": rec.ID, "source": "precomputed"})
	return rec, nil
}

func (s *HubService) requestRecommendation(ctx context.Context, params models.RecommendationParams) (*mlproxy.RecommendationResult, error) {
	res, err := s.Recommender.Recommend(ctx, mlproxy.RequestFor(params))
	if err != nil {
		nuts.L.Errorf("[RecommendationPipeline] Recommendation service failed: %v", err)
		kind := string(mlproxy.KindOf(err))
		s.emit(EventRecommendationFailed, map[string]string{"kind": kind})
		return nil, errors.NewUpstreamError(msgRecommendationFailed, err).WithDetails(map[string]string{"kind": kind})
	}
	return res, nil
}
