// FilePath: internal/mlproxy/mlproxy.recommendation.go
package mlproxy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sauqing9/api-sitras/internal/models"
)

// RecommendationRequest is the body sent to the recommendation service.
// TargetPadi carries the symbolic code ("<6", "6-8", ">8", "N/A").
type RecommendationRequest struct {
	P            float64 `json:"P"`
	N            float64 `json:"N"`
	K            float64 `json:"K"`
	JenisTanaman string  `json:"jenis_tanaman"`
	TargetPadi   string  `json:"target_padi"`
}

// RequestFor builds the service request for normalized input
func RequestFor(params models.RecommendationParams) RecommendationRequest {
	return RecommendationRequest{
		P:            params.P,
		N:            params.N,
		K:            params.K,
		JenisTanaman: params.JenisTanaman,
		TargetPadi:   params.TargetPadi.Code(),
	}
}

// RecommendationResult is a validated answer of the recommendation service
type RecommendationResult struct {
	Doses             models.Doses
	Reasons           models.Reasons
	Tips              string
	ConversionResults *models.ConversionResults
	// Envelope is the response body exactly as received
	Envelope json.RawMessage
}

type recommendationEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Data    *struct {
		Recommendations   *models.DosesInput        `json:"recommendations"`
		Reasons           models.Reasons            `json:"reasons"`
		Tips              string                    `json:"tips"`
		ConversionResults *models.ConversionResults `json:"conversion_results"`
	} `json:"data"`
}

// RecommendationClient calls the external recommendation model
type RecommendationClient struct {
	proxy *proxy
}

func NewRecommendationClient(url string, timeout time.Duration) *RecommendationClient {
	return &RecommendationClient{proxy: newProxy("recommendation", url, timeout)}
}

// Recommend requires success:true and a data payload carrying all three doses
func (c *RecommendationClient) Recommend(ctx context.Context, req RecommendationRequest) (*RecommendationResult, error) {
	body, err := c.proxy.post(ctx, req)
	if err != nil {
		return nil, err
	}

	var env recommendationEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, c.proxy.fail(KindMalformed, 0, err)
	}
	if !env.Success {
		reason := env.Error
		if reason == "" {
			reason = env.Message
		}
		if reason == "" {
			reason = "success flag not set"
		}
		return nil, c.proxy.fail(KindUnsuccessful, 0, errors.New(reason))
	}
	if env.Data == nil {
		return nil, c.proxy.fail(KindMalformed, 0, errNoData)
	}
	doses := env.Data.Recommendations
	if doses == nil || doses.Urea == nil || doses.SP36 == nil || doses.KCl == nil {
		return nil, c.proxy.fail(KindMalformed, 0, errors.New("recommendations are missing or incomplete"))
	}

	return &RecommendationResult{
		Doses:             models.Doses{Urea: *doses.Urea, SP36: *doses.SP36, KCl: *doses.KCl},
		Reasons:           env.Data.Reasons,
		Tips:              env.Data.Tips,
		ConversionResults: env.Data.ConversionResults,
		Envelope:          json.RawMessage(body),
	}, nil
}
