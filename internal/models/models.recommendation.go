// FilePath: internal/models/models.recommendation.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sauqing9/api-sitras/internal/errors"
)

// DefaultCropType is used when a request leaves jenis_tanaman empty
const DefaultCropType = "Padi"

// FlexFloat accepts a JSON number or a numeric string
type FlexFloat struct {
	Value float64
	Valid bool
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = FlexFloat{}
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = FlexFloat{Value: n, Valid: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected a number, got %s", b)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("%q is not a number", s)
	}
	*f = FlexFloat{Value: n, Valid: true}
	return nil
}

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Reasons is the free-form rationale returned with a recommendation, keyed by topic
type Reasons map[string]string

// UnmarshalJSON accepts an object or a bare string (stored under "info").
// Non-string values are kept as their JSON text.
func (r *Reasons) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*r = nil
	case string:
		*r = Reasons{"info": v}
	case map[string]any:
		out := make(Reasons, len(v))
		for key, val := range v {
			if s, ok := val.(string); ok {
				out[key] = s
				continue
			}
			enc, err := json.Marshal(val)
			if err != nil {
				return err
			}
			out[key] = string(enc)
		}
		*r = out
	default:
		return fmt.Errorf("reasons must be an object or a string")
	}
	return nil
}

// Doses are fertilizer amounts per product
type Doses struct {
	Urea float64 `json:"urea" bson:"urea"`
	SP36 float64 `json:"sp36" bson:"sp36"`
	KCl  float64 `json:"kcl" bson:"kcl"`
}

// ConversionResults carries the nutrient status derived by the recommendation service
type ConversionResults struct {
	StatusP string   `json:"status_p,omitempty" bson:"status_p,omitempty"`
	StatusK string   `json:"status_k,omitempty" bson:"status_k,omitempty"`
	P2O5    *float64 `json:"p2o5,omitempty" bson:"p2o5,omitempty"`
	K2O     *float64 `json:"k2o,omitempty" bson:"k2o,omitempty"`
}

// RecommendationParams is the normalized input a recommendation was computed for
type RecommendationParams struct {
	P            float64        `json:"P" bson:"P"`
	N            float64        `json:"N" bson:"N"`
	K            float64        `json:"K" bson:"K"`
	JenisTanaman string         `json:"jenis_tanaman" bson:"jenis_tanaman"`
	TargetPadi   TargetCategory `json:"target_padi" bson:"target_padi"`
}

// Recommendation is a persisted fertilizer recommendation
type Recommendation struct {
	Record            `bson:",inline"`
	Input             RecommendationParams `json:"input" bson:"input"`
	Recommendation    Doses                `json:"recommendation" bson:"recommendation"`
	Reasons           Reasons              `json:"reasons,omitempty" bson:"reasons,omitempty"`
	Tips              string               `json:"tips,omitempty" bson:"tips,omitempty"`
	ConversionResults *ConversionResults   `json:"conversion_results,omitempty" bson:"conversion_results,omitempty"`
}

// RecommendationInput is the body of a live recommendation request
type RecommendationInput struct {
	P            FlexFloat      `json:"P"`
	N            FlexFloat      `json:"N"`
	K            FlexFloat      `json:"K"`
	JenisTanaman string         `json:"jenis_tanaman"`
	TargetPadi   TargetCategory `json:"target_padi"`
}

// Params checks that P, N and K are present and returns the normalized input
func (in *RecommendationInput) Params() (RecommendationParams, error) {
	if err := requireNutrients(in.P, in.N, in.K); err != nil {
		return RecommendationParams{}, err
	}
	return newParams(in.P.Value, in.N.Value, in.K.Value, in.JenisTanaman, in.TargetPadi), nil
}

// DosesInput is the wire form of Doses; every dose must be present
type DosesInput struct {
	Urea *float64 `json:"urea" validate:"required"`
	SP36 *float64 `json:"sp36" validate:"required"`
	KCl  *float64 `json:"kcl" validate:"required"`
}

// PrecomputedInput is the input section of a precomputed bundle
type PrecomputedInput struct {
	P            FlexFloat       `json:"P"`
	N            FlexFloat       `json:"N"`
	K            FlexFloat       `json:"K"`
	JenisTanaman string          `json:"jenis_tanaman"`
	TargetPadi   *TargetCategory `json:"target_padi"`
}

// PrecomputedRecommendation is a client-supplied recommendation saved without calling the service.
// The doses may be sent as "recommendations" or "recommendation".
type PrecomputedRecommendation struct {
	Input             *PrecomputedInput  `json:"input"`
	Recommendations   *DosesInput        `json:"recommendations"`
	Recommendation    *DosesInput        `json:"recommendation"`
	Reasons           Reasons            `json:"reasons"`
	Tips              string             `json:"tips"`
	ConversionResults *ConversionResults `json:"conversion_results"`
}

// MsgIncompleteInput is the message used when a precomputed bundle lacks its input or target
const MsgIncompleteInput = "Input data is missing or incomplete."

// ToRecommendation validates the bundle and builds the record to persist
func (p *PrecomputedRecommendation) ToRecommendation() (*Recommendation, error) {
	if p.Input == nil || p.Input.TargetPadi == nil {
		return nil, errors.NewValidationError(MsgIncompleteInput, nil)
	}
	if err := requireNutrients(p.Input.P, p.Input.N, p.Input.K); err != nil {
		return nil, err
	}
	doses := p.Recommendations
	if doses == nil {
		doses = p.Recommendation
	}
	if doses == nil {
		return nil, Violations(errors.FieldViolation{
			Field:   "recommendations",
			Rule:    "required",
			Message: "recommendations is required",
		})
	}
	if err := Validate(doses); err != nil {
		return nil, err
	}
	return &Recommendation{
		Input:             newParams(p.Input.P.Value, p.Input.N.Value, p.Input.K.Value, p.Input.JenisTanaman, *p.Input.TargetPadi),
		Recommendation:    Doses{Urea: *doses.Urea, SP36: *doses.SP36, KCl: *doses.KCl},
		Reasons:           p.Reasons,
		Tips:              p.Tips,
		ConversionResults: p.ConversionResults,
	}, nil
}

// RecommendationResult is what a live recommendation request returns
type RecommendationResult struct {
	Recommendation    Doses              `json:"recommendation"`
	Timestamp         time.Time          `json:"timestamp"`
	ConversionResults *ConversionResults `json:"conversion_results,omitempty"`
}

func newParams(p, n, k float64, crop string, target TargetCategory) RecommendationParams {
	crop = strings.TrimSpace(crop)
	if crop == "" {
		crop = DefaultCropType
	}
	return RecommendationParams{
		P:            p,
		N:            n,
		K:            k,
		JenisTanaman: crop,
		TargetPadi:   target.Normalized(),
	}
}

func requireNutrients(p, n, k FlexFloat) error {
	var violations []errors.FieldViolation
	for _, f := range []struct {
		name string
		val  FlexFloat
	}{{"P", p}, {"N", n}, {"K", k}} {
		if !f.val.Valid {
			violations = append(violations, errors.FieldViolation{
				Field:   f.name,
				Rule:    "required",
				Message: f.name + " is required",
			})
		}
	}
	if len(violations) > 0 {
		return Violations(violations...)
	}
	return nil
}
