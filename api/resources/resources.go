// FilePath: api/resources/resources.go
package resources

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/schema"
	"github.com/sauqing9/api-sitras/api/middleware"
	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/hubservice"
	"github.com/sauqing9/api-sitras/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// Response is the envelope of every JSON answer
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// HistoryLimits bounds the ?limit= parameter of history endpoints
type HistoryLimits struct {
	Default int
	Max     int
}

// Resources holds all HTTP resource handlers
type Resources struct {
	Raw             *RawHandlers
	Calibrated      *CalibratedHandlers
	Recommendations *RecommendationHandlers
	Manual          *ManualHandlers
	HealthCheck     func(w http.ResponseWriter, r *http.Request)
	Metrics         func(w http.ResponseWriter, r *http.Request)
}

// NewResources creates a new Resources instance
func NewResources(svc *hubservice.HubService, limits HistoryLimits) *Resources {
	res := &Resources{
		Raw:             newRawHandlers(svc, limits),
		Calibrated:      newCalibratedHandlers(svc, limits),
		Recommendations: &RecommendationHandlers{hubservice: svc, limits: limits},
		Manual:          &ManualHandlers{hubservice: svc, limits: limits},
	}
	res.HealthCheck = healthCheck(svc)
	res.Metrics = func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, Response{Success: true, Data: map[string]int64{}})
	}
	return res
}

// SetHealthCheck sets the health check handler
func (r *Resources) SetHealthCheck(h func(w http.ResponseWriter, r *http.Request)) {
	r.HealthCheck = h
}

// SetMetrics sets the metrics handler
func (r *Resources) SetMetrics(h func(w http.ResponseWriter, r *http.Request)) {
	r.Metrics = h
}

type healthResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
	Data      map[string]string `json:"data"`
}

// @Summary Liveness probe
// @Description Reports that the API is running and whether the store answers
// @Tags health
// @Produce json
// @Success 200 {object} healthResponse
// @Router /health [get]
func healthCheck(svc *hubservice.HubService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := "ok"
		if err := svc.Ping(r.Context()); err != nil {
			nuts.L.Warnf("[API] Health check: store unavailable: %v", err)
			store = "unavailable"
		}
		respondWithJSON(w, http.StatusOK, healthResponse{
			Success:   true,
			Message:   "API is running",
			Timestamp: time.Now().UTC(),
			Version:   nuts.GetVersion(),
			Data:      map[string]string{"store": store},
		})
	}
}

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// historyLimit decodes ?limit=N. Unparseable values fall back to the default.
func historyLimit(r *http.Request, limits HistoryLimits) int {
	var q models.HistoryQuery
	if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
		q = models.HistoryQuery{}
	}
	return q.Resolve(limits.Default, limits.Max)
}

func decodeBody(r *http.Request, dst any) *errors.APIError {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.NewValidationError("invalid request body", err)
	}
	return nil
}

// respondWithError answers with the error envelope. Only validation errors expose
// their cause; every other cause is only logged.
func respondWithError(w http.ResponseWriter, r *http.Request, message string, err error) {
	apiErr := errors.Wrap(err, message).WithRequestID(middleware.GetRequestID(r))
	nuts.L.Errorf("[API] %s %s: %s", r.Method, r.URL.Path, apiErr.Error())

	resp := Response{
		Success:   false,
		Message:   message,
		Error:     apiErr.Message,
		RequestID: apiErr.RequestID,
		Details:   apiErr.Details,
	}
	if apiErr.Code < http.StatusInternalServerError {
		if apiErr.Type == errors.ErrorTypeValidation {
			resp.Error = apiErr.Cause()
		}
		if message == "" {
			resp.Message = apiErr.Message
		}
	} else if message == "" {
		resp.Message = "Internal server error"
	}
	respondWithJSON(w, apiErr.Code, resp)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		nuts.L.Errorf("[API] Failed to encode response: %v", err)
	}
}
