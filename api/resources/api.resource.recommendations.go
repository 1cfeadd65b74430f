// FilePath: api/resources/api.resource.recommendations.go
package resources

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sauqing9/api-sitras/internal/cleanup"
	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/hubservice"
	"github.com/sauqing9/api-sitras/internal/models"
)

// RecommendationHandlers encapsulates the recommendation HTTP handlers
type RecommendationHandlers struct {
	hubservice *hubservice.HubService
	limits     HistoryLimits
}

// @Summary Generate a recommendation
// @Description Calls the recommendation service and stores its answer. Nothing is stored when the service fails.
// @Tags recommendation
// @Accept json
// @Produce json
// @Param input body models.RecommendationInput true "Nutrient levels, crop type and target category"
// @Success 200 {object} Response{data=models.RecommendationResult}
// @Failure 400 {object} Response
// @Router /recommendation [post]
func (h *RecommendationHandlers) CreateRecommendation(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeRecommendationInput(w, r)
	if !ok {
		return
	}

	result, err := h.hubservice.Recommend(r.Context(), params)
	if err != nil {
		respondWithError(w, r, "Error generating ML recommendation", err)
		return
	}

	respondWithJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Recommendation generated successfully from ML model",
		Data:    result,
	})
}

// @Summary Preview a recommendation
// @Description Calls the recommendation service and returns its response as received, without storing it
// @Tags recommendation
// @Accept json
// @Produce json
// @Param input body models.RecommendationInput true "Nutrient levels, crop type and target category"
// @Success 200 {object} object
// @Failure 400 {object} Response
// @Router /recommendation/input [post]
func (h *RecommendationHandlers) PreviewRecommendation(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeRecommendationInput(w, r)
	if !ok {
		return
	}

	envelope, err := h.hubservice.PreviewRecommendation(r.Context(), params)
	if err != nil {
		respondWithError(w, r, "Error generating ML recommendation", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(envelope)
}

// @Summary Save a precomputed recommendation
// @Description Stores a recommendation bundle computed earlier, without calling the service
// @Tags recommendation
// @Accept json
// @Produce json
// @Param bundle body models.PrecomputedRecommendation true "Input, doses, reasons, tips and conversion results"
// @Success 201 {object} Response{data=models.Recommendation}
// @Failure 400 {object} Response
// @Router /recommendation/ml [post]
func (h *RecommendationHandlers) SaveRecommendation(w http.ResponseWriter, r *http.Request) {
	var bundle models.PrecomputedRecommendation
	if err := decodeBody(r, &bundle); err != nil {
		respondWithError(w, r, "Error saving ML recommendation", err)
		return
	}

	rec, err := h.hubservice.SaveRecommendation(r.Context(), &bundle)
	if err != nil {
		if apiErr, ok := errors.As(err); ok && apiErr.Message == models.MsgIncompleteInput {
			respondWithError(w, r, models.MsgIncompleteInput, err)
			return
		}
		respondWithError(w, r, "Error saving ML recommendation", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "ML recommendation saved successfully",
		Data:    rec,
	})
}

// @Summary Recommendation history
// @Tags recommendation
// @Produce json
// @Param limit query int false "Maximum number of recommendations (default 50)"
// @Success 200 {object} Response{data=[]models.Recommendation}
// @Router /recommendation/history [get]
func (h *RecommendationHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.hubservice.Store.Recommendations().Recent(r.Context(), historyLimit(r, h.limits))
	if err != nil {
		respondWithError(w, r, "Error fetching recommendation history", err)
		return
	}
	if recs == nil {
		recs = []*models.Recommendation{}
	}
	respondWithJSON(w, http.StatusOK, Response{Success: true, Data: recs})
}

// @Summary Delete a recommendation
// @Tags recommendation
// @Produce json
// @Param id path string true "Recommendation ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /recommendation/{id} [delete]
func (h *RecommendationHandlers) DeleteRecommendation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.hubservice.Cleanup.Delete(r.Context(), cleanup.TargetRecommendations, id); err != nil {
		if errors.IsNotFound(err) {
			respondWithError(w, r, "Recommendation not found", err)
			return
		}
		respondWithError(w, r, "Error deleting recommendation", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Success: true, Message: "Recommendation deleted successfully"})
}

// @Summary Delete all recommendations
// @Tags recommendation
// @Produce json
// @Success 200 {object} Response
// @Router /recommendation [delete]
func (h *RecommendationHandlers) DeleteAllRecommendations(w http.ResponseWriter, r *http.Request) {
	n, err := h.hubservice.Cleanup.DeleteAll(r.Context(), cleanup.TargetRecommendations)
	if err != nil {
		respondWithError(w, r, "Error deleting all recommendations", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "All recommendations deleted successfully",
		Data:    map[string]int64{"deleted": n},
	})
}

func decodeRecommendationInput(w http.ResponseWriter, r *http.Request) (models.RecommendationParams, bool) {
	var input models.RecommendationInput
	if err := decodeBody(r, &input); err != nil {
		respondWithError(w, r, "Error generating ML recommendation", err)
		return models.RecommendationParams{}, false
	}
	params, err := input.Params()
	if err != nil {
		respondWithError(w, r, "Error generating ML recommendation", err)
		return models.RecommendationParams{}, false
	}
	return params, true
}
