// FilePath: api/resources/api.resource.readings.go
package resources

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sauqing9/api-sitras/internal/cleanup"
	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/hubservice"
	"github.com/sauqing9/api-sitras/internal/models"
	"github.com/sauqing9/api-sitras/internal/repository"
)

// ReadingHandlers serves the read and delete endpoints shared by raw and calibrated readings
type ReadingHandlers[T any] struct {
	hubservice *hubservice.HubService
	limits     HistoryLimits
	collection func() repository.Collection[T]
	target     cleanup.Target
	// label is the lower-case noun used in messages, e.g. "raw data"
	label string
	title string
}

// RawHandlers encapsulates the raw-reading HTTP handlers
type RawHandlers struct {
	*ReadingHandlers[models.RawReading]
}

// CalibratedHandlers encapsulates the calibrated-reading HTTP handlers
type CalibratedHandlers struct {
	*ReadingHandlers[models.CalibratedReading]
}

func newRawHandlers(svc *hubservice.HubService, limits HistoryLimits) *RawHandlers {
	return &RawHandlers{&ReadingHandlers[models.RawReading]{
		hubservice: svc,
		limits:     limits,
		collection: func() repository.Collection[models.RawReading] { return svc.Store.Raw() },
		target:     cleanup.TargetRaw,
		label:      "raw data",
		title:      "Raw data",
	}}
}

func newCalibratedHandlers(svc *hubservice.HubService, limits HistoryLimits) *CalibratedHandlers {
	return &CalibratedHandlers{&ReadingHandlers[models.CalibratedReading]{
		hubservice: svc,
		limits:     limits,
		collection: func() repository.Collection[models.CalibratedReading] { return svc.Store.Calibrated() },
		target:     cleanup.TargetCalibrated,
		label:      "calibrated data",
		title:      "Calibrated data",
	}}
}

type ingestResponse struct {
	Success     bool                     `json:"success"`
	Message     string                   `json:"message"`
	Data        *models.RawReading       `json:"data"`
	Calibration models.CalibrationStatus `json:"calibration"`
}

// @Summary Ingest a raw reading
// @Description Stores a raw sensor reading and attempts calibration. Calibration failures do not fail the request.
// @Tags raw
// @Accept json
// @Produce json
// @Param reading body models.VariablesInput true "Sensor variables, flat or under \"variables\""
// @Success 201 {object} ingestResponse
// @Failure 400 {object} Response
// @Router /data/raw [post]
func (h *RawHandlers) CreateRaw(w http.ResponseWriter, r *http.Request) {
	var input models.ReadingInput
	if err := decodeBody(r, &input); err != nil {
		respondWithError(w, r, "Error saving raw data", err)
		return
	}
	vars, err := input.Variables()
	if err != nil {
		respondWithError(w, r, "Error saving raw data", err)
		return
	}

	result, err := h.hubservice.IngestRaw(r.Context(), vars)
	if err != nil {
		respondWithError(w, r, "Error saving raw data", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, ingestResponse{
		Success:     true,
		Message:     result.Message(),
		Data:        result.Raw,
		Calibration: result.Calibration,
	})
}

// @Summary Save a calibrated reading
// @Description Stores a calibrated reading directly, without calling the calibration service
// @Tags calibrated
// @Accept json
// @Produce json
// @Param reading body models.VariablesInput true "Calibrated variables, flat or under \"variables\""
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Router /data/calibrated [post]
func (h *CalibratedHandlers) CreateCalibrated(w http.ResponseWriter, r *http.Request) {
	var input models.ReadingInput
	if err := decodeBody(r, &input); err != nil {
		respondWithError(w, r, "Error saving calibrated data", err)
		return
	}
	vars, err := input.Variables()
	if err != nil {
		respondWithError(w, r, "Error saving calibrated data", err)
		return
	}

	calibrated, err := h.hubservice.SaveCalibrated(r.Context(), vars)
	if err != nil {
		respondWithError(w, r, "Error saving calibrated data", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Calibrated data saved successfully",
		Data:    calibrated,
	})
}

// @Summary Latest nutrients
// @Description P, N and K of the most recent calibrated reading, for form auto-population
// @Tags calibrated
// @Produce json
// @Success 200 {object} Response{data=models.NutrientSnapshot}
// @Failure 404 {object} Response
// @Router /latest/calibrated [get]
func (h *CalibratedHandlers) GetLatestNutrients(w http.ResponseWriter, r *http.Request) {
	snap, err := h.hubservice.LatestNutrients(r.Context())
	if err != nil {
		if errors.IsNotFound(err) {
			respondWithError(w, r, "No calibrated data found", err)
			return
		}
		respondWithError(w, r, "Error fetching latest calibrated data", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Success: true, Data: snap})
}

// @Summary Latest reading
// @Tags raw calibrated
// @Produce json
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /data/raw [get]
// @Router /data/calibrated [get]
func (h *ReadingHandlers[T]) GetLatest(w http.ResponseWriter, r *http.Request) {
	doc, err := h.collection().Latest(r.Context())
	if err != nil {
		if errors.IsNotFound(err) {
			respondWithError(w, r, "No "+h.label+" found", err)
			return
		}
		respondWithError(w, r, "Error fetching "+h.label, err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Success: true, Data: doc})
}

// @Summary Reading history
// @Description Most recent readings first
// @Tags raw calibrated
// @Produce json
// @Param limit query int false "Maximum number of readings (default 50)"
// @Success 200 {object} Response
// @Router /data/raw/history [get]
// @Router /data/calibrated/history [get]
func (h *ReadingHandlers[T]) GetHistory(w http.ResponseWriter, r *http.Request) {
	docs, err := h.collection().Recent(r.Context(), historyLimit(r, h.limits))
	if err != nil {
		respondWithError(w, r, "Error fetching "+h.label+" history", err)
		return
	}
	if docs == nil {
		docs = []*T{}
	}
	respondWithJSON(w, http.StatusOK, Response{Success: true, Data: docs})
}

// @Summary Get a reading by ID
// @Tags raw calibrated
// @Produce json
// @Param id path string true "Reading ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /data/raw/{id} [get]
// @Router /data/calibrated/{id} [get]
func (h *ReadingHandlers[T]) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	doc, err := h.collection().Get(r.Context(), id)
	if err != nil {
		if errors.IsNotFound(err) {
			respondWithError(w, r, h.title+" not found", err)
			return
		}
		respondWithError(w, r, "Error fetching "+h.label, err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Success: true, Data: doc})
}

// @Summary Delete a reading
// @Tags raw calibrated
// @Produce json
// @Param id path string true "Reading ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /data/raw/{id} [delete]
// @Router /data/calibrated/{id} [delete]
func (h *ReadingHandlers[T]) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.hubservice.Cleanup.Delete(r.Context(), h.target, id); err != nil {
		if errors.IsNotFound(err) {
			respondWithError(w, r, h.title+" not found", err)
			return
		}
		respondWithError(w, r, "Error deleting "+h.label, err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Success: true, Message: h.title + " deleted successfully"})
}

// @Summary Delete all readings
// @Tags raw calibrated
// @Produce json
// @Success 200 {object} Response
// @Router /data/raw [delete]
// @Router /data/calibrated [delete]
func (h *ReadingHandlers[T]) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.hubservice.Cleanup.DeleteAll(r.Context(), h.target)
	if err != nil {
		respondWithError(w, r, "Error deleting all "+h.label, err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{
		Success: true,
		Message: fmt.Sprintf("All %s deleted successfully", h.label),
		Data:    map[string]int64{"deleted": n},
	})
}
