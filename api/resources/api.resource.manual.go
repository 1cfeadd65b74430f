// FilePath: api/resources/api.resource.manual.go
package resources

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sauqing9/api-sitras/internal/cleanup"
	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/hubservice"
	"github.com/sauqing9/api-sitras/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// ManualHandlers encapsulates the manual-submission HTTP handlers
type ManualHandlers struct {
	hubservice *hubservice.HubService
	limits     HistoryLimits
}

// @Summary Save a manual submission
// @Description Stores free text or an uploaded lab report. File content is base64 or a data URL.
// @Tags manual
// @Accept json
// @Produce json
// @Param submission body models.ManualInput true "Manual submission"
// @Success 201 {object} Response{data=models.ManualData}
// @Failure 400 {object} Response
// @Router /data/manual [post]
func (h *ManualHandlers) CreateManual(w http.ResponseWriter, r *http.Request) {
	var input models.ManualInput
	if err := decodeBody(r, &input); err != nil {
		respondWithError(w, r, "Error saving manual data", err)
		return
	}

	md, err := h.hubservice.SaveManual(r.Context(), &input)
	if err != nil {
		respondWithError(w, r, "Error saving manual data", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Manual data saved successfully",
		Data:    md,
	})
}

// @Summary Latest extracted values
// @Description P, N and K of the most recent submission that carries extracted values
// @Tags manual
// @Produce json
// @Success 200 {object} Response{data=models.NutrientSnapshot}
// @Failure 404 {object} Response
// @Router /data/manual [get]
func (h *ManualHandlers) GetLatestExtracted(w http.ResponseWriter, r *http.Request) {
	md, err := h.hubservice.LatestManualExtracted(r.Context())
	if err != nil {
		if errors.IsNotFound(err) {
			respondWithError(w, r, "No manual data found with extracted values", err)
			return
		}
		respondWithError(w, r, "Error fetching manual data", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Success: true, Data: md.Snapshot()})
}

// @Summary Manual submission history
// @Tags manual
// @Produce json
// @Param limit query int false "Maximum number of submissions (default 50)"
// @Success 200 {object} Response{data=[]models.ManualData}
// @Router /data/manual/history [get]
func (h *ManualHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	items, err := h.hubservice.Store.Manual().Recent(r.Context(), historyLimit(r, h.limits))
	if err != nil {
		respondWithError(w, r, "Error fetching manual data history", err)
		return
	}
	if items == nil {
		items = []*models.ManualData{}
	}
	respondWithJSON(w, http.StatusOK, Response{Success: true, Data: items})
}

// @Summary Download an attachment
// @Description Streams the stored file of a file submission
// @Tags manual
// @Produce octet-stream
// @Param id path string true "Manual data ID"
// @Success 200 {file} file
// @Failure 404 {object} Response
// @Router /data/manual/{id}/file [get]
func (h *ManualHandlers) GetAttachment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rc, md, err := h.hubservice.OpenManualAttachment(r.Context(), id)
	if err != nil {
		if errors.IsNotFound(err) {
			respondWithError(w, r, "Attachment not found", err)
			return
		}
		respondWithError(w, r, "Error fetching attachment", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", md.Attachment.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(md.Attachment.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", md.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		nuts.L.Warnf("[API] Failed to stream attachment %s: %v", md.Attachment.Key, err)
	}
}

// @Summary Delete a manual submission
// @Description Deletes the submission and its attachment
// @Tags manual
// @Produce json
// @Param id path string true "Manual data ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /data/manual/{id} [delete]
func (h *ManualHandlers) DeleteManual(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.hubservice.Cleanup.Delete(r.Context(), cleanup.TargetManual, id); err != nil {
		if errors.IsNotFound(err) {
			respondWithError(w, r, "Manual data not found", err)
			return
		}
		respondWithError(w, r, "Error deleting manual data", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{Success: true, Message: "Manual data deleted successfully"})
}

// @Summary Delete all manual submissions
// @Tags manual
// @Produce json
// @Success 200 {object} Response
// @Router /data/manual [delete]
func (h *ManualHandlers) DeleteAllManual(w http.ResponseWriter, r *http.Request) {
	n, err := h.hubservice.Cleanup.DeleteAll(r.Context(), cleanup.TargetManual)
	if err != nil {
		respondWithError(w, r, "Error deleting all manual data", err)
		return
	}
	respondWithJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "All manual data deleted successfully",
		Data:    map[string]int64{"deleted": n},
	})
}
