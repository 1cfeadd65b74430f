package api

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sauqing9/api-sitras/api/middleware"
	"github.com/sauqing9/api-sitras/api/resources"
	"github.com/sauqing9/api-sitras/docs"
	"github.com/sauqing9/api-sitras/internal/hubservice"
	"github.com/swaggo/swag"
	nuts "github.com/vaudience/go-nuts"
)

// RouterOptions configures the HTTP surface
type RouterOptions struct {
	AllowedOrigins []string
	History        resources.HistoryLimits
	// AccessLog enables the combined access log on stdout
	AccessLog bool
}

type Router struct {
	router    *mux.Router
	handler   http.Handler
	resources *resources.Resources
}

func NewRouter(svc *hubservice.HubService, opts RouterOptions) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		resources: resources.NewResources(svc, opts.History),
	}

	r.setupRoutes()
	r.handler = r.wrap(opts)
	return r
}

// Resources exposes the handlers so the server can install health and metrics hooks
func (r *Router) Resources() *resources.Resources {
	return r.resources
}

func (r *Router) setupRoutes() {
	r.router.Use(middleware.RequestID)
	api := r.router.PathPrefix("/api").Subrouter()

	// Public routes
	api.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		r.resources.HealthCheck(w, req)
	}).Methods(http.MethodGet)
	api.HandleFunc("/metrics", func(w http.ResponseWriter, req *http.Request) {
		r.resources.Metrics(w, req)
	}).Methods(http.MethodGet)
	api.HandleFunc("/docs/doc.json", serveDoc).Methods(http.MethodGet)

	// Raw readings
	raw := api.PathPrefix("/data/raw").Subrouter()
	raw.HandleFunc("", r.resources.Raw.CreateRaw).Methods(http.MethodPost)
	raw.HandleFunc("", r.resources.Raw.GetLatest).Methods(http.MethodGet)
	raw.HandleFunc("", r.resources.Raw.DeleteAll).Methods(http.MethodDelete)
	raw.HandleFunc("/history", r.resources.Raw.GetHistory).Methods(http.MethodGet)
	raw.HandleFunc("/{id}", r.resources.Raw.Get).Methods(http.MethodGet)
	raw.HandleFunc("/{id}", r.resources.Raw.Delete).Methods(http.MethodDelete)

	// Calibrated readings
	calibrated := api.PathPrefix("/data/calibrated").Subrouter()
	calibrated.HandleFunc("", r.resources.Calibrated.CreateCalibrated).Methods(http.MethodPost)
	calibrated.HandleFunc("", r.resources.Calibrated.GetLatest).Methods(http.MethodGet)
	calibrated.HandleFunc("", r.resources.Calibrated.DeleteAll).Methods(http.MethodDelete)
	calibrated.HandleFunc("/history", r.resources.Calibrated.GetHistory).Methods(http.MethodGet)
	calibrated.HandleFunc("/{id}", r.resources.Calibrated.Get).Methods(http.MethodGet)
	calibrated.HandleFunc("/{id}", r.resources.Calibrated.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/latest/calibrated", r.resources.Calibrated.GetLatestNutrients).Methods(http.MethodGet)

	// Recommendations
	recs := api.PathPrefix("/recommendation").Subrouter()
	recs.HandleFunc("", r.resources.Recommendations.CreateRecommendation).Methods(http.MethodPost)
	recs.HandleFunc("", r.resources.Recommendations.DeleteAllRecommendations).Methods(http.MethodDelete)
	recs.HandleFunc("/input", r.resources.Recommendations.PreviewRecommendation).Methods(http.MethodPost)
	recs.HandleFunc("/ml", r.resources.Recommendations.SaveRecommendation).Methods(http.MethodPost)
	recs.HandleFunc("/history", r.resources.Recommendations.GetHistory).Methods(http.MethodGet)
	recs.HandleFunc("/{id}", r.resources.Recommendations.DeleteRecommendation).Methods(http.MethodDelete)

	// Manual submissions
	manual := api.PathPrefix("/data/manual").Subrouter()
	manual.HandleFunc("", r.resources.Manual.CreateManual).Methods(http.MethodPost)
	manual.HandleFunc("", r.resources.Manual.GetLatestExtracted).Methods(http.MethodGet)
	manual.HandleFunc("", r.resources.Manual.DeleteAllManual).Methods(http.MethodDelete)
	manual.HandleFunc("/history", r.resources.Manual.GetHistory).Methods(http.MethodGet)
	manual.HandleFunc("/{id}/file", r.resources.Manual.GetAttachment).Methods(http.MethodGet)
	manual.HandleFunc("/{id}", r.resources.Manual.DeleteManual).Methods(http.MethodDelete)
}

// wrap installs CORS, panic recovery and the access log around the router
func (r *Router) wrap(opts RouterOptions) http.Handler {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	var h http.Handler = r.router
	h = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", middleware.RequestIDHeader}),
		handlers.ExposedHeaders([]string{middleware.RequestIDHeader}),
	)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(true),
	)(h)
	if opts.AccessLog {
		h = handlers.CombinedLoggingHandler(os.Stdout, h)
	}
	return h
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func serveDoc(w http.ResponseWriter, req *http.Request) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		nuts.L.Errorf("[API] Failed to read API docs: %v", err)
		http.Error(w, "API docs unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(doc))
}

// recoveryLogger routes recovered panics through the process logger
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	nuts.L.Errorf("[API] Recovered from panic: %v", v)
}
