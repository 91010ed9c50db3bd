package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"crop-weather-platform/internal/repository"
	"crop-weather-platform/internal/services"
	"crop-weather-platform/pkg/logging"
	"crop-weather-platform/pkg/metrics"
)

// Per-endpoint page size ceilings. Raw daily observations page far
// larger than the aggregate endpoints.
const (
	maxObservationsLimit = 10000
	maxStatsLimit        = 1000
	maxYieldLimit        = 1000
)

// WeatherHandler handles the weather API endpoints
type WeatherHandler struct {
	weatherService   *services.WeatherService
	statsService     *services.StatisticsService
	ingestionService *services.IngestionService
	weatherDataDir   string
	yieldDataFile    string
	logger           *logging.StructuredLogger
	metrics          *metrics.Collector
}

// NewWeatherHandler creates a new weather handler
func NewWeatherHandler(
	weatherService *services.WeatherService,
	statsService *services.StatisticsService,
	ingestionService *services.IngestionService,
	weatherDataDir string,
	yieldDataFile string,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *WeatherHandler {
	return &WeatherHandler{
		weatherService:   weatherService,
		statsService:     statsService,
		ingestionService: ingestionService,
		weatherDataDir:   weatherDataDir,
		yieldDataFile:    yieldDataFile,
		logger:           logger,
		metrics:          metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data  interface{} `json:"data"`
	Count int         `json:"count"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// IngestResponse reports whether a triggered pipeline run succeeded
type IngestResponse struct {
	Success bool `json:"success"`
}

// parsePagination validates page and limit query parameters; page must
// be a positive integer and limit must be within [1, maxLimit].
func (h *WeatherHandler) parsePagination(r *http.Request, defaultLimit, maxLimit int) (page, limit int, ok bool) {
	page = 1
	limit = defaultLimit

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p < 1 {
			return 0, 0, false
		}
		page = p
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 || l > maxLimit {
			return 0, 0, false
		}
		limit = l
	}

	return page, limit, true
}

// GetObservations handles GET /api/weather
func (h *WeatherHandler) GetObservations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/weather").Observe(duration.Seconds())
	}()

	page, limit, ok := h.parsePagination(r, repository.DefaultObservationsPageSize, maxObservationsLimit)
	if !ok {
		h.sendError(w, r, "invalid pagination: page must be >= 1 and limit within [1, 10000]", http.StatusBadRequest)
		return
	}

	filter := repository.ObservationFilter{
		Page:     page,
		PageSize: limit,
	}

	if stationID := r.URL.Query().Get("station_id"); stationID != "" {
		filter.StationID = &stationID
	}

	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			h.sendError(w, r, "invalid date format, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		filter.Date = &date
	}

	observations := h.weatherService.GetObservations(ctx, filter)

	response := PaginatedResponse{
		Data:  observations,
		Count: len(observations),
		Page:  page,
		Limit: limit,
	}

	h.metrics.RecordAPIRequest("/api/weather", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetStatistics handles GET /api/weather/stats
func (h *WeatherHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/weather/stats").Observe(duration.Seconds())
	}()

	page, limit, ok := h.parsePagination(r, repository.DefaultStatsPageSize, maxStatsLimit)
	if !ok {
		h.sendError(w, r, "invalid pagination: page must be >= 1 and limit within [1, 1000]", http.StatusBadRequest)
		return
	}

	filter := repository.StatsFilter{
		Page:     page,
		PageSize: limit,
	}

	if stationID := r.URL.Query().Get("station_id"); stationID != "" {
		filter.StationID = &stationID
	}

	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			h.sendError(w, r, "invalid year, expected an integer", http.StatusBadRequest)
			return
		}
		filter.Year = &year
	}

	statistics := h.statsService.GetAnnualStats(ctx, filter)

	response := PaginatedResponse{
		Data:  statistics,
		Count: len(statistics),
		Page:  page,
		Limit: limit,
	}

	h.metrics.RecordAPIRequest("/api/weather/stats", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetYield handles GET /api/yield
func (h *WeatherHandler) GetYield(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/yield").Observe(duration.Seconds())
	}()

	page, limit, ok := h.parsePagination(r, repository.DefaultYieldPageSize, maxYieldLimit)
	if !ok {
		h.sendError(w, r, "invalid pagination: page must be >= 1 and limit within [1, 1000]", http.StatusBadRequest)
		return
	}

	filter := repository.YieldFilter{
		Page:     page,
		PageSize: limit,
	}

	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			h.sendError(w, r, "invalid year, expected an integer", http.StatusBadRequest)
			return
		}
		filter.Year = &year
	}

	yields := h.weatherService.GetYield(ctx, filter)

	response := PaginatedResponse{
		Data:  yields,
		Count: len(yields),
		Page:  page,
		Limit: limit,
	}

	h.metrics.RecordAPIRequest("/api/yield", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// IngestWeather handles POST /api/ingest/weather
func (h *WeatherHandler) IngestWeather(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, err := h.ingestionService.IngestWeatherDirectory(ctx, h.weatherDataDir)
	if err != nil {
		h.logger.Error(ctx, "[API_INGEST_WEATHER_ERROR] Weather ingestion failed", logging.Fields{
			"data_dir": h.weatherDataDir,
		}, err)
		h.metrics.RecordAPIError("ingestion_error", "/api/ingest/weather")
		h.metrics.RecordAPIRequest("/api/ingest/weather", "POST", "200")
		h.sendJSON(w, IngestResponse{Success: false}, http.StatusOK)
		return
	}

	h.metrics.RecordAPIRequest("/api/ingest/weather", "POST", "200")
	h.sendJSON(w, IngestResponse{Success: true}, http.StatusOK)
}

// IngestYield handles POST /api/ingest/yield
func (h *WeatherHandler) IngestYield(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, err := h.ingestionService.IngestYieldFile(ctx, h.yieldDataFile)
	if err != nil {
		h.logger.Error(ctx, "[API_INGEST_YIELD_ERROR] Yield ingestion failed", logging.Fields{
			"yield_file": h.yieldDataFile,
		}, err)
		h.metrics.RecordAPIError("ingestion_error", "/api/ingest/yield")
		h.metrics.RecordAPIRequest("/api/ingest/yield", "POST", "200")
		h.sendJSON(w, IngestResponse{Success: false}, http.StatusOK)
		return
	}

	h.metrics.RecordAPIRequest("/api/ingest/yield", "POST", "200")
	h.sendJSON(w, IngestResponse{Success: true}, http.StatusOK)
}

// RecomputeStats handles POST /api/stats/recompute
func (h *WeatherHandler) RecomputeStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.statsService.RecomputeAnnualStats(ctx); err != nil {
		h.metrics.RecordAPIError("stats_error", "/api/stats/recompute")
		h.metrics.RecordAPIRequest("/api/stats/recompute", "POST", "200")
		h.sendJSON(w, IngestResponse{Success: false}, http.StatusOK)
		return
	}

	h.metrics.RecordAPIRequest("/api/stats/recompute", "POST", "200")
	h.sendJSON(w, IngestResponse{Success: true}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *WeatherHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.weatherService.HealthCheck(ctx); err != nil {
		h.logger.Error(ctx, "[HEALTH_CHECK_ERROR] Database unreachable", logging.Fields{}, err)
		h.sendJSON(w, map[string]string{
			"status":    "unhealthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}, http.StatusServiceUnavailable)
		return
	}

	h.sendJSON(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// sendJSON sends a JSON response
func (h *WeatherHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *WeatherHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all weather API routes
func (h *WeatherHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/weather", h.GetObservations).Methods("GET")
	router.HandleFunc("/api/weather/stats", h.GetStatistics).Methods("GET")
	router.HandleFunc("/api/yield", h.GetYield).Methods("GET")
	router.HandleFunc("/api/ingest/weather", h.IngestWeather).Methods("POST")
	router.HandleFunc("/api/ingest/yield", h.IngestYield).Methods("POST")
	router.HandleFunc("/api/stats/recompute", h.RecomputeStats).Methods("POST")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
