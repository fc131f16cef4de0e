package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/domain"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/ingest"
	"github.com/Ayushkiller/BlockCreditScore-sub007/internal/scoring"
)

// APIHandlers exposes HTTP handlers for the scoring REST API.
type APIHandlers struct {
	logger *slog.Logger
	engine *scoring.Engine
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, engine *scoring.Engine) *APIHandlers {
	return &APIHandlers{
		logger: logger,
		engine: engine,
	}
}

func (h *APIHandlers) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload ingest.EventMessage
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := payload.ToDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.engine.ProcessEvent(r.Context(), event, payload.Priority)
	switch {
	case err == nil:
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, scoring.ErrEngineClosed):
		writeError(w, http.StatusServiceUnavailable, "scoring engine is shutting down")
		return
	default:
		h.logger.Error("failed to process event", "error", err, "txHash", event.TxHash)
		writeError(w, http.StatusInternalServerError, "failed to process event")
		return
	}

	respondJSON(w, http.StatusAccepted, toEventResponse(result))
}

// handleProfiles dispatches /profiles/{address}[/history|/confidence|/trend].
func (h *APIHandlers) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/profiles/"), "/")
	if rest == "" {
		writeError(w, http.StatusBadRequest, "wallet address is required")
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	address := parts[0]
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch sub {
	case "":
		h.getProfile(w, address)
	case "history":
		h.getHistory(w, r, address)
	case "confidence":
		h.getConfidence(w, r, address)
	case "trend":
		h.getTrend(w, r, address)
	default:
		writeError(w, http.StatusNotFound, "unknown profile resource")
	}
}

func (h *APIHandlers) getProfile(w http.ResponseWriter, address string) {
	profile, ok := h.engine.Profile(address)
	if !ok {
		writeError(w, http.StatusNotFound, "no profile for wallet")
		return
	}

	response := profileResponse{
		Address:     profile.Address,
		LastUpdated: formatTime(profile.LastUpdated),
		Dimensions:  make(map[string]dimensionPayload, len(profile.Dimensions)),
	}
	for name, dim := range profile.Dimensions {
		response.Dimensions[string(name)] = dimensionPayload{
			Score:          dim.Score,
			Confidence:     dim.Confidence,
			DataPoints:     dim.DataPoints,
			Trend:          string(dim.Trend),
			LastCalculated: formatTime(dim.LastCalculated),
		}
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *APIHandlers) getHistory(w http.ResponseWriter, r *http.Request, address string) {
	query := r.URL.Query()

	var dim domain.Dimension
	if raw := query.Get("dimension"); raw != "" {
		parsed, err := domain.ParseDimension(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		dim = parsed
	}

	from, err := parseTimeParam(query.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	to, err := parseTimeParam(query.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}

	if _, ok := h.engine.Profile(address); !ok {
		writeError(w, http.StatusNotFound, "no profile for wallet")
		return
	}

	entries := h.engine.History(address, dim, from, to)
	response := historyResponse{
		Address: address,
		Entries: make([]historyEntryPayload, 0, len(entries)),
	}
	for _, entry := range entries {
		response.Entries = append(response.Entries, historyEntryPayload{
			Timestamp:  formatTime(entry.Timestamp),
			Dimension:  string(entry.Dimension),
			Score:      entry.Score,
			Confidence: entry.Confidence,
			Trigger:    entry.Trigger,
		})
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *APIHandlers) getConfidence(w http.ResponseWriter, r *http.Request, address string) {
	dimensions := domain.AllDimensions()
	if raw := r.URL.Query().Get("dimension"); raw != "" {
		parsed, err := domain.ParseDimension(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		dimensions = []domain.Dimension{parsed}
	}

	response := confidenceResponse{
		Address:    address,
		Dimensions: make(map[string]confidencePayload, len(dimensions)),
	}
	for _, dim := range dimensions {
		assessment, err := h.engine.Confidence(address, dim)
		if err != nil {
			if errors.Is(err, scoring.ErrUnknownAddress) {
				writeError(w, http.StatusNotFound, "no profile for wallet")
				return
			}
			h.logger.Error("failed to assess confidence", "error", err, "address", address)
			writeError(w, http.StatusInternalServerError, "failed to assess confidence")
			return
		}
		response.Dimensions[string(dim)] = confidencePayload{
			Confidence:  assessment.Confidence,
			Sufficiency: string(assessment.Sufficiency),
			Interval: intervalPayload{
				Lower: assessment.Interval.Lower,
				Upper: assessment.Interval.Upper,
			},
		}
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *APIHandlers) getTrend(w http.ResponseWriter, r *http.Request, address string) {
	raw := r.URL.Query().Get("dimension")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "dimension query parameter is required")
		return
	}
	dim, err := domain.ParseDimension(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	analysis, err := h.engine.TrendFor(address, dim)
	if err != nil {
		if errors.Is(err, scoring.ErrUnknownAddress) {
			writeError(w, http.StatusNotFound, "no profile for wallet")
			return
		}
		h.logger.Error("failed to analyze trend", "error", err, "address", address)
		writeError(w, http.StatusInternalServerError, "failed to analyze trend")
		return
	}

	respondJSON(w, http.StatusOK, trendResponse{
		Address:        address,
		Dimension:      string(dim),
		Trend:          string(analysis.Trend),
		Strength:       analysis.Strength,
		Volatility:     analysis.Volatility,
		Momentum:       analysis.Momentum,
		ProjectedScore: analysis.ProjectedScore,
		Duration:       analysis.Duration.String(),
	})
}

func (h *APIHandlers) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	since, err := parseTimeParam(r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid since timestamp")
		return
	}

	reports := h.engine.Anomalies(since)
	payload := make([]anomalyPayload, 0, len(reports))
	for _, report := range reports {
		payload = append(payload, toAnomalyPayload(report))
	}
	respondJSON(w, http.StatusOK, anomaliesResponse{Anomalies: payload})
}

func (h *APIHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	stats := h.engine.Stats()
	respondJSON(w, http.StatusOK, statusResponse{
		EventsProcessed:   stats.EventsProcessed,
		EventsRejected:    stats.EventsRejected,
		UpdatesApplied:    stats.UpdatesApplied,
		UpdatesDiscarded:  stats.UpdatesDiscarded,
		AnomaliesDetected: stats.AnomaliesDetected,
		PersistFailures:   stats.PersistFailures,
		Wallets:           stats.Wallets,
		Scheduler: schedulerPayload{
			Scheduled:     stats.Scheduler.Scheduled,
			Published:     stats.Scheduler.Published,
			Immediate:     stats.Scheduler.Immediate,
			Retried:       stats.Scheduler.Retried,
			Abandoned:     stats.Scheduler.Abandoned,
			SLAViolations: stats.Scheduler.SLAViolations,
			QueueDepth:    stats.Scheduler.QueueDepth,
		},
	})
}

type profileResponse struct {
	Address     string                      `json:"address"`
	LastUpdated string                      `json:"lastUpdated"`
	Dimensions  map[string]dimensionPayload `json:"dimensions"`
}

type dimensionPayload struct {
	Score          float64 `json:"score"`
	Confidence     float64 `json:"confidence"`
	DataPoints     int     `json:"dataPoints"`
	Trend          string  `json:"trend"`
	LastCalculated string  `json:"lastCalculated,omitempty"`
}

type historyResponse struct {
	Address string                `json:"address"`
	Entries []historyEntryPayload `json:"entries"`
}

type historyEntryPayload struct {
	Timestamp  string  `json:"timestamp"`
	Dimension  string  `json:"dimension"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Trigger    string  `json:"trigger,omitempty"`
}

type confidenceResponse struct {
	Address    string                       `json:"address"`
	Dimensions map[string]confidencePayload `json:"dimensions"`
}

type confidencePayload struct {
	Confidence  float64         `json:"confidence"`
	Sufficiency string          `json:"sufficiency"`
	Interval    intervalPayload `json:"interval"`
}

type intervalPayload struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

type trendResponse struct {
	Address        string  `json:"address"`
	Dimension      string  `json:"dimension"`
	Trend          string  `json:"trend"`
	Strength       float64 `json:"strength"`
	Volatility     float64 `json:"volatility"`
	Momentum       float64 `json:"momentum"`
	ProjectedScore float64 `json:"projectedScore"`
	Duration       string  `json:"duration"`
}

type anomaliesResponse struct {
	Anomalies []anomalyPayload `json:"anomalies"`
}

type anomalyPayload struct {
	Type        string   `json:"type"`
	Severity    string   `json:"severity"`
	Address     string   `json:"address"`
	Description string   `json:"description"`
	TxHashes    []string `json:"txHashes,omitempty"`
	DetectedAt  string   `json:"detectedAt"`
}

type eventResponse struct {
	Address       string           `json:"address"`
	Updates       []updatePayload  `json:"updates"`
	Anomalies     []anomalyPayload `json:"anomalies,omitempty"`
	MinConfidence float64          `json:"minConfidence,omitempty"`
	ElapsedMs     int64            `json:"elapsedMs"`
}

type updatePayload struct {
	Dimension  string  `json:"dimension"`
	OldScore   float64 `json:"oldScore"`
	NewScore   float64 `json:"newScore"`
	Delta      float64 `json:"delta"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

type statusResponse struct {
	EventsProcessed   int64            `json:"eventsProcessed"`
	EventsRejected    int64            `json:"eventsRejected"`
	UpdatesApplied    int64            `json:"updatesApplied"`
	UpdatesDiscarded  int64            `json:"updatesDiscarded"`
	AnomaliesDetected int64            `json:"anomaliesDetected"`
	PersistFailures   int64            `json:"persistFailures"`
	Wallets           int              `json:"wallets"`
	Scheduler         schedulerPayload `json:"scheduler"`
}

type schedulerPayload struct {
	Scheduled     int64 `json:"scheduled"`
	Published     int64 `json:"published"`
	Immediate     int64 `json:"immediate"`
	Retried       int64 `json:"retried"`
	Abandoned     int64 `json:"abandoned"`
	SLAViolations int64 `json:"slaViolations"`
	QueueDepth    int   `json:"queueDepth"`
}

func toEventResponse(result domain.ScoreUpdateResult) eventResponse {
	response := eventResponse{
		Address:       result.Address,
		Updates:       make([]updatePayload, 0, len(result.Updated)),
		MinConfidence: result.MinConfidence,
		ElapsedMs:     result.Elapsed.Milliseconds(),
	}
	for _, update := range result.Updated {
		response.Updates = append(response.Updates, updatePayload{
			Dimension:  string(update.Dimension),
			OldScore:   update.OldScore,
			NewScore:   update.NewScore,
			Delta:      update.Delta(),
			Confidence: update.Confidence,
			Reason:     update.Reason,
		})
	}
	for _, report := range result.Anomalies {
		response.Anomalies = append(response.Anomalies, toAnomalyPayload(report))
	}
	return response
}

func toAnomalyPayload(report domain.AnomalyReport) anomalyPayload {
	return anomalyPayload{
		Type:        string(report.Type),
		Severity:    string(report.Severity),
		Address:     report.Address,
		Description: report.Description,
		TxHashes:    report.TxHashes,
		DetectedAt:  formatTime(report.DetectedAt),
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
