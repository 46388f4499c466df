// Package api provides HTTP handlers for the SlimLine admin endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BTreeMap/SlimLine/internal/models"
)

// DefaultLogLimit caps /logs results when no limit is given.
const DefaultLogLimit = 50

// MaxLogLimit is the hard ceiling for /logs results.
const MaxLogLimit = 500

// rootHandler answers GET / for platform liveness probes.
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("SlimLine is running", nil))
}

// healthHandler provides a health check endpoint for monitoring (GET /health).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	// The store is the only hard dependency worth probing here.
	if _, err := s.st.CountQuizQuestions(); err != nil {
		slog.Warn("Server.healthHandler: store probe failed", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "store unavailable"
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, healthData)
}

// logsHandler returns usage log entries (GET /logs?user=&date=&limit=).
// Either user or date must be provided.
func (s *Server) logsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.logsHandler: processing logs request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.logsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user := r.URL.Query().Get("user")
	date := r.URL.Query().Get("date")
	limit := DefaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			slog.Warn("Server.logsHandler: invalid limit", "limit", raw)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit parameter"))
			return
		}
		limit = n
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}

	switch {
	case user != "":
		records, err := s.st.GetUsageByUser(user, limit)
		if err != nil {
			slog.Error("Server.logsHandler: failed to fetch usage by user", "error", err, "user", user)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch usage log"))
			return
		}
		slog.Debug("Server.logsHandler: usage fetched", "user", user, "count", len(records))
		writeJSONResponse(w, http.StatusOK, models.Success(records))
	case date != "":
		start, end, err := s.dayWindow(date)
		if err != nil {
			slog.Warn("Server.logsHandler: invalid date", "date", date, "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid date parameter, expected YYYY-MM-DD"))
			return
		}
		records, err := s.st.GetUsageBetween(start, end)
		if err != nil {
			slog.Error("Server.logsHandler: failed to fetch usage by date", "error", err, "date", date)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch usage log"))
			return
		}
		if len(records) > limit {
			records = records[len(records)-limit:]
		}
		slog.Debug("Server.logsHandler: usage fetched", "date", date, "count", len(records))
		writeJSONResponse(w, http.StatusOK, models.Success(records))
	default:
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required parameter: user or date"))
	}
}

// summaryHandler returns the daily usage report (GET /summary?date=).
// An absent date means today.
func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.summaryHandler: processing summary request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.summaryHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	day := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, s.summary.Location())
		if err != nil {
			slog.Warn("Server.summaryHandler: invalid date", "date", raw, "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid date parameter, expected YYYY-MM-DD"))
			return
		}
		day = parsed
	}

	report, err := s.summary.BuildReport(r.Context(), day)
	if err != nil {
		slog.Error("Server.summaryHandler: failed to build report", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to build summary report"))
		return
	}
	slog.Debug("Server.summaryHandler: report built", "date", report.Date, "total", report.TotalMessages)
	writeJSONResponse(w, http.StatusOK, models.Success(report))
}

// statsHandler returns aggregate usage statistics (GET /stats).
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.statsHandler: processing stats request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.statsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	records, err := s.st.GetUsageBetween(0, time.Now().Unix()+1)
	if err != nil {
		slog.Error("Server.statsHandler: failed to fetch usage", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch usage log"))
		return
	}

	perUser := make(map[string]int)
	perMode := make(map[models.ChatMode]int)
	var inbound int
	for _, rec := range records {
		if rec.Direction != models.DirectionIn {
			continue
		}
		inbound++
		perUser[rec.UserID]++
		perMode[rec.Mode]++
	}
	stats := map[string]interface{}{
		"total_messages":    inbound,
		"unique_users":      len(perUser),
		"messages_per_mode": perMode,
	}
	slog.Debug("Server.statsHandler: stats computed", "total_messages", inbound, "unique_users", len(perUser))
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// sendHandler pushes an operator-initiated message to a user (POST /send).
func (s *Server) sendHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.sendHandler: processing send request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.sendHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sendHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	canonicalTo, err := s.msgService.ValidateAndCanonicalizeRecipient(req.To)
	if err != nil {
		slog.Warn("Server.sendHandler: recipient validation failed", "error", err, "to", req.To)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	req.To = canonicalTo

	if err := req.Validate(); err != nil {
		slog.Warn("Server.sendHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultEventTimeout)
	defer cancel()
	if err := s.msgService.SendMessage(ctx, req.To, req.Body); err != nil {
		slog.Error("Server.sendHandler: failed to send message", "error", err, "to", req.To)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to send message"))
		return
	}

	s.recordUsage(req.To, models.DirectionOut, models.ModeHelp, req.Body)
	slog.Info("Server.sendHandler: message sent successfully", "to", req.To)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message sent successfully", nil))
}

// dayWindow converts a YYYY-MM-DD string to the [start, end) Unix range of
// that calendar day in the summary timezone.
func (s *Server) dayWindow(date string) (int64, int64, error) {
	loc := s.summary.Location()
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return 0, 0, err
	}
	start := day
	end := day.Add(24 * time.Hour)
	return start.Unix(), end.Unix(), nil
}
