package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/t3-nico/boxlog-app-sub014/internal/domain"
	"github.com/t3-nico/boxlog-app-sub014/internal/http/middleware"
	"github.com/t3-nico/boxlog-app-sub014/internal/service/recovery"
	"github.com/t3-nico/boxlog-app-sub014/pkg/logger"
)

// RecoveryAdmin is the orchestrator surface exposed to operators
type RecoveryAdmin interface {
	GetStats() recovery.Stats
	ResetStats()
	ResetBreaker(code domain.ErrorCode) bool
}

// RecoveryHandler serves the recovery admin API
type RecoveryHandler struct {
	admin   RecoveryAdmin
	reports domain.ErrorReportRepository
	auth    *middleware.AdminAuth
	logger  logger.Logger
}

// NewRecoveryHandler creates the handler. reports may be nil when error
// reports are not stored.
func NewRecoveryHandler(admin RecoveryAdmin, reports domain.ErrorReportRepository, auth *middleware.AdminAuth, logger logger.Logger) *RecoveryHandler {
	return &RecoveryHandler{
		admin:   admin,
		reports: reports,
		auth:    auth,
		logger:  logger,
	}
}

// RegisterRoutes registers the recovery admin routes
func (h *RecoveryHandler) RegisterRoutes(mux *http.ServeMux) {
	requireAdmin := h.auth.RequireAdmin

	mux.Handle("/api/recovery.stats", requireAdmin(http.HandlerFunc(h.GetStats)))
	mux.Handle("/api/recovery.resetStats", requireAdmin(http.HandlerFunc(h.ResetStats)))
	mux.Handle("/api/recovery.resetBreaker", requireAdmin(http.HandlerFunc(h.ResetBreaker)))
	mux.Handle("/api/recovery.reports", requireAdmin(http.HandlerFunc(h.ListReports)))
	mux.Handle("/api/recovery.codes", requireAdmin(http.HandlerFunc(h.ListCodes)))
}

// GetStats returns error frequencies and breaker states
func (h *RecoveryHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats": h.admin.GetStats(),
	})
}

// ResetStats clears the error counters; breakers are left as they are
func (h *RecoveryHandler) ResetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.admin.ResetStats()
	h.logger.Info("Recovery statistics reset")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// ResetBreaker closes the breaker of the code given in the query string
func (h *RecoveryHandler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Query().Get("code")
	if raw == "" {
		WriteJSONError(w, "code is required", http.StatusBadRequest)
		return
	}
	code, err := domain.ParseErrorCode(raw)
	if err != nil {
		WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !h.admin.ResetBreaker(code) {
		WriteJSONError(w, "No circuit breaker for this code", http.StatusNotFound)
		return
	}

	h.logger.WithField("error_code", int(code)).Info("Circuit breaker reset by operator")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"code":    code,
	})
}

// ListReports returns the most recent stored error reports
func (h *RecoveryHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.reports == nil {
		WriteJSONError(w, "Error reports are not enabled", http.StatusServiceUnavailable)
		return
	}

	req, err := parseListReportsRequest(r)
	if err != nil {
		WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	reports, err := h.reports.ListRecent(r.Context(), req)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to list error reports")
		WriteJSONError(w, "Failed to list error reports", http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []*domain.ErrorReport{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
	})
}

func parseListReportsRequest(r *http.Request) (domain.ListErrorReportsRequest, error) {
	q := r.URL.Query()
	req := domain.ListErrorReportsRequest{
		Category: domain.ErrorCategory(q.Get("category")),
		Severity: domain.Severity(q.Get("severity")),
	}

	if req.Category != "" && !req.Category.IsValid() {
		return req, domain.NewValidationError("invalid category: " + string(req.Category))
	}
	if req.Severity != "" && req.Severity.Rank() == 0 {
		return req, domain.NewValidationError("invalid severity: " + string(req.Severity))
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return req, errors.New("limit must be a positive integer")
		}
		req.Limit = limit
	}
	return req, nil
}

type categoryDescription struct {
	Category       domain.ErrorCategory    `json:"category"`
	MinCode        domain.ErrorCode        `json:"min_code"`
	MaxCode        domain.ErrorCode        `json:"max_code"`
	Severity       domain.Severity         `json:"severity"`
	Retryable      bool                    `json:"retryable"`
	DefaultMessage string                  `json:"default_message"`
	Strategy       domain.RecoveryStrategy `json:"strategy"`
}

// ListCodes describes every category with its code range and policy
func (h *RecoveryHandler) ListCodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	categories := domain.Categories()
	out := make([]categoryDescription, 0, len(categories))
	for _, c := range categories {
		strategy, err := domain.PolicyFor(c)
		if err != nil {
			h.logger.WithField("error", err.Error()).Error("Category without recovery strategy")
			WriteJSONError(w, "Recovery table is inconsistent", http.StatusInternalServerError)
			return
		}
		min, max, _ := domain.CategoryRange(c)
		out = append(out, categoryDescription{
			Category:       c,
			MinCode:        min,
			MaxCode:        max,
			Severity:       domain.SeverityOf(c),
			Retryable:      domain.IsRetryableByDefault(c),
			DefaultMessage: domain.DefaultMessage(c),
			Strategy:       strategy,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": out,
	})
}
