package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/config"
	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/report"
	"dcf_valuation/pkg/core/store"
	"dcf_valuation/pkg/core/validate"
)

// maxBodyBytes caps request bodies; an assumption set is a few hundred bytes.
const maxBodyBytes = 1 << 20

const kindNotFound = "not_found"

// Handler serves the DCF endpoints. It keeps no per-request state.
type Handler struct {
	runtime    *config.Runtime
	runs       *store.RunStore // nil disables persistence
	logger     *zap.Logger
	corsOrigin string
	currency   string
}

// NewHandler wires the handler. runs may be nil.
func NewHandler(rt *config.Runtime, runs *store.RunStore, logger *zap.Logger, corsOrigin, currency string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	return &Handler{
		runtime:    rt,
		runs:       runs,
		logger:     logger.With(zap.String("component", "dcf")),
		corsOrigin: corsOrigin,
		currency:   currency,
	}
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/dcf", h.HandleDCF)
	mux.HandleFunc("/api/dcf/report", h.HandleReport)
	mux.HandleFunc("/api/dcf/runs/{id}", h.HandleRun)
	mux.HandleFunc("/api/healthcheck", h.HandleHealthcheck)
}

func (h *Handler) cors(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", h.corsOrigin)
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Expose-Headers", "X-Run-ID")
}

// HandleDCF handles POST /api/dcf.
func (h *Handler) HandleDCF(w http.ResponseWriter, r *http.Request) {
	h.cors(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ErrorDetail{Kind: "method_not_allowed", Message: "use POST"})
		return
	}

	start := time.Now()
	rep, err := h.evaluate(w, r)
	if err != nil {
		h.fail(w, r, err, start)
		return
	}

	if h.runs != nil {
		run, err := h.runs.Save(r.Context(), rep)
		if err != nil {
			// The valuation itself succeeded; persistence is best effort.
			h.logger.Warn("failed to save run", zap.Error(err))
		} else {
			w.Header().Set("X-Run-ID", run.ID)
		}
	}

	resp := NewDCFResponse(rep)
	h.logger.Info("valuation computed",
		zap.Float64("intrinsic_value", resp.IntrinsicValue),
		zap.Int("grid_rows", len(resp.SensitivityAnalysis.Table)),
		zap.Duration("elapsed", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, resp)
}

// HandleReport handles POST /api/dcf/report and returns an HTML page.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	h.cors(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ErrorDetail{Kind: "method_not_allowed", Message: "use POST"})
		return
	}

	start := time.Now()
	rep, err := h.evaluate(w, r)
	if err != nil {
		h.fail(w, r, err, start)
		return
	}

	page, err := report.HTMLPage(rep, h.currency, r.URL.Query().Get("title"))
	if err != nil {
		h.fail(w, r, err, start)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, page)
}

// HandleRun handles GET /api/dcf/runs/{id}.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	h.cors(w, "GET, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ErrorDetail{Kind: "method_not_allowed", Message: "use GET"})
		return
	}
	if h.runs == nil {
		writeError(w, http.StatusNotFound, ErrorDetail{Kind: kindNotFound, Message: "run persistence is disabled"})
		return
	}

	id := r.PathValue("id")
	run, err := h.runs.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrorDetail{Kind: kindNotFound, Message: "run " + id + " not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, ErrorDetail{Kind: string(validate.KindInternal), Message: "failed to load run"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleHealthcheck handles GET /api/healthcheck.
func (h *Handler) HandleHealthcheck(w http.ResponseWriter, r *http.Request) {
	h.cors(w, "GET, OPTIONS")
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Message: "Backend is running!"})
}

// evaluate parses the body strictly and runs the pipeline.
func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) (*pipeline.Report, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, &validate.ValidationError{Reason: "request body could not be read: " + err.Error()}
	}

	a, err := assumption.Parse(body)
	if err != nil {
		return nil, err
	}
	return pipeline.Run(r.Context(), a, h.runtime.Options())
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, start time.Time) {
	kind := validate.KindOf(err)
	status := statusFor(kind)
	if errors.Is(err, context.Canceled) {
		h.logger.Info("request cancelled", zap.String("path", r.URL.Path))
		return
	}

	detail := ErrorDetail{Kind: string(kind), Message: err.Error(), Field: validate.FieldOf(err)}
	if kind == validate.KindInternal {
		h.logger.Error("valuation failed", zap.String("path", r.URL.Path), zap.Error(err))
		detail.Message = "internal error"
	} else {
		h.logger.Info("valuation rejected",
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.String("field", detail.Field),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	writeError(w, status, detail)
}

func statusFor(kind validate.Kind) int {
	switch kind {
	case validate.KindValidation:
		return http.StatusBadRequest
	case validate.KindDivergentModel, validate.KindNumericOverflow:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail ErrorDetail) {
	writeJSON(w, status, ErrorResponse{Error: detail})
}
