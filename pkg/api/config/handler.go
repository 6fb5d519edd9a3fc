package config

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apivaluation "dcf_valuation/pkg/api/valuation"
	coreconfig "dcf_valuation/pkg/core/config"
	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/validate"
)

const kindMethodNotAllowed = "method_not_allowed"

type Response struct {
	Engine pipeline.Options `json:"engine"`
}

// Handler exposes the live engine options.
type Handler struct {
	Runtime *coreconfig.Runtime
	logger  *zap.Logger
}

// NewHandler creates a new config handler
func NewHandler(rt *coreconfig.Runtime, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Runtime: rt,
		logger:  logger.With(zap.String("component", "config")),
	}
}

// Register mounts GET /api/config and POST /api/config/grid.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/config", h.HandleConfig)
	mux.HandleFunc("/api/config/grid", h.HandleSetGrid)
}

func cors(w http.ResponseWriter, methods string) {
	// Add CORS headers for local dev
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	cors(w, "GET, OPTIONS")
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		writeJSON(w, http.StatusOK, Response{Engine: h.Runtime.Options()})
	default:
		writeError(w, http.StatusMethodNotAllowed, apivaluation.ErrorDetail{Kind: kindMethodNotAllowed, Message: "use GET"})
	}
}

// HandleSetGrid updates the sensitivity grid used by subsequent requests.
// Keys missing from the body keep their current values. Requests already in
// flight keep the grid they started with.
func (h *Handler) HandleSetGrid(w http.ResponseWriter, r *http.Request) {
	cors(w, "POST, OPTIONS")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, apivaluation.ErrorDetail{Kind: kindMethodNotAllowed, Message: "use POST"})
		return
	}

	grid := h.Runtime.Options().Grid
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&grid); err != nil {
		writeError(w, http.StatusBadRequest, apivaluation.ErrorDetail{
			Kind:    string(validate.KindValidation),
			Message: "invalid grid: " + err.Error(),
		})
		return
	}

	if err := h.Runtime.SetGrid(grid); err != nil {
		writeError(w, http.StatusBadRequest, apivaluation.ErrorDetail{
			Kind:    string(validate.KindOf(err)),
			Message: err.Error(),
			Field:   validate.FieldOf(err),
		})
		return
	}

	h.logger.Info("sensitivity grid updated",
		zap.Int("wacc_points", grid.WACCPoints),
		zap.Int("growth_points", grid.GrowthPoints),
		zap.Float64("wacc_step", grid.WACCStep),
		zap.Float64("growth_step", grid.GrowthStep),
		zap.Bool("parallel", grid.Parallel),
	)
	writeJSON(w, http.StatusOK, Response{Engine: h.Runtime.Options()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail apivaluation.ErrorDetail) {
	writeJSON(w, status, apivaluation.ErrorResponse{Error: detail})
}
