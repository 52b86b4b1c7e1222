package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/pipeline"
)

const dateLayout = "2006-01-02"

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	pipe    *pipeline.Pipeline
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, pipe *pipeline.Pipeline, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		pipe:    pipe,
		version: version,
	}
}

// TransactionRequest is one transaction in the POST /transactions body.
// Dates use the YYYY-MM-DD layout; an empty actualDeliveryDate means
// the delivery is not yet recorded.
type TransactionRequest struct {
	ID               string  `json:"id"`
	Date             string  `json:"date"`
	SupplierID       string  `json:"supplierId"`
	SupplierName     string  `json:"supplierName"`
	Category         string  `json:"category"`
	BaselineRate     float64 `json:"baselineRate"`
	InvoiceAmount    float64 `json:"invoiceAmount"`
	ExpectedDelivery string  `json:"expectedDeliveryDate"`
	ActualDelivery   string  `json:"actualDeliveryDate,omitempty"`
	PONumber         string  `json:"poNumber,omitempty"`
	Region           string  `json:"region,omitempty"`
	ApprovedBy       string  `json:"approvedBy,omitempty"`
}

// IngestRequest is the request body for POST /transactions.
type IngestRequest struct {
	Transactions []TransactionRequest `json:"transactions"`
}

// IngestResponse is the response for POST /transactions.
type IngestResponse struct {
	Accepted int `json:"accepted"`
}

// IngestTransactions handles POST /transactions requests.
func (h *Handler) IngestTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions is required and must be non-empty",
		})
		return
	}

	txs := make([]domain.Transaction, 0, len(req.Transactions))
	for i := range req.Transactions {
		tx, err := req.Transactions[i].toDomain()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "transactions[" + strconv.Itoa(i) + "]: " + err.Error(),
			})
			return
		}
		txs = append(txs, tx)
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.SaveTransactions(ctx, txs); err != nil {
		slog.Error("failed to save transactions", "count", len(txs), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save transactions",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, IngestResponse{Accepted: len(txs)})
}

func (t *TransactionRequest) toDomain() (domain.Transaction, error) {
	if t.ID == "" {
		return domain.Transaction{}, errors.New("id is required")
	}
	if t.SupplierID == "" {
		return domain.Transaction{}, errors.New("supplierId is required")
	}

	date, err := time.Parse(dateLayout, t.Date)
	if err != nil {
		return domain.Transaction{}, errors.New("invalid date, expected YYYY-MM-DD")
	}

	var expected time.Time
	if t.ExpectedDelivery != "" {
		expected, err = time.Parse(dateLayout, t.ExpectedDelivery)
		if err != nil {
			return domain.Transaction{}, errors.New("invalid expectedDeliveryDate, expected YYYY-MM-DD")
		}
	}

	var actual *time.Time
	if t.ActualDelivery != "" {
		parsed, err := time.Parse(dateLayout, t.ActualDelivery)
		if err != nil {
			return domain.Transaction{}, errors.New("invalid actualDeliveryDate, expected YYYY-MM-DD")
		}
		actual = &parsed
	}

	return domain.Transaction{
		ID:               t.ID,
		Date:             date,
		SupplierID:       t.SupplierID,
		SupplierName:     t.SupplierName,
		Category:         t.Category,
		BaselineRate:     t.BaselineRate,
		InvoiceAmount:    t.InvoiceAmount,
		ExpectedDelivery: expected,
		ActualDelivery:   actual,
		PONumber:         t.PONumber,
		Region:           t.Region,
		ApprovedBy:       t.ApprovedBy,
	}, nil
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, txID)
	if err != nil {
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// RunResponse is the response for POST /runs.
type RunResponse struct {
	Run      *domain.Run `json:"run"`
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// TriggerRun handles POST /runs: it executes a full detection run over
// all stored transactions.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	if h.pipe == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "pipeline not available",
		})
		return
	}

	run, _, err := h.pipe.ExecuteFromRepository(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "no transactions to analyse",
			})
			return
		}

		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "scoring configuration error: " + cfgErr.Error(),
			})
			return
		}

		slog.Error("detection run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "detection run failed",
		})
		return
	}

	resp := RunResponse{Run: run}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusCreated, resp)
}

// ListRuns returns recent runs, most recent first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	runs, err := h.repo.ListRuns(ctx, limit)
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list runs",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun retrieves a run by ID.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	run, err := h.repo.GetRun(ctx, runID)
	if err != nil {
		slog.Error("failed to get run", "id", runID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// ListFindings returns a run's scored findings in triage order.
func (h *Handler) ListFindings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	// Verify the run exists so an unknown id is a 404, not an empty list.
	if _, err := h.repo.GetRun(ctx, runID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}

	findings, err := h.repo.ListScoredFindings(ctx, runID)
	if err != nil {
		slog.Error("failed to list findings", "run_id", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list findings",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runId":    runID,
		"findings": findings,
		"count":    len(findings),
	})
}

// GetRunSummary returns a run's summary, served from cache when hot.
func (h *Handler) GetRunSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")

	if h.cache != nil {
		if s, err := h.cache.GetSummary(ctx, domain.SummaryKey(runID)); err == nil && s != nil {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	run, err := h.repo.GetRun(ctx, runID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, run.Summary)
}

// GetLatestSummary returns the most recent run's summary.
func (h *Handler) GetLatestSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		if s, err := h.cache.GetSummary(ctx, domain.SummaryKeyLatest); err == nil && s != nil {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	run, err := h.repo.LatestRun(ctx)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no completed runs",
		})
		return
	}

	writeJSON(w, http.StatusOK, run.Summary)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
