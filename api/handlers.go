/*
handlers.go - HTTP API handlers for the tractor POS

PURPOSE:
  Exposes the billing engine via a local REST API for the browser front end.
  Handles HTTP request/response, JSON serialization, and delegates every
  decision to the billing package.

ENDPOINTS:
  Settings:
    GET    /api/settings               Current rates (defaults if never set)
    PUT    /api/settings               Update one or both rates
    POST   /api/settings/reset         Restore default rates

  Bills:
    GET    /api/bills?q=term           History, newest first, optionally searched
    POST   /api/bills                  Save a bill
    POST   /api/bills/preview          Total and amount due without saving
    GET    /api/bills/{id}             One saved bill
    DELETE /api/bills/{id}             Delete a bill

  Backup:
    GET    /api/backup/export          Download a backup document
    POST   /api/backup/import          Restore from a backup (?strict=true)
    POST   /api/backup/clear           Erase everything

  Summary:
    GET    /api/summary                Bill count and current rates

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Rejected bill, rejected import, invalid input
  - 404: Bill not found
  - 500: Storage errors

SECURITY NOTE:
  No authentication. The server is meant to run on the operator's machine.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/warp/tractor-pos/billing"
)

const (
	// DefaultMaxImportBytes bounds the size of an uploaded backup.
	DefaultMaxImportBytes = 10 << 20

	// Export, import and clear touch the whole database; they share one limiter.
	DefaultBackupRate  = 2
	DefaultBackupBurst = 5
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *billing.Engine
	Log     *zap.Logger
	Metrics *Metrics

	MaxImportBytes int64
	BackupLimiter  *rate.Limiter
}

// NewHandler creates a new handler around engine. A nil logger is replaced
// with a no-op logger.
func NewHandler(engine *billing.Engine, log *zap.Logger, metrics *Metrics) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Handler{
		Engine:         engine,
		Log:            log,
		Metrics:        metrics,
		MaxImportBytes: DefaultMaxImportBytes,
		BackupLimiter:  rate.NewLimiter(DefaultBackupRate, DefaultBackupBurst),
	}
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns the current rates.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Engine.Settings.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings merges the request into the current rates and stores the result.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	current, err := h.Engine.Settings.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}

	updated := req.merge(current)
	if err := h.Engine.Settings.Update(r.Context(), updated); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings", err)
		return
	}

	h.Log.Info("settings updated",
		zap.Float64("rate_per_acre", updated.RatePerAcre),
		zap.Float64("rate_per_hour", updated.RatePerHour),
	)
	writeJSON(w, http.StatusOK, updated)
}

// ResetSettings restores the default rates.
func (h *Handler) ResetSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Settings.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset settings", err)
		return
	}
	writeJSON(w, http.StatusOK, billing.DefaultSettings())
}

// =============================================================================
// BILL HANDLERS
// =============================================================================

// ListBills returns the history, filtered by ?q= when present.
func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := h.Engine.Bills.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bills", err)
		return
	}
	writeJSON(w, http.StatusOK, toBillDTOs(bills))
}

// CreateBill saves a new bill.
func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var req CreateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	bill, err := h.Engine.Bills.Save(r.Context(), req)
	if err != nil {
		var verr *billing.ValidationError
		if errors.As(err, &verr) {
			h.Metrics.BillsRejected.WithLabelValues(verr.Code()).Inc()
			h.Log.Warn("bill rejected",
				zap.String("code", verr.Code()),
				zap.String("work_type", string(req.WorkType)),
			)
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: "Please fill in customer name and work details",
				Code:  verr.Code(),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save bill", err)
		return
	}

	h.Metrics.BillsSaved.Inc()
	h.Log.Info("bill saved",
		zap.Int64("bill_id", bill.ID),
		zap.String("work_type", string(bill.WorkType)),
		zap.Float64("total", bill.Total),
		zap.Float64("amount_due", bill.AmountDue),
	)
	writeJSON(w, http.StatusCreated, toBillDTO(bill))
}

// PreviewBill computes the total for unsaved form data.
func (h *Handler) PreviewBill(w http.ResponseWriter, r *http.Request) {
	var req CreateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	settings, err := h.Engine.Settings.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}

	quote := billing.Calculate(req, settings)
	writeJSON(w, http.StatusOK, PreviewResponse{
		Total:         quote.Total,
		AmountDue:     quote.AmountDue,
		TotalText:     billing.FormatAmount(quote.Total),
		AmountDueText: billing.FormatAmount(quote.AmountDue),
		CanSave:       strings.TrimSpace(req.CustomerName) != "" && quote.Total != 0,
	})
}

// GetBill returns a single saved bill.
func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	id, ok := billID(w, r)
	if !ok {
		return
	}

	bill, found, err := h.Engine.Bills.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get bill", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Bill not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBillDTO(bill))
}

// DeleteBill removes a bill. Deleting an unknown id is reported, not failed.
func (h *Handler) DeleteBill(w http.ResponseWriter, r *http.Request) {
	id, ok := billID(w, r)
	if !ok {
		return
	}

	deleted, err := h.Engine.Bills.Delete(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete bill", err)
		return
	}
	if deleted {
		h.Metrics.BillsDeleted.Inc()
		h.Log.Info("bill deleted", zap.Int64("bill_id", id))
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

// =============================================================================
// BACKUP HANDLERS
// =============================================================================

// ExportBackup sends the whole state as a downloadable JSON file.
func (h *Handler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Engine.Backup.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to export database", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.FileName()+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := doc.WriteTo(w); err != nil {
		h.Log.Error("backup export write failed", zap.Error(err))
		return
	}

	h.Metrics.Exports.Inc()
	h.Log.Info("backup exported", zap.Int("bills", len(doc.Bills)), zap.String("file", doc.FileName()))
}

// ImportBackup reads a backup document from the request body and replaces
// the stored settings and history with it.
func (h *Handler) ImportBackup(w http.ResponseWriter, r *http.Request) {
	strict, _ := strconv.ParseBool(r.URL.Query().Get("strict"))
	body := http.MaxBytesReader(w, r.Body, h.MaxImportBytes)

	settings, bills, err := billing.ImportFrom(r.Context(), body, strict)
	if err != nil {
		var ierr *billing.ImportError
		if errors.As(err, &ierr) {
			h.Metrics.Imports.WithLabelValues(importResult(ierr)).Inc()
			h.Log.Warn("backup import rejected", zap.Error(err))
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   ierr.Message(),
				Code:    importResult(ierr),
				Details: ierr.Error(),
				Fields:  ierr.Fields,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to import database", err)
		return
	}

	if err := h.Engine.Backup.Restore(r.Context(), settings, bills); err != nil {
		h.Metrics.Imports.WithLabelValues("store_failed").Inc()
		writeError(w, http.StatusInternalServerError, "Failed to import database", err)
		return
	}

	h.Metrics.Imports.WithLabelValues("ok").Inc()
	h.Log.Info("backup imported", zap.Int("bills", len(bills)), zap.Bool("strict", strict))
	writeJSON(w, http.StatusOK, ImportResponse{Imported: len(bills), Settings: settings})
}

// ClearData erases all settings and bills.
func (h *Handler) ClearData(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Backup.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear database", err)
		return
	}

	h.Metrics.Clears.Inc()
	h.Log.Warn("all data cleared")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SUMMARY
// =============================================================================

// GetSummary returns the bill count and current rates.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Engine.Settings.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	count, err := h.Engine.Bills.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count bills", err)
		return
	}

	writeJSON(w, http.StatusOK, SummaryDTO{
		BillCount:     count,
		RatePerAcre:   settings.RatePerAcre,
		RatePerHour:   settings.RatePerHour,
		BackupVersion: billing.BackupVersion,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func billID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid bill id", err)
		return 0, false
	}
	return id, true
}

func importResult(err *billing.ImportError) string {
	switch {
	case errors.Is(err, billing.ErrMalformedJSON):
		return "malformed_json"
	case errors.Is(err, billing.ErrUnreadableSource):
		return "unreadable"
	case len(err.Fields) > 0:
		return "schema_violation"
	default:
		return "invalid_format"
	}
}
