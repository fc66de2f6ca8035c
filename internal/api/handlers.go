package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/leapstack-labs/bizforecast/internal/api/notifier"
	"github.com/leapstack-labs/bizforecast/internal/execlog"
	"github.com/leapstack-labs/bizforecast/internal/export"
	"github.com/leapstack-labs/bizforecast/internal/reset"
	"github.com/leapstack-labs/bizforecast/pkg/core"
)

// Backend is the engine surface the API exposes.
type Backend interface {
	DatabasePath() string
	DataDir() string
	Ping(ctx context.Context) error
	ComputeForecast(ctx context.Context) (*core.ForecastSnapshot, error)
	SavedForecast(ctx context.Context, filter core.ResultFilter) (*core.SavedForecast, error)
	Utilization(ctx context.Context, period string) ([]core.MachineLoad, error)
	ExecuteSQL(ctx context.Context, req execlog.Request) (*execlog.Result, error)
	ExecutionLogs(ctx context.Context, filter core.LogFilter) (*execlog.Logs, error)
	Replay(ctx context.Context, filter core.ReplayFilter) (*core.ReplayResult, error)
	ResetToInitialState(ctx context.Context) (*reset.Result, error)
	ResetClean(ctx context.Context) (*reset.Result, error)
	ClearData(ctx context.Context) (*reset.Result, error)
	SwitchDatabase(ctx context.Context, path string) error
}

// Handlers provides the HTTP handlers of the API.
type Handlers struct {
	backend  Backend
	notifier *notifier.Notifier
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(b Backend, notify *notifier.Notifier, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{backend: b, notifier: notify, logger: logger}
}

// ReplayRequest is the body of POST /api/execution-logs/replay.
type ReplayRequest struct {
	TargetDate string `json:"target_date,omitempty"`
	MaxLogID   int64  `json:"max_log_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

// SwitchDatabaseRequest is the body of POST /api/database/switch.
type SwitchDatabaseRequest struct {
	Path string `json:"path"`
}

type errorResponse struct {
	Error string `json:"error"`
	LogID int64  `json:"log_id,omitempty"`
	Table string `json:"table,omitempty"`
}

// Health pings the store.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": h.backend.DatabasePath(),
	})
}

// ComputeForecast runs the cost engine and returns the new snapshot.
func (h *Handlers) ComputeForecast(w http.ResponseWriter, r *http.Request) {
	snap, err := h.backend.ComputeForecast(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.notifier.Publish(notifier.ForecastComputed)
	writeJSON(w, http.StatusOK, snap)
}

// ForecastResults returns the saved snapshot, optionally narrowed by period and limit.
func (h *Handlers) ForecastResults(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, err)
		return
	}
	saved, err := h.backend.SavedForecast(r.Context(), core.ResultFilter{
		Period: r.URL.Query().Get("period"),
		Limit:  limit,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Utilization reports machine load for a period, or all periods.
func (h *Handlers) Utilization(w http.ResponseWriter, r *http.Request) {
	loads, err := h.backend.Utilization(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"machines": loads})
}

// ExportForecast streams the saved snapshot as a spreadsheet.
func (h *Handlers) ExportForecast(w http.ResponseWriter, r *http.Request) {
	saved, err := h.backend.SavedForecast(r.Context(), core.ResultFilter{})
	if err != nil {
		h.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteForecastXLSX(&buf, saved); err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename=forecast.xlsx")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// ExecuteSQL runs one statement through the execution log.
func (h *Handlers) ExecuteSQL(w http.ResponseWriter, r *http.Request) {
	var req execlog.Request
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.backend.ExecuteSQL(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !res.IsQuery {
		h.notifier.Publish(notifier.DataChanged)
	}
	writeJSON(w, http.StatusOK, res)
}

// ExecutionLogs lists logged statements, newest first.
func (h *Handlers) ExecutionLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, err)
		return
	}
	q := r.URL.Query()
	logs, err := h.backend.ExecutionLogs(r.Context(), core.LogFilter{
		Limit:     limit,
		UserID:    q.Get("user_id"),
		SessionID: q.Get("session_id"),
		Status:    core.ExecutionStatus(q.Get("status")),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// Replay re-applies logged writes. Per-statement failures are reported
// inline with a 200.
func (h *Handlers) Replay(w http.ResponseWriter, r *http.Request) {
	var req ReplayRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	target, err := core.ParseTargetDate(req.TargetDate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	filter := core.ReplayFilter{
		TargetDate: target,
		MaxLogID:   req.MaxLogID,
		UserID:     req.UserID,
		SessionID:  req.SessionID,
	}
	if err := filter.Validate(); err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.backend.Replay(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if res.ReplayedCount > 0 {
		h.notifier.Publish(notifier.DataChanged)
	}
	writeJSON(w, http.StatusOK, res)
}

// Reset reloads the entity tables from the flat files.
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	h.runReset(w, r, h.backend.ResetToInitialState)
}

// ResetClean rebuilds the schema and reloads the flat files.
func (h *Handlers) ResetClean(w http.ResponseWriter, r *http.Request) {
	h.runReset(w, r, h.backend.ResetClean)
}

// ClearData empties every table.
func (h *Handlers) ClearData(w http.ResponseWriter, r *http.Request) {
	h.runReset(w, r, h.backend.ClearData)
}

func (h *Handlers) runReset(w http.ResponseWriter, r *http.Request, fn func(context.Context) (*reset.Result, error)) {
	res, err := fn(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.notifier.Publish(notifier.DataReset)
	writeJSON(w, http.StatusOK, res)
}

// SwitchDatabase makes another database file the active store. Requests
// already running finish against the previous one.
func (h *Handlers) SwitchDatabase(w http.ResponseWriter, r *http.Request) {
	var req SwitchDatabaseRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		h.writeError(w, fmt.Errorf("%w: path is required", errBadRequest))
		return
	}

	if err := h.backend.SwitchDatabase(r.Context(), req.Path); err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("database switched", "database", req.Path)
	h.notifier.Publish(notifier.DataChanged)
	writeJSON(w, http.StatusOK, map[string]string{"database": h.backend.DatabasePath()})
}

// Events streams data-change events as server-sent events.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-updates:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: {}\n\n", ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeError maps err onto a status code and a JSON body.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var (
		stmtErr  *core.StatementError
		resetErr *core.ResetIncompleteError
		body     = errorResponse{Error: err.Error()}
		status   = http.StatusInternalServerError
	)
	switch {
	case errors.As(err, &stmtErr):
		status = http.StatusUnprocessableEntity
		body.LogID = stmtErr.LogID
	case errors.Is(err, core.ErrInvalidFilter), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.As(err, &resetErr):
		body.Table = resetErr.Table
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, body)
}

var errBadRequest = errors.New("bad request")

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", core.ErrInvalidFilter, key)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
