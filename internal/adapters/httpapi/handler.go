// Package httpapi exposes the orphan usecases over REST.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"rosterrecon/internal/bootstrap/logging"
	"rosterrecon/internal/errs"
	"rosterrecon/internal/ports"
	usecaseorphan "rosterrecon/internal/usecase/orphan"
)

// maxRequestBodyBytes limits decoded JSON payload size.
const maxRequestBodyBytes int64 = 1 << 20

// maxTimeToLiveMs is the largest lifetime that still fits a time.Duration.
const maxTimeToLiveMs = math.MaxInt64 / int64(time.Millisecond)

const (
	// HeaderUserID names the acting user. Authentication happens upstream.
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// OrphanService is the usecase surface the handler drives.
type OrphanService interface {
	ListVisible(ctx context.Context, input usecaseorphan.ListVisibleInput) ([]ports.VisibleOrphan, error)
	SetAction(ctx context.Context, input usecaseorphan.SetActionInput) (ports.OrphanedRecordAction, error)
	ClearAction(ctx context.Context, input usecaseorphan.ClearActionInput) error
	Resolve(ctx context.Context, input usecaseorphan.ResolveInput) (usecaseorphan.ResolutionResult, error)
	AddRecord(ctx context.Context, input usecaseorphan.AddRecordInput) (usecaseorphan.AddRecordResult, error)
	DeleteRecord(ctx context.Context, orgID uint64, compositeID string) error
}

type Handler struct {
	orphans OrphanService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func NewHandler(orphans OrphanService) *Handler {
	return &Handler{orphans: orphans}
}

// Routes builds the chi router serving the orphan API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", writeHealthStatus)

	r.Route("/api", func(r chi.Router) {
		r.Post("/orphaned-records", h.handleAddRecord)
		r.Route("/orgs/{orgID}/orphaned-records", func(r chi.Router) {
			r.Get("/", h.handleListVisible)
			r.Delete("/{orphanID}", h.handleDeleteRecord)
			r.Put("/{orphanID}/action", h.handleSetAction)
			r.Delete("/{orphanID}/action/{action}", h.handleClearAction)
			r.Put("/{orphanID}/resolve", h.handleResolve)
		})
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ctx := logging.WithAttrs(r.Context(), slog.String("component", "httpapi"))
		ctx = logging.WithRequest(ctx, middleware.GetReqID(ctx), r.Header.Get(HeaderUserID))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.Info(ctx, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(started)),
		)
	})
}

type visibleOrphanResponse struct {
	ID                 string     `json:"id"`
	EDIPI              string     `json:"edipi"`
	Phone              string     `json:"phone"`
	Unit               string     `json:"unit"`
	Count              int        `json:"count"`
	Action             string     `json:"action,omitempty"`
	ClaimedUntil       *time.Time `json:"claimedUntil,omitempty"`
	LatestReportDate   time.Time  `json:"latestReportDate"`
	EarliestReportDate time.Time  `json:"earliestReportDate"`
	UnitID             *uint64    `json:"unitId,omitempty"`
	RosterHistoryID    *uint64    `json:"rosterHistoryId,omitempty"`
}

type orphanedRecordResponse struct {
	ID          uint64     `json:"id"`
	CompositeID string     `json:"compositeId"`
	DocumentID  string     `json:"documentId"`
	EDIPI       string     `json:"edipi"`
	Phone       string     `json:"phone"`
	Unit        string     `json:"unit"`
	Timestamp   time.Time  `json:"timestamp"`
	DeletedOn   *time.Time `json:"deletedOn,omitempty"`
}

type actionResponse struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Type      string     `json:"type"`
	ExpiresOn *time.Time `json:"expiresOn,omitempty"`
}

type resolutionItemResponse struct {
	RecordsIngested       int                    `json:"recordsIngested"`
	LambdaInvocationCount int                    `json:"lambdaInvocationCount"`
	OrphanedRecord        orphanedRecordResponse `json:"orphanedRecord"`
}

type resolutionResponse struct {
	RecordsIngested       int                      `json:"recordsIngested"`
	LambdaInvocationCount int                      `json:"lambdaInvocationCount"`
	Items                 []resolutionItemResponse `json:"items"`
}

type addRecordRequest struct {
	DocumentID     string          `json:"documentId"`
	Timestamp      json.RawMessage `json:"timestamp"`
	EDIPI          string          `json:"edipi"`
	Phone          string          `json:"phone"`
	Unit           string          `json:"unit"`
	ReportingGroup string          `json:"reportingGroup"`
	CompositeID    string          `json:"compositeId"`
}

type setActionRequest struct {
	Action       string `json:"action"`
	TimeToLiveMs *int64 `json:"timeToLiveMs"`
}

type resolveRequest struct {
	Unit      *uint64 `json:"unit"`
	EDIPI     string  `json:"edipi"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Phone     string  `json:"phone"`
}

// handleListVisible serves GET `/api/orgs/{orgID}/orphaned-records`.
func (h *Handler) handleListVisible(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	items, err := h.orphans.ListVisible(r.Context(), usecaseorphan.ListVisibleInput{
		UserID: r.Header.Get(HeaderUserID),
		OrgID:  orgID,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}

	out := make([]visibleOrphanResponse, 0, len(items))
	for _, item := range items {
		out = append(out, visibleOrphanResponse{
			ID:                 item.ID,
			EDIPI:              item.EDIPI,
			Phone:              item.Phone,
			Unit:               item.Unit,
			Count:              item.Count,
			Action:             string(item.Action),
			ClaimedUntil:       item.ClaimedUntil,
			LatestReportDate:   item.LatestReportDate,
			EarliestReportDate: item.EarliestReportDate,
			UnitID:             item.UnitID,
			RosterHistoryID:    item.RosterHistoryID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAddRecord serves POST `/api/orphaned-records`.
func (h *Handler) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	var req addRecordRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}

	result, err := h.orphans.AddRecord(r.Context(), usecaseorphan.AddRecordInput{
		DocumentID:     req.DocumentID,
		Timestamp:      rawTimestamp(req.Timestamp),
		EDIPI:          req.EDIPI,
		Phone:          req.Phone,
		Unit:           req.Unit,
		ReportingGroup: req.ReportingGroup,
		CompositeID:    req.CompositeID,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toRecordResponse(result.Record))
}

// handleDeleteRecord serves DELETE `/api/orgs/{orgID}/orphaned-records/{orphanID}`.
func (h *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}

	if err := h.orphans.DeleteRecord(r.Context(), orgID, chi.URLParam(r, "orphanID")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetAction serves PUT `/api/orgs/{orgID}/orphaned-records/{orphanID}/action`.
func (h *Handler) handleSetAction(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}

	var req setActionRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}

	input := usecaseorphan.SetActionInput{
		CompositeID: chi.URLParam(r, "orphanID"),
		OrgID:       orgID,
		UserID:      r.Header.Get(HeaderUserID),
		Type:        req.Action,
	}
	if req.TimeToLiveMs != nil {
		ms := *req.TimeToLiveMs
		if ms > maxTimeToLiveMs || ms < -maxTimeToLiveMs {
			writeErrorFrom(w, errs.E(errs.ErrInvalidArgument, "timeToLiveMs %d is out of range", ms))
			return
		}
		ttl := time.Duration(ms) * time.Millisecond
		input.TTL = &ttl
	}

	action, err := h.orphans.SetAction(r.Context(), input)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, actionResponse{
		ID:        action.CompositeID,
		UserID:    action.UserID,
		Type:      string(action.Type),
		ExpiresOn: action.ExpiresOn,
	})
}

// handleClearAction serves DELETE `/api/orgs/{orgID}/orphaned-records/{orphanID}/action/{action}`.
func (h *Handler) handleClearAction(w http.ResponseWriter, r *http.Request) {
	err := h.orphans.ClearAction(r.Context(), usecaseorphan.ClearActionInput{
		CompositeID: chi.URLParam(r, "orphanID"),
		UserID:      r.Header.Get(HeaderUserID),
		Type:        chi.URLParam(r, "action"),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResolve serves PUT `/api/orgs/{orgID}/orphaned-records/{orphanID}/resolve`.
// A failed reingestion still reports the committed resolution.
func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	var req resolveRequest
	if err := decodeOptionalJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}

	entry := ports.RosterEntryData{
		EDIPI:     req.EDIPI,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	}
	if req.Unit != nil {
		entry.UnitID = *req.Unit
	}

	result, err := h.orphans.Resolve(r.Context(), usecaseorphan.ResolveInput{
		CompositeID: chi.URLParam(r, "orphanID"),
		OrgID:       orgID,
		Role:        r.Header.Get(HeaderUserRole),
		Unit:        req.Unit,
		Entry:       entry,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toResolutionResponse(result))
	case errors.Is(err, errs.ErrUpstream):
		writeJSONError(w, http.StatusBadGateway, APIError{
			Code:    "upstream_error",
			Message: err.Error(),
			Context: map[string]any{"result": toResolutionResponse(result)},
		})
	default:
		writeErrorFrom(w, err)
	}
}

func toRecordResponse(record ports.OrphanedRecord) orphanedRecordResponse {
	return orphanedRecordResponse{
		ID:          record.ID,
		CompositeID: record.CompositeID,
		DocumentID:  record.DocumentID,
		EDIPI:       record.EDIPI,
		Phone:       record.Phone,
		Unit:        record.Unit,
		Timestamp:   record.Timestamp,
		DeletedOn:   record.DeletedOn,
	}
}

func toResolutionResponse(result usecaseorphan.ResolutionResult) resolutionResponse {
	out := resolutionResponse{
		RecordsIngested:       result.RecordsIngested,
		LambdaInvocationCount: result.LambdaInvocationCount,
		Items:                 make([]resolutionItemResponse, 0, len(result.Items)),
	}
	for _, item := range result.Items {
		out.Items = append(out.Items, resolutionItemResponse{
			RecordsIngested:       item.RecordsIngested,
			LambdaInvocationCount: item.LambdaInvocationCount,
			OrphanedRecord:        toRecordResponse(item.OrphanedRecord),
		})
	}
	return out
}

func orgIDParam(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "orgID")
	orgID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || orgID == 0 {
		return 0, errs.E(errs.ErrInvalidArgument, "invalid org id %q", raw)
	}
	return orgID, nil
}

// rawTimestamp accepts both JSON numbers and strings.
func rawTimestamp(raw json.RawMessage) string {
	value := strings.TrimSpace(string(raw))
	if unquoted, err := strconv.Unquote(value); err == nil {
		return unquoted
	}
	if value == "null" {
		return ""
	}
	return value
}

// writeErrorFrom maps the error taxonomy onto HTTP status codes.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch errs.KindOf(err) {
	case errs.ErrInvalidArgument:
		writeJSONError(w, http.StatusBadRequest, APIError{Code: "invalid_request", Message: err.Error()})
	case errs.ErrNotFound:
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: err.Error()})
	case errs.ErrConflict:
		writeJSONError(w, http.StatusConflict, APIError{Code: "conflict", Message: err.Error()})
	case errs.ErrUpstream:
		writeJSONError(w, http.StatusBadGateway, APIError{Code: "upstream_error", Message: err.Error()})
	default:
		message := "unknown error"
		if err != nil {
			message = err.Error()
		}
		writeJSONError(w, http.StatusInternalServerError, APIError{Code: "internal_error", Message: message})
	}
}

func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return errs.E(errs.ErrInvalidArgument, "decode request body: %v", err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errs.E(errs.ErrInvalidArgument, "decode request body: trailing content")
	}
	return ctxErr(ctx)
}

// decodeOptionalJSONBody accepts an empty body.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return errs.E(errs.ErrInvalidArgument, "decode request body: %v", err)
	}
	return ctxErr(ctx)
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "request canceled")
	default:
		return nil
	}
}

func writeHealthStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}
