package detection

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/textra-ai/textra/internal/api"
	"github.com/textra-ai/textra/internal/auth"
	"github.com/textra-ai/textra/internal/config"
	"github.com/textra-ai/textra/internal/quota"
	"github.com/textra-ai/textra/internal/ratelimit"
)

// Handler provides HTTP handlers for detection and account endpoints.
type Handler struct {
	svc      *Service
	quotas   *quota.Service
	limiter  *ratelimit.Limiter
	history  *HistoryRepository
	cfg      config.DetectionConfig
	validate *validator.Validate
}

func NewHandler(svc *Service, quotas *quota.Service, limiter *ratelimit.Limiter,
	history *HistoryRepository, cfg config.DetectionConfig) *Handler {
	return &Handler{
		svc:      svc,
		quotas:   quotas,
		limiter:  limiter,
		history:  history,
		cfg:      cfg,
		validate: validator.New(),
	}
}

type detectTextRequest struct {
	Text string `json:"text" validate:"required"`
}

type detectURLRequest struct {
	URL string `json:"url" validate:"required"`
}

type updateLimitsRequest struct {
	DailyLimit   *int64 `json:"daily_limit" validate:"omitempty,min=1"`
	MonthlyLimit *int64 `json:"monthly_limit" validate:"omitempty,min=1"`
	IsPremium    *bool  `json:"is_premium"`
}

// DetectText analyzes raw text from the request body.
func (h *Handler) DetectText(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req detectTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError("text is required"))
		return
	}

	result, err := h.svc.DetectText(r.Context(), userID, req.Text)
	if err != nil {
		h.handleDetectionError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, result)
}

// DetectFile analyzes an uploaded document (multipart field "file").
func (h *Handler) DetectFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	// One extra MB of headroom so an oversized upload is rejected with a
	// specific message instead of a parse failure.
	if err := r.ParseMultipartForm(h.cfg.MaxFileSizeBytes() + 1<<20); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.HandleError(w, api.NewValidationError("file field is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.cfg.MaxFileSizeBytes()+1))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("reading uploaded file failed"))
		return
	}

	result, err := h.svc.DetectFile(r.Context(), userID, data, header.Filename)
	if err != nil {
		h.handleDetectionError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, result)
}

// DetectURL fetches and analyzes a web page.
func (h *Handler) DetectURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req detectURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError("url is required"))
		return
	}

	result, err := h.svc.DetectURL(r.Context(), userID, req.URL)
	if err != nil {
		h.handleDetectionError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, result)
}

// GetLimits returns the user's quota snapshot plus live throttle windows.
func (h *Handler) GetLimits(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	q, err := h.quotas.GetOrCreate(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"quota":      q.Snapshot(),
		"rate_limit": h.limiter.Status(r.Context(), userID),
	})
}

// ListHistory returns the user's paginated detection history.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	params := parseListParams(r)
	records, total, err := h.history.ListByUser(r.Context(), userID, params)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSONPaginated(w, http.StatusOK, records, total, params.Page, params.PageSize)
}

// GetStats returns aggregate figures over the user's history.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	stats, err := h.history.StatsByUser(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, stats)
}

// DeleteHistory bulk-deletes the user's detection history.
func (h *Handler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	deleted, err := h.history.DeleteByUser(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// UpdateUserLimits is the administrative partial override of a user's
// quota limits.
func (h *Handler) UpdateUserLimits(w http.ResponseWriter, r *http.Request) {
	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid user id"))
		return
	}

	var req updateLimitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError("limits must be positive"))
		return
	}
	if req.DailyLimit == nil && req.MonthlyLimit == nil && req.IsPremium == nil {
		api.HandleError(w, api.NewValidationError("nothing to update"))
		return
	}

	q, err := h.quotas.UpdateLimits(r.Context(), targetID, req.DailyLimit, req.MonthlyLimit, req.IsPremium)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, q.Snapshot())
}

// ResetRateLimit clears a user's current throttle buckets.
func (h *Handler) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid user id"))
		return
	}

	if err := h.limiter.Reset(r.Context(), targetID); err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSONMessage(w, http.StatusOK, "rate limit reset")
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

// handleDetectionError maps the detection error taxonomy onto HTTP codes:
// bad input 400, exhausted quota 429 without Retry-After, collaborator
// outage 502, anything else a generic 500.
func (h *Handler) handleDetectionError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		api.HandleError(w, api.NewValidationError(vErr.Message))
		return
	}

	var qErr *quota.ExceededError
	if errors.As(err, &qErr) {
		// The snapshot gives callers limit, remaining and reset time
		// without parsing the message.
		api.HandleError(w, api.NewTooManyRequestsError(qErr.Error()).WithDetails(qErr.Quota.Snapshot()))
		return
	}

	var uErr *UpstreamError
	if errors.As(err, &uErr) {
		api.HandleError(w, api.NewUpstreamError(uErr.Error()))
		return
	}

	api.HandleError(w, err)
}

func parseListParams(r *http.Request) ListParams {
	params := ListParams{Page: 1, PageSize: 20}

	q := r.URL.Query()
	if src := q.Get("source"); src != "" {
		params.Source = Source(src)
	}
	if res := q.Get("result"); res != "" {
		params.Result = Result(res)
	}
	if p := q.Get("page"); p != "" {
		if page, err := strconv.Atoi(p); err == nil && page > 0 {
			params.Page = page
		}
	}
	if ps := q.Get("page_size"); ps != "" {
		if pageSize, err := strconv.Atoi(ps); err == nil && pageSize > 0 && pageSize <= 100 {
			params.PageSize = pageSize
		}
	}
	return params
}
