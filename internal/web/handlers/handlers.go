package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jredh-dev/ewaste/internal/analytics"
	"github.com/jredh-dev/ewaste/internal/auth"
	"github.com/jredh-dev/ewaste/internal/centers"
	"github.com/jredh-dev/ewaste/internal/database"
	"github.com/jredh-dev/ewaste/internal/ledger"
	"github.com/jredh-dev/ewaste/internal/submission"
	"github.com/jredh-dev/ewaste/internal/token"
	"github.com/jredh-dev/ewaste/internal/valuation"
	"github.com/jredh-dev/ewaste/pkg/models"
)

const (
	msgTryAgain        = "An error occurred. Please try again."
	msgSubmitFailed    = "Error adding product. Please try again."
	msgStatusFailed    = "Error updating status. Please try again."
	msgRequiredFields  = "Please fill in all required fields."
	msgInvalidBody     = "Invalid request body."
	msgProfileNotFound = "Profile not found."
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store    database.Store
	auth     *auth.Service
	tokens   *token.Service
	builder  *submission.Builder
	ledger   *ledger.Ledger
	reporter *analytics.Reporter
	logger   *zap.Logger
}

// Deps groups the services a Handler needs.
type Deps struct {
	Store    database.Store
	Auth     *auth.Service
	Tokens   *token.Service
	Builder  *submission.Builder
	Ledger   *ledger.Ledger
	Reporter *analytics.Reporter
	Logger   *zap.Logger
}

// New creates a new Handler.
func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:    d.Store,
		auth:     d.Auth,
		tokens:   d.Tokens,
		builder:  d.Builder,
		ledger:   d.Ledger,
		reporter: d.Reporter,
		logger:   logger,
	}
}

// --- Public endpoints ---

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type estimateResp struct {
	Weight   string `json:"weight"`
	Estimate int    `json:"estimate"`
	Currency string `json:"currency"`
}

// Estimate previews the value of an item as the weight is typed.
// GET /api/estimate?weight=
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("weight")
	jsonOK(w, http.StatusOK, estimateResp{
		Weight:   raw,
		Estimate: valuation.EstimateInput(raw),
		Currency: valuation.CurrencySymbol,
	})
}

// Centers lists collection centers.
// GET /api/centers?city=
func (h *Handler) Centers(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, http.StatusOK, centers.List(r.URL.Query().Get("city")))
}

// --- Identity ---

// RegisterUser signs up an individual.
// POST /api/register/user
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req auth.UserRegistration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, msgInvalidBody, http.StatusBadRequest)
		return
	}
	sess, err := h.auth.RegisterUser(r.Context(), req)
	if err != nil {
		h.authError(w, r, err)
		return
	}
	jsonOK(w, http.StatusCreated, sess)
}

// RegisterCompany signs up a recycling company.
// POST /api/register/company
func (h *Handler) RegisterCompany(w http.ResponseWriter, r *http.Request) {
	var req auth.CompanyRegistration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, msgInvalidBody, http.StatusBadRequest)
		return
	}
	sess, err := h.auth.RegisterCompany(r.Context(), req)
	if err != nil {
		h.authError(w, r, err)
		return
	}
	jsonOK(w, http.StatusCreated, sess)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login signs in with email and password.
// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, msgInvalidBody, http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		jsonError(w, msgRequiredFields, http.StatusBadRequest)
		return
	}
	sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.authError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, sess)
}

type exchangeReq struct {
	IDToken string `json:"id_token"`
}

// Exchange trades an identity-service ID token for a session token.
// POST /api/session/exchange
func (h *Handler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, msgInvalidBody, http.StatusBadRequest)
		return
	}
	sess, err := h.auth.Exchange(r.Context(), req.IDToken)
	if err != nil {
		h.authError(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, sess)
}

// Logout revokes the presented token.
// POST /api/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetClaimsFromContext(r.Context())
	if !ok {
		jsonError(w, "Please log in to continue.", http.StatusUnauthorized)
		return
	}
	if err := h.auth.Logout(r.Context(), claims); err != nil {
		h.internalError(w, r, "logout", err, msgTryAgain)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type meResp struct {
	Principal models.Principal       `json:"principal"`
	User      *models.UserProfile    `json:"user,omitempty"`
	Company   *models.CompanyProfile `json:"company,omitempty"`
}

// Me returns the signed-in principal and its profile.
// GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := GetPrincipalFromContext(r.Context())
	resp := meResp{Principal: p}

	var err error
	switch p.Role {
	case models.RoleUser:
		resp.User, err = h.store.GetUserProfile(r.Context(), p.ID)
	case models.RoleCompany:
		resp.Company, err = h.store.GetCompanyProfile(r.Context(), p.ID)
	}
	if err != nil {
		h.internalError(w, r, "load profile", err, msgTryAgain)
		return
	}
	jsonOK(w, http.StatusOK, resp)
}

// --- User endpoints ---

type companyOption struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
}

// Companies lists the companies a user can submit to.
// GET /api/companies
func (h *Handler) Companies(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListCompanyProfiles(r.Context())
	if err != nil {
		h.internalError(w, r, "list companies", err, msgTryAgain)
		return
	}
	out := make([]companyOption, 0, len(list))
	for _, c := range list {
		out = append(out, companyOption{ID: c.ID, CompanyName: c.CompanyName})
	}
	jsonOK(w, http.StatusOK, out)
}

// ListSubmissions returns the caller's own submission history.
// GET /api/submissions
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	p, _ := GetPrincipalFromContext(r.Context())
	subs, err := h.store.SubmissionsByUser(r.Context(), p.ID)
	if err != nil {
		h.internalError(w, r, "list submissions", err, msgTryAgain)
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	jsonOK(w, http.StatusOK, subs)
}

// CreateSubmission offers an item to a company.
// POST /api/submissions
func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	p, _ := GetPrincipalFromContext(r.Context())

	var form submission.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		jsonError(w, msgInvalidBody, http.StatusBadRequest)
		return
	}
	if msg := checkForm(form); msg != "" {
		jsonError(w, msg, http.StatusBadRequest)
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && form.IdempotencyKey == "" {
		form.IdempotencyKey = key
	}

	res, err := h.builder.Submit(r.Context(), p, form)
	var verr *submission.ValidationError
	switch {
	case err == nil:
		status := http.StatusCreated
		if res.Replayed {
			status = http.StatusOK
		}
		jsonOK(w, status, res)
	case errors.As(err, &verr):
		jsonError(w, verr.Message, http.StatusBadRequest)
	case errors.Is(err, submission.ErrForbidden):
		jsonError(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, submission.ErrPointsNotAwarded):
		jsonOK(w, http.StatusInternalServerError, map[string]interface{}{
			"error":      msgSubmitFailed,
			"submission": res.Submission,
		})
	default:
		h.internalError(w, r, "create submission", err, msgSubmitFailed)
	}
}

// checkForm applies the form rules enforced before the builder runs.
func checkForm(f submission.Form) string {
	if strings.TrimSpace(f.ItemName) == "" || strings.TrimSpace(f.Phone) == "" ||
		strings.TrimSpace(f.Address) == "" || strings.TrimSpace(f.CompanyID) == "" {
		return msgRequiredFields
	}
	if f.Quantity < 1 {
		return "Quantity must be at least 1."
	}
	if f.Weight <= 0 || math.IsNaN(f.Weight) || math.IsInf(f.Weight, 0) {
		return "Weight must be greater than 0."
	}
	if f.Weight > valuation.MaxWeightKg {
		return fmt.Sprintf("Weight cannot exceed %d kg.", valuation.MaxWeightKg)
	}
	return ""
}

// --- Company endpoints ---

type requestsResp struct {
	Requests []models.Submission `json:"requests"`
	Counts   map[string]int      `json:"counts"`
}

// ListRequests returns submissions targeting the company, filtered by tab.
// GET /api/requests?status=
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	p, _ := GetPrincipalFromContext(r.Context())
	subs, err := h.store.SubmissionsByCompany(r.Context(), p.ID)
	if err != nil {
		h.internalError(w, r, "list requests", err, msgTryAgain)
		return
	}

	filtered, err := analytics.Filter(subs, r.URL.Query().Get("status"))
	if err != nil {
		jsonError(w, "Unknown status filter.", http.StatusBadRequest)
		return
	}
	if filtered == nil {
		filtered = []models.Submission{}
	}
	jsonOK(w, http.StatusOK, requestsResp{Requests: filtered, Counts: analytics.Counts(subs)})
}

type statusReq struct {
	Status models.Status `json:"status"`
}

// SetRequestStatus records a review decision.
// PATCH /api/requests/{id}/status
func (h *Handler) SetRequestStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := GetPrincipalFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, msgInvalidBody, http.StatusBadRequest)
		return
	}

	sub, err := h.ledger.SetStatus(r.Context(), p, id, req.Status)
	switch {
	case err == nil:
		jsonOK(w, http.StatusOK, sub)
	case errors.Is(err, ledger.ErrInvalidStatus):
		jsonError(w, "Status must be pending, approved or rejected.", http.StatusBadRequest)
	case errors.Is(err, ledger.ErrNotFound):
		jsonError(w, "Request not found.", http.StatusNotFound)
	case errors.Is(err, ledger.ErrForbidden):
		jsonError(w, "Forbidden", http.StatusForbidden)
	default:
		h.internalError(w, r, "set status", err, msgStatusFailed)
	}
}

// RequestSubmitter shows who made a request.
// GET /api/requests/{id}/submitter
func (h *Handler) RequestSubmitter(w http.ResponseWriter, r *http.Request) {
	p, _ := GetPrincipalFromContext(r.Context())

	profile, err := h.ledger.Submitter(r.Context(), p, chi.URLParam(r, "id"))
	switch {
	case err == nil && profile == nil:
		jsonError(w, msgProfileNotFound, http.StatusNotFound)
	case err == nil:
		jsonOK(w, http.StatusOK, profile)
	case errors.Is(err, ledger.ErrNotFound):
		jsonError(w, "Request not found.", http.StatusNotFound)
	case errors.Is(err, ledger.ErrForbidden):
		jsonError(w, "Forbidden", http.StatusForbidden)
	default:
		h.internalError(w, r, "load submitter", err, msgTryAgain)
	}
}

// Analytics returns the company's aggregate statistics.
// GET /api/analytics
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	p, _ := GetPrincipalFromContext(r.Context())
	stats, err := h.reporter.Report(r.Context(), p.ID)
	if err != nil {
		h.internalError(w, r, "analytics", err, msgTryAgain)
		return
	}
	jsonOK(w, http.StatusOK, stats)
}

// CompanyProfile returns the caller's company profile.
// GET /api/company/profile
func (h *Handler) CompanyProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := GetPrincipalFromContext(r.Context())
	c, err := h.store.GetCompanyProfile(r.Context(), p.ID)
	if err != nil {
		h.internalError(w, r, "load company profile", err, msgTryAgain)
		return
	}
	if c == nil {
		jsonError(w, msgProfileNotFound, http.StatusNotFound)
		return
	}
	jsonOK(w, http.StatusOK, c)
}

// UpdateCompanyProfile edits name, phone and certificate.
// PUT /api/company/profile
func (h *Handler) UpdateCompanyProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := GetPrincipalFromContext(r.Context())

	var u models.CompanyUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		jsonError(w, msgInvalidBody, http.StatusBadRequest)
		return
	}
	if u.Empty() {
		jsonError(w, "Nothing to update.", http.StatusBadRequest)
		return
	}
	if u.CompanyName != nil {
		name := strings.TrimSpace(*u.CompanyName)
		if name == "" {
			jsonError(w, "Company name cannot be empty.", http.StatusBadRequest)
			return
		}
		u.CompanyName = &name
	}

	err := h.store.UpdateCompanyProfile(r.Context(), p.ID, u)
	if errors.Is(err, database.ErrNotFound) {
		jsonError(w, msgProfileNotFound, http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, r, "update company profile", err, msgTryAgain)
		return
	}
	h.CompanyProfile(w, r)
}

// --- Helpers ---

// authError maps identity errors to status codes and their fixed messages.
func (h *Handler) authError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		jsonError(w, auth.Message(err), http.StatusConflict)
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrMissingName):
		jsonError(w, auth.Message(err), http.StatusBadRequest)
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, auth.ErrWrongPassword),
		errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNoRole),
		errors.Is(err, auth.ErrUnauthorized):
		jsonError(w, auth.Message(err), http.StatusUnauthorized)
	case errors.Is(err, auth.ErrUnsupported):
		jsonError(w, "Token exchange is not available.", http.StatusNotImplemented)
	default:
		h.internalError(w, r, "identity", err, auth.Message(err))
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error, msg string) {
	h.logger.Error(op,
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err))
	jsonError(w, msg, http.StatusInternalServerError)
}

func jsonOK(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

