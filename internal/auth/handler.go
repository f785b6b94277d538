package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jsvoboda/notes-api/internal/httputil"
	"github.com/jsvoboda/notes-api/internal/logging"
	"github.com/jsvoboda/notes-api/internal/metrics"
	"github.com/jsvoboda/notes-api/internal/ratelimit"
	"github.com/jsvoboda/notes-api/internal/user"
)

const (
	minAge = 13
	maxAge = 120
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service         *Service
	google          *GoogleService
	rateLimiter     *ratelimit.Limiter
	logger          *logging.Logger
	cookieCfg       CookieConfig
	accessDuration  time.Duration
	refreshDuration time.Duration
	frontendURL     string
}

func NewHandler(
	service *Service,
	google *GoogleService,
	rateLimiter *ratelimit.Limiter,
	logger *logging.Logger,
	cookieCfg CookieConfig,
	accessDuration time.Duration,
	refreshDuration time.Duration,
	frontendURL string,
) *Handler {
	return &Handler{
		service:         service,
		google:          google,
		rateLimiter:     rateLimiter,
		logger:          logger,
		cookieCfg:       cookieCfg,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
		frontendURL:     frontendURL,
	}
}

// SignupRequest represents the signup request body
type SignupRequest struct {
	Name  string `json:"name"`
	DOB   string `json:"dob"`
	Email string `json:"email"`
}

// SigninRequest represents the signin request body
type SigninRequest struct {
	Email string `json:"email"`
}

// VerifyOTPRequest represents the OTP verification request body
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// UserResponse is the sanitized user projection returned after
// verification. OTP and refresh token fields are never part of it.
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	DOB   string    `json:"dob,omitempty"`
	Email string    `json:"email"`
}

// VerifyOTPResponse represents a successful verification
type VerifyOTPResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// AuthURLResponse carries the Google authorization URL
type AuthURLResponse struct {
	AuthURL string `json:"auth_url"`
}

// Signup handles registration of a new email/OTP user
// @Summary      Start email signup
// @Description  Create (or refresh) an unverified user and send an OTP to the given email.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SignupRequest true "Signup fields"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Missing or malformed fields"
// @Failure      409 {object} ErrorResponse "User already exists"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Router       /api/auth/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allowRequest(w, r, "signup") {
		return
	}

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid signup request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	req.Name = sanitizeName(req.Name)
	req.Email = normalizeEmail(req.Email)

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if req.DOB != "" {
		if err := validateDOB(req.DOB); err != nil {
			logger.Warn("signup failed: invalid dob", "error", err.Error())
			respondError(w, err.Error(), httputil.CodeInvalidDOB, http.StatusBadRequest)
			return
		}
	}

	if h.onEmailCooldown(w, r, req.Email) {
		return
	}

	if err := h.service.Signup(r.Context(), req.Name, req.DOB, req.Email); err != nil {
		switch {
		case errors.Is(err, ErrNameRequired):
			logger.Warn("signup failed: missing fields")
			respondError(w, "name, dob and email are required", httputil.CodeMissingFields, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidEmailFormat):
			logger.Warn("signup failed: invalid email format")
			respondError(w, "invalid email format", httputil.CodeInvalidEmailFormat, http.StatusBadRequest)
		case errors.Is(err, ErrUserAlreadyExists):
			logger.Warn("signup failed: user already exists")
			respondError(w, "user already exists, please login instead", httputil.CodeUserAlreadyExists, http.StatusConflict)
		case errors.Is(err, ErrOTPDelivery):
			logger.Error("signup failed: otp delivery", "error", err.Error())
			respondError(w, "error sending OTP", httputil.CodeOTPDeliveryFailed, http.StatusInternalServerError)
		default:
			logger.Error("signup failed: internal error", "error", err.Error())
			respondError(w, "failed to sign up", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	h.setEmailCooldown(r, req.Email)
	metrics.OTPIssuedTotal.Inc()

	logger.Info("signup otp sent")

	respondJSON(w, map[string]string{"message": "OTP sent successfully for signup"}, http.StatusOK)
}

// Signin handles OTP reissue for an existing verified user
// @Summary      Start email signin
// @Description  Send a fresh OTP to an existing verified user.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SigninRequest true "Signin fields"
// @Success      200 {object} map[string]string
// @Failure      400 {object} ErrorResponse "Missing email"
// @Failure      404 {object} ErrorResponse "User not found"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Router       /api/auth/signin [post]
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allowRequest(w, r, "signin") {
		return
	}

	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid signin request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	req.Email = normalizeEmail(req.Email)
	if req.Email == "" {
		respondError(w, "email is required", httputil.CodeMissingFields, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if h.onEmailCooldown(w, r, req.Email) {
		return
	}

	if err := h.service.Signin(r.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			logger.Warn("signin failed: user not found or unverified")
			respondError(w, "user not found, please signup first", httputil.CodeUserNotFound, http.StatusNotFound)
		case errors.Is(err, ErrOTPDelivery):
			logger.Error("signin failed: otp delivery", "error", err.Error())
			respondError(w, "error sending OTP", httputil.CodeOTPDeliveryFailed, http.StatusInternalServerError)
		default:
			logger.Error("signin failed: internal error", "error", err.Error())
			respondError(w, "failed to sign in", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	h.setEmailCooldown(r, req.Email)
	metrics.OTPIssuedTotal.Inc()

	logger.Info("signin otp sent")

	respondJSON(w, map[string]string{"message": "OTP sent successfully for signin"}, http.StatusOK)
}

// VerifyOTP handles OTP verification and session establishment
// @Summary      Verify OTP
// @Description  Verify the submitted OTP; on success the session cookies are set.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body VerifyOTPRequest true "Email and OTP"
// @Success      200 {object} VerifyOTPResponse
// @Failure      400 {object} ErrorResponse "Invalid or expired OTP"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Router       /api/auth/verify-otp [post]
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allowRequest(w, r, "verify-otp") {
		return
	}

	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid verify-otp request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	req.Email = normalizeEmail(req.Email)
	req.OTP = strings.TrimSpace(req.OTP)
	if req.Email == "" || req.OTP == "" {
		respondError(w, "email and otp are required", httputil.CodeMissingFields, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	verified, tokens, err := h.service.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		if errors.Is(err, ErrInvalidOTP) {
			logger.Warn("otp verification failed: invalid or expired otp")
			respondError(w, "invalid or expired OTP", httputil.CodeInvalidOTP, http.StatusBadRequest)
			return
		}
		logger.Error("otp verification failed: internal error", "error", err.Error())
		respondError(w, "error verifying OTP", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	SetAuthCookies(w, tokens.AccessToken, tokens.RefreshToken, h.cookieCfg, h.accessDuration, h.refreshDuration)

	metrics.OTPVerifiedTotal.Inc()
	metrics.LoginsTotal.WithLabelValues(user.AuthTypeEmail).Inc()

	logger.Info("otp verified", "user_id", verified.ID)

	respondJSON(w, VerifyOTPResponse{
		Message: "OTP verified",
		User: UserResponse{
			ID:    verified.ID,
			Name:  verified.Name,
			DOB:   verified.DOB,
			Email: verified.Email,
		},
	}, http.StatusOK)
}

// Refresh handles access token renewal from the refresh cookie
// @Summary      Refresh access token
// @Description  Mint a new access token from the refresh token cookie. The refresh token is not rotated.
// @Tags         auth
// @Produce      json
// @Success      200 {object} map[string]string
// @Failure      401 {object} ErrorResponse "Missing or unknown refresh token"
// @Failure      403 {object} ErrorResponse "Invalid or expired refresh token"
// @Router       /api/auth/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	refreshToken, err := GetRefreshTokenFromCookie(r)
	if err != nil || refreshToken == "" {
		logger.Warn("refresh failed: cookie missing")
		respondError(w, "refresh token is required", httputil.CodeRefreshTokenRequired, http.StatusUnauthorized)
		return
	}

	accessToken, err := h.service.Refresh(r.Context(), strings.TrimSpace(refreshToken))
	if err != nil {
		switch {
		case errors.Is(err, ErrRefreshNotFound):
			logger.Warn("refresh failed: no matching session")
			respondError(w, "invalid refresh token", httputil.CodeInvalidRefreshToken, http.StatusUnauthorized)
		case errors.Is(err, ErrRefreshInvalid):
			logger.Warn("refresh failed: signature or expiry check")
			respondError(w, "invalid or expired refresh token", httputil.CodeRefreshTokenExpired, http.StatusForbidden)
		default:
			logger.Error("refresh failed: internal error", "error", err.Error())
			respondError(w, "error refreshing token", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	SetAccessTokenCookie(w, accessToken, h.cookieCfg, h.accessDuration)

	logger.Info("access token refreshed")

	respondJSON(w, map[string]string{"message": "access token refreshed"}, http.StatusOK)
}

// Logout clears the stored refresh token and both cookies
// @Summary      Logout
// @Description  Invalidate the current session. Idempotent.
// @Tags         auth
// @Produce      json
// @Success      200 {object} map[string]string
// @Failure      401 {object} ErrorResponse "Not authenticated"
// @Router       /api/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "no token, authorization denied", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	if err := h.service.Logout(r.Context(), userID); err != nil {
		logger.Error("logout failed", "error", err.Error())
		respondError(w, "error logging out", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	ClearAuthCookies(w, h.cookieCfg)

	logger.Info("user logged out", "user_id", userID)

	respondJSON(w, map[string]string{"message": "logged out successfully"}, http.StatusOK)
}

// Me returns the authenticated user's profile
// @Summary      Current user
// @Description  Return the authenticated user, excluding OTP and refresh token fields.
// @Tags         auth
// @Produce      json
// @Success      200 {object} map[string]any
// @Failure      401 {object} ErrorResponse "Not authenticated"
// @Failure      404 {object} ErrorResponse "User not found"
// @Router       /api/auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "no token, authorization denied", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	u, err := h.service.Me(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			respondError(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to fetch user", "error", err.Error())
		respondError(w, "error fetching user details", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]any{"user": u}, http.StatusOK)
}

// GoogleAuthURL returns the Google authorization URL
// @Summary      Google authorization URL
// @Tags         auth
// @Produce      json
// @Success      200 {object} AuthURLResponse
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Router       /api/auth/google/auth-url [get]
func (h *Handler) GoogleAuthURL(w http.ResponseWriter, r *http.Request) {
	if !h.allowRequest(w, r, "google") {
		return
	}

	respondJSON(w, AuthURLResponse{AuthURL: h.google.AuthURL()}, http.StatusOK)
}

// GoogleCallback completes the OAuth flow and establishes a session
// @Summary      Google OAuth callback
// @Description  Exchange the authorization code, verify the Google identity, set session cookies and redirect to the frontend.
// @Tags         auth
// @Param        code query string true "Authorization code"
// @Success      302
// @Failure      400 {object} ErrorResponse "Missing code or unverified email"
// @Failure      429 {object} ErrorResponse "Too many requests"
// @Router       /api/auth/google/callback [get]
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allowRequest(w, r, "google") {
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		logger.Warn("google callback: code missing")
		respondError(w, "authorization code missing", httputil.CodeAuthCodeMissing, http.StatusBadRequest)
		return
	}

	identity, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		logger.Error("google callback: exchange failed", "error", err.Error())
		respondError(w, "google login failed", httputil.CodeGoogleAuthFailed, http.StatusInternalServerError)
		return
	}

	loggedIn, tokens, err := h.service.LoginWithGoogle(r.Context(), identity)
	if err != nil {
		if errors.Is(err, ErrGoogleEmailUnproven) {
			logger.Warn("google callback: email not verified with google")
			respondError(w, "email not verified with Google", httputil.CodeGoogleEmailUnverified, http.StatusBadRequest)
			return
		}
		logger.Error("google callback: login failed", "error", err.Error())
		respondError(w, "google login failed", httputil.CodeGoogleAuthFailed, http.StatusInternalServerError)
		return
	}

	SetAuthCookies(w, tokens.AccessToken, tokens.RefreshToken, h.cookieCfg, h.accessDuration, h.refreshDuration)

	metrics.LoginsTotal.WithLabelValues(user.AuthTypeGoogle).Inc()

	logger.Info("google login", "user_id", loggedIn.ID)

	http.Redirect(w, r, h.frontendURL+"/notes", http.StatusFound)
}

// allowRequest applies the per-IP fixed-window limit for a purpose and
// records the request. Limiter errors are logged but never block the
// request.
func (h *Handler) allowRequest(w http.ResponseWriter, r *http.Request, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return false
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	return true
}

// onEmailCooldown rejects OTP dispatch when the email was mailed recently.
func (h *Handler) onEmailCooldown(w http.ResponseWriter, r *http.Request, email string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
		return false
	}
	if onCooldown {
		logger.Warn("email on cooldown", "email", email)
		respondError(w, "please wait before requesting another OTP", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return true
	}
	return false
}

func (h *Handler) setEmailCooldown(r *http.Request, email string) {
	if err := h.rateLimiter.SetEmailCooldown(r.Context(), email); err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("failed to set email cooldown", "error", err.Error())
	}
}

// validateDOB accepts YYYY-MM-DD dates for users aged 13 to 120.
func validateDOB(dob string) error {
	parsed, err := time.Parse("2006-01-02", dob)
	if err != nil {
		return errors.New("invalid date format, expected YYYY-MM-DD")
	}

	now := time.Now()
	age := now.Year() - parsed.Year()
	if now.YearDay() < parsed.YearDay() {
		age--
	}

	if age < minAge {
		return errors.New("you must be at least 13 years old to register")
	}
	if age > maxAge {
		return errors.New("invalid date of birth")
	}

	return nil
}

// sanitizeName trims whitespace and strips angle brackets.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	return strings.NewReplacer("<", "", ">", "").Replace(name)
}

// normalizeEmail lowercases and trims, so lookups are case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	ip := r.RemoteAddr
	// RemoteAddr format is "IP:port", extract just the IP
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
