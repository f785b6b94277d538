package httputil

// Machine-readable error codes returned alongside human-readable messages.
const (
	CodeInvalidRequestBody = "invalid_request_body"
	CodeMissingFields      = "missing_fields"
	CodeInvalidEmailFormat = "invalid_email_format"
	CodeInvalidDOB         = "invalid_dob"
	CodeUserAlreadyExists  = "user_already_exists"
	CodeUserNotFound       = "user_not_found"
	CodeInvalidOTP         = "invalid_otp"
	CodeOTPDeliveryFailed  = "otp_delivery_failed"

	CodeMissingAuth           = "missing_auth"
	CodeInvalidAuthHeader     = "invalid_auth_header"
	CodeInvalidToken          = "invalid_token"
	CodeTokenExpired          = "token_expired"
	CodeRefreshTokenRequired  = "refresh_token_required"
	CodeInvalidRefreshToken   = "invalid_refresh_token"
	CodeRefreshTokenExpired   = "refresh_token_expired"
	CodeGoogleAuthFailed      = "google_auth_failed"
	CodeGoogleEmailUnverified = "google_email_unverified"
	CodeAuthCodeMissing       = "auth_code_missing"

	CodeNoteNotFound          = "note_not_found"
	CodeInvalidNoteID         = "invalid_note_id"
	CodeTitleContentRequired  = "title_content_required"

	CodeTooManyRequests = "too_many_requests"
	CodeCooldownActive  = "cooldown_active"
	CodeInternalError   = "internal_error"
)
