package response

// SuccessResponse is a plain acknowledgement
type SuccessResponse struct {
	Message string `json:"message" example:"Operation completed"`
}

// ErrorResponse is returned by every failing endpoint
type ErrorResponse struct {
	// Machine readable error code
	// example: VALIDATION_ERROR
	Code string `json:"code"`

	// Human readable message
	// example: Invalid request data
	Message string `json:"message"`

	// Optional details
	// example: customer_name is required
	Details string `json:"details,omitempty"`
}

// TokenResponse carries a staff token pair
type TokenResponse struct {
	// JWT for protected endpoints
	// example: eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9...
	AccessToken string `json:"access_token"`

	// JWT used to obtain a new pair
	// example: eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9...
	RefreshToken string `json:"refresh_token"`
}

// Error codes shared by handlers and middleware.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeQueueFull          = "QUEUE_FULL"
	CodeAlreadyInQueue     = "ALREADY_IN_QUEUE"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeQueueNotFound      = "QUEUE_NOT_FOUND"
	CodeEntryNotFound      = "ENTRY_NOT_FOUND"
	CodeQueueInactive      = "QUEUE_INACTIVE"
	CodeForbidden          = "FORBIDDEN"
	CodeConcurrency        = "CONCURRENCY_CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
	CodeNoAuthHeader       = "NO_AUTH_HEADER"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidKioskKey    = "INVALID_KIOSK_KEY"
)
