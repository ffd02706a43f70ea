package turnstile

// MaxTokenLength is the largest client token accepted before any network
// call is made; the verification service rejects longer tokens anyway.
const MaxTokenLength = 2048

// ErrorCodeInvalidInput is the error code recorded when the token fails
// the local shape check (empty or oversized).
const ErrorCodeInvalidInput = "invalid-input-response"

// Site-key environments.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// ValidEnvironment reports whether env is a known site-key environment.
func ValidEnvironment(env string) bool {
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		return true
	}
	return false
}

// VerifyRequest carries one verification attempt to a Provider.
type VerifyRequest struct {
	Secret         string
	Token          string
	RemoteIP       string
	IdempotencyKey string
}

// Outcome is the verification service's answer.
type Outcome struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts,omitempty"`
	Hostname    string   `json:"hostname,omitempty"`
	ErrorCodes  []string `json:"error-codes,omitempty"`
}

// Result is what the gateway reports to callers. ErrorCodes are for
// server-side logging only and must not be echoed to end users.
type Result struct {
	OK         bool
	ErrorCodes []string
}
