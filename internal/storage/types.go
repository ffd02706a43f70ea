package storage

import "time"

// User is an admin back-office account. Passwords are stored as bcrypt
// hashes, never in recoverable form.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string // admin, manager or user
	IsActive     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
}

// APIKey is a managed third-party service credential. The raw key is
// returned exactly once at creation; KeyDigest (SHA-256) is used for
// verification and EncryptedKey (AES-GCM) only for administrative display.
type APIKey struct {
	ID           string
	Name         string
	EncryptedKey string
	KeyDigest    string
	Service      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CreatedBy    string
	LastUsed     *time.Time
	ExpiresAt    *time.Time
	IsActive     bool
}

// SiteKey is a Turnstile site-key configuration. SecretKey holds the
// encrypted form of the verification secret.
type SiteKey struct {
	ID          string
	Name        string
	Environment string // development, staging or production
	SiteKey     string
	SecretKey   string
	Domain      string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CreatedBy   string
	LastUsed    *time.Time
}

// Audit log kinds.
const (
	AuditKindAPIKey  = "apikey"
	AuditKindSiteKey = "sitekey"
)

// Audit log actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionViewed  = "viewed"
	ActionUsed    = "used"
)

// AuditEntry is an append-only record of a mutating or sensitive-read
// operation on an API key or site key.
type AuditEntry struct {
	ID          string
	Kind        string // AuditKindAPIKey or AuditKindSiteKey
	Action      string
	SubjectID   string
	SubjectName string
	Service     string
	PerformedBy string
	Timestamp   time.Time
	IPAddress   string
	UserAgent   string
	Details     string
}

// AuditFilter narrows ListAuditEntries results. Zero values match everything.
type AuditFilter struct {
	Kind   string
	Action string
	From   time.Time
	To     time.Time
}

// AnalyticsBucket aggregates verification outcomes for one calendar day.
// Total == Successful + Failed always holds.
type AnalyticsBucket struct {
	Date       string // YYYY-MM-DD
	Total      int64
	Successful int64
	Failed     int64
}
