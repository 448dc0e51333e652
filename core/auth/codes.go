package auth

// Error codes carried in 401 bodies that tell clients the stored token
// is no longer usable. Clients treat all five as a forced logout.
const (
	CodeSessionTerminated = "SESSION_TERMINATED"
	CodeSessionExpired    = "SESSION_EXPIRED"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeUserInactive      = "USER_INACTIVE"
)

// Two-factor status values reported by GET /auth/2fa/status.
// ENABLED_NO_SECRET is the repair state: the flag is on but the seed
// is missing or undecryptable.
const (
	TwoFactorActive          = "ACTIVE"
	TwoFactorEnabledNoSecret = "ENABLED_NO_SECRET"
	TwoFactorDisabled        = "DISABLED"
)

// Setup reasons attached to a 2FA challenge so the client can explain
// why it is showing a QR code.
const (
	SetupReasonStandard      = "standard"
	SetupReasonForcedNew     = "forced-new"
	SetupReasonRepairMissing = "repair-missing-secret"
)
