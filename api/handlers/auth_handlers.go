package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"clubhub/config"
	"clubhub/core/auth"
	"clubhub/core/store"
	"clubhub/core/utils"
)

// AuthHandler serves login, logout and the two-factor endpoints.
type AuthHandler struct {
	cfg            *config.AppConfig
	users          store.UsersStore
	roles          store.RolesStore
	sessions       store.SessionStore
	challenges     store.ChallengeStore
	sessionManager *auth.SessionManager
	activities     store.ActivityStore
	logger         *utils.Logger
}

func NewAuthHandler(cfg *config.AppConfig, users store.UsersStore, roles store.RolesStore, sessions store.SessionStore, challenges store.ChallengeStore, sm *auth.SessionManager, activities store.ActivityStore, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, roles: roles, sessions: sessions, challenges: challenges, sessionManager: sm, activities: activities, logger: logger}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var cred auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "bad request"})
		return
	}
	cred.Username = strings.ToLower(strings.TrimSpace(cred.Username))
	if err := utils.ValidateUsername(cred.Username); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid username"})
		return
	}
	ip := clientIPFromRequest(r)
	user, err := h.users.GetByUsername(r.Context(), cred.Username)
	if err != nil || user == nil {
		h.logActivity(r.Context(), nil, cred.Username, "auth.login", store.ActivityStatusFailure, "unknown user", ip)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorCode": "INVALID_CREDENTIALS", "message": "invalid credentials"})
		return
	}
	if !user.Active {
		h.logActivity(r.Context(), &user.ID, user.Username, "auth.login", store.ActivityStatusFailure, "account disabled", ip)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorCode": "ACCOUNT_DISABLED", "message": "account disabled"})
		return
	}
	ph, _ := auth.ParsePasswordHash(user.PasswordHash, user.PasswordSalt)
	ok, err := auth.VerifyPassword(cred.Password, h.cfg.Pepper, ph)
	if err != nil || !ok {
		h.logActivity(r.Context(), &user.ID, user.Username, "auth.login", store.ActivityStatusFailure, "invalid password", ip)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorCode": "INVALID_CREDENTIALS", "message": "invalid credentials"})
		return
	}
	if user.TwoFactorEnabled {
		h.startTwoFactorChallenge(w, r, user, cred.Options != nil && cred.Options.ForceQRCodeRegeneration)
		return
	}
	h.finishLogin(w, r, user, false)
}

// startTwoFactorChallenge answers the first login step for 2FA users.
// A missing or undecryptable seed is repaired here: a fresh seed is
// provisioned and carried on the challenge until the user proves they
// scanned it.
func (h *AuthHandler) startTwoFactorChallenge(w http.ResponseWriter, r *http.Request, user *store.User, forceRegen bool) {
	ip := clientIPFromRequest(r)
	secret, decErr := auth.DecryptTOTPSecret(user.TOTPSecretEnc, h.cfg.Pepper)
	secretMissing := decErr != nil || strings.TrimSpace(secret) == ""

	setupReason := auth.SetupReasonStandard
	pendingSecretEnc := ""
	manualEntryKey := ""
	qrCodeURL := ""
	isNewSetup := false
	if secretMissing || forceRegen {
		if secretMissing {
			setupReason = auth.SetupReasonRepairMissing
		} else {
			setupReason = auth.SetupReasonForcedNew
		}
		newSecret, err := auth.GenerateTOTPSecret()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
			return
		}
		enc, err := auth.EncryptTOTPSecret(newSecret, h.cfg.Pepper)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
			return
		}
		pendingSecretEnc = enc
		manualEntryKey = newSecret
		uri := auth.BuildTOTPProvisioningURI(h.cfg.TwoFactor.Issuer, user.Username, newSecret)
		png, err := qrDataURI(uri)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
			return
		}
		qrCodeURL = png
		isNewSetup = true
	}

	token, err := auth.NewToken(24)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	now := time.Now().UTC()
	ttl := h.cfg.TwoFactor.ChallengeTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	_ = h.challenges.DeleteForUser(r.Context(), user.ID)
	ch := &store.ChallengeRecord{
		Token:            token,
		UserID:           user.ID,
		IP:               ip,
		UserAgent:        r.UserAgent(),
		SetupReason:      setupReason,
		PendingSecretEnc: pendingSecretEnc,
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
	}
	if err := h.challenges.Create(r.Context(), ch); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	h.logActivity(r.Context(), &user.ID, user.Username, "auth.2fa_challenge", store.ActivityStatusSuccess, "reason="+setupReason, ip)

	resp := map[string]any{
		"success":          true,
		"requireTwoFactor": true,
		"tempToken":        token,
		"userId":           user.ID,
		"setupReason":      setupReason,
	}
	if isNewSetup {
		resp["qrCodeUrl"] = qrCodeURL
		resp["manualEntryKey"] = manualEntryKey
		resp["isNewSetup"] = true
	}
	writeJSON(w, http.StatusOK, resp)
}

// finishLogin issues the bearer session and writes the full login
// response. Shared by the password and 2FA paths.
func (h *AuthHandler) finishLogin(w http.ResponseWriter, r *http.Request, user *store.User, via2FA bool) {
	ip := clientIPFromRequest(r)
	sess, err := h.sessionManager.Issue(r.Context(), user, ip, r.UserAgent(), via2FA)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	dto, err := h.userDTO(r.Context(), user)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	h.logActivity(r.Context(), &user.ID, user.Username, "auth.login", store.ActivityStatusSuccess, "", ip)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"token":     sess.Token,
		"user":      dto,
		"expiresIn": int(h.sessionManager.TTL().Minutes()),
	})
}

func (h *AuthHandler) userDTO(ctx context.Context, user *store.User) (*auth.UserDTO, error) {
	role, err := h.roles.GetByID(ctx, user.RoleID)
	if err != nil {
		return nil, err
	}
	dto := &auth.UserDTO{ID: user.ID, Username: user.Username, Active: user.Active}
	if role != nil {
		dto.Role = &auth.RoleDTO{ID: role.ID, Name: role.Name, Permissions: role.Permissions}
	}
	return dto, nil
}

// Logout terminates the calling session. Requires a valid bearer
// token; clients treat network failure here as non-fatal.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorCode": auth.CodeInvalidToken, "message": "unauthorized"})
		return
	}
	if err := h.sessions.Terminate(r.Context(), sess.ID, store.LogoutExplicit, sess.Username); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	h.logActivity(r.Context(), &sess.UserID, sess.Username, "auth.logout", store.ActivityStatusSuccess, "", clientIPFromRequest(r))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *AuthHandler) logActivity(ctx context.Context, userID *int64, username, action, status, details, ip string) {
	if h.activities == nil {
		return
	}
	err := h.activities.Log(ctx, &store.ActivityRecord{
		At:           time.Now().UTC(),
		UserID:       userID,
		Username:     username,
		Action:       action,
		Status:       status,
		ResourceType: "auth",
		Details:      details,
		IP:           ip,
	})
	if err != nil && h.logger != nil {
		h.logger.Errorf("activity log: %v", err)
	}
}
