package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"clubhub/core/auth"
	"clubhub/core/store"
)

type verify2FARequest struct {
	Token         string `json:"token"`
	TwoFactorCode string `json:"twoFactorCode"`
}

// Verify2FA completes the second login step. The challenge survives a
// wrong code so the user can retry until it expires.
func (h *AuthHandler) Verify2FA(w http.ResponseWriter, r *http.Request) {
	var req verify2FARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "bad request"})
		return
	}
	ip := clientIPFromRequest(r)
	ch, err := h.challenges.Get(r.Context(), strings.TrimSpace(req.Token))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	if ch == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorCode": "CHALLENGE_EXPIRED", "message": "challenge expired or unknown"})
		return
	}
	user, err := h.users.GetByID(r.Context(), ch.UserID)
	if err != nil || user == nil || !user.Active {
		_ = h.challenges.Delete(r.Context(), ch.Token)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorCode": "ACCOUNT_DISABLED", "message": "account unavailable"})
		return
	}

	// A pending secret on the challenge supersedes the stored one; it
	// becomes permanent only after the user proves they enrolled it.
	secretEnc := ch.PendingSecretEnc
	if secretEnc == "" {
		secretEnc = user.TOTPSecretEnc
	}
	secret, err := auth.DecryptTOTPSecret(secretEnc, h.cfg.Pepper)
	if err != nil || strings.TrimSpace(secret) == "" {
		h.logActivity(r.Context(), &user.ID, user.Username, "auth.2fa_verify", store.ActivityStatusFailure, "secret unavailable", ip)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorCode": "INVALID_2FA_CODE", "message": "two-factor verification unavailable"})
		return
	}
	ok, err := auth.VerifyTOTP(secret, req.TwoFactorCode, time.Now(), auth.DefaultTOTPConfig())
	if err != nil || !ok {
		h.logActivity(r.Context(), &user.ID, user.Username, "auth.2fa_verify", store.ActivityStatusFailure, "invalid code", ip)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorCode": "INVALID_2FA_CODE", "message": "invalid two-factor code"})
		return
	}
	if ch.PendingSecretEnc != "" {
		if err := h.users.SetTwoFactor(r.Context(), user.ID, true, ch.PendingSecretEnc); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
			return
		}
		user.TOTPSecretEnc = ch.PendingSecretEnc
		user.TwoFactorEnabled = true
	}
	_ = h.challenges.DeleteForUser(r.Context(), user.ID)
	h.logActivity(r.Context(), &user.ID, user.Username, "auth.2fa_verify", store.ActivityStatusSuccess, "", ip)
	h.finishLogin(w, r, user, true)
}

// TwoFAStatus reports the tri-state used by clients to drive the
// repair flow.
func (h *AuthHandler) TwoFAStatus(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorCode": auth.CodeInvalidToken, "message": "unauthorized"})
		return
	}
	status := auth.TwoFactorDisabled
	hasSecret := false
	if secret, err := auth.DecryptTOTPSecret(user.TOTPSecretEnc, h.cfg.Pepper); err == nil && strings.TrimSpace(secret) != "" {
		hasSecret = true
	}
	if user.TwoFactorEnabled {
		if hasSecret {
			status = auth.TwoFactorActive
		} else {
			status = auth.TwoFactorEnabledNoSecret
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"hasSecret": hasSecret,
		"username":  user.Username,
	})
}

type enable2FARequest struct {
	ForceNewSecret bool `json:"forceNewSecret"`
}

func (h *AuthHandler) TwoFAEnable(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorCode": auth.CodeInvalidToken, "message": "unauthorized"})
		return
	}
	var req enable2FARequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	ip := clientIPFromRequest(r)

	existingSecret, decErr := auth.DecryptTOTPSecret(user.TOTPSecretEnc, h.cfg.Pepper)
	hasSecret := decErr == nil && strings.TrimSpace(existingSecret) != ""

	isAlreadyEnabled := user.TwoFactorEnabled && hasSecret && !req.ForceNewSecret
	isReactivation := !user.TwoFactorEnabled && hasSecret && !req.ForceNewSecret
	isNewSetup := !isAlreadyEnabled && !isReactivation

	secret := existingSecret
	secretEnc := user.TOTPSecretEnc
	if isNewSetup {
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
		secret = newSecret
		secretEnc = enc
	}
	if !isAlreadyEnabled {
		if err := h.users.SetTwoFactor(r.Context(), user.ID, true, secretEnc); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
			return
		}
	}
	uri := auth.BuildTOTPProvisioningURI(h.cfg.TwoFactor.Issuer, user.Username, secret)
	qr, err := qrDataURI(uri)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	h.logActivity(r.Context(), &user.ID, user.Username, "auth.2fa_enable", store.ActivityStatusSuccess, "", ip)
	writeJSON(w, http.StatusOK, map[string]any{
		"qrCode":           qr,
		"manualEntryKey":   secret,
		"isReactivation":   isReactivation,
		"isAlreadyEnabled": isAlreadyEnabled,
		"isNewSetup":       isNewSetup,
	})
}

type disable2FARequest struct {
	KeepSecret bool `json:"keepSecret"`
}

// TwoFADisable turns 2FA off and, unless asked to keep it, discards
// the seed. Every active session of the user is terminated so stolen
// tokens cannot outlive the weaker auth level.
func (h *AuthHandler) TwoFADisable(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorCode": auth.CodeInvalidToken, "message": "unauthorized"})
		return
	}
	var req disable2FARequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	ip := clientIPFromRequest(r)

	if !user.TwoFactorEnabled {
		writeJSON(w, http.StatusOK, map[string]any{
			"wasAlreadyDisabled": true,
			"secretRemoved":      false,
			"sessionsTerminated": 0,
		})
		return
	}
	secretEnc := user.TOTPSecretEnc
	secretRemoved := false
	if !req.KeepSecret {
		secretEnc = ""
		secretRemoved = strings.TrimSpace(user.TOTPSecretEnc) != ""
	}
	if err := h.users.SetTwoFactor(r.Context(), user.ID, false, secretEnc); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	_ = h.challenges.DeleteForUser(r.Context(), user.ID)
	terminated, err := h.sessions.TerminateAllForUser(r.Context(), user.ID, store.LogoutTwoFactorDisabled, user.Username)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	h.logActivity(r.Context(), &user.ID, user.Username, "auth.2fa_disable", store.ActivityStatusSuccess, "", ip)
	writeJSON(w, http.StatusOK, map[string]any{
		"wasAlreadyDisabled": false,
		"secretRemoved":      secretRemoved,
		"sessionsTerminated": terminated,
	})
}

// TwoFARegenerate replaces the seed outright for an authenticated
// user. The old seed stops working immediately.
func (h *AuthHandler) TwoFARegenerate(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorCode": auth.CodeInvalidToken, "message": "unauthorized"})
		return
	}
	ip := clientIPFromRequest(r)
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
	// the enabled flag is left as-is; regenerate only rotates the seed
	if err := h.users.SetTwoFactor(r.Context(), user.ID, user.TwoFactorEnabled, enc); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	uri := auth.BuildTOTPProvisioningURI(h.cfg.TwoFactor.Issuer, user.Username, newSecret)
	qr, err := qrDataURI(uri)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	h.logActivity(r.Context(), &user.ID, user.Username, "auth.2fa_regenerate", store.ActivityStatusSuccess, "", ip)
	writeJSON(w, http.StatusOK, map[string]any{
		"qrCode":         qr,
		"manualEntryKey": newSecret,
	})
}
