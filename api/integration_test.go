package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clubhub/api"
	"clubhub/client"
	"clubhub/config"
	"clubhub/core/auth"
	"clubhub/core/bootstrap"
	"clubhub/core/store"
)

type testEnv struct {
	cfg      *config.AppConfig
	baseURL  string
	users    store.UsersStore
	roles    store.RolesStore
	sessions store.SessionStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.AppConfig{
		DBPath:     ":memory:",
		AppEnv:     "test",
		Pepper:     "test-pepper",
		SessionTTL: 6 * time.Hour,
		TwoFactor:  config.TwoFactorConfig{Issuer: "ClubHub", ChallengeTTL: 5 * time.Minute},
		Security:   config.SecurityConfig{LoginRateBurst: 1000, LoginRatePerMinute: 1000, InactivityDefaultMin: 30},
	}
	db, err := store.NewDB(cfg, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if err := store.ApplyMigrations(ctx, db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := bootstrap.EnsureDefaults(ctx, db, cfg, nil); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	srv := api.NewServer(cfg, db, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{
		cfg:      cfg,
		baseURL:  ts.URL,
		users:    store.NewUsersStore(db),
		roles:    store.NewRolesStore(db),
		sessions: store.NewSessionsStore(db),
	}
}

func (e *testEnv) newClient() (*client.Client, client.TokenStore, *client.LogoutBus) {
	tokens := client.NewMemoryTokenStore()
	bus := client.NewLogoutBus()
	return client.New(e.baseURL, tokens, bus), tokens, bus
}

// seedUser creates a user in the named built-in role. secret, when
// non-empty, is stored encrypted with two-factor enabled.
func (e *testEnv) seedUser(t *testing.T, username, password, roleName, secret string) *store.User {
	t.Helper()
	ctx := context.Background()
	role, err := e.roles.GetByName(ctx, roleName)
	if err != nil || role == nil {
		t.Fatalf("role %s: %v", roleName, err)
	}
	ph := auth.MustHashPassword(password, e.cfg.Pepper)
	u := &store.User{
		Username:     username,
		PasswordHash: ph.Hash,
		PasswordSalt: ph.Salt,
		RoleID:       role.ID,
		Active:       true,
	}
	if secret != "" {
		enc, err := auth.EncryptTOTPSecret(secret, e.cfg.Pepper)
		if err != nil {
			t.Fatalf("encrypt secret: %v", err)
		}
		u.TwoFactorEnabled = true
		u.TOTPSecretEnc = enc
	}
	if err := e.users.Create(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	apiErr, ok := err.(*client.APIError)
	if !ok {
		t.Fatalf("expected *client.APIError, got %T: %v", err, err)
	}
	return apiErr.Code
}

func TestLoginLogoutFlow(t *testing.T) {
	env := newTestEnv(t)
	cl, tokens, _ := env.newClient()
	ctx := context.Background()

	res, err := cl.Login(ctx, "admin", "admin123", nil)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.RequireTwoFactor {
		t.Fatalf("default admin should not require 2fa")
	}
	if res.Token == "" || res.User == nil || res.User.Username != "admin" {
		t.Fatalf("login result: %+v", res)
	}
	if res.ExpiresIn != 360 {
		t.Fatalf("expiresIn = %d minutes", res.ExpiresIn)
	}
	if res.User.Role == nil || res.User.Role.Name != "Administrateur" {
		t.Fatalf("role = %+v", res.User.Role)
	}

	status, err := cl.GetTwoFactorStatus(ctx)
	if err != nil {
		t.Fatalf("2fa status: %v", err)
	}
	if status.Status != auth.TwoFactorDisabled || status.HasSecret {
		t.Fatalf("status = %+v", status)
	}

	oldToken := res.Token
	if err := cl.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := tokens.Token(); ok {
		t.Fatalf("token survived logout")
	}

	// the old token is dead server-side, not just forgotten locally
	req, _ := http.NewRequest(http.MethodGet, env.baseURL+"/auth/2fa/status", nil)
	req.Header.Set("Authorization", "Bearer "+oldToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("reuse request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("reused token status = %d", resp.StatusCode)
	}
	var body struct {
		ErrorCode string `json:"errorCode"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.ErrorCode != auth.CodeSessionTerminated {
		t.Fatalf("reused token code = %q", body.ErrorCode)
	}
}

func TestLoginRejections(t *testing.T) {
	env := newTestEnv(t)
	cl, _, _ := env.newClient()
	ctx := context.Background()

	_, err := cl.Login(ctx, "admin", "wrong-password", nil)
	if code := apiErrorCode(t, err); code != "INVALID_CREDENTIALS" {
		t.Fatalf("wrong password code = %q", code)
	}
	_, err = cl.Login(ctx, "ghost", "whatever1", nil)
	if code := apiErrorCode(t, err); code != "INVALID_CREDENTIALS" {
		t.Fatalf("unknown user code = %q", code)
	}

	u := env.seedUser(t, "parked", "S3cure#Pass", "Employe", "")
	if err := env.users.SetActive(ctx, u.ID, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	_, err = cl.Login(ctx, "parked", "S3cure#Pass", nil)
	if code := apiErrorCode(t, err); code != "ACCOUNT_DISABLED" {
		t.Fatalf("disabled account code = %q", code)
	}
}

func TestTwoFactorLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	secret, err := auth.GenerateTOTPSecret()
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	env.seedUser(t, "alice", "S3cure#Pass", "Manager", secret)
	cl, tokens, _ := env.newClient()
	ctx := context.Background()

	res, err := cl.Login(ctx, "alice", "S3cure#Pass", nil)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !res.RequireTwoFactor || res.TempToken == "" {
		t.Fatalf("expected 2fa challenge: %+v", res)
	}
	if res.SetupReason != auth.SetupReasonStandard || res.IsNewSetup || res.QRCodeURL != "" {
		t.Fatalf("established seed should not re-provision: %+v", res)
	}
	if _, ok := tokens.Token(); ok {
		t.Fatalf("token stored before second factor")
	}

	// wrong code keeps the challenge alive
	_, err = cl.VerifyTwoFactor(ctx, res.TempToken, "000000")
	if code := apiErrorCode(t, err); code != "INVALID_2FA_CODE" {
		t.Fatalf("bad code = %q", code)
	}

	code, err := auth.ComputeTOTPCode(secret, time.Now().UTC(), auth.DefaultTOTPConfig())
	if err != nil {
		t.Fatalf("totp code: %v", err)
	}
	full, err := cl.VerifyTwoFactor(ctx, res.TempToken, code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if full.Token == "" || full.User == nil || full.User.Username != "alice" {
		t.Fatalf("verify result: %+v", full)
	}
	if _, ok := tokens.Token(); !ok {
		t.Fatalf("token not stored after verify")
	}

	// the challenge is consumed; replay answers CHALLENGE_EXPIRED
	cl2, _, _ := env.newClient()
	_, err = cl2.VerifyTwoFactor(ctx, res.TempToken, code)
	if got := apiErrorCode(t, err); got != "CHALLENGE_EXPIRED" {
		t.Fatalf("replay code = %q", got)
	}
}

func TestTwoFactorRepairFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.seedUser(t, "bob", "S3cure#Pass", "Manager", "")
	// enabled flag without a stored seed is the broken state the login
	// path repairs
	if err := env.users.SetTwoFactor(ctx, u.ID, true, ""); err != nil {
		t.Fatalf("set broken 2fa: %v", err)
	}
	cl, _, _ := env.newClient()

	res, err := cl.Login(ctx, "bob", "S3cure#Pass", nil)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !res.RequireTwoFactor || !res.IsNewSetup {
		t.Fatalf("expected provisioning challenge: %+v", res)
	}
	if res.SetupReason != auth.SetupReasonRepairMissing {
		t.Fatalf("setup reason = %q", res.SetupReason)
	}
	if res.ManualEntryKey == "" || res.QRCodeURL == "" {
		t.Fatalf("provisioning material missing: %+v", res)
	}

	code, err := auth.ComputeTOTPCode(res.ManualEntryKey, time.Now().UTC(), auth.DefaultTOTPConfig())
	if err != nil {
		t.Fatalf("totp code: %v", err)
	}
	if _, err := cl.VerifyTwoFactor(ctx, res.TempToken, code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// the pending seed was promoted; status is ACTIVE now
	status, err := cl.GetTwoFactorStatus(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != auth.TwoFactorActive || !status.HasSecret {
		t.Fatalf("status after repair = %+v", status)
	}
}

func TestForcedQRCodeRegeneration(t *testing.T) {
	env := newTestEnv(t)
	secret, _ := auth.GenerateTOTPSecret()
	env.seedUser(t, "alice", "S3cure#Pass", "Manager", secret)
	cl, _, _ := env.newClient()
	ctx := context.Background()

	res, err := cl.Login(ctx, "alice", "S3cure#Pass", &auth.LoginOptions{ForceQRCodeRegeneration: true})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !res.IsNewSetup || res.SetupReason != auth.SetupReasonForcedNew {
		t.Fatalf("forced regeneration: %+v", res)
	}
	if res.ManualEntryKey == secret || res.ManualEntryKey == "" {
		t.Fatalf("expected a fresh seed")
	}

	// the old seed keeps working until the new one is proven
	oldCode, _ := auth.ComputeTOTPCode(secret, time.Now().UTC(), auth.DefaultTOTPConfig())
	if _, err := cl.VerifyTwoFactor(ctx, res.TempToken, oldCode); err == nil {
		t.Fatalf("old seed accepted against pending challenge")
	}
}

func TestForcedLogoutOnAdminTerminate(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "carol", "S3cure#Pass", "Employe", "")
	ctx := context.Background()

	userCl, userTokens, bus := env.newClient()
	var events []client.LogoutEvent
	bus.Subscribe(func(ev client.LogoutEvent) { events = append(events, ev) })
	if _, err := userCl.Login(ctx, "carol", "S3cure#Pass", nil); err != nil {
		t.Fatalf("user login: %v", err)
	}

	adminCl, _, _ := env.newClient()
	if _, err := adminCl.Login(ctx, "admin", "admin123", nil); err != nil {
		t.Fatalf("admin login: %v", err)
	}
	sessions, err := adminCl.ListSessions(ctx, 30)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	var target string
	for _, s := range sessions.Active {
		if s.Username == "carol" {
			target = s.ID
		}
	}
	if target == "" {
		t.Fatalf("carol's session not listed: %+v", sessions)
	}
	username, err := adminCl.TerminateSession(ctx, target)
	if err != nil || username != "carol" {
		t.Fatalf("terminate = %q, %v", username, err)
	}

	// carol's next call comes back 401 and tears down her local state
	_, err = userCl.GetTwoFactorStatus(ctx)
	if code := apiErrorCode(t, err); code != auth.CodeSessionTerminated {
		t.Fatalf("post-terminate code = %q", code)
	}
	if _, ok := userTokens.Token(); ok {
		t.Fatalf("token survived forced logout")
	}
	if len(events) != 1 || events[0].ErrorCode != auth.CodeSessionTerminated {
		t.Fatalf("events = %+v", events)
	}
}

func TestMonitoringTerminateErrors(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "carol", "S3cure#Pass", "Employe", "")
	ctx := context.Background()

	adminCl, _, _ := env.newClient()
	if _, err := adminCl.Login(ctx, "admin", "admin123", nil); err != nil {
		t.Fatalf("admin login: %v", err)
	}

	_, err := adminCl.TerminateSession(ctx, "no-such-session")
	if code := apiErrorCode(t, err); code != "SESSION_NOT_FOUND" {
		t.Fatalf("unknown session code = %q", code)
	}

	userCl, _, _ := env.newClient()
	if _, err := userCl.Login(ctx, "carol", "S3cure#Pass", nil); err != nil {
		t.Fatalf("user login: %v", err)
	}
	sessions, _ := adminCl.ListSessions(ctx, 30)
	var target string
	for _, s := range sessions.Active {
		if s.Username == "carol" {
			target = s.ID
		}
	}
	if _, err := adminCl.TerminateSession(ctx, target); err != nil {
		t.Fatalf("first terminate: %v", err)
	}
	_, err = adminCl.TerminateSession(ctx, target)
	if code := apiErrorCode(t, err); code != "SESSION_ALREADY_TERMINATED" {
		t.Fatalf("double terminate code = %q", code)
	}

	// the employe role holds no monitoring permissions at all
	userCl2, _, _ := env.newClient()
	if _, err := userCl2.Login(ctx, "carol", "S3cure#Pass", nil); err != nil {
		t.Fatalf("relogin: %v", err)
	}
	_, err = userCl2.ListSessions(ctx, 30)
	if code := apiErrorCode(t, err); code != "INSUFFICIENT_PERMISSIONS" {
		t.Fatalf("employe list code = %q", code)
	}
	_, err = userCl2.TerminateSession(ctx, target)
	if code := apiErrorCode(t, err); code != "INSUFFICIENT_PERMISSIONS" {
		t.Fatalf("employe terminate code = %q", code)
	}
}

func TestMonitoringSessionsPartition(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "carol", "S3cure#Pass", "Employe", "")
	ctx := context.Background()

	now := time.Now().UTC()
	fresh := &store.SessionRecord{
		ID: "fresh", Token: "tok-fresh", UserID: u.ID, Username: u.Username,
		CreatedAt: now.Add(-time.Hour), LastActivityAt: now.Add(-time.Minute),
		ExpiresAt: now.Add(5 * time.Hour), Active: true,
	}
	idle := &store.SessionRecord{
		ID: "idle", Token: "tok-idle", UserID: u.ID, Username: u.Username,
		CreatedAt: now.Add(-2 * time.Hour), LastActivityAt: now.Add(-45 * time.Minute),
		ExpiresAt: now.Add(4 * time.Hour), Active: true,
	}
	for _, sr := range []*store.SessionRecord{fresh, idle} {
		if err := env.sessions.Save(ctx, sr); err != nil {
			t.Fatalf("save %s: %v", sr.ID, err)
		}
	}
	logoutAt := now.Add(-30 * time.Minute)
	_ = env.sessions.Save(ctx, &store.SessionRecord{
		ID: "dead", Token: "tok-dead", UserID: u.ID, Username: u.Username,
		CreatedAt: now.Add(-3 * time.Hour), LastActivityAt: logoutAt,
		ExpiresAt: now.Add(3 * time.Hour), Active: true,
	})
	if err := env.sessions.Terminate(ctx, "dead", store.LogoutExplicit, u.Username); err != nil {
		t.Fatalf("terminate dead: %v", err)
	}

	adminCl, _, _ := env.newClient()
	if _, err := adminCl.Login(ctx, "admin", "admin123", nil); err != nil {
		t.Fatalf("admin login: %v", err)
	}

	res, err := adminCl.ListSessions(ctx, 30)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// admin's own session plus "fresh" are recent; "idle" is live but
	// past the threshold; "dead" is terminated
	if res.Counts.Active != 2 || res.Counts.Inactive != 2 || res.Counts.Total != 4 {
		t.Fatalf("counts = %+v", res.Counts)
	}
	inactiveIDs := map[string]bool{}
	for _, s := range res.Inactive {
		inactiveIDs[s.ID] = true
	}
	if !inactiveIDs["idle"] || !inactiveIDs["dead"] {
		t.Fatalf("inactive bucket = %v", inactiveIDs)
	}
	for _, s := range res.Inactive {
		if s.ID == "idle" && !s.Active {
			t.Fatalf("idle session must stay live, only bucketed inactive")
		}
	}

	// a 60 minute threshold pulls the idle session back into active
	res, err = adminCl.ListSessions(ctx, 60)
	if err != nil {
		t.Fatalf("list 60: %v", err)
	}
	if res.Counts.Active != 3 || res.Counts.Inactive != 1 {
		t.Fatalf("counts at 60m = %+v", res.Counts)
	}
}

func TestTwoFactorDisableTerminatesSessions(t *testing.T) {
	env := newTestEnv(t)
	secret, _ := auth.GenerateTOTPSecret()
	env.seedUser(t, "alice", "S3cure#Pass", "Manager", secret)
	cl, tokens, _ := env.newClient()
	ctx := context.Background()

	res, err := cl.Login(ctx, "alice", "S3cure#Pass", nil)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	code, _ := auth.ComputeTOTPCode(secret, time.Now().UTC(), auth.DefaultTOTPConfig())
	if _, err := cl.VerifyTwoFactor(ctx, res.TempToken, code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	out, err := cl.DisableTwoFactor(ctx, false)
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if out.WasAlreadyDisabled || !out.SecretRemoved {
		t.Fatalf("disable result: %+v", out)
	}
	if out.SessionsTerminated != 1 {
		t.Fatalf("sessionsTerminated = %d", out.SessionsTerminated)
	}

	// the caller's own session died with the rest
	_, err = cl.GetTwoFactorStatus(ctx)
	if got := apiErrorCode(t, err); got != auth.CodeSessionTerminated {
		t.Fatalf("post-disable code = %q", got)
	}
	if _, ok := tokens.Token(); ok {
		t.Fatalf("token survived 2fa disable")
	}

	// 2FA is off now, so login yields a full session; disabling again is a
	// reported no-op rather than an error
	if _, err := cl.Login(ctx, "alice", "S3cure#Pass", nil); err != nil {
		t.Fatalf("relogin: %v", err)
	}
	out, err = cl.DisableTwoFactor(ctx, false)
	if err != nil {
		t.Fatalf("second disable: %v", err)
	}
	if !out.WasAlreadyDisabled || out.SecretRemoved || out.SessionsTerminated != 0 {
		t.Fatalf("second disable result: %+v", out)
	}
}

func TestTwoFactorEnableStates(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "bob", "S3cure#Pass", "Manager", "")
	cl, _, _ := env.newClient()
	ctx := context.Background()

	if _, err := cl.Login(ctx, "bob", "S3cure#Pass", nil); err != nil {
		t.Fatalf("login: %v", err)
	}
	out, err := cl.EnableTwoFactor(ctx, false)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !out.IsNewSetup || out.IsAlreadyEnabled || out.IsReactivation {
		t.Fatalf("first enable: %+v", out)
	}
	if out.ManualEntryKey == "" || out.QRCode == "" {
		t.Fatalf("provisioning material missing")
	}
	firstKey := out.ManualEntryKey

	out, err = cl.EnableTwoFactor(ctx, false)
	if err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if !out.IsAlreadyEnabled || out.ManualEntryKey != firstKey {
		t.Fatalf("idempotent enable: %+v", out)
	}

	out, err = cl.EnableTwoFactor(ctx, true)
	if err != nil {
		t.Fatalf("forced enable: %v", err)
	}
	if !out.IsNewSetup || out.ManualEntryKey == firstKey {
		t.Fatalf("forceNewSecret kept the old seed: %+v", out)
	}

	regen, err := cl.RegenerateTwoFactor(ctx)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if regen.ManualEntryKey == "" || regen.ManualEntryKey == out.ManualEntryKey {
		t.Fatalf("regenerate did not rotate the seed")
	}
}

func TestActivitiesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "carol", "S3cure#Pass", "Employe", "")
	ctx := context.Background()

	userCl, _, _ := env.newClient()
	if _, err := userCl.Login(ctx, "carol", "S3cure#Pass", nil); err != nil {
		t.Fatalf("user login: %v", err)
	}
	badCl, _, _ := env.newClient()
	_, _ = badCl.Login(ctx, "carol", "wrong-password", nil)

	adminCl, _, _ := env.newClient()
	if _, err := adminCl.Login(ctx, "admin", "admin123", nil); err != nil {
		t.Fatalf("admin login: %v", err)
	}

	res, err := adminCl.ListActivities(ctx, client.ActivityQuery{})
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if res.Pagination.Total < 3 {
		t.Fatalf("expected at least three rows, got %d", res.Pagination.Total)
	}
	if res.Stats.Failure < 1 || res.Stats.Success < 2 {
		t.Fatalf("stats = %+v", res.Stats)
	}

	failures, err := adminCl.ListActivities(ctx, client.ActivityQuery{Status: "failure", Action: "auth.login"})
	if err != nil {
		t.Fatalf("filtered: %v", err)
	}
	if failures.Pagination.Total != 1 || failures.Data[0].Username != "carol" {
		t.Fatalf("failure filter = %+v", failures)
	}

	paged, err := adminCl.ListActivities(ctx, client.ActivityQuery{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("paged: %v", err)
	}
	if len(paged.Data) != 2 || paged.Pagination.PerPage != 2 {
		t.Fatalf("pagination = %+v", paged.Pagination)
	}
}
