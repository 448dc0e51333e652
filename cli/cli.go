package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"clubhub/config"
	"clubhub/core/auth"
	"clubhub/core/bootstrap"
	"clubhub/core/store"
	"clubhub/core/utils"
)

// Run dispatches the operator subcommands. Called from main when the
// binary is started with arguments instead of as a server.
func Run() {
	createUserCmd := flag.NewFlagSet("create-user", flag.ExitOnError)
	cuUsername := createUserCmd.String("u", "", "username")
	cuPassword := createUserCmd.String("p", "", "password")
	cuRole := createUserCmd.String("role", "Employe", "role name")

	resetPassCmd := flag.NewFlagSet("reset-password", flag.ExitOnError)
	rpUsername := resetPassCmd.String("u", "", "username")
	rpPassword := resetPassCmd.String("p", "", "new password")

	disable2FACmd := flag.NewFlagSet("disable-2fa", flag.ExitOnError)
	dfUsername := disable2FACmd.String("u", "", "username")

	if len(os.Args) < 2 {
		fmt.Println("commands: create-user, reset-password, disable-2fa")
		return
	}

	switch os.Args[1] {
	case "create-user":
		_ = createUserCmd.Parse(os.Args[2:])
		withStores(func(ctx context.Context, cfg *config.AppConfig, users store.UsersStore, roles store.RolesStore, logger *utils.Logger) {
			username := strings.ToLower(strings.TrimSpace(*cuUsername))
			if err := utils.ValidateUsername(username); err != nil {
				logger.Fatalf("username: %v", err)
			}
			if err := utils.ValidatePassword(*cuPassword); err != nil {
				logger.Fatalf("password: %v", err)
			}
			role, err := roles.GetByName(ctx, strings.TrimSpace(*cuRole))
			if err != nil || role == nil {
				logger.Fatalf("unknown role %q", *cuRole)
			}
			ph := auth.MustHashPassword(*cuPassword, cfg.Pepper)
			u := &store.User{
				Username:     username,
				PasswordHash: ph.Hash,
				PasswordSalt: ph.Salt,
				RoleID:       role.ID,
				Active:       true,
			}
			if err := users.Create(ctx, u); err != nil {
				logger.Fatalf("create: %v", err)
			}
			fmt.Printf("user %s created with role %s\n", username, role.Name)
		})
	case "reset-password":
		_ = resetPassCmd.Parse(os.Args[2:])
		withStores(func(ctx context.Context, cfg *config.AppConfig, users store.UsersStore, _ store.RolesStore, logger *utils.Logger) {
			if err := utils.ValidatePassword(*rpPassword); err != nil {
				logger.Fatalf("password: %v", err)
			}
			u := mustFindUser(ctx, users, *rpUsername, logger)
			ph := auth.MustHashPassword(*rpPassword, cfg.Pepper)
			if err := users.SetPassword(ctx, u.ID, ph.Hash, ph.Salt); err != nil {
				logger.Fatalf("set password: %v", err)
			}
			fmt.Printf("password reset for %s\n", u.Username)
		})
	case "disable-2fa":
		_ = disable2FACmd.Parse(os.Args[2:])
		withStores(func(ctx context.Context, cfg *config.AppConfig, users store.UsersStore, _ store.RolesStore, logger *utils.Logger) {
			u := mustFindUser(ctx, users, *dfUsername, logger)
			if err := users.SetTwoFactor(ctx, u.ID, false, ""); err != nil {
				logger.Fatalf("disable 2fa: %v", err)
			}
			fmt.Printf("two-factor disabled for %s\n", u.Username)
		})
	default:
		fmt.Println("unknown command")
	}
}

func withStores(fn func(ctx context.Context, cfg *config.AppConfig, users store.UsersStore, roles store.RolesStore, logger *utils.Logger)) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer db.Close()
	ctx := context.Background()
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		logger.Fatalf("migrations: %v", err)
	}
	if err := bootstrap.EnsureDefaults(ctx, db, cfg, logger); err != nil {
		logger.Fatalf("seed defaults: %v", err)
	}
	fn(ctx, cfg, store.NewUsersStore(db), store.NewRolesStore(db), logger)
}

func mustFindUser(ctx context.Context, users store.UsersStore, raw string, logger *utils.Logger) *store.User {
	username := strings.ToLower(strings.TrimSpace(raw))
	u, err := users.GetByUsername(ctx, username)
	if err != nil {
		logger.Fatalf("lookup: %v", err)
	}
	if u == nil {
		logger.Fatalf("no such user %q", username)
	}
	return u
}
