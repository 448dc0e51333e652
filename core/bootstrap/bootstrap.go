package bootstrap

import (
	"context"
	"database/sql"

	"clubhub/config"
	"clubhub/core/auth"
	"clubhub/core/rbac"
	"clubhub/core/store"
	"clubhub/core/utils"
)

// Built-in roles seeded on first start. The administrator role carries
// the wildcard permission and therefore passes every check.
var defaultRoles = []rbac.Role{
	{Name: "Administrateur", Permissions: []string{rbac.Wildcard}},
	{Name: "Manager", Permissions: []string{
		"USERS_VIEW", "SESSIONS_VIEW", "SESSIONS_TERMINATE", "ACTIVITIES_VIEW",
		"STATIONS_VIEW", "STATIONS_MANAGE", "GAME_SESSIONS_VIEW", "GAME_SESSIONS_MANAGE",
	}},
	{Name: "Employe", Permissions: []string{
		"STATIONS_VIEW", "GAME_SESSIONS_VIEW", "GAME_SESSIONS_MANAGE",
	}},
}

// EnsureDefaults seeds the built-in roles and the default admin user.
func EnsureDefaults(ctx context.Context, db *sql.DB, cfg *config.AppConfig, logger *utils.Logger) error {
	users := store.NewUsersStore(db)
	roles := store.NewRolesStore(db)
	return EnsureDefaultsWithStores(ctx, users, roles, cfg, logger)
}

func EnsureDefaultsWithStores(ctx context.Context, users store.UsersStore, roles store.RolesStore, cfg *config.AppConfig, logger *utils.Logger) error {
	var adminRole *store.Role
	for _, r := range defaultRoles {
		ensured, err := roles.Ensure(ctx, r.Name, r.Permissions)
		if err != nil {
			return err
		}
		if adminRole == nil {
			adminRole = ensured
		}
	}
	existing, err := users.GetByUsername(ctx, "admin")
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	ph := auth.MustHashPassword("admin123", cfg.Pepper)
	u := &store.User{
		Username:     "admin",
		PasswordHash: ph.Hash,
		PasswordSalt: ph.Salt,
		RoleID:       adminRole.ID,
		Active:       true,
	}
	if err := users.Create(ctx, u); err != nil {
		return err
	}
	if logger != nil {
		logger.Printf("default admin created; change the password")
	}
	return nil
}

// LoadPolicy builds the in-memory rbac policy from stored roles.
func LoadPolicy(ctx context.Context, roles store.RolesStore, policy *rbac.Policy) error {
	stored, err := roles.ListAll(ctx)
	if err != nil {
		return err
	}
	out := make([]rbac.Role, 0, len(stored))
	for _, r := range stored {
		out = append(out, rbac.Role{Name: r.Name, Permissions: r.Permissions})
	}
	policy.Replace(out)
	return nil
}
