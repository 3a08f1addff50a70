package authz

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Resolver computes a user's effective permissions at decision time. Nothing
// is cached: every call reads the current grants.
type Resolver struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

func NewResolver(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, now: time.Now, logger: logger}
}

// WithClock replaces the time source, for tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

func (r *Resolver) activeRoles(ctx context.Context, userID int64, now time.Time) ([]RoleAssignment, error) {
	assignments, err := r.store.RoleAssignments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load role assignments: %w", err)
	}
	return lo.Filter(assignments, func(a RoleAssignment, _ int) bool {
		return effective(a.IsActive, a.ExpiresAt, now)
	}), nil
}

// EffectivePermissions unions role grants with override grants, then removes
// override denies. Denies are applied in a separate pass so they win
// regardless of row order.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID int64) (map[string]struct{}, error) {
	now := r.now()

	roles, err := r.activeRoles(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	base := make(map[string]struct{})

	if len(roles) > 0 {
		roleIDs := lo.Map(roles, func(a RoleAssignment, _ int) int64 { return a.RoleID })
		grants, err := r.store.RolePermissions(ctx, roleIDs)
		if err != nil {
			return nil, fmt.Errorf("load role permissions: %w", err)
		}
		for _, g := range grants {
			if g.Granted {
				base[normalizePermission(g.Permission)] = struct{}{}
			}
		}
	}

	overrides, err := r.store.PermissionOverrides(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load permission overrides: %w", err)
	}
	active := lo.Filter(overrides, func(o PermissionOverride, _ int) bool {
		return effective(o.IsActive, o.ExpiresAt, now)
	})

	for _, o := range active {
		if o.Granted {
			base[normalizePermission(o.Permission)] = struct{}{}
		}
	}
	for _, o := range active {
		if !o.Granted {
			delete(base, normalizePermission(o.Permission))
		}
	}

	return base, nil
}

func (r *Resolver) IsSuperAdmin(ctx context.Context, userID int64) (bool, error) {
	roles, err := r.activeRoles(ctx, userID, r.now())
	if err != nil {
		return false, err
	}
	return lo.ContainsBy(roles, func(a RoleAssignment) bool { return a.Level == LevelSuperAdmin }), nil
}

func (r *Resolver) HasPermission(ctx context.Context, userID int64, name string) (bool, error) {
	return r.HasAnyPermission(ctx, userID, name)
}

func (r *Resolver) HasAnyPermission(ctx context.Context, userID int64, names ...string) (bool, error) {
	super, err := r.IsSuperAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if super {
		return true, nil
	}

	required := normalizePermissions(names)
	if len(required) == 0 {
		return true, nil
	}

	perms, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, name := range required {
		if _, ok := perms[name]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) HasRole(ctx context.Context, userID, roleID int64) (bool, error) {
	roles, err := r.activeRoles(ctx, userID, r.now())
	if err != nil {
		return false, err
	}
	for _, a := range roles {
		if a.Level == LevelSuperAdmin || a.RoleID == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) InGroup(ctx context.Context, userID int64, group string) (bool, error) {
	super, err := r.IsSuperAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if super {
		return true, nil
	}

	memberships, err := r.store.GroupMemberships(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load group memberships: %w", err)
	}
	now := r.now()
	return lo.ContainsBy(memberships, func(m GroupMembership) bool {
		return m.Name == group && effective(m.IsActive, m.ExpiresAt, now)
	}), nil
}

// AccessContext builds the read-only access summary for a user.
func (r *Resolver) AccessContext(ctx context.Context, userID int64) (*AccessContext, error) {
	now := r.now()

	roles, err := r.activeRoles(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	perms, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	memberships, err := r.store.GroupMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load group memberships: %w", err)
	}
	memberships = lo.Filter(memberships, func(m GroupMembership, _ int) bool {
		return effective(m.IsActive, m.ExpiresAt, now)
	})

	permissions := lo.Keys(perms)
	sort.Strings(permissions)

	departments := lo.Uniq(lo.FilterMap(memberships, func(m GroupMembership, _ int) (string, bool) {
		return m.Department, m.Department != ""
	}))
	sort.Strings(departments)

	return &AccessContext{
		Roles: lo.Map(roles, func(a RoleAssignment, _ int) RoleSummary {
			return RoleSummary{ID: a.RoleID, Name: a.RoleName, Level: a.Level}
		}),
		Groups:       lo.Uniq(lo.Map(memberships, func(m GroupMembership, _ int) string { return m.Name })),
		Permissions:  permissions,
		IsSuperAdmin: lo.ContainsBy(roles, func(a RoleAssignment) bool { return a.Level == LevelSuperAdmin }),
		IsAdmin: lo.ContainsBy(roles, func(a RoleAssignment) bool {
			return a.Level == LevelSuperAdmin || a.Level == LevelAdmin
		}),
		Departments: departments,
	}, nil
}
