package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/sangha-registry/internal/audit"
	"github.com/frahmantamala/sangha-registry/internal/auth"
	"github.com/frahmantamala/sangha-registry/internal/authz"
	authzDatamodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/authz"
	branchDatamodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/branch"
	monkDatamodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/monk"
	userDatamodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/user"
	"github.com/frahmantamala/sangha-registry/internal/core/uow"
	"github.com/frahmantamala/sangha-registry/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const seedPassword = "password"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed permissions, roles, branches and demo users. Seeding is not audited.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		lg := logger.Configure(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

		db, sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		defer sqlxDB.Close()

		mgr := uow.NewManager(db, lg)
		if _, err := audit.Install(db, mgr, cfg.Audit, lg, nil); err != nil {
			return err
		}

		return seedDatabase(cmd.Context(), mgr, cfg.Security.BCryptCost, clearData, lg)
	},
}

type roleSeed struct {
	name        string
	description string
	level       string
	permissions []string
}

var seedRoles = []roleSeed{
	{
		name:        "super-admin",
		description: "Unrestricted access",
		level:       authzDatamodel.RoleLevelSuperAdmin,
	},
	{
		name:        "registrar-admin",
		description: "Head office registrar",
		level:       authzDatamodel.RoleLevelAdmin,
		permissions: []string{
			authz.PermMonkRead, authz.PermMonkCreate, authz.PermMonkUpdate, authz.PermMonkApprove,
			authz.PermMonkDelete, authz.PermBranchRead, authz.PermAuditRead, authz.PermUserManage,
		},
	},
	{
		name:        "district-clerk",
		description: "Registers monks for one district",
		level:       authzDatamodel.RoleLevelStaff,
		permissions: []string{authz.PermMonkRead, authz.PermMonkCreate, authz.PermMonkUpdate, authz.PermBranchRead},
	},
}

type branchSeed struct {
	code, name string
	districts  [][2]string
}

var seedProvinces = []branchSeed{
	{code: "BKK", name: "Bangkok", districts: [][2]string{{"BKK-01", "Phra Nakhon"}, {"BKK-02", "Bang Rak"}}},
	{code: "CNX", name: "Chiang Mai", districts: [][2]string{{"CNX-01", "Mueang Chiang Mai"}}},
}

type userSeed struct {
	email, name string
	role        string
	groups      []string
	location    string
	district    string
}

var seedUsers = []userSeed{
	{email: "superadmin@sangha.local", name: "Super Admin", role: "super-admin", location: userDatamodel.LocationMainBranch},
	{email: "registrar@sangha.local", name: "Head Registrar", role: "registrar-admin", groups: []string{authz.GroupHeadOffice}, location: userDatamodel.LocationMainBranch},
	{email: "clerk.bkk01@sangha.local", name: "Phra Nakhon Clerk", role: "district-clerk", location: userDatamodel.LocationDistrictBranch, district: "BKK-01"},
}

// seedDatabase is idempotent: existing rows are matched on their unique
// names and left in place.
func seedDatabase(ctx context.Context, mgr *uow.Manager, bcryptCost int, clear bool, lg *slog.Logger) error {
	hash, err := auth.HashPassword(seedPassword, bcryptCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	return mgr.Do(ctx, func(tx *gorm.DB) error {
		if clear {
			if err := clearSeedData(tx); err != nil {
				return err
			}
		}

		permIDs := make(map[string]int64, len(authz.AllPermissions))
		for _, p := range authz.AllPermissions {
			row := authzDatamodel.Permission{Name: p.Name, Description: p.Description}
			if err := tx.Where(authzDatamodel.Permission{Name: p.Name}).FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("seed permission %s: %w", p.Name, err)
			}
			permIDs[p.Name] = row.ID
		}

		roleIDs := make(map[string]int64, len(seedRoles))
		for _, r := range seedRoles {
			row := authzDatamodel.Role{Name: r.name, Description: r.description, Level: r.level, IsSystem: true}
			if err := tx.Where(authzDatamodel.Role{Name: r.name}).FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("seed role %s: %w", r.name, err)
			}
			roleIDs[r.name] = row.ID
			for _, perm := range r.permissions {
				grant := authzDatamodel.RolePermission{RoleID: row.ID, PermissionID: permIDs[perm], Granted: true}
				if err := tx.Where(authzDatamodel.RolePermission{RoleID: row.ID, PermissionID: permIDs[perm]}).FirstOrCreate(&grant).Error; err != nil {
					return fmt.Errorf("seed role permission %s/%s: %w", r.name, perm, err)
				}
			}
		}

		group := authzDatamodel.Group{Name: authz.GroupHeadOffice, Department: "Administration"}
		if err := tx.Where(authzDatamodel.Group{Name: authz.GroupHeadOffice}).FirstOrCreate(&group).Error; err != nil {
			return fmt.Errorf("seed group: %w", err)
		}

		main := branchDatamodel.MainBranch{Code: "MAIN", Name: "National Office"}
		if err := tx.Where(branchDatamodel.MainBranch{Code: "MAIN"}).FirstOrCreate(&main).Error; err != nil {
			return fmt.Errorf("seed main branch: %w", err)
		}

		type districtRef struct{ province, district int64 }
		districts := make(map[string]districtRef)
		for _, p := range seedProvinces {
			province := branchDatamodel.ProvinceBranch{MainBranchID: main.ID, Code: p.code, Name: p.name}
			if err := tx.Where(branchDatamodel.ProvinceBranch{Code: p.code}).FirstOrCreate(&province).Error; err != nil {
				return fmt.Errorf("seed province %s: %w", p.code, err)
			}
			for _, d := range p.districts {
				district := branchDatamodel.DistrictBranch{ProvinceBranchID: province.ID, Code: d[0], Name: d[1]}
				if err := tx.Where(branchDatamodel.DistrictBranch{Code: d[0]}).FirstOrCreate(&district).Error; err != nil {
					return fmt.Errorf("seed district %s: %w", d[0], err)
				}
				districts[d[0]] = districtRef{province: province.ID, district: district.ID}
			}
		}

		for _, s := range seedUsers {
			location := s.location
			u := userDatamodel.User{
				Email:        s.email,
				Name:         s.name,
				PasswordHash: hash,
				IsActive:     true,
				LocationType: &location,
			}
			switch s.location {
			case userDatamodel.LocationMainBranch:
				u.MainBranchID = &main.ID
			case userDatamodel.LocationDistrictBranch:
				ref := districts[s.district]
				u.ProvinceBranchID = &ref.province
				u.DistrictBranchID = &ref.district
			}
			if err := tx.Where(userDatamodel.User{Email: s.email}).FirstOrCreate(&u).Error; err != nil {
				return fmt.Errorf("seed user %s: %w", s.email, err)
			}

			assignment := authzDatamodel.UserRole{UserID: u.ID, RoleID: roleIDs[s.role], IsActive: true}
			if err := tx.Where(authzDatamodel.UserRole{UserID: u.ID, RoleID: roleIDs[s.role]}).FirstOrCreate(&assignment).Error; err != nil {
				return fmt.Errorf("seed role for %s: %w", s.email, err)
			}

			for range s.groups {
				membership := authzDatamodel.UserGroup{UserID: u.ID, GroupID: group.ID, IsActive: true}
				if err := tx.Where(authzDatamodel.UserGroup{UserID: u.ID, GroupID: group.ID}).FirstOrCreate(&membership).Error; err != nil {
					return fmt.Errorf("seed group for %s: %w", s.email, err)
				}
			}
			lg.InfoContext(ctx, "seeded user", "email", s.email, "role", s.role)
		}
		return nil
	}, uow.WithAuditSuppressed())
}

func clearSeedData(tx *gorm.DB) error {
	models := []interface{}{
		&monkDatamodel.Monk{},
		&authzDatamodel.UserGroup{},
		&authzDatamodel.UserPermissionOverride{},
		&authzDatamodel.UserRole{},
		&authzDatamodel.RolePermission{},
		&authzDatamodel.Group{},
		&authzDatamodel.Role{},
		&authzDatamodel.Permission{},
		&userDatamodel.User{},
		&branchDatamodel.DistrictBranch{},
		&branchDatamodel.ProvinceBranch{},
		&branchDatamodel.MainBranch{},
	}
	for _, m := range models {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	return nil
}

