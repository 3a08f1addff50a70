package branch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	userDatamodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/user"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultCodeCacheSize = 1024
	defaultCodeCacheTTL  = 10 * time.Minute
)

// SuperAdminChecker reports whether a user bypasses location scoping.
type SuperAdminChecker interface {
	IsSuperAdmin(ctx context.Context, userID int64) (bool, error)
}

// Scope is the branch restriction resolved for one user.
type Scope struct {
	Unrestricted bool
	LocationType string
	Code         string
}

// LocationColumns names the columns holding a record's branch codes and
// workflow status.
type LocationColumns struct {
	Province string
	District string
	Status   string
}

// Allows reports whether a record with the given codes and status is visible.
func (s Scope) Allows(provinceCode, districtCode, status string) bool {
	if s.Unrestricted || status == StatusCompleted {
		return true
	}
	switch s.LocationType {
	case userDatamodel.LocationProvinceBranch:
		return provinceCode == s.Code
	case userDatamodel.LocationDistrictBranch:
		return districtCode == s.Code
	}
	return false
}

type ScopeFilterOption func(*ScopeFilter)

func WithCodeCache(size int, ttl time.Duration) ScopeFilterOption {
	return func(f *ScopeFilter) {
		if size > 0 {
			f.cacheSize = size
		}
		if ttl > 0 {
			f.cacheTTL = ttl
		}
	}
}

// ScopeFilter narrows queries to the branch a user belongs to. The user's
// branch assignment is read on every call; only the branch id to code
// mapping is cached.
type ScopeFilter struct {
	repo      RepositoryAPI
	admins    SuperAdminChecker
	codes     *expirable.LRU[string, string]
	cacheSize int
	cacheTTL  time.Duration
	logger    *slog.Logger
}

func NewScopeFilter(repo RepositoryAPI, admins SuperAdminChecker, logger *slog.Logger, opts ...ScopeFilterOption) *ScopeFilter {
	if logger == nil {
		logger = slog.Default()
	}
	f := &ScopeFilter{
		repo:      repo,
		admins:    admins,
		cacheSize: defaultCodeCacheSize,
		cacheTTL:  defaultCodeCacheTTL,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.codes = expirable.NewLRU[string, string](f.cacheSize, nil, f.cacheTTL)
	return f
}

// Resolve works out which records userID may see.
func (f *ScopeFilter) Resolve(ctx context.Context, userID int64) (Scope, error) {
	super, err := f.admins.IsSuperAdmin(ctx, userID)
	if err != nil {
		return Scope{}, fmt.Errorf("check super admin: %w", err)
	}
	if super {
		return Scope{Unrestricted: true}, nil
	}

	loc, err := f.repo.UserLocation(ctx, userID)
	if err != nil {
		return Scope{}, fmt.Errorf("load user location: %w", err)
	}
	if loc == nil || loc.LocationType == nil {
		return Scope{Unrestricted: true}, nil
	}

	switch *loc.LocationType {
	case userDatamodel.LocationProvinceBranch:
		var code string
		switch {
		case loc.ProvinceBranchID != nil:
			code, err = f.cached(ctx, "province", *loc.ProvinceBranchID, f.repo.ProvinceCode)
		case loc.DistrictBranchID != nil:
			code, err = f.cached(ctx, "district-province", *loc.DistrictBranchID, f.repo.DistrictProvinceCode)
		default:
			return Scope{Unrestricted: true}, nil
		}
		if err != nil {
			return Scope{}, err
		}
		return restricted(userDatamodel.LocationProvinceBranch, code), nil

	case userDatamodel.LocationDistrictBranch:
		if loc.DistrictBranchID == nil {
			return Scope{Unrestricted: true}, nil
		}
		code, err := f.cached(ctx, "district", *loc.DistrictBranchID, f.repo.DistrictCode)
		if err != nil {
			return Scope{}, err
		}
		return restricted(userDatamodel.LocationDistrictBranch, code), nil
	}

	// MAIN_BRANCH and unknown tags see everything.
	return Scope{Unrestricted: true}, nil
}

func restricted(locationType, code string) Scope {
	if code == "" {
		return Scope{Unrestricted: true}
	}
	return Scope{LocationType: locationType, Code: code}
}

func (f *ScopeFilter) cached(ctx context.Context, kind string, id int64, load func(context.Context, int64) (string, error)) (string, error) {
	key := kind + ":" + strconv.FormatInt(id, 10)
	if code, ok := f.codes.Get(key); ok {
		return code, nil
	}
	code, err := load(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load %s branch code %d: %w", kind, id, err)
	}
	f.codes.Add(key, code)
	return code, nil
}

// Apply restricts q to rows whose locationField equals the user's own branch
// code, or whose statusField is COMPLETED.
func (f *ScopeFilter) Apply(ctx context.Context, q *gorm.DB, userID int64, locationField, statusField string) (*gorm.DB, error) {
	scope, err := f.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if scope.Unrestricted {
		return q, nil
	}
	f.logger.DebugContext(ctx, "location filter applied", "user_id", userID, "location_type", scope.LocationType, "code", scope.Code)
	return q.Where(condition(locationField, statusField, scope.Code)), nil
}

// ApplyHierarchy is Apply for records carrying both province and district
// codes: the column matched depends on the user's location type.
func (f *ScopeFilter) ApplyHierarchy(ctx context.Context, q *gorm.DB, userID int64, cols LocationColumns) (*gorm.DB, error) {
	scope, err := f.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ScopeQuery(q, scope, cols), nil
}

// ScopeQuery applies an already resolved scope.
func ScopeQuery(q *gorm.DB, scope Scope, cols LocationColumns) *gorm.DB {
	if scope.Unrestricted {
		return q
	}
	field := cols.District
	if scope.LocationType == userDatamodel.LocationProvinceBranch {
		field = cols.Province
	}
	return q.Where(condition(field, cols.Status, scope.Code))
}

func condition(locationField, statusField, code string) clause.Expression {
	return clause.Or(
		clause.Eq{Column: clause.Column{Name: locationField}, Value: code},
		clause.Eq{Column: clause.Column{Name: statusField}, Value: StatusCompleted},
	)
}
