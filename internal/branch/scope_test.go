package branch_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/frahmantamala/sangha-registry/internal/branch"
	branchPostgres "github.com/frahmantamala/sangha-registry/internal/branch/postgres"
	userDatamodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeAdmins map[int64]bool

func (f fakeAdmins) IsSuperAdmin(_ context.Context, userID int64) (bool, error) {
	return f[userID], nil
}

// countingRepo counts code lookups so cache hits are observable.
type countingRepo struct {
	branch.RepositoryAPI
	codeLookups int
}

func (c *countingRepo) DistrictCode(ctx context.Context, id int64) (string, error) {
	c.codeLookups++
	return c.RepositoryAPI.DistrictCode(ctx, id)
}

type scopedRecord struct {
	ID             int64  `gorm:"primaryKey"`
	Name           string `gorm:"column:name"`
	ProvinceCode   string `gorm:"column:province_code"`
	DistrictCode   string `gorm:"column:district_code"`
	WorkflowStatus string `gorm:"column:workflow_status"`
}

func (scopedRecord) TableName() string { return "scoped_records" }

func ptr[T any](v T) *T { return &v }

var _ = Describe("ScopeFilter", func() {
	var (
		db     *gorm.DB
		repo   *countingRepo
		admins fakeAdmins
		filter *branch.ScopeFilter
		ctx    context.Context

		province    branch.ProvinceBranch
		district    branch.DistrictBranch
		otherDistr  branch.DistrictBranch
		nextUserID  int64
		newUser     func(locationType *string, provinceID, districtID *int64) int64
		visibleRows func(userID int64) []string
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(
			&branch.MainBranch{}, &branch.ProvinceBranch{}, &branch.DistrictBranch{},
			&userDatamodel.User{}, &scopedRecord{},
		)).To(Succeed())

		main := branch.MainBranch{Code: "HQ", Name: "Head Office"}
		Expect(db.Create(&main).Error).To(Succeed())
		province = branch.ProvinceBranch{MainBranchID: main.ID, Code: "P10", Name: "North"}
		other := branch.ProvinceBranch{MainBranchID: main.ID, Code: "P20", Name: "South"}
		Expect(db.Create(&province).Error).To(Succeed())
		Expect(db.Create(&other).Error).To(Succeed())
		district = branch.DistrictBranch{ProvinceBranchID: province.ID, Code: "D11", Name: "North One"}
		otherDistr = branch.DistrictBranch{ProvinceBranchID: province.ID, Code: "D12", Name: "North Two"}
		Expect(db.Create(&district).Error).To(Succeed())
		Expect(db.Create(&otherDistr).Error).To(Succeed())

		Expect(db.Create(&[]scopedRecord{
			{Name: "own-pending", ProvinceCode: "P10", DistrictCode: "D11", WorkflowStatus: "PENDING"},
			{Name: "sibling-pending", ProvinceCode: "P10", DistrictCode: "D12", WorkflowStatus: "PENDING"},
			{Name: "sibling-completed", ProvinceCode: "P10", DistrictCode: "D12", WorkflowStatus: "COMPLETED"},
			{Name: "south-approved", ProvinceCode: "P20", DistrictCode: "D21", WorkflowStatus: "APPROVED"},
			{Name: "south-completed", ProvinceCode: "P20", DistrictCode: "D21", WorkflowStatus: "COMPLETED"},
		}).Error).To(Succeed())

		repo = &countingRepo{RepositoryAPI: branchPostgres.NewBranchRepository(db)}
		admins = fakeAdmins{}
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		filter = branch.NewScopeFilter(repo, admins, slogger)

		nextUserID = 0
		newUser = func(locationType *string, provinceID, districtID *int64) int64 {
			nextUserID++
			u := userDatamodel.User{
				Email:            fmt.Sprintf("user%d@sangha.test", nextUserID),
				Name:             "user",
				PasswordHash:     "x",
				IsActive:         true,
				LocationType:     locationType,
				ProvinceBranchID: provinceID,
				DistrictBranchID: districtID,
			}
			Expect(db.Create(&u).Error).To(Succeed())
			return u.ID
		}

		visibleRows = func(userID int64) []string {
			q, err := filter.Apply(ctx, db.Model(&scopedRecord{}), userID, "district_code", "workflow_status")
			Expect(err).NotTo(HaveOccurred())
			var names []string
			Expect(q.Order("id").Pluck("name", &names).Error).To(Succeed())
			return names
		}
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	It("limits a district user to their district plus completed rows", func() {
		id := newUser(ptr(userDatamodel.LocationDistrictBranch), nil, &district.ID)

		Expect(visibleRows(id)).To(Equal([]string{"own-pending", "sibling-completed", "south-completed"}))
	})

	It("matches province users on their province code", func() {
		id := newUser(ptr(userDatamodel.LocationProvinceBranch), &province.ID, nil)

		q, err := filter.ApplyHierarchy(ctx, db.Model(&scopedRecord{}), id, branch.LocationColumns{
			Province: "province_code", District: "district_code", Status: "workflow_status",
		})
		Expect(err).NotTo(HaveOccurred())
		var names []string
		Expect(q.Order("id").Pluck("name", &names).Error).To(Succeed())
		Expect(names).To(Equal([]string{"own-pending", "sibling-pending", "sibling-completed", "south-completed"}))
	})

	It("walks up from the district when a province user has no province branch", func() {
		id := newUser(ptr(userDatamodel.LocationProvinceBranch), nil, &otherDistr.ID)

		scope, err := filter.Resolve(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(scope).To(Equal(branch.Scope{LocationType: userDatamodel.LocationProvinceBranch, Code: "P10"}))
	})

	It("leaves head office users unrestricted", func() {
		id := newUser(ptr(userDatamodel.LocationMainBranch), nil, nil)
		Expect(visibleRows(id)).To(HaveLen(5))
	})

	It("leaves super-admins unrestricted whatever their branch", func() {
		id := newUser(ptr(userDatamodel.LocationDistrictBranch), nil, &district.ID)
		admins[id] = true
		Expect(visibleRows(id)).To(HaveLen(5))
	})

	It("applies no filter without a location or branch assignment", func() {
		untagged := newUser(nil, nil, nil)
		unassigned := newUser(ptr(userDatamodel.LocationDistrictBranch), nil, nil)

		Expect(visibleRows(untagged)).To(HaveLen(5))
		Expect(visibleRows(unassigned)).To(HaveLen(5))
	})

	It("caches branch codes but rereads the user's assignment", func() {
		id := newUser(ptr(userDatamodel.LocationDistrictBranch), nil, &district.ID)

		_, err := filter.Resolve(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		_, err = filter.Resolve(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.codeLookups).To(Equal(1))

		Expect(db.Model(&userDatamodel.User{}).Where("id = ?", id).Update("district_branch_id", otherDistr.ID).Error).To(Succeed())
		scope, err := filter.Resolve(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(scope.Code).To(Equal("D12"))
	})

	Describe("Scope.Allows", func() {
		It("mirrors the query filter", func() {
			s := branch.Scope{LocationType: userDatamodel.LocationDistrictBranch, Code: "D11"}
			Expect(s.Allows("P10", "D11", "PENDING")).To(BeTrue())
			Expect(s.Allows("P10", "D12", "PENDING")).To(BeFalse())
			Expect(s.Allows("P20", "D21", "COMPLETED")).To(BeTrue())
			Expect(branch.Scope{Unrestricted: true}.Allows("", "", "")).To(BeTrue())
		})
	})
})
