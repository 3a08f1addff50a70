package branch_test

import (
	"context"
	"errors"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/branch"
	branchPostgres "github.com/frahmantamala/sangha-registry/internal/branch/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type failingRepo struct {
	branch.RepositoryAPI
}

func (failingRepo) MainBranches(context.Context) ([]*branch.MainBranch, error) {
	return nil, errors.New("connection reset")
}

var _ = Describe("Branch Service", func() {
	It("builds the branch tree", func() {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&branch.MainBranch{}, &branch.ProvinceBranch{}, &branch.DistrictBranch{})).To(Succeed())

		main := branch.MainBranch{Code: "HQ", Name: "Head Office"}
		Expect(db.Create(&main).Error).To(Succeed())
		north := branch.ProvinceBranch{MainBranchID: main.ID, Code: "P10", Name: "North"}
		south := branch.ProvinceBranch{MainBranchID: main.ID, Code: "P20", Name: "South"}
		Expect(db.Create(&north).Error).To(Succeed())
		Expect(db.Create(&south).Error).To(Succeed())
		Expect(db.Create(&branch.DistrictBranch{ProvinceBranchID: north.ID, Code: "D11", Name: "Upper"}).Error).To(Succeed())

		tree, err := branch.NewService(branchPostgres.NewBranchRepository(db), nil).Hierarchy(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(tree).To(HaveLen(1))
		Expect(tree[0].Code).To(Equal("HQ"))
		Expect(tree[0].Provinces).To(HaveLen(2))

		byCode := map[string]branch.ProvinceNode{}
		for _, p := range tree[0].Provinces {
			byCode[p.Code] = p
		}
		Expect(byCode["P10"].Districts).To(HaveLen(1))
		Expect(byCode["P10"].Districts[0].Code).To(Equal("D11"))
		Expect(byCode["P20"].Districts).NotTo(BeNil())
		Expect(byCode["P20"].Districts).To(BeEmpty())
	})

	It("reports repository failures as internal errors", func() {
		_, err := branch.NewService(failingRepo{}, nil).Hierarchy(context.Background())
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(500))
	})
})
