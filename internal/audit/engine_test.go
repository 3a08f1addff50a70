package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/audit"
	auditmodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/audit"
	"github.com/frahmantamala/sangha-registry/internal/core/uow"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type widget struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name"`
	Status    string    `gorm:"column:status"`
	Notes     string    `gorm:"column:notes"`
	Weight    int       `gorm:"column:weight"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (widget) TableName() string { return "widgets" }

type countingMetrics struct {
	written map[string]int
	failed  int
}

func (m *countingMetrics) AuditEntryWritten(op string) { m.written[op]++ }
func (m *countingMetrics) APICallLogFailed()           { m.failed++ }

func openTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	Expect(err).NotTo(HaveOccurred())
	sqlDB, err := db.DB()
	Expect(err).NotTo(HaveOccurred())
	// one connection so the transaction and follow-up reads share the in-memory database
	sqlDB.SetMaxOpenConns(1)
	Expect(db.AutoMigrate(&widget{}, &auditmodel.AuditLog{}, &auditmodel.APICallLog{})).To(Succeed())
	return db
}

var _ = Describe("Change capture", func() {
	var (
		db      *gorm.DB
		mgr     *uow.Manager
		metrics *countingMetrics
		ctx     context.Context
		txID    string
		userID  int64
	)

	entries := func() []auditmodel.AuditLog {
		var rows []auditmodel.AuditLog
		Expect(db.Order("id").Find(&rows).Error).To(Succeed())
		return rows
	}

	create := func(w *widget) {
		Expect(mgr.Do(ctx, func(tx *gorm.DB) error {
			return tx.Create(w).Error
		})).To(Succeed())
	}

	BeforeEach(func() {
		db = openTestDB()
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		mgr = uow.NewManager(db, slogger)
		metrics = &countingMetrics{written: map[string]int{}}
		_, err := audit.Install(db, mgr, internal.AuditConfig{}, slogger, metrics)
		Expect(err).NotTo(HaveOccurred())

		userID = 42
		session := "sess-1"
		ctx, txID = internal.BeginRequest(context.Background(), internal.RequestMeta{
			UserID:    &userID,
			SessionID: &session,
			IPAddress: "192.0.2.10",
			UserAgent: "ginkgo",
			Route:     "/api/v1/widgets",
			Method:    "POST",
		})
	})

	AfterEach(func() {
		internal.EndRequest(ctx)
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	It("records create, update and delete of one entity", func() {
		w := &widget{Name: "A", Status: "ACT"}
		create(w)

		rows := entries()
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].Operation).To(Equal(auditmodel.OperationCreate))
		Expect(rows[0].EntityTable).To(Equal("widgets"))
		Expect(rows[0].RecordID).To(Equal(strconv.FormatInt(w.ID, 10)))
		Expect(rows[0].NewValues).To(HaveKeyWithValue("name", "A"))
		Expect(rows[0].NewValues).To(HaveKeyWithValue("status", "ACT"))
		Expect(rows[0].OldValues).To(BeEmpty())
		Expect([]string(rows[0].ChangedFields)).To(ConsistOf("id", "name", "status", "notes", "weight", "updated_at"))

		Expect(mgr.Do(ctx, func(tx *gorm.DB) error {
			return tx.Model(w).Update("name", "B").Error
		})).To(Succeed())

		rows = entries()
		Expect(rows).To(HaveLen(2))
		Expect(rows[1].Operation).To(Equal(auditmodel.OperationUpdate))
		Expect([]string(rows[1].ChangedFields)).To(Equal([]string{"name"}))
		Expect(map[string]any(rows[1].OldValues)).To(Equal(map[string]any{"name": "A"}))
		Expect(map[string]any(rows[1].NewValues)).To(Equal(map[string]any{"name": "B"}))

		Expect(mgr.Do(ctx, func(tx *gorm.DB) error {
			return tx.Delete(w).Error
		})).To(Succeed())

		rows = entries()
		Expect(rows).To(HaveLen(3))
		Expect(rows[2].Operation).To(Equal(auditmodel.OperationDelete))
		Expect(rows[2].OldValues).To(HaveKeyWithValue("name", "B"))
		Expect(rows[2].OldValues).To(HaveKeyWithValue("status", "ACT"))
		Expect(rows[2].NewValues).To(BeEmpty())

		Expect(metrics.written).To(Equal(map[string]int{"CREATE": 1, "UPDATE": 1, "DELETE": 1}))
	})

	It("diffs only the fields that changed", func() {
		w := &widget{Name: "A", Status: "ACT", Notes: "n", Weight: 1}
		create(w)

		Expect(mgr.Do(ctx, func(tx *gorm.DB) error {
			return tx.Model(w).Updates(map[string]any{"name": "A2", "notes": "n", "weight": 5, "status": "ACT"}).Error
		})).To(Succeed())

		rows := entries()
		Expect(rows).To(HaveLen(2))
		Expect([]string(rows[1].ChangedFields)).To(ConsistOf("name", "weight"))
		Expect(map[string]any(rows[1].OldValues)).To(Equal(map[string]any{"name": "A", "weight": json.Number("1")}))
		Expect(map[string]any(rows[1].NewValues)).To(Equal(map[string]any{"name": "A2", "weight": json.Number("5")}))
	})

	It("writes nothing for a no-op update", func() {
		w := &widget{Name: "A", Status: "ACT"}
		create(w)

		Expect(mgr.Do(ctx, func(tx *gorm.DB) error {
			return tx.Save(w).Error
		})).To(Succeed())

		Expect(entries()).To(HaveLen(1))
	})

	It("stamps entries with the active request", func() {
		create(&widget{Name: "A"})

		row := entries()[0]
		Expect(row.UserID).To(Equal(&userID))
		Expect(*row.SessionID).To(Equal("sess-1"))
		Expect(*row.IPAddress).To(Equal("192.0.2.10"))
		Expect(*row.UserAgent).To(Equal("ginkgo"))
		Expect(*row.TransactionID).To(Equal(txID))
	})

	It("runs outside a request with empty correlation fields", func() {
		Expect(mgr.Do(context.Background(), func(tx *gorm.DB) error {
			return tx.Create(&widget{Name: "job"}).Error
		})).To(Succeed())

		row := entries()[0]
		Expect(row.UserID).To(BeNil())
		Expect(row.TransactionID).To(BeNil())
	})

	It("rolls audit entries back with the business change", func() {
		boom := errors.New("boom")
		err := mgr.Do(ctx, func(tx *gorm.DB) error {
			if err := tx.Create(&widget{Name: "A"}).Error; err != nil {
				return err
			}
			return boom
		})
		Expect(err).To(MatchError(boom))

		var count int64
		Expect(db.Model(&widget{}).Count(&count).Error).To(Succeed())
		Expect(count).To(BeZero())
		Expect(entries()).To(BeEmpty())
		Expect(metrics.written).To(BeEmpty())
	})

	It("produces nothing when the request is cancelled before commit", func() {
		cctx, cancel := context.WithCancel(ctx)
		err := mgr.Do(cctx, func(tx *gorm.DB) error {
			if err := tx.Create(&widget{Name: "A"}).Error; err != nil {
				return err
			}
			cancel()
			return nil
		})
		Expect(err).To(HaveOccurred())
		Expect(entries()).To(BeEmpty())
	})

	It("never audits its own writes", func() {
		Expect(mgr.Do(ctx, func(tx *gorm.DB) error {
			if err := tx.Create(&widget{Name: "A"}).Error; err != nil {
				return err
			}
			return tx.Create(&auditmodel.AuditLog{EntityTable: "manual", RecordID: "1", Operation: auditmodel.OperationCreate}).Error
		})).To(Succeed())

		rows := entries()
		Expect(rows).To(HaveLen(2))
		for _, row := range rows {
			Expect(row.EntityTable).NotTo(Equal("audit_logs"))
		}
	})

	It("skips capture for suppressed units of work", func() {
		Expect(mgr.Do(ctx, func(tx *gorm.DB) error {
			return tx.Create(&widget{Name: "seed"}).Error
		}, uow.WithAuditSuppressed())).To(Succeed())

		Expect(entries()).To(BeEmpty())
	})

	It("fails the transaction when the audit write fails", func() {
		Expect(db.Migrator().DropTable(&auditmodel.AuditLog{})).To(Succeed())

		err := mgr.Do(ctx, func(tx *gorm.DB) error {
			return tx.Create(&widget{Name: "A"}).Error
		})
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeAuditWriteFailed))

		var count int64
		Expect(db.Model(&widget{}).Count(&count).Error).To(Succeed())
		Expect(count).To(BeZero())
	})

	Describe("net changes within one unit of work", func() {
		It("folds insert then update into a single create", func() {
			Expect(mgr.Do(ctx, func(tx *gorm.DB) error {
				w := &widget{Name: "draft"}
				if err := tx.Create(w).Error; err != nil {
					return err
				}
				return tx.Model(w).Update("name", "final").Error
			})).To(Succeed())

			rows := entries()
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Operation).To(Equal(auditmodel.OperationCreate))
			Expect(rows[0].NewValues).To(HaveKeyWithValue("name", "final"))
		})

		It("drops a row inserted and deleted in the same unit", func() {
			Expect(mgr.Do(ctx, func(tx *gorm.DB) error {
				w := &widget{Name: "temp"}
				if err := tx.Create(w).Error; err != nil {
					return err
				}
				return tx.Delete(w).Error
			})).To(Succeed())

			Expect(entries()).To(BeEmpty())
		})

		It("compares the first snapshot with the final state", func() {
			w := &widget{Name: "A", Status: "ACT"}
			create(w)

			Expect(mgr.Do(ctx, func(tx *gorm.DB) error {
				if err := tx.Model(w).Update("name", "B").Error; err != nil {
					return err
				}
				return tx.Model(w).Update("name", "C").Error
			})).To(Succeed())

			rows := entries()
			Expect(rows).To(HaveLen(2))
			Expect(map[string]any(rows[1].OldValues)).To(Equal(map[string]any{"name": "A"}))
			Expect(map[string]any(rows[1].NewValues)).To(Equal(map[string]any{"name": "C"}))
		})

		It("reports update then delete as a delete of the original row", func() {
			w := &widget{Name: "A"}
			create(w)

			Expect(mgr.Do(ctx, func(tx *gorm.DB) error {
				if err := tx.Model(w).Update("name", "B").Error; err != nil {
					return err
				}
				return tx.Delete(w).Error
			})).To(Succeed())

			rows := entries()
			Expect(rows).To(HaveLen(2))
			Expect(rows[1].Operation).To(Equal(auditmodel.OperationDelete))
			Expect(rows[1].OldValues).To(HaveKeyWithValue("name", "A"))
		})
	})

	It("captures every row touched by a bulk update", func() {
		create(&widget{Name: "a", Status: "OLD"})
		create(&widget{Name: "b", Status: "OLD"})
		create(&widget{Name: "c", Status: "NEW"})

		Expect(mgr.Do(ctx, func(tx *gorm.DB) error {
			return tx.Model(&widget{}).Where("status = ?", "OLD").Update("status", "ARCHIVED").Error
		})).To(Succeed())

		var updates []auditmodel.AuditLog
		Expect(db.Where("operation = ?", auditmodel.OperationUpdate).Find(&updates).Error).To(Succeed())
		Expect(updates).To(HaveLen(2))
		for _, u := range updates {
			Expect([]string(u.ChangedFields)).To(Equal([]string{"status"}))
		}
	})

	It("joins an enclosing unit of work", func() {
		Expect(mgr.Do(ctx, func(tx *gorm.DB) error {
			if err := tx.Create(&widget{Name: "outer"}).Error; err != nil {
				return err
			}
			return mgr.Do(tx.Statement.Context, func(inner *gorm.DB) error {
				return inner.Create(&widget{Name: "inner"}).Error
			})
		})).To(Succeed())

		Expect(entries()).To(HaveLen(2))
	})
})

var _ = Describe("Writes without a model schema", func() {
	var (
		db  *gorm.DB
		mgr *uow.Manager
		out *bytes.Buffer
	)

	BeforeEach(func() {
		db = openTestDB()
		out = &bytes.Buffer{}
		slogger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelWarn}))
		mgr = uow.NewManager(db, slogger)
		_, err := audit.Install(db, mgr, internal.AuditConfig{}, slogger, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	countEntries := func() int64 {
		var n int64
		Expect(db.Model(&auditmodel.AuditLog{}).Count(&n).Error).To(Succeed())
		return n
	}

	It("warns about table-only updates it cannot snapshot", func() {
		w := &widget{Name: "A"}
		Expect(db.Create(w).Error).To(Succeed())

		Expect(mgr.Do(context.Background(), func(tx *gorm.DB) error {
			return tx.Table("widgets").Where("id = ?", w.ID).Update("name", "Z").Error
		})).To(Succeed())

		Expect(countEntries()).To(BeZero())
		Expect(out.String()).To(ContainSubstring("audit: untracked write"))
		Expect(out.String()).To(ContainSubstring("table=widgets"))
	})

	It("warns about raw statements inside a unit of work", func() {
		Expect(mgr.Do(context.Background(), func(tx *gorm.DB) error {
			return tx.Exec("UPDATE widgets SET notes = ?", "bulk").Error
		})).To(Succeed())

		Expect(out.String()).To(ContainSubstring("audit: untracked write"))
	})

	It("stays quiet outside a unit of work and when suppressed", func() {
		Expect(db.Exec("UPDATE widgets SET notes = ?", "bulk").Error).To(Succeed())
		Expect(mgr.Do(context.Background(), func(tx *gorm.DB) error {
			return tx.Exec("UPDATE widgets SET notes = ?", "bulk").Error
		}, uow.WithAuditSuppressed())).To(Succeed())

		Expect(out.String()).To(BeEmpty())
	})
})
