package audit_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archi-tools/inspector/internal/audit"
)

var _ = Describe("Store", func() {
	var (
		mockDB *sql.DB
		mock   sqlmock.Sqlmock
		store  audit.Store
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		mockDB, mock, err = sqlmock.New()
		Expect(err).ToNot(HaveOccurred())
		store = audit.NewFromDB(mockDB)
		ctx = context.Background()
	})

	AfterEach(func() {
		mockDB.Close()
	})

	Describe("Record", func() {
		It("inserts the entry's fields in order", func() {
			entry := audit.Entry{
				FilePath:        "model/some-element.xml",
				Changed:         true,
				ReviewRequired:  true,
				PreviousDepHash: "d5683b61",
				NewDepHash:      "a1b2c3d4",
				RecordedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			}

			mock.ExpectExec(`INSERT INTO inspection_audit`).
				WithArgs(entry.FilePath, entry.Changed, entry.ReviewRequired, entry.PreviousDepHash, entry.NewDepHash, entry.RecordedAt).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Expect(store.Record(ctx, entry)).To(Succeed())
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})

		It("propagates a store failure to the caller", func() {
			entry := audit.Entry{FilePath: "model/x.xml"}
			mock.ExpectExec(`INSERT INTO inspection_audit`).
				WillReturnError(sql.ErrConnDone)

			Expect(store.Record(ctx, entry)).To(MatchError(sql.ErrConnDone))
		})
	})
})

var _ = Describe("NoopStore", func() {
	It("discards every entry without error", func() {
		store := audit.NoopStore{}
		Expect(store.Record(context.Background(), audit.Entry{FilePath: "x"})).To(Succeed())
		Expect(store.Close()).To(Succeed())
	})
})
