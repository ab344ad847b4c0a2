package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var db *BoltDB

	BeforeEach(func() {
		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	Describe("FindReceipt", func() {
		It("returns ErrNotFound for an unknown identity", func() {
			_, err := db.FindReceipt("2025-09-28_玉出_abcdef012345")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("round-trips a stored receipt", func() {
			now := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
			receipt := &Receipt{
				ID:           "2025-09-28_玉出_abcdef012345",
				StoreName:    "玉出",
				PurchaseDate: "2025-09-28",
				ImageFile:    "2025-09-28_玉出_abcdef012345.jpg",
				ContentType:  "image/jpeg",
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			Expect(db.SaveReceipt(receipt)).To(Succeed())

			found, err := db.FindReceipt(receipt.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.StoreName).To(Equal("玉出"))
			Expect(found.PurchaseDate).To(Equal("2025-09-28"))
			Expect(found.ImageFile).To(Equal(receipt.ImageFile))
			Expect(found.CreatedAt.Equal(now)).To(BeTrue())
		})
	})

	Describe("SaveReceipt", func() {
		It("overwrites a receipt with the same identity", func() {
			Expect(db.SaveReceipt(&Receipt{ID: "r1", StoreName: "旧店名"})).To(Succeed())
			Expect(db.SaveReceipt(&Receipt{ID: "r1", StoreName: "新店名"})).To(Succeed())

			receipts, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(1))
			Expect(receipts[0].StoreName).To(Equal("新店名"))
		})
	})

	Describe("SaveItem", func() {
		It("overwrites an item with the same identity instead of duplicating", func() {
			item := &Item{ID: "item-1", ReceiptID: "r1", Name: "おにぎり", Category: "食費"}
			Expect(db.SaveItem(item)).To(Succeed())

			item.Category = "その他"
			Expect(db.SaveItem(item)).To(Succeed())

			items, err := db.ListItems("r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Category).To(Equal("その他"))
		})
	})

	Describe("ListItems", func() {
		It("returns only the items of the given receipt", func() {
			Expect(db.SaveItem(&Item{ID: "a", ReceiptID: "r1", Name: "おにぎり"})).To(Succeed())
			Expect(db.SaveItem(&Item{ID: "b", ReceiptID: "r1", Name: "牛乳"})).To(Succeed())
			Expect(db.SaveItem(&Item{ID: "c", ReceiptID: "r2", Name: "洗剤"})).To(Succeed())

			items, err := db.ListItems("r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
		})

		It("does not leak items from a receipt whose id extends the prefix", func() {
			Expect(db.SaveItem(&Item{ID: "a", ReceiptID: "r1", Name: "おにぎり"})).To(Succeed())
			Expect(db.SaveItem(&Item{ID: "b", ReceiptID: "r10", Name: "牛乳"})).To(Succeed())

			items, err := db.ListItems("r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("おにぎり"))
		})

		It("returns an empty slice for an unknown receipt", func() {
			items, err := db.ListItems("missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(BeEmpty())
		})
	})
})
