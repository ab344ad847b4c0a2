package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseItems", func() {
	It("parses fenced CSV with uneven spacing", func() {
		text := "```\n商品, 価格\nおにぎり, 128\n牛乳,198\n```"
		Expect(ParseItems(text)).To(Equal([]LineItemCandidate{
			{Name: "おにぎり", PriceText: "128"},
			{Name: "牛乳", PriceText: "198"},
		}))
	})

	It("drops rows with fewer than two fields", func() {
		text := "おにぎり\n牛乳, 198"
		Expect(ParseItems(text)).To(Equal([]LineItemCandidate{
			{Name: "牛乳", PriceText: "198"},
		}))
	})

	It("keeps extra columns out of the candidate", func() {
		text := "おにぎり, 128, 梅"
		Expect(ParseItems(text)).To(Equal([]LineItemCandidate{
			{Name: "おにぎり", PriceText: "128"},
		}))
	})

	It("skips the header row variants the oracle emits", func() {
		text := "商品名, 価格\nおにぎり, 128"
		Expect(ParseItems(text)).To(Equal([]LineItemCandidate{
			{Name: "おにぎり", PriceText: "128"},
		}))
	})

	It("returns nothing for prose", func() {
		Expect(ParseItems("明細なし")).To(BeEmpty())
	})

	It("returns nothing for empty text", func() {
		Expect(ParseItems("")).To(BeEmpty())
	})
})

var _ = Describe("CoercePrice", func() {
	price := func(text string) *float64 { return CoercePrice(text) }

	It("parses plain integers", func() {
		Expect(price("128")).To(HaveValue(Equal(128.0)))
	})

	It("strips currency glyphs and separators", func() {
		Expect(price("¥1,234")).To(HaveValue(Equal(1234.0)))
		Expect(price("￥980")).To(HaveValue(Equal(980.0)))
		Expect(price("198円")).To(HaveValue(Equal(198.0)))
	})

	It("tolerates surrounding whitespace", func() {
		Expect(price(" 198 ")).To(HaveValue(Equal(198.0)))
	})

	It("parses decimals", func() {
		Expect(price("12.5")).To(HaveValue(Equal(12.5)))
	})

	It("returns nil for unparseable text", func() {
		Expect(price("N/A")).To(BeNil())
		Expect(price("")).To(BeNil())
		Expect(price("時価")).To(BeNil())
	})
})
