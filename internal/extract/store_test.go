package extract

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stanaka/kakeibo-bot/internal/rules"
)

var _ = Describe("StoreExtractor", func() {
	var extractor *StoreExtractor

	BeforeEach(func() {
		extractor = NewStoreExtractor(rules.Default())
	})

	Describe("StoreName", func() {
		var (
			ocrText   string
			brandHint string
			name      string
		)

		BeforeEach(func() {
			brandHint = ""
		})

		JustBeforeEach(func() {
			name = extractor.StoreName(ocrText, brandHint)
		})

		When("a known merchant appears in the text", func() {
			BeforeEach(func() {
				ocrText = "スーパー玉出\n株式会社スーパー玉出 天下茶屋店\n2025/9/28\n合計 ¥1,234"
			})

			It("picks the longest line containing the merchant and normalizes it", func() {
				Expect(name).To(Equal("スーパー玉出 天下茶屋店"))
			})
		})

		When("a romanized chain name appears", func() {
			BeforeEach(func() {
				ocrText = "thank you\nstarbucks coffee shibuya\nTOTAL 580"
			})

			It("matches case-insensitively and returns the brand", func() {
				Expect(name).To(Equal("Starbucks"))
			})
		})

		When("the heading contains a brand-style and a branch-style line", func() {
			BeforeEach(func() {
				ocrText = "領収書\nカフェ山本\n大阪梅田中央支店\n2025/9/28"
			})

			It("combines them with the longer line as base", func() {
				Expect(name).To(Equal("カフェ山本 大阪梅田中央支店"))
			})
		})

		When("a single heading line is both brand-style and branch-style", func() {
			BeforeEach(func() {
				ocrText = "レシート\nスーパーマルハチ 御影店\n2025/9/28"
			})

			It("returns that line alone", func() {
				Expect(name).To(Equal("スーパーマルハチ 御影店"))
			})
		})

		When("nothing store-like is found in the heading", func() {
			BeforeEach(func() {
				ocrText = "たこ焼き屋\n2025/9/28\n550"
			})

			It("falls back to the first non-blank line", func() {
				Expect(name).To(Equal("たこ焼き屋"))
			})
		})

		When("a brand hint is not part of the extracted name", func() {
			BeforeEach(func() {
				ocrText = "たこ焼き屋\n550"
				brandHint = "KOHYO"
			})

			It("prepends the hint", func() {
				Expect(name).To(Equal("KOHYO たこ焼き屋"))
			})
		})

		When("the brand hint is already contained in the extracted name", func() {
			BeforeEach(func() {
				ocrText = "スーパー玉出 天下茶屋店\n550"
				brandHint = "スーパー玉出"
			})

			It("does not duplicate it", func() {
				Expect(name).To(Equal("スーパー玉出 天下茶屋店"))
			})
		})

		When("the text is blank", func() {
			BeforeEach(func() {
				ocrText = "   \n\n"
			})

			It("returns empty", func() {
				Expect(name).To(BeEmpty())
			})
		})

		When("the text is blank but a brand hint exists", func() {
			BeforeEach(func() {
				ocrText = ""
				brandHint = "LAWSON"
			})

			It("returns the hint alone", func() {
				Expect(name).To(Equal("LAWSON"))
			})
		})
	})

	Describe("Normalize", func() {
		It("strips corporate-entity tokens", func() {
			Expect(extractor.Normalize("株式会社テスト商店")).To(Equal("テスト商店"))
			Expect(extractor.Normalize("(株)テスト商店")).To(Equal("テスト商店"))
		})

		It("collapses full-width spaces and runs of whitespace", func() {
			Expect(extractor.Normalize("テスト　　商店  本店")).To(Equal("テスト 商店 本店"))
		})

		It("truncates to 50 runes", func() {
			long := strings.Repeat("あ", 60)
			Expect([]rune(extractor.Normalize(long))).To(HaveLen(50))
		})

		It("returns empty for empty input", func() {
			Expect(extractor.Normalize("")).To(BeEmpty())
		})
	})
})
