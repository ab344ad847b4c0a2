package receipt

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stanaka/kakeibo-bot/internal/oracle"
)

// ParseItems parses the oracle's line-item listing: nominally
// comma-separated `name, price` rows, possibly fenced or led by a header
// row. Rows with fewer than two fields are dropped; price fields are kept
// as text, coercion happens later.
func ParseItems(text string) []LineItemCandidate {
	reader := csv.NewReader(strings.NewReader(oracle.StripFences(text)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var items []LineItemCandidate
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if len(row) < 2 {
			continue
		}
		// Skip a header row the oracle sometimes emits despite being
		// told not to.
		if strings.Contains(row[0], "商品") && strings.Contains(row[1], "価格") {
			continue
		}
		items = append(items, LineItemCandidate{
			Name:      strings.TrimSpace(row[0]),
			PriceText: strings.TrimSpace(row[1]),
		})
	}
	return items
}

// CoercePrice turns a price text like "¥1,234" into a number. Currency
// glyphs and thousands separators are stripped first; anything that still
// fails to parse yields nil rather than an error.
func CoercePrice(text string) *float64 {
	s := strings.NewReplacer("¥", "", "￥", "", ",", "", "円", "").Replace(text)
	s = strings.TrimSpace(s)
	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &price
}

// itemsPrompt asks the oracle to list the receipt's line items as CSV.
func itemsPrompt(ocrText string) string {
	return fmt.Sprintf(`以下のレシートOCRテキストから商品明細を抽出し、CSVで出力してください。
列: 商品名, 価格
制約:
- CSVヘッダーは省略可。コードブロックや前後のコメントは付けないでください。
- 価格は整数で、カンマや円記号は除去してください。
例:
おにぎり, 128
牛乳, 198

OCR:
%s
`, truncateRunes(ocrText, 8000))
}
