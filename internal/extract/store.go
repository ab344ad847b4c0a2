package extract

import (
	"regexp"
	"strings"

	"github.com/stanaka/kakeibo-bot/internal/rules"
)

const maxStoreNameLen = 50

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	// Lines left with fewer than two word-ish runes after stripping
	// symbols are register noise, not store names.
	reSymbols  = regexp.MustCompile(`[^\w一-龠ぁ-んァ-ヶー・\-\s]`)
	reBranch   = regexp.MustCompile(`店|本店|支店`)
	reBrandish = regexp.MustCompile(`スーパー|ドラッグ|マート|コーヒー|カフェ|電鉄|百貨店|ショッピング|モール`)
)

// StoreExtractor pulls a store name out of OCR text using the injected
// merchant and noise tables.
type StoreExtractor struct {
	table *rules.Table
}

func NewStoreExtractor(table *rules.Table) *StoreExtractor {
	return &StoreExtractor{table: table}
}

// Normalize strips corporate-entity tokens, collapses all whitespace
// (full-width included) to single spaces, and truncates to 50 runes.
func (e *StoreExtractor) Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	name := strings.TrimSpace(raw)
	for _, token := range e.table.EntityTokens {
		name = strings.ReplaceAll(name, token, "")
	}
	name = strings.ReplaceAll(name, "　", " ")
	name = strings.TrimSpace(reWhitespace.ReplaceAllString(name, " "))
	runes := []rune(name)
	if len(runes) > maxStoreNameLen {
		runes = runes[:maxStoreNameLen]
	}
	return string(runes)
}

// StoreName extracts a normalized store name from OCR text, or "" when
// nothing plausible is found. A brand hint from logo detection is
// prepended when it is not already part of the extracted name.
func (e *StoreExtractor) StoreName(ocrText, brandHint string) string {
	name := e.extract(ocrText)
	hint := e.Normalize(brandHint)
	if hint != "" && !strings.Contains(name, hint) {
		return e.Normalize(hint + " " + name)
	}
	return name
}

func (e *StoreExtractor) extract(ocrText string) string {
	if strings.TrimSpace(ocrText) == "" {
		return ""
	}
	text := strings.TrimSpace(ocrText)

	// 1) Known merchant appearing anywhere in the text: take the longest
	// line that contains one, since a longer line carries the branch too.
	if line := e.merchantLine(text); line != "" {
		return e.Normalize(line)
	}

	// 2) Romanized chain names.
	lower := strings.ToLower(text)
	for _, brand := range e.table.LatinBrands {
		if strings.Contains(lower, strings.ToLower(brand)) {
			return e.Normalize(brand)
		}
	}

	// 3) + 4) Heading scan.
	return e.HeadingStoreName(text)
}

// merchantLine returns the longest text line containing a known merchant
// name, or "".
func (e *StoreExtractor) merchantLine(text string) string {
	best := ""
	for _, line := range strings.Split(text, "\n") {
		for merchant := range e.table.Merchants {
			if strings.Contains(line, merchant) {
				if len([]rune(line)) > len([]rune(best)) {
					best = line
				}
				break
			}
		}
	}
	return best
}

// HeadingStoreName scans the first 20 non-blank lines for a store-like
// heading, preferring a combination of a brand-style line and a
// branch-style line. It is also the resolver's last resort when the
// oracle cannot name a store.
func (e *StoreExtractor) HeadingStoreName(ocrText string) string {
	var head []string
	for _, line := range strings.Split(ocrText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		head = append(head, line)
		if len(head) == 20 {
			break
		}
	}

	var brandLine, branchLine string
	for _, line := range head {
		if e.isNoiseLine(line) {
			continue
		}
		if len([]rune(reSymbols.ReplaceAllString(line, ""))) < 2 {
			continue
		}
		if reBranch.MatchString(line) {
			branchLine = line
		}
		if reBrandish.MatchString(line) {
			brandLine = line
		}
		if branchLine != "" && brandLine != "" {
			combined := brandLine
			if len([]rune(brandLine)) < len([]rune(branchLine)) {
				combined = brandLine + " " + branchLine
			}
			return e.Normalize(combined)
		}
	}

	if len(head) == 0 {
		return ""
	}
	return e.Normalize(head[0])
}

func (e *StoreExtractor) isNoiseLine(line string) bool {
	for _, word := range e.table.NoiseWords {
		if strings.Contains(line, word) {
			return true
		}
	}
	return false
}
