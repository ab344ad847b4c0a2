// Package rules holds the category set and the merchant/keyword tables
// used by store-name extraction and classification. The tables are loaded
// once at process start and injected into the components that need them,
// so tests can substitute their own.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// StorePattern classifies by a regular expression matched against the
// store name alone.
type StorePattern struct {
	Pattern    string  `json:"pattern"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`

	re *regexp.Regexp
}

// Match reports whether the store name matches this pattern.
func (p *StorePattern) Match(storeName string) bool {
	return p.re.MatchString(storeName)
}

// KeywordGroup classifies when any of its words appears in the combined
// store + item text. Matching is case-insensitive.
type KeywordGroup struct {
	Words    []string `json:"words"`
	Category string   `json:"category"`
}

// Table is the full rule configuration.
type Table struct {
	// Categories is the closed category set. The last member is the
	// universal fallback.
	Categories []string `json:"categories"`

	// Merchants maps a known merchant name to its category.
	Merchants map[string]string `json:"merchants"`

	StorePatterns []StorePattern `json:"store_patterns"`
	KeywordGroups []KeywordGroup `json:"keyword_groups"`

	// LatinBrands are romanized chain names matched case-insensitively
	// during store-name extraction.
	LatinBrands []string `json:"latin_brands"`

	// NoiseWords mark receipt-boilerplate lines that can never be a
	// store name.
	NoiseWords []string `json:"noise_words"`

	// EntityTokens are corporate-entity markers stripped during store
	// name normalization.
	EntityTokens []string `json:"entity_tokens"`

	members map[string]struct{}
}

// Default returns the built-in table for Japanese retail receipts.
func Default() *Table {
	t := &Table{
		Categories: []string{
			"食費",
			"交通",
			"日用品（スーパー・ドラッグストア）",
			"医療",
			"犬関係",
			"趣味・娯楽",
			"教育・学習",
			"サブスク（Netflix, Spotify など）",
			"交際費（飲み会・プレゼント）",
			"その他",
		},
		Merchants: map[string]string{
			"セブン-イレブン":  "食費",
			"ファミリーマート":  "食費",
			"ローソン":      "食費",
			"スーパー玉出":    "食費",
			"阪急電鉄":      "交通",
			"JR":        "交通",
			"スギ薬局":      "日用品（スーパー・ドラッグストア）",
			"ココカラファイン":  "日用品（スーパー・ドラッグストア）",
			"カインズ":      "日用品（スーパー・ドラッグストア）",
			"スターバックス":   "食費",
			"ドトール":      "食費",
			"コーナン":      "犬関係",
			"ペット":       "犬関係",
		},
		StorePatterns: []StorePattern{
			{Pattern: `ドラッグ|薬局|ココカラ|マツキヨ|スギ薬局|ウェルシア`, Category: "日用品（スーパー・ドラッグストア）", Confidence: 0.85},
			{Pattern: `スーパー|マート|マーケット|百貨店|食品館|生鮮|フレッシュ`, Category: "食費", Confidence: 0.85},
			{Pattern: `電鉄|駅|JR|バス|地下鉄|メトロ|IC|切符`, Category: "交通", Confidence: 0.9},
			{Pattern: `カフェ|コーヒー|ベーカリー|パン|スターバックス|ドトール`, Category: "食費", Confidence: 0.85},
		},
		KeywordGroups: []KeywordGroup{
			{Words: []string{"切符", "乗車", "運賃", "ICチャージ", "改札"}, Category: "交通"},
			{Words: []string{"シャンプー", "洗剤", "トイレットペーパー", "日用品", "ティッシュ", "キッチンペーパー", "スポンジ", "歯ブラシ", "歯磨き", "ボディソープ", "ゴミ袋", "洗濯", "柔軟剤", "マスク", "除菌"}, Category: "日用品（スーパー・ドラッグストア）"},
			{Words: []string{"病院", "クリニック", "薬", "処方"}, Category: "医療"},
			{Words: []string{"犬", "ドッグ", "ペット", "フード", "トリミング", "おやつ"}, Category: "犬関係"},
			{Words: []string{"弁当", "おにぎり", "サンドイッチ", "パン", "牛乳", "卵", "肉", "野菜", "米", "寿司", "刺身", "惣菜", "ビール", "酒", "飲料", "お茶", "コーヒー", "紅茶", "カップ麺"}, Category: "食費"},
			{Words: []string{"Netflix", "Spotify", "Adobe", "サブスク", "定額"}, Category: "サブスク（Netflix, Spotify など）"},
		},
		LatinBrands: []string{"FamilyMart", "LAWSON", "Seven", "Starbucks", "DOUTOR"},
		NoiseWords: []string{
			"領収", "領収書", "レシート", "明細", "控え", "ご利用", "合計", "小計",
			"税込", "税", "No", "TEL", "電話", "日時", "日付", "時間", "売上", "レジ", "お買上",
		},
		EntityTokens: []string{"株式会社", "合同会社", "有限会社", "(株)", "㈱"},
	}
	if err := t.finish(); err != nil {
		// The built-in table must always validate.
		panic(err)
	}
	return t
}

// Load reads a rule table from a JSON file. The file replaces the built-in
// table entirely; it must carry its own category set.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	if err := t.finish(); err != nil {
		return nil, fmt.Errorf("validating rules file: %w", err)
	}
	return &t, nil
}

// finish validates the table against the closed category set and compiles
// the store patterns.
func (t *Table) finish() error {
	if len(t.Categories) < 2 {
		return fmt.Errorf("category set needs at least two members, got %d", len(t.Categories))
	}
	t.members = make(map[string]struct{}, len(t.Categories))
	for _, c := range t.Categories {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("empty category name in set")
		}
		t.members[c] = struct{}{}
	}
	for name, cat := range t.Merchants {
		if !t.Contains(cat) {
			return fmt.Errorf("merchant %q maps to unknown category %q", name, cat)
		}
	}
	for i := range t.StorePatterns {
		p := &t.StorePatterns[i]
		if !t.Contains(p.Category) {
			return fmt.Errorf("store pattern %q maps to unknown category %q", p.Pattern, p.Category)
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return fmt.Errorf("compiling store pattern %q: %w", p.Pattern, err)
		}
		p.re = re
	}
	for _, g := range t.KeywordGroups {
		if !t.Contains(g.Category) {
			return fmt.Errorf("keyword group maps to unknown category %q", g.Category)
		}
	}
	return nil
}

// Contains reports whether category is a member of the closed set.
func (t *Table) Contains(category string) bool {
	_, ok := t.members[category]
	return ok
}

// Fallback returns the universal fallback category, the last member of
// the set.
func (t *Table) Fallback() string {
	return t.Categories[len(t.Categories)-1]
}

// Coerce returns category unchanged when it is a member of the set, and
// the fallback otherwise. Free-text labels never leave the engine.
func (t *Table) Coerce(category string) string {
	if t.Contains(category) {
		return category
	}
	return t.Fallback()
}
