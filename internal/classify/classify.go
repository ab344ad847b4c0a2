// Package classify assigns receipt line items to spending categories.
// A deterministic rule tier is always consulted first; the generative
// oracle is only asked when no rule fires.
package classify

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stanaka/kakeibo-bot/internal/oracle"
	"github.com/stanaka/kakeibo-bot/internal/rules"
)

// Provenance records which tier produced a classification.
type Provenance string

const (
	ProvenanceRule Provenance = "rule"
	ProvenanceAI   Provenance = "ai"
)

// Result is a category assignment with its confidence and origin.
type Result struct {
	Category   string     `json:"category"`
	Confidence float64    `json:"confidence"`
	Provenance Provenance `json:"provenance"`
}

// Classifier runs the two-tier cascade against an injected rule table.
type Classifier struct {
	table     *rules.Table
	oracle    oracle.Oracle
	merchants []string
}

// New creates a Classifier. The merchant dictionary is scanned in sorted
// key order so results are deterministic.
func New(table *rules.Table, o oracle.Oracle) *Classifier {
	merchants := make([]string, 0, len(table.Merchants))
	for name := range table.Merchants {
		merchants = append(merchants, name)
	}
	sort.Strings(merchants)
	return &Classifier{table: table, oracle: o, merchants: merchants}
}

// Classify assigns a category to an item. A nil price means the price
// could not be parsed; classification proceeds without it. An error is
// returned only when the oracle tier is needed and unreachable.
func (c *Classifier) Classify(ctx context.Context, storeName, itemName string, price *float64) (Result, error) {
	if r, ok := c.ruleClassify(storeName, itemName); ok {
		return r, nil
	}
	return c.aiClassify(ctx, storeName, itemName, price)
}

// ruleClassify runs the deterministic tier: merchant dictionary, then
// store-name patterns, then keyword groups over store + item text. The
// first match wins; rules never stack.
func (c *Classifier) ruleClassify(storeName, itemName string) (Result, bool) {
	if storeName != "" {
		for _, merchant := range c.merchants {
			if strings.Contains(storeName, merchant) {
				return Result{
					Category:   c.table.Merchants[merchant],
					Confidence: 1.0,
					Provenance: ProvenanceRule,
				}, true
			}
		}
		for i := range c.table.StorePatterns {
			p := &c.table.StorePatterns[i]
			if p.Match(storeName) {
				return Result{
					Category:   p.Category,
					Confidence: p.Confidence,
					Provenance: ProvenanceRule,
				}, true
			}
		}
	}

	text := strings.ToLower(storeName + " " + itemName)
	for _, group := range c.table.KeywordGroups {
		for _, word := range group.Words {
			if strings.Contains(text, strings.ToLower(word)) {
				return Result{
					Category:   group.Category,
					Confidence: 0.9,
					Provenance: ProvenanceRule,
				}, true
			}
		}
	}
	return Result{}, false
}

// aiClassify asks the oracle for a category. The response is untrusted:
// a malformed reply degrades to the fallback category at 0.5 confidence,
// never to an error. Only a transport failure is an error.
func (c *Classifier) aiClassify(ctx context.Context, storeName, itemName string, price *float64) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	text, err := c.oracle.Generate(ctx, c.prompt(storeName, itemName, price))
	if err != nil {
		return Result{}, fmt.Errorf("classifying %q: %w", itemName, err)
	}

	var reply struct {
		Category   string `json:"category"`
		Confidence any    `json:"confidence"`
	}
	if oracle.DecodeLenient(text, &reply) == oracle.DecodeFailed {
		return Result{
			Category:   c.table.Fallback(),
			Confidence: 0.5,
			Provenance: ProvenanceAI,
		}, nil
	}

	return Result{
		Category:   c.table.Coerce(reply.Category),
		Confidence: clampConfidence(reply.Confidence),
		Provenance: ProvenanceAI,
	}, nil
}

func (c *Classifier) prompt(storeName, itemName string, price *float64) string {
	priceText := ""
	if price != nil {
		priceText = strconv.FormatFloat(*price, 'f', -1, 64)
	}
	return fmt.Sprintf(`あなたは家計簿のカテゴリ分類器です。次のカテゴリのいずれか1つだけを返してください。
カテゴリ一覧: %s

JSONのみを返し、余計な文章は書かないでください。
出力例: {"category":"食費","confidence":0.82,"reason":"コンビニの食品名"}
注意: JSON以外の文字やコードブロックを含めないでください。

入力:
店名: %s
品目名: %s
金額: %s
`, strings.Join(c.table.Categories, ", "), storeName, itemName, priceText)
}

// clampConfidence coerces the oracle's confidence value to a float in
// [0, 1]. Non-numeric values default to 0.5.
func clampConfidence(v any) float64 {
	conf := 0.5
	switch n := v.(type) {
	case float64:
		conf = n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			conf = f
		}
	}
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}
