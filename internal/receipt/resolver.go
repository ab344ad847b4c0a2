package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stanaka/kakeibo-bot/internal/extract"
	"github.com/stanaka/kakeibo-bot/internal/fallback"
	"github.com/stanaka/kakeibo-bot/internal/oracle"
)

// HeaderResolver produces a receipt header. Local heuristics run first;
// the oracle's header-extraction mode is invoked only when the store name
// or the date is still missing afterwards.
type HeaderResolver struct {
	store      *extract.StoreExtractor
	oracle     oracle.Oracle
	timeSource TimeSource
}

// NewHeaderResolver creates a HeaderResolver with the real clock.
func NewHeaderResolver(store *extract.StoreExtractor, o oracle.Oracle) *HeaderResolver {
	return NewHeaderResolverWithClock(store, o, &defaultTimeSource{})
}

// NewHeaderResolverWithClock creates a HeaderResolver with an injected
// time source for testing.
func NewHeaderResolverWithClock(store *extract.StoreExtractor, o oracle.Oracle, ts TimeSource) *HeaderResolver {
	return &HeaderResolver{store: store, oracle: o, timeSource: ts}
}

// Resolve extracts (store name, purchase date) from OCR text. The date is
// never empty: when every tier misses it falls back to the processing
// date. The store name may be "".
func (r *HeaderResolver) Resolve(ctx context.Context, ocrText, brandHint string) Header {
	storeName := r.store.StoreName(ocrText, brandHint)
	date := extract.PurchaseDate(ocrText)

	if storeName == "" || date == "" {
		remote := r.oracleHeader(ctx, ocrText)
		storeName = fallback.First(
			func() string { return storeName },
			func() string { return r.store.Normalize(remote.StoreName) },
			func() string { return r.store.HeadingStoreName(ocrText) },
		)
		date = fallback.First(
			func() string { return date },
			func() string { return validISODate(remote.PurchaseDate) },
			func() string { return extract.PurchaseDate(ocrText) },
		)
	}

	if date == "" {
		date = r.timeSource.Now().Format("2006-01-02")
	}
	return Header{StoreName: storeName, PurchaseDate: date}
}

type headerReply struct {
	StoreName    string `json:"store_name"`
	PurchaseDate string `json:"purchase_date"`
}

// oracleHeader asks the oracle for the header. Failures of any kind
// degrade to an empty reply; the resolver has local fallbacks for both
// fields.
func (r *HeaderResolver) oracleHeader(ctx context.Context, ocrText string) headerReply {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	var reply headerReply
	text, err := r.oracle.Generate(ctx, headerPrompt(ocrText))
	if err != nil {
		slog.Warn("Header extraction oracle call failed", "error", err)
		return reply
	}
	if oracle.DecodeLenient(text, &reply) == oracle.DecodeFailed {
		slog.Warn("Header extraction returned no parseable JSON")
	}
	return reply
}

// validISODate returns date when it is a real YYYY-MM-DD calendar date,
// and "" otherwise. The oracle's dates are untrusted like everything
// else it says.
func validISODate(date string) string {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return ""
	}
	return date
}

func headerPrompt(ocrText string) string {
	return fmt.Sprintf(`以下のレシートOCRテキストから店名と購入日付を抽出してください。
日本のレシート日付表記(例: 2025/9/28, 令和, xx年xx月xx日)にも対応し、出力はYYYY-MM-DDに揃えてください。
JSONのみを返し、余計な文章は書かないでください。
出力フォーマット:
{"store_name": "...", "purchase_date": "YYYY-MM-DD"}

良い例:
OCR: セブン-イレブン大阪梅田店 2025/9/28 12:34
出力: {"store_name":"セブン-イレブン大阪梅田店","purchase_date":"2025-09-28"}

OCR: LAWSON 神戸三宮本店 令和7年9月28日
出力: {"store_name":"LAWSON 神戸三宮本店","purchase_date":"2025-09-28"}

OCR:
%s
`, truncateRunes(ocrText, 8000))
}
