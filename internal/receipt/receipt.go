// Package receipt implements the receipt interpretation pipeline: header
// resolution, deterministic identity, line-item parsing, classification,
// persistence, and the webhook surface that drives it all.
package receipt

import (
	"time"

	"github.com/stanaka/kakeibo-bot/internal/classify"
)

// Header is the (store name, purchase date) pair describing a receipt as
// a whole. PurchaseDate is always a valid ISO calendar date once
// resolution completes; StoreName may be "" (unknown) but never missing.
type Header struct {
	StoreName    string `json:"store_name"`
	PurchaseDate string `json:"purchase_date"`
}

// Receipt is the stored header record, keyed by its deterministic ID.
type Receipt struct {
	ID           string    `json:"id"`
	StoreName    string    `json:"store_name"`
	PurchaseDate string    `json:"purchase_date"`
	ImageFile    string    `json:"image_file,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LineItemCandidate is an untyped (name, price text) pair as emitted by
// the line-item parser, before numeric coercion.
type LineItemCandidate struct {
	Name      string
	PriceText string
}

// Item is a classified line item referencing its receipt. Price is nil
// when the price text could not be parsed.
type Item struct {
	ID         string              `json:"id"`
	ReceiptID  string              `json:"receipt_id"`
	Name       string              `json:"name"`
	Price      *float64            `json:"price"`
	Category   string              `json:"category"`
	Confidence float64             `json:"confidence"`
	Provenance classify.Provenance `json:"provenance"`
	CreatedAt  time.Time           `json:"created_at"`
}

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}
