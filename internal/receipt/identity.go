package receipt

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// maxIdentityTextRunes caps how much OCR text feeds the receipt digest.
const maxIdentityTextRunes = 5000

// BuildReceiptID derives the deterministic identity of a receipt from its
// resolved header, the raw OCR text, and the upstream message id. The
// same inputs always yield the same identity, which makes the header
// upsert idempotent under at-least-once webhook delivery.
func BuildReceiptID(purchaseDate, storeName, ocrText, messageID string) string {
	base := strings.Join([]string{
		purchaseDate,
		storeName,
		messageID,
		truncateRunes(ocrText, maxIdentityTextRunes),
	}, "::")
	sum := sha1.Sum([]byte(base))
	digest := hex.EncodeToString(sum[:])[:12]
	return fmt.Sprintf("%s_%s_%s", purchaseDate, strings.TrimSpace(storeName), digest)
}

// BuildItemID derives a deterministic identity for a line item from its
// receipt, name, and position, so a retried batch overwrites instead of
// duplicating rows.
func BuildItemID(receiptID, name string, ordinal int) string {
	base := fmt.Sprintf("%s::%s::%d", receiptID, name, ordinal)
	sum := sha1.Sum([]byte(base))
	return hex.EncodeToString(sum[:])[:12]
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
