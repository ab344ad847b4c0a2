package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stanaka/kakeibo-bot/internal/classify"
	"github.com/stanaka/kakeibo-bot/internal/lineapi"
	"github.com/stanaka/kakeibo-bot/internal/oracle"
	"github.com/stanaka/kakeibo-bot/internal/vision"
)

const (
	maxItemNameRunes = 200

	// Items classified below this confidence are flagged in the reply
	// so the user knows to double-check them.
	lowConfidenceThreshold = 0.6

	noItemsReply = "明細が抽出できませんでした。画像が鮮明かご確認ください。"
)

// Service runs the full pipeline for one webhook event: fetch image, OCR,
// header resolution, identity/upsert, item extraction, classification,
// persistence, and the reply summary. Processing is synchronous and
// single-threaded per event.
type Service struct {
	db         DB
	archive    Archive
	annotator  vision.Annotator
	oracle     oracle.Oracle
	resolver   *HeaderResolver
	classifier *classify.Classifier
	messenger  lineapi.Messenger
	timeSource TimeSource
}

// NewService creates a Service with the real clock.
func NewService(db DB, archive Archive, annotator vision.Annotator, o oracle.Oracle, resolver *HeaderResolver, classifier *classify.Classifier, messenger lineapi.Messenger) *Service {
	return NewServiceWithDeps(db, archive, annotator, o, resolver, classifier, messenger, &defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with an injected time source for
// testing.
func NewServiceWithDeps(db DB, archive Archive, annotator vision.Annotator, o oracle.Oracle, resolver *HeaderResolver, classifier *classify.Classifier, messenger lineapi.Messenger, ts TimeSource) *Service {
	return &Service{
		db:         db,
		archive:    archive,
		annotator:  annotator,
		oracle:     o,
		resolver:   resolver,
		classifier: classifier,
		messenger:  messenger,
		timeSource: ts,
	}
}

// HandleImageMessage processes one image message end to end. A returned
// error means the receipt failed as a whole; the webhook surface still
// acknowledges the delivery.
func (s *Service) HandleImageMessage(ctx context.Context, messageID, replyToken string) error {
	image, contentType, err := s.messenger.GetMessageContent(ctx, messageID)
	if err != nil {
		return fmt.Errorf("fetching image: %w", err)
	}

	ocrText, err := s.annotator.ExtractText(ctx, image, contentType)
	if err != nil {
		return fmt.Errorf("running OCR: %w", err)
	}
	brandHint := s.annotator.DetectBrand(ctx, image, contentType)

	header := s.resolver.Resolve(ctx, ocrText, brandHint)
	receiptID := BuildReceiptID(header.PurchaseDate, header.StoreName, ocrText, messageID)

	if err := s.upsertReceipt(receiptID, header, image, contentType); err != nil {
		return err
	}

	itemsCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	csvText, err := s.oracle.Generate(itemsCtx, itemsPrompt(ocrText))
	cancel()
	if err != nil {
		return fmt.Errorf("extracting items: %w", err)
	}

	candidates := ParseItems(csvText)
	if len(candidates) == 0 {
		slog.Info("No line items extracted", "receipt_id", receiptID)
		return s.messenger.Reply(ctx, replyToken, noItemsReply)
	}

	created, lowConfidence, failed := s.saveItems(ctx, receiptID, header, candidates)

	summary := fmt.Sprintf("%s｜%s\n登録: %d件（低信頼: %d／失敗: %d）\nレシートID: %s",
		header.PurchaseDate, header.StoreName, created, lowConfidence, failed, lastRunes(receiptID, 8))
	return s.messenger.Reply(ctx, replyToken, summary)
}

// upsertReceipt stores the header record unless one with the same
// identity already exists, in which case the existing record is reused.
func (s *Service) upsertReceipt(receiptID string, header Header, image []byte, contentType string) error {
	existing, err := s.db.FindReceipt(receiptID)
	if err == nil {
		slog.Info("Reusing existing receipt", "receipt_id", existing.ID)
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("querying receipt: %w", err)
	}

	// Archive the source image; a failed archive degrades to a record
	// without one.
	imageFile := ""
	filename := receiptID + extensionFor(contentType)
	if saved, err := s.archive.Save(filename, image); err != nil {
		slog.Warn("Failed to archive receipt image", "receipt_id", receiptID, "error", err)
	} else {
		imageFile = saved
	}

	now := s.timeSource.Now()
	receipt := &Receipt{
		ID:           receiptID,
		StoreName:    header.StoreName,
		PurchaseDate: header.PurchaseDate,
		ImageFile:    imageFile,
		ContentType:  contentType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.SaveReceipt(receipt); err != nil {
		return fmt.Errorf("saving receipt: %w", err)
	}
	return nil
}

// saveItems classifies and stores each candidate. One bad item never
// blocks the rest; failures are counted into the summary.
func (s *Service) saveItems(ctx context.Context, receiptID string, header Header, candidates []LineItemCandidate) (created, lowConfidence, failed int) {
	now := s.timeSource.Now()
	for i, cand := range candidates {
		price := CoercePrice(cand.PriceText)

		result, err := s.classifier.Classify(ctx, header.StoreName, cand.Name, price)
		if err != nil {
			slog.Error("Failed to classify item", "item", cand.Name, "error", err)
			failed++
			continue
		}
		if result.Confidence < lowConfidenceThreshold {
			lowConfidence++
		}

		name := cand.Name
		if name == "" {
			name = "不明"
		}
		item := &Item{
			ID:         BuildItemID(receiptID, cand.Name, i),
			ReceiptID:  receiptID,
			Name:       truncateRunes(name, maxItemNameRunes),
			Price:      price,
			Category:   result.Category,
			Confidence: result.Confidence,
			Provenance: result.Provenance,
			CreatedAt:  now,
		}
		if err := s.db.SaveItem(item); err != nil {
			slog.Error("Failed to save item", "item", item.Name, "error", err)
			failed++
			continue
		}
		created++
	}
	return created, lowConfidence, failed
}

// GetReceipt retrieves a receipt by identity.
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.FindReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all stored receipts.
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// ListItems returns the items stored under a receipt.
func (s *Service) ListItems(receiptID string) ([]*Item, error) {
	items, err := s.db.ListItems(receiptID)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// GetReceiptImage returns the archived source image of a receipt.
func (s *Service) GetReceiptImage(id string) ([]byte, string, error) {
	receipt, err := s.db.FindReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}
	if receipt.ImageFile == "" {
		return nil, "", fmt.Errorf("receipt %s has no archived image", id)
	}
	data, err := s.archive.Get(receipt.ImageFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt image: %w", err)
	}
	return data, receipt.ContentType, nil
}

func extensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/heic", "image/heif":
		return ".heic"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}

func lastRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
