package receipt

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/stanaka/kakeibo-bot/internal/lineapi"
)

// handleWebhook receives LINE webhook deliveries. Anything after a valid
// signature is acknowledged with 200 even when processing fails: the
// identity upsert makes redelivery safe, and a non-200 would only trigger
// a redelivery storm.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Line-Signature")
	if !lineapi.ValidateSignature(s.channelSecret, body, signature) {
		slog.Warn("Rejected webhook with invalid signature")
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	var req lineapi.WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		slog.Error("Error parsing webhook body", "error", err)
		w.Write([]byte("OK"))
		return
	}

	for _, event := range req.Events {
		if event.Type != "message" || event.Message.Type != "image" {
			continue
		}
		if err := s.service.HandleImageMessage(r.Context(), event.Message.ID, event.ReplyToken); err != nil {
			slog.Error("Error processing receipt", "message_id", event.Message.ID, "error", err)
		}
	}

	w.Write([]byte("OK"))
}

// handleListReceipts returns all stored receipts.
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, receipts)
}

// handleGetReceipt returns a single receipt by identity.
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Receipt not found", http.StatusNotFound)
		return
	}
	writeJSON(w, receipt)
}

// handleListItems returns the classified items of a receipt.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListItems(r.PathValue("id"))
	if err != nil {
		slog.Error("Error listing items", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, items)
}

// handleGetReceiptFile returns the archived source image of a receipt.
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptImage(r.PathValue("id"))
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}
