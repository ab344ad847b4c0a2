package receipt

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stanaka/kakeibo-bot/internal/classify"
	"github.com/stanaka/kakeibo-bot/internal/extract"
	"github.com/stanaka/kakeibo-bot/internal/rules"
)

const testChannelSecret = "test-channel-secret"

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookBody(messageType, messageID string) []byte {
	return []byte(fmt.Sprintf(`{"events":[{"type":"message","replyToken":"tok-001","message":{"id":%q,"type":%q}}]}`, messageID, messageType))
}

var _ = Describe("Server", func() {
	var (
		db         *mockDB
		archive    *mockArchive
		annotator  *mockAnnotator
		textOracle *mockOracle
		messenger  *mockMessenger
		server     *Server
	)

	BeforeEach(func() {
		db = newMockDB()
		archive = newMockArchive()
		annotator = &mockAnnotator{
			text: "スーパー玉出 天下茶屋店\n2025/9/28\n合計 ¥326",
		}
		textOracle = &mockOracle{
			generateFunc: func(prompt string) (string, error) {
				if strings.Contains(prompt, "商品明細") {
					return "おにぎり, 128", nil
				}
				return "", fmt.Errorf("unexpected prompt: %s", prompt)
			},
		}
		messenger = &mockMessenger{
			content:     []byte("jpeg-bytes"),
			contentType: "image/jpeg",
		}
		clock := &mockTimeSource{now: time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)}

		table := rules.Default()
		resolver := NewHeaderResolverWithClock(extract.NewStoreExtractor(table), textOracle, clock)
		classifier := classify.New(table, textOracle)
		service := NewServiceWithDeps(db, archive, annotator, textOracle, resolver, classifier, messenger, clock)
		server = NewServer(service, testChannelSecret)
	})

	post := func(body []byte, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
		req.Header.Set("X-Line-Signature", signature)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		return rec
	}

	Describe("POST /webhook", func() {
		When("the signature is valid and an image event arrives", func() {
			It("acknowledges and processes the receipt", func() {
				body := webhookBody("image", "msg-001")
				rec := post(body, signBody(testChannelSecret, body))

				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(rec.Body.String()).To(Equal("OK"))
				Expect(db.receipts).To(HaveLen(1))
				Expect(messenger.replies).To(HaveLen(1))
			})
		})

		When("the signature is invalid", func() {
			It("rejects with 400 and processes nothing", func() {
				body := webhookBody("image", "msg-001")
				rec := post(body, signBody("wrong-secret", body))

				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				Expect(db.receipts).To(BeEmpty())
				Expect(messenger.replies).To(BeEmpty())
			})
		})

		When("the signature header is missing", func() {
			It("rejects with 400", func() {
				rec := post(webhookBody("image", "msg-001"), "")
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
			})
		})

		When("the event is not an image message", func() {
			It("acknowledges without processing", func() {
				body := webhookBody("text", "msg-001")
				rec := post(body, signBody(testChannelSecret, body))

				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(db.receipts).To(BeEmpty())
			})
		})

		When("processing fails after a valid signature", func() {
			It("still acknowledges with 200", func() {
				annotator.err = fmt.Errorf("vision unavailable")
				body := webhookBody("image", "msg-001")
				rec := post(body, signBody(testChannelSecret, body))

				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(rec.Body.String()).To(Equal("OK"))
			})
		})

		When("the body is not valid JSON but the signature matches", func() {
			It("still acknowledges with 200", func() {
				body := []byte("not json")
				rec := post(body, signBody(testChannelSecret, body))

				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(rec.Body.String()).To(Equal("OK"))
			})
		})
	})

	Describe("read API", func() {
		var receiptID string

		BeforeEach(func() {
			body := webhookBody("image", "msg-001")
			post(body, signBody(testChannelSecret, body))

			for id := range db.receipts {
				receiptID = id
			}
			Expect(receiptID).NotTo(BeEmpty())
		})

		get := func(path string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
			return rec
		}

		It("lists receipts as JSON", func() {
			rec := get("/api/receipts")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var receipts []Receipt
			Expect(json.Unmarshal(rec.Body.Bytes(), &receipts)).To(Succeed())
			Expect(receipts).To(HaveLen(1))
			Expect(receipts[0].StoreName).To(Equal("スーパー玉出 天下茶屋店"))
		})

		It("returns a single receipt by identity", func() {
			rec := get("/api/receipts/" + url.PathEscape(receiptID))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var receipt Receipt
			Expect(json.Unmarshal(rec.Body.Bytes(), &receipt)).To(Succeed())
			Expect(receipt.ID).To(Equal(receiptID))
		})

		It("returns 404 for an unknown receipt", func() {
			Expect(get("/api/receipts/missing").Code).To(Equal(http.StatusNotFound))
		})

		It("lists the items of a receipt", func() {
			rec := get("/api/receipts/" + url.PathEscape(receiptID) + "/items")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var items []Item
			Expect(json.Unmarshal(rec.Body.Bytes(), &items)).To(Succeed())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("おにぎり"))
		})

		It("serves the archived image with its content type", func() {
			rec := get("/api/receipts/" + url.PathEscape(receiptID) + "/file")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("image/jpeg"))
			Expect(rec.Body.Bytes()).To(Equal([]byte("jpeg-bytes")))
		})

		It("returns 404 for the image of an unknown receipt", func() {
			Expect(get("/api/receipts/missing/file").Code).To(Equal(http.StatusNotFound))
		})
	})
})
