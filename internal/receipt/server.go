package receipt

import (
	"log/slog"
	"net/http"
)

// Server exposes the LINE webhook endpoint and a small read API over the
// stored ledger.
type Server struct {
	service       *Service
	channelSecret string
	mux           *http.ServeMux
}

// NewServer creates a Server with a default mux.
func NewServer(service *Service, channelSecret string) *Server {
	return NewServerWithMux(service, channelSecret, http.NewServeMux())
}

// NewServerWithMux creates a Server with a custom mux for testing.
func NewServerWithMux(service *Service, channelSecret string, mux *http.ServeMux) *Server {
	s := &Server{
		service:       service,
		channelSecret: channelSecret,
		mux:           mux,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /webhook", s.handleWebhook)

	s.mux.HandleFunc("GET /api/receipts/{id}/items", s.handleListItems)
	s.mux.HandleFunc("GET /api/receipts/{id}/file", s.handleGetReceiptFile)
	s.mux.HandleFunc("GET /api/receipts/{id}", s.handleGetReceipt)
	s.mux.HandleFunc("GET /api/receipts", s.handleListReceipts)
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.mux)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
