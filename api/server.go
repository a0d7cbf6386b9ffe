// Package api provides the HTTP REST API server for MarketBrief.
//
// It exposes endpoints for ticker analysis, PDF document analysis,
// quotes, text summarization, and WebSocket streaming of completed
// analyses.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/marketbrief/marketbrief/internal/analyzer"
	"github.com/marketbrief/marketbrief/internal/config"
	"github.com/marketbrief/marketbrief/internal/datasource"
	"github.com/marketbrief/marketbrief/internal/extract"
	"github.com/marketbrief/marketbrief/internal/llm"
	"github.com/marketbrief/marketbrief/internal/prompt"
	"github.com/marketbrief/marketbrief/pkg/models"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

// trendingTickers is the curated list served by GET /api/trending.
var trendingTickers = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA",
	"TSLA", "META", "BRK.B", "V", "JPM",
}

const publishedFormat = "2006-01-02 15:04:05"

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	an     *analyzer.Analyzer
	quotes analyzer.QuoteFetcher
	gen    llm.Generator
	wsHub  *WSHub
}

// NewServer creates a configured API server wired to live providers
// and a local Ollama generator.
func NewServer(cfg *config.Config) (*Server, error) {
	cacheTTL := time.Duration(cfg.Analysis.CacheTTLSec) * time.Second
	quotes := datasource.NewQuoteChain(
		datasource.NewYahoo(datasource.WithYahooCacheTTL(cacheTTL)),
		datasource.NewAlphaVantage(cfg.Providers.AlphaVantageKey,
			datasource.WithAlphaVantageCacheTTL(cacheTTL)),
	)
	news := datasource.NewNewsChain(
		datasource.NewYahoo(datasource.WithYahooCacheTTL(cacheTTL)),
		datasource.NewGoogleNews(datasource.WithGoogleNewsCacheTTL(cacheTTL)),
	)
	gen := llm.NewOllamaGenerator(cfg.LLM.OllamaURL,
		llm.WithOllamaModel(cfg.LLM.Model),
		llm.WithOllamaSampling(cfg.LLM.Temperature, cfg.LLM.TopP),
		llm.WithOllamaTimeout(time.Duration(cfg.LLM.TimeoutSec)*time.Second),
	)
	an := analyzer.New(quotes, news, gen, extract.NewPDFExtractor(),
		analyzer.WithNewsLimit(cfg.Analysis.NewsLimit))

	return newServer(cfg, an, quotes, gen), nil
}

// newServer wires a server around pre-built dependencies.
func newServer(cfg *config.Config, an *analyzer.Analyzer, quotes analyzer.QuoteFetcher, gen llm.Generator) *Server {
	srv := &Server{
		cfg:    cfg,
		an:     an,
		quotes: quotes,
		gen:    gen,
		wsHub:  NewWSHub(),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/trending", s.handleTrending)
		r.Post("/analyze-pdf", s.handleAnalyzePDF)
		r.Post("/analyze-pdf-with-stock", s.handleAnalyzePDFWithStock)
		r.Post("/summarize", s.handleSummarize)
		r.Post("/sentiment", s.handleSentiment)
		r.Get("/quote/{ticker}", s.handleQuote)
		r.Get("/config/keys", s.handleConfigKeys)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Detail string `json:"detail"`
}

// AnalyzeRequest is the body for POST /api/analyze.
type AnalyzeRequest struct {
	Ticker string `json:"ticker"`
}

// SummarizeRequest is the body for POST /api/summarize.
type SummarizeRequest struct {
	Text string `json:"text"`
}

// NewsEntry is a single headline in an analysis response.
type NewsEntry struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Source    string `json:"source"`
	Published string `json:"published"`
}

// AnalyzeResponse is the body for a successful POST /api/analyze.
type AnalyzeResponse struct {
	Ticker        string      `json:"ticker"`
	CurrentPrice  *float64    `json:"current_price"`
	ChangePercent *float64    `json:"change_percent"`
	Summary       string      `json:"summary"`
	Sentiment     string      `json:"sentiment"`
	News          []NewsEntry `json:"news"`
}

// PDFResponse is the body for a successful POST /api/analyze-pdf.
type PDFResponse struct {
	Filename string `json:"filename"`
	Pages    int    `json:"pages"`
	Ticker   string `json:"ticker,omitempty"`
	Analysis string `json:"analysis"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"llm_model": s.gen.Model(),
		"services":  []string{"stock_data", "news_collector", "llm_analyzer", "pdf_analyzer"},
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ticker := utils.NormalizeTicker(req.Ticker)
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	result, err := s.an.AnalyzeTicker(ctx, ticker)
	if err != nil {
		s.writeAnalysisError(w, ticker, err)
		return
	}

	s.wsHub.Broadcast(WSMessage{
		Type: "analysis_complete",
		Data: map[string]interface{}{
			"ticker":    result.SubjectID,
			"sentiment": string(result.Sentiment),
		},
	})

	resp := AnalyzeResponse{
		Ticker:    result.SubjectID,
		Summary:   result.Summary,
		Sentiment: string(result.Sentiment),
		News:      newsEntries(result.News),
	}
	if result.Quote != nil {
		resp.CurrentPrice = result.Quote.CurrentPrice
		resp.ChangePercent = result.Quote.ChangePct
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"trending": trendingTickers})
}

func (s *Server) handleAnalyzePDF(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	task := prompt.DocumentTask(r.FormValue("analysis_type"))
	if task == "" {
		task = prompt.TaskSummary
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	result, err := s.an.AnalyzeDocument(ctx, filename, data, task)
	if err != nil {
		s.writeAnalysisError(w, filename, err)
		return
	}

	s.wsHub.Broadcast(WSMessage{
		Type: "analysis_complete",
		Data: map[string]interface{}{
			"filename":  result.SubjectID,
			"sentiment": string(result.Sentiment),
		},
	})

	writeJSON(w, http.StatusOK, PDFResponse{
		Filename: result.SubjectID,
		Pages:    result.PageCount,
		Analysis: result.Summary,
	})
}

func (s *Server) handleAnalyzePDFWithStock(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	ticker := utils.NormalizeTicker(r.FormValue("ticker"))

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	result, err := s.an.AnalyzeDocumentWithStock(ctx, filename, data, ticker)
	if err != nil {
		s.writeAnalysisError(w, ticker, err)
		return
	}

	writeJSON(w, http.StatusOK, PDFResponse{
		Filename: result.SubjectID,
		Pages:    result.PageCount,
		Ticker:   ticker,
		Analysis: result.Summary,
	})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req SummarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	summary, err := s.an.SummarizeText(ctx, req.Text)
	if err != nil {
		s.writeAnalysisError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	var req SummarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	sentiment, err := s.an.ClassifySentiment(ctx, req.Text)
	if err != nil {
		s.writeAnalysisError(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sentiment": string(sentiment)})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	ticker := utils.NormalizeTicker(chi.URLParam(r, "ticker"))
	if err := utils.ValidateTicker(ticker); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	quote, err := s.quotes.FetchQuote(ctx, ticker)
	if err != nil {
		s.writeAnalysisError(w, ticker, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.CheckAPIKeys(s.cfg))
}

// ============================================================
// Helpers
// ============================================================

// readUpload pulls the "file" part out of a multipart request and
// enforces the PDF extension and size cap before any parsing happens.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if err := r.ParseMultipartForm(analyzer.MaxDocumentBytes + (1 << 20)); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return "", nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return "", nil, false
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF files are supported")
		return "", nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, analyzer.MaxDocumentBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return "", nil, false
	}
	if len(data) > analyzer.MaxDocumentBytes {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file exceeds the %d MiB limit", analyzer.MaxDocumentBytes>>20))
		return "", nil, false
	}
	return header.Filename, data, true
}

// writeAnalysisError maps the analysis error taxonomy onto HTTP
// statuses. Generation failures surface a generic message so internal
// process details never reach clients.
func (s *Server) writeAnalysisError(w http.ResponseWriter, subject string, err error) {
	var ve *analyzer.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Detail)
		return
	}
	if datasource.IsNotFound(err) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Ticker %s not found", subject))
		return
	}
	if errors.Is(err, datasource.ErrDataUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "market data is temporarily unavailable, please try again")
		return
	}
	if kind := extract.ErrKind(err); kind != "" {
		writeError(w, http.StatusUnprocessableEntity, extractionDetail(kind))
		return
	}
	if errors.Is(err, llm.ErrTimeout) || errors.Is(err, llm.ErrProcessUnavailable) {
		log.Printf("api: generation failed for %q: %v", subject, err)
		writeError(w, http.StatusBadGateway, "analysis failed, please try again")
		return
	}
	log.Printf("api: internal error for %q: %v", subject, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func extractionDetail(kind extract.Kind) string {
	switch kind {
	case extract.KindEncrypted:
		return "the PDF is password-protected"
	case extract.KindEmpty:
		return "no text could be extracted from the PDF"
	default:
		return "the PDF could not be read"
	}
}

func newsEntries(items []models.NewsItem) []NewsEntry {
	out := make([]NewsEntry, 0, len(items))
	for _, item := range items {
		published := ""
		if !item.PublishedAt.IsZero() {
			published = item.PublishedAt.Format(publishedFormat)
		}
		out = append(out, NewsEntry{
			Title:     item.Title,
			Link:      item.Link,
			Source:    item.Source,
			Published: published,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Detail: msg})
}

// ============================================================
// WebSocket Hub
// ============================================================

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSHub manages WebSocket connections and message broadcasting.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// WSClient represents a single WebSocket connection.
type WSClient struct {
	hub  *WSHub
	send chan WSMessage
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the hub event loop.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client; disconnect
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, client)
					close(client.send)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a message to all connected WebSocket clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop message if broadcast channel is full
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(client *WSClient) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	h.unregister <- client
}
