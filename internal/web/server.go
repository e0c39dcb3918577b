package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"upload-compressor-go/internal/compressor"
	"upload-compressor-go/internal/config"
	"upload-compressor-go/internal/logger"
	"upload-compressor-go/internal/statistics"
	"upload-compressor-go/internal/upload"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/sirupsen/logrus"
)

// multipart bodies carry some framing on top of the file itself
const multipartOverhead = 1 << 20

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	compressor compressor.Compressor
	presets    map[string]compressor.Preset
	stats      *statistics.Statistics
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]string // connection -> subscribed session
	wsMutex    sync.RWMutex

	activeSessions int64
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CompressResponse is the payload of a successful compression.
// Output is serialised as base64 by encoding/json.
type CompressResponse struct {
	Session             string  `json:"session"`
	Preset              string  `json:"preset"`
	FileName            string  `json:"file_name"`
	Format              string  `json:"format"`
	MIMEType            string  `json:"mime_type"`
	OriginalSizeBytes   int64   `json:"original_size_bytes"`
	CompressedSizeBytes int64   `json:"compressed_size_bytes"`
	SavingsPercent      int     `json:"savings_percent"`
	SavingsMessage      string  `json:"savings_message,omitempty"`
	BudgetMet           bool    `json:"budget_met"`
	Width               int     `json:"width"`
	Height              int     `json:"height"`
	Quality             float64 `json:"quality"`
	Attempts            int     `json:"attempts"`
	Output              []byte  `json:"output"`
}

type PresetInfo struct {
	Name              string  `json:"name"`
	MaxSizeMB         float64 `json:"max_size_mb"`
	TargetSizeBytes   int64   `json:"target_size_bytes"`
	MaxLongEdgePixels int     `json:"max_long_edge_pixels"`
	InitialQuality    float64 `json:"initial_quality"`
	MaxUploadMB       float64 `json:"max_upload_mb"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(cfg *config.Config, log *logrus.Logger, c compressor.Compressor, stats *statistics.Statistics) *Server {
	if stats == nil {
		stats = statistics.NewStatistics()
	}
	s := &Server{
		cfg:        cfg,
		log:        log,
		compressor: c,
		presets:    cfg.CompressorPresets(),
		stats:      stats,
		router:     mux.NewRouter(),
		wsClients:  make(map[*websocket.Conn]string),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return gzhttp.GzipHandler(next)
	})
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/presets", s.handlePresets).Methods("GET")
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")
	api.HandleFunc("/compress/{preset}", s.handleCompress).Methods("POST")

	// WebSocket endpoint, outside the gzip middleware so it can hijack
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.wsMutex.Lock()
	for conn := range s.wsClients {
		conn.Close()
		delete(s.wsClients, conn)
	}
	s.wsMutex.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running":         atomic.LoadInt64(&s.activeSessions) > 0,
			"active_sessions": atomic.LoadInt64(&s.activeSessions),
			"ws_clients":      s.clientCount(),
			"statistics":      s.stats.Snapshot(),
		},
	})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	presets := make([]PresetInfo, 0, len(s.presets))
	for name, p := range s.presets {
		presets = append(presets, PresetInfo{
			Name:              name,
			MaxSizeMB:         p.MaxSizeMB,
			TargetSizeBytes:   p.Constraints().TargetSizeBytes,
			MaxLongEdgePixels: p.MaxLongEdgePixels,
			InitialQuality:    p.InitialQuality,
			MaxUploadMB:       s.cfg.Presets[name].MaxUploadMB,
		})
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    presets,
	})
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.stats.Finalize()
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"summary":  s.stats.GetSummary(),
			"counters": s.stats.Snapshot(),
		},
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	presetName := mux.Vars(r)["preset"]
	preset, err := compressor.LookupPreset(s.presets, presetName)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	preflight, err := s.cfg.Preflight(preset.Name)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, preflight.MaxBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.stats.RecordRejected("", upload.ErrFileTooLarge)
			s.writeError(w, upload.ErrFileTooLarge.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		s.writeError(w, "Multipart field \"file\" is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to read upload: %v", err), http.StatusBadRequest)
		return
	}

	session := r.FormValue("session")
	if session == "" {
		session = uuid.NewString()
	}
	log := logger.WithSession(s.log, session, preset.Name).WithField("file", header.Filename)

	mime, err := preflight.Check(data)
	if err != nil {
		log.WithError(err).Warn("Upload rejected")
		s.stats.RecordRejected(header.Filename, err)
		s.writeError(w, err.Error(), statusForError(err))
		return
	}

	s.broadcastWSMessage(session, "compress_started", map[string]interface{}{
		"session": session,
		"preset":  preset.Name,
		"file":    header.Filename,
		"mime":    mime,
		"size":    len(data),
	})

	s.stats.IncrementSessionsStarted()
	res, err := s.runSession(r.Context(), session, data, preset.Constraints())

	if err != nil {
		log.WithError(err).Error("Compression failed")
		s.stats.RecordFailure(header.Filename, err)
		s.broadcastWSMessage(session, "compress_error", map[string]interface{}{
			"session": session,
			"error":   err.Error(),
		})
		s.writeError(w, err.Error(), statusForError(err))
		return
	}

	s.stats.RecordResult(res)
	resp := CompressResponse{
		Session:             session,
		Preset:              preset.Name,
		FileName:            header.Filename,
		Format:              res.Format,
		MIMEType:            res.MIMEType,
		OriginalSizeBytes:   res.OriginalSizeBytes,
		CompressedSizeBytes: res.CompressedSizeBytes,
		SavingsPercent:      res.SavingsPercent,
		BudgetMet:           res.BudgetMet,
		Width:               res.Width,
		Height:              res.Height,
		Quality:             res.Quality,
		Attempts:            res.Attempts,
		Output:              res.Output,
	}
	if res.ShouldAnnounceSavings() {
		resp.SavingsMessage = res.SavingsMessage()
	}

	s.broadcastWSMessage(session, "compress_completed", map[string]interface{}{
		"session":         session,
		"savings_percent": res.SavingsPercent,
		"budget_met":      res.BudgetMet,
		"compressed_size": res.CompressedSizeBytes,
	})

	message := "Compressed"
	if !res.BudgetMet {
		message = "Size budget not met, returning smallest attempt"
	}
	s.writeJSON(w, APIResponse{
		Success: true,
		Message: message,
		Data:    resp,
	})
}

// runSession compresses one upload, pushing progress to the session's subscribers.
func (s *Server) runSession(ctx context.Context, session string, data []byte, cons compressor.Constraints) (*compressor.Result, error) {
	atomic.AddInt64(&s.activeSessions, 1)
	defer atomic.AddInt64(&s.activeSessions, -1)

	return s.compressor.Compress(ctx, data, cons, func(percent int) {
		s.broadcastWSMessage(session, "compress_progress", map[string]interface{}{
			"session": session,
			"percent": percent,
		})
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, compressor.ErrUnsupportedImageFormat),
		errors.Is(err, compressor.ErrCorruptImage),
		errors.Is(err, upload.ErrEmptyFile):
		return http.StatusBadRequest
	case errors.Is(err, compressor.ErrInputTooLarge),
		errors.Is(err, upload.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, upload.ErrMIMENotAllowed):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session")
	if session == "" {
		s.writeError(w, "Query parameter \"session\" is required", http.StatusBadRequest)
		return
	}

	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = session
	s.wsMutex.Unlock()

	s.log.WithField("session", session).Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (s *Server) clientCount() int {
	s.wsMutex.RLock()
	defer s.wsMutex.RUnlock()
	return len(s.wsClients)
}

// broadcastWSMessage sends a message to the clients subscribed to session.
func (s *Server) broadcastWSMessage(session, messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	// websocket.Conn allows one concurrent writer
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn, subscribed := range s.wsClients {
		if subscribed != session {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
