// Package server implements composerd: the multipart message endpoint the
// composer posts to, conversation history, attachment serving and the
// websocket feed.
package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/micumarket/composer/internal/store"
	"github.com/micumarket/composer/shared/api"
	"github.com/micumarket/composer/shared/config"
	"github.com/micumarket/composer/shared/domain"
	"github.com/micumarket/composer/shared/errors"
	"github.com/micumarket/composer/shared/logger"
	"github.com/micumarket/composer/shared/metrics"
)

// maxRequestBytes bounds a single multipart submission. The composer
// downscales images before upload, so the ceiling is generous.
const maxRequestBytes = 32 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Server struct {
	store *store.Store
	hub   *Hub
	cfg   *config.Config
}

func New(cfg *config.Config, st *store.Store) *Server {
	return &Server{store: st, hub: NewHub(), cfg: cfg}
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Requested-With"},
	}))
	r.Use(metrics.Middleware)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/conversations/{conversation}", func(r chi.Router) {
		r.Get("/messages", s.listMessages)
		r.Post("/messages", s.createMessage)
		r.Get("/feed", s.feed)
	})
	r.Get(s.cfg.Server.MediaPath+"/{name}", s.serveMedia)

	return r
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	conversationId := chi.URLParam(r, "conversation")

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		respondSend(w, http.StatusBadRequest, api.SendResponse{Error: "invalid multipart request"})
		return
	}

	content := strings.TrimSpace(r.FormValue("content"))
	var fileHeaders []*multipart.FileHeader
	if r.MultipartForm != nil {
		fileHeaders = r.MultipartForm.File["attachments"]
	}
	if content == "" && len(fileHeaders) == 0 {
		respondSend(w, http.StatusBadRequest, api.SendResponse{Error: "message is empty"})
		return
	}

	attachments, err := s.storeAttachments(fileHeaders)
	if err != nil {
		respondSend(w, statusOf(err), api.SendResponse{Error: err.Error()})
		return
	}

	msg := s.store.AppendMessage(conversationId, domain.ConfirmedMessage{
		Content:     content,
		Attachments: attachments,
		CreatedAt:   time.Now().UTC(),
	})

	wire := api.FromDomain(msg)
	respondSend(w, http.StatusCreated, api.SendResponse{Success: true, Message: &wire})

	s.hub.Broadcast(conversationId, wire, nil)
}

func (s *Server) storeAttachments(fileHeaders []*multipart.FileHeader) ([]domain.ConfirmedAttachment, error) {
	var out []domain.ConfirmedAttachment
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			return nil, &errors.ErrorWithStatusCode{Message: "open upload " + fh.Filename, StatusCode: http.StatusInternalServerError}
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, &errors.ErrorWithStatusCode{Message: "read upload " + fh.Filename, StatusCode: http.StatusInternalServerError}
		}

		mimeType, err := detectMimeType(fh)
		if err != nil {
			return nil, err
		}

		name := s.store.SaveFile(fh.Filename, mimeType, data)
		out = append(out, domain.ConfirmedAttachment{
			URL:      s.cfg.Server.MediaPath + "/" + name,
			Filename: fh.Filename,
			Kind:     domain.KindFromMime(mimeType),
		})
	}
	return out, nil
}

// detectMimeType trusts the part's Content-Type header and falls back to
// the filename extension when the header is absent or generic.
func detectMimeType(fh *multipart.FileHeader) (string, error) {
	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		if detected := mime.TypeByExtension(filepath.Ext(fh.Filename)); detected != "" {
			mimeType = detected
		}
	}
	if mimeType == "" {
		return "", &errors.ErrorWithStatusCode{
			Message:    fmt.Sprintf("could not detect MIME type for file: %s", fh.Filename),
			StatusCode: http.StatusBadRequest,
		}
	}
	return mimeType, nil
}

// statusOf maps an error to the response status, defaulting to 500.
func statusOf(err error) int {
	var statusErr *errors.ErrorWithStatusCode
	if stderrors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return http.StatusInternalServerError
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	conversationId := chi.URLParam(r, "conversation")

	history := s.store.Messages(conversationId)
	out := make([]api.Message, 0, len(history))
	for _, m := range history {
		out = append(out, api.FromDomain(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) serveMedia(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	data, mimeType, ok := s.store.File(name)
	if !ok {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(data)
}

func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	conversationId := chi.URLParam(r, "conversation")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("websocket upgrade failed", "err", err)
		return
	}
	s.hub.Register(conversationId, conn)
	defer func() {
		s.hub.Unregister(conversationId, conn)
		conn.Close()
	}()

	// The feed is one-way. Reading only surfaces the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!stderrors.Is(err, io.EOF) {
				logger.Log.Debug("websocket feed closed", "conversation", conversationId, "err", err)
			}
			return
		}
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Log.Debug("request",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func respondSend(w http.ResponseWriter, status int, resp api.SendResponse) {
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("write json response", "err", err)
	}
}
