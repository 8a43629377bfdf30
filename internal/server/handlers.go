package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rafidimas/pens-chatbot/internal/composer"
	"github.com/rafidimas/pens-chatbot/internal/retriever"
)

const (
	maxBodyBytes   = 10 << 10 // 10 KB
	maxMessageLen  = 500
	apiVersion     = "1.0.0"
	generationFail = "Gagal memproses percakapan dengan AI."
)

type chatRequest struct {
	Message string        `json:"message"`
	History []historyTurn `json:"history"`
}

// historyTurn accepts both the Gemini-style parts array and a flat
// message string, whichever the client sends.
type historyTurn struct {
	Role  string `json:"role"`
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
	Message string `json:"message"`
}

func (t historyTurn) text() string {
	if len(t.Parts) > 0 {
		parts := make([]string, 0, len(t.Parts))
		for _, p := range t.Parts {
			if p.Text != "" {
				parts = append(parts, p.Text)
			}
		}
		return strings.Join(parts, " ")
	}
	return t.Message
}

type chatResponse struct {
	Response  string             `json:"response"`
	Sources   []retriever.Source `json:"sources"`
	LatencyMS int64              `json:"latency_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleChat is the main chatbot endpoint: validate, retrieve context,
// generate a grounded answer, return it with its sources.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Input tidak valid."})
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Pesan tidak boleh kosong"})
		return
	}
	if utf8.RuneCountInString(req.Message) > maxMessageLen {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Pesan terlalu panjang (maks 500 karakter)"})
		return
	}

	if containsDangerousPattern(req.Message) {
		s.logger.Warn("suspicious input stripped", "ip", clientIP(r))
	}
	message := sanitizeInput(req.Message)
	if message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Pesan tidak boleh kosong"})
		return
	}

	history := make([]composer.Turn, 0, len(req.History))
	for _, turn := range req.History {
		if text := turn.text(); text != "" {
			history = append(history, composer.Turn{Role: turn.Role, Text: text})
		}
	}

	// Retrieval failure degrades to an ungrounded answer rather than
	// failing the whole chat turn.
	result, err := s.retriever.Retrieve(r.Context(), message, s.topK)
	if err != nil {
		s.logger.Error("retrieval failed, continuing without context", "error", err)
		result = &retriever.Result{}
	}

	answer, err := s.composer.Compose(r.Context(), message, history, result.Context)
	if err != nil {
		s.logger.Error("generation failed", "error", err)
		status := http.StatusBadGateway
		if !errors.Is(err, composer.ErrGeneration) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, errorResponse{Error: generationFail})
		return
	}

	sources := result.Sources
	if sources == nil {
		sources = []retriever.Source{}
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:  answer,
		Sources:   sources,
		LatencyMS: time.Since(start).Milliseconds(),
	})

	s.logger.Info("chat response sent",
		"messageLength", len(message),
		"responseLength", len(answer),
		"sourcesCount", len(sources))
}

// handleRoot serves a small service descriptor at /.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.handleNotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "PENS Chatbot API",
		"version": apiVersion,
		"docs":    "/health",
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn("route not found", "path", r.URL.Path, "method", r.Method)
	writeJSON(w, http.StatusNotFound, errorResponse{
		Error: "Route " + r.Method + " " + r.URL.Path + " tidak ditemukan.",
	})
}
