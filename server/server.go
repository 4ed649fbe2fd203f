//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package server exposes the runner over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-agent-scout/agent"
	"trpc.group/trpc-go/trpc-agent-scout/checkpoint"
	"trpc.group/trpc-go/trpc-agent-scout/event"
	"trpc.group/trpc-go/trpc-agent-scout/log"
	"trpc.group/trpc-go/trpc-agent-scout/model"
	"trpc.group/trpc-go/trpc-agent-scout/runner"
	"trpc.group/trpc-go/trpc-agent-scout/tool"
	"trpc.group/trpc-go/trpc-agent-scout/transcript"
)

// Server serves the thread API.
type Server struct {
	runner runner.Runner
	saver  checkpoint.Saver
	tools  []tool.Tool
	router *mux.Router

	allowedOrigins []string
}

// Option configures the Server instance.
type Option func(*Server)

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithTools lists the agent tools on GET /v1/tools.
func WithTools(tools []tool.Tool) Option {
	return func(s *Server) { s.tools = tools }
}

// New creates a server that runs messages through r and reads threads from saver.
func New(r runner.Runner, saver checkpoint.Saver, opts ...Option) *Server {
	s := &Server{
		runner:         r,
		saver:          saver,
		router:         mux.NewRouter(),
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/tools", s.handleListTools).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/threads", s.handleListThreads).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/threads/{thread}", s.handleGetThread).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/threads/{thread}", s.handleDeleteThread).Methods(http.MethodDelete)
	s.router.HandleFunc("/v1/threads/{thread}/messages", s.handlePostMessage).Methods(http.MethodPost)

	// OPTIONS handlers to allow CORS pre-flight.
	preflight := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	s.router.PathPrefix("/").HandlerFunc(preflight).Methods(http.MethodOptions)
}

// MessageRequest is the body of POST /v1/threads/{thread}/messages.
type MessageRequest struct {
	Message string `json:"message"`
	// Stream switches the response to server-sent events.
	Stream bool `json:"stream,omitempty"`
}

// MessageResponse is the non-streaming answer.
type MessageResponse struct {
	ThreadID string `json:"thread_id"`
	Answer   string `json:"answer"`
}

// ThreadResponse is the latest checkpoint of a thread.
type ThreadResponse struct {
	ThreadID     string          `json:"thread_id"`
	CheckpointID string          `json:"checkpoint_id"`
	Step         int             `json:"step"`
	Messages     []model.Message `json:"messages"`
}

// ToolInfo describes one tool.
type ToolInfo struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	InputSchema *tool.Schema `json:"input_schema,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	infos := make([]ToolInfo, 0, len(s.tools))
	for _, t := range s.tools {
		d := t.Declaration()
		infos = append(infos, ToolInfo{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.saver.Threads(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"threads": threads})
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["thread"]
	cp, err := s.saver.Get(r.Context(), threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if cp == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("thread %s not found", threadID))
		return
	}

	if f := r.URL.Query().Get("format"); f != "" && f != "json" {
		format, err := transcript.ParseFormat(f)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		switch format {
		case transcript.FormatHTML:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		case transcript.FormatMarkdown:
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		default:
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		if err := transcript.Render(w, cp, format); err != nil {
			log.Errorf("render thread %s: %v", threadID, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, ThreadResponse{
		ThreadID:     cp.ThreadID,
		CheckpointID: cp.ID,
		Step:         cp.Metadata.Step,
		Messages:     cp.Messages,
	})
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["thread"]
	if err := s.saver.Delete(r.Context(), threadID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["thread"]
	defer r.Body.Close()

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, errors.New("message is required"))
		return
	}
	log.Infof("message on thread %s (stream=%v)", threadID, req.Stream)

	out, err := s.runner.Run(r.Context(), threadID, model.NewUserMessage(req.Message), agent.WithStream(req.Stream))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if req.Stream {
		s.streamEvents(w, out)
		return
	}

	answer, err := runner.FinalAnswer(r.Context(), out)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{ThreadID: threadID, Answer: answer})
}

// streamEvents writes every event as a server-sent event.
func (s *Server) streamEvents(w http.ResponseWriter, out <-chan *event.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		for range out {
		}
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for e := range out {
		data, err := json.Marshal(e)
		if err != nil {
			log.Errorf("error marshalling SSE event: %v", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
