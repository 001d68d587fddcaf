// Package gateway also exposes the control plane: the HTTP API an operator
// or admin UI uses to inspect sessions, manage the skill registry, submit
// a message outside any channel adapter, and stream gateway events. Built
// on the same rakunlabs/ada middleware stack and response-helper idiom as
// the codebase's own control server (internal/server/server.go), generalized
// from an LLM-provider/workflow CRUD surface to a skill/session one.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rakunlabs/ada"
	mcors "github.com/rakunlabs/ada/middleware/cors"
	mforwardauth "github.com/rakunlabs/ada/middleware/forwardauth"
	mlog "github.com/rakunlabs/ada/middleware/log"
	mrecover "github.com/rakunlabs/ada/middleware/recover"
	mrequestid "github.com/rakunlabs/ada/middleware/requestid"
	mserver "github.com/rakunlabs/ada/middleware/server"
	mtelemetry "github.com/rakunlabs/ada/middleware/telemetry"

	pcconfig "github.com/rakunlabs/pcgate/internal/config"
	"github.com/rakunlabs/pcgate/internal/message"
	"github.com/rakunlabs/pcgate/internal/session"
	"github.com/rakunlabs/pcgate/internal/skill"
	"github.com/rakunlabs/pcgate/internal/skill/loader"
)

// Server is the gateway's HTTP control plane: read-only introspection plus
// skill registry administration, gated behind an optional forward-auth
// proxy and an admin bearer token for the mutating endpoints.
type Server struct {
	gateway *Gateway
	config  pcconfig.Server
	server  *ada.Server
}

// NewServer builds the control-plane HTTP server around an already
// constructed Gateway.
func NewServer(gw *Gateway, config pcconfig.Server) *Server {
	mux := ada.New()
	mux.Use(
		mrecover.Middleware(),
		mserver.Middleware(pcconfig.Service),
		mcors.Middleware(),
		mrequestid.Middleware(),
		mlog.Middleware(),
		mtelemetry.Middleware(),
	)

	s := &Server{gateway: gw, config: config, server: mux}

	baseGroup := mux.Group(config.BasePath)
	if config.ForwardAuth != nil {
		baseGroup.Use(mforwardauth.Middleware(mforwardauth.WithConfig(*config.ForwardAuth)))
	}

	apiGroup := baseGroup.Group("/api")

	apiGroup.GET("/v1/info", s.InfoAPI)
	apiGroup.GET("/v1/sessions", s.ListSessionsAPI)
	apiGroup.GET("/v1/sessions/*", s.GetSessionAPI)
	apiGroup.POST("/v1/messages", s.SubmitMessageAPI)
	apiGroup.GET("/v1/events", s.EventsAPI)

	apiGroup.GET("/v1/skills", s.ListSkillsAPI)
	apiGroup.GET("/v1/skills/*", s.GetSkillAPI)

	adminGroup := apiGroup.Group("/v1/admin")
	adminGroup.Use(s.adminAuthMiddleware())
	adminGroup.POST("/skills", s.InstallSkillAPI)
	adminGroup.DELETE("/skills/*", s.UninstallSkillAPI)

	return s
}

// Start runs the control-plane HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	return s.server.StartWithContext(ctx, net.JoinHostPort(s.config.Host, s.config.Port))
}

func (s *Server) adminAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.config.AdminToken == "" {
				httpResponse(w, "admin token not configured", http.StatusForbidden)
				return
			}
			auth := r.Header.Get("Authorization")
			token := strings.TrimPrefix(auth, "Bearer ")
			if token == "" || token == auth || token != s.config.AdminToken {
				httpResponse(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ─── Info ───

type infoResponse struct {
	Running       bool   `json:"running"`
	SessionCount  int    `json:"session_count"`
	SkillCount    int    `json:"skill_count"`
	ChannelCount  int    `json:"channel_count"`
	Subscribers   int    `json:"event_subscribers"`
	EventsEmitted uint64 `json:"events_emitted"`
}

func (s *Server) InfoAPI(w http.ResponseWriter, r *http.Request) {
	s.gateway.mu.RLock()
	running := s.gateway.running
	channelCount := len(s.gateway.channels)
	s.gateway.mu.RUnlock()

	stats := s.gateway.bus.StatsSnapshot()

	httpResponseJSON(w, infoResponse{
		Running:       running,
		SessionCount:  s.gateway.sessions.Count(),
		SkillCount:    s.gateway.registry.Count(),
		ChannelCount:  channelCount,
		Subscribers:   stats.SubscriberCount,
		EventsEmitted: stats.EventsPublished,
	}, http.StatusOK)
}

// ─── Sessions ───

type sessionsResponse struct {
	Sessions []session.Info `json:"sessions"`
}

func (s *Server) ListSessionsAPI(w http.ResponseWriter, r *http.Request) {
	sessions := s.gateway.sessions.List()
	infos := make([]session.Info, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, session.NewInfo(sess))
	}
	httpResponseJSON(w, sessionsResponse{Sessions: infos}, http.StatusOK)
}

func (s *Server) GetSessionAPI(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "/api/v1/sessions/")
	if id == "" {
		httpResponse(w, "missing session id", http.StatusBadRequest)
		return
	}
	for _, sess := range s.gateway.sessions.List() {
		if sess.ID.Hex() == id {
			httpResponseJSON(w, session.NewInfo(sess), http.StatusOK)
			return
		}
	}
	httpResponse(w, "session not found", http.StatusNotFound)
}

// ─── Messages ───

type submitMessageRequest struct {
	ChannelID string `json:"channel_id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
}

// SubmitMessageAPI handles POST /api/v1/messages: it runs a message through
// the same ProcessMessage pipeline a channel adapter's Receive loop would,
// for operators testing routing and skills without a live channel.
func (s *Server) SubmitMessageAPI(w http.ResponseWriter, r *http.Request) {
	var req submitMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ChannelID == "" || req.SenderID == "" {
		httpResponse(w, "channel_id and sender_id are required", http.StatusBadRequest)
		return
	}

	msg := message.NewIncomingMessage(req.ChannelID, req.SenderID, req.Content)
	pca, err := s.gateway.ProcessMessage(r.Context(), msg)
	if err != nil {
		httpResponse(w, "process message: "+err.Error(), http.StatusInternalServerError)
		return
	}
	httpResponseJSON(w, pca, http.StatusOK)
}

// ─── Events (server-sent events) ───

// EventsAPI streams bus events as they're published, for an admin UI to
// render a live activity feed.
func (s *Server) EventsAPI(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpResponse(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	id, events := s.gateway.bus.Subscribe()
	defer s.gateway.bus.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type(), data)
			flusher.Flush()
		}
	}
}

// ─── Skills ───

type skillSummary struct {
	Name        string   `json:"name"`
	Hash        string   `json:"hash"`
	Builtin     bool     `json:"builtin"`
	Verified    bool     `json:"verified"`
	Permissions []string `json:"permissions"`
}

func summarize(entry skill.Entry) skillSummary {
	return skillSummary{
		Name:        entry.Metadata.Name,
		Hash:        entry.Hash.Hex(),
		Builtin:     entry.Builtin,
		Verified:    entry.Verified,
		Permissions: entry.Metadata.Permissions,
	}
}

func (s *Server) ListSkillsAPI(w http.ResponseWriter, r *http.Request) {
	entries := s.gateway.registry.List()
	out := make([]skillSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, summarize(e))
	}
	httpResponseJSON(w, struct {
		Skills []skillSummary `json:"skills"`
	}{Skills: out}, http.StatusOK)
}

func (s *Server) GetSkillAPI(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "/api/v1/skills/")
	if name == "" {
		httpResponse(w, "missing skill name", http.StatusBadRequest)
		return
	}
	entry, ok := s.gateway.registry.GetByName(name)
	if !ok {
		httpResponse(w, "skill not found", http.StatusNotFound)
		return
	}
	httpResponseJSON(w, summarize(entry), http.StatusOK)
}

type installSkillRequest struct {
	Name   string          `json:"name"`
	Source json.RawMessage `json:"source"`
}

// InstallSkillAPI handles POST /api/v1/admin/skills: it parses a skill
// graph (JSON or the zero-format source) from the request body and
// installs it as a non-builtin skill, subject to the static verifier.
func (s *Server) InstallSkillAPI(w http.ResponseWriter, r *http.Request) {
	var req installSkillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		httpResponse(w, "name is required", http.StatusBadRequest)
		return
	}

	g, err := loader.ParseAuto(req.Source)
	if err != nil {
		httpResponse(w, "parse skill: "+err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := s.gateway.registry.Install(req.Name, g, false)
	if err != nil {
		httpResponse(w, "install skill: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.gateway.bus.Custom("skill_installed", req.Name)
	httpResponseJSON(w, struct {
		Hash string `json:"hash"`
	}{Hash: hash.Hex()}, http.StatusCreated)
}

func (s *Server) UninstallSkillAPI(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "/api/v1/admin/skills/")
	if name == "" {
		httpResponse(w, "missing skill name", http.StatusBadRequest)
		return
	}
	if err := s.gateway.registry.UninstallByName(name); err != nil {
		httpResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	s.gateway.bus.Custom("skill_uninstalled", name)
	httpResponse(w, "uninstalled", http.StatusOK)
}

// pathParam extracts the remainder of r.URL.Path after prefix, the same
// convention ada's "*" wildcard routes hand their trailing segment in.
func pathParam(r *http.Request, prefix string) string {
	return strings.TrimPrefix(r.URL.Path, prefix)
}

// ─── response helpers, mirroring the codebase's own server/response.go ───

type responseMessage struct {
	Message string `json:"message"`
}

func httpResponse(w http.ResponseWriter, msg string, code int) {
	v, _ := json.Marshal(responseMessage{Message: msg})
	httpResponseJSONByte(w, v, code)
}

func httpResponseJSON(w http.ResponseWriter, msg any, code int) {
	v, _ := json.Marshal(msg)
	httpResponseJSONByte(w, v, code)
}

func httpResponseJSONByte(w http.ResponseWriter, msg []byte, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(msg)
}
