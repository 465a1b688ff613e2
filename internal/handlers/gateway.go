// internal/handlers/gateway.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ammerola/uniswap-edge/internal/core/services"
)

// ControlPrefix is where the gateway's control endpoints live
const ControlPrefix = "/__gateway"

// DefaultWorkerPaths are served uncached so pages always see the latest worker
var DefaultWorkerPaths = []string{"/sw.js", "/manifest.json", "/manifest.webmanifest"}

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// GatewayHandler sits in front of the upstream origin. Every request goes
// through the active gateway worker; what it does not intercept is forwarded
// untouched.
type GatewayHandler struct {
	registry    *services.Registry
	origin      *url.URL
	upstream    http.RoundTripper
	workerPaths map[string]struct{}
	logger      *slog.Logger
}

// NewGatewayHandler creates the edge handler. upstream performs pass-through
// requests; nil means http.DefaultTransport.
func NewGatewayHandler(
	registry *services.Registry,
	origin *url.URL,
	upstream http.RoundTripper,
	workerPaths []string,
	logger *slog.Logger,
) *GatewayHandler {
	if upstream == nil {
		upstream = http.DefaultTransport
	}
	if workerPaths == nil {
		workerPaths = DefaultWorkerPaths
	}
	paths := make(map[string]struct{}, len(workerPaths))
	for _, p := range workerPaths {
		paths[p] = struct{}{}
	}

	return &GatewayHandler{
		registry:    registry,
		origin:      origin,
		upstream:    upstream,
		workerPaths: paths,
		logger:      logger.With(slog.String("handler", "gateway")),
	}
}

// RegisterRoutes mounts the control endpoints and the catch-all proxy
func (h *GatewayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST "+ControlPrefix+"/message", h.PostMessage)
	mux.HandleFunc("POST "+ControlPrefix+"/update", h.Update)
	mux.HandleFunc("GET "+ControlPrefix+"/status", h.Status)
	mux.HandleFunc("POST "+ControlPrefix+"/clients", h.AttachClient)
	mux.HandleFunc("DELETE "+ControlPrefix+"/clients/{id}", h.DetachClient)
	mux.Handle("/", h)
}

// ServeHTTP proxies r through the active worker
func (h *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := h.outgoing(r)

	resp, handled := h.registry.Respond(ctx, out)
	if !handled {
		var err error
		resp, err = h.upstream.RoundTrip(out)
		if err != nil {
			h.logger.WarnContext(ctx, "upstream request failed",
				slog.String("url", out.URL.String()),
				slog.String("error", err.Error()))
			h.respondError(w, http.StatusBadGateway, "Upstream unavailable")
			return
		}
	}
	defer resp.Body.Close()

	h.copyResponse(w, r, resp)
}

// outgoing rewrites r to target the upstream origin
func (h *GatewayHandler) outgoing(r *http.Request) *http.Request {
	target := *h.origin
	target.Path = services.UpstreamPath(h.origin.Path, r.URL.Path)
	target.RawPath = ""
	target.RawQuery = r.URL.RawQuery

	out := r.Clone(r.Context())
	out.URL = &target
	out.Host = ""
	out.RequestURI = ""
	removeHopHeaders(out.Header)

	if r.ContentLength == 0 {
		out.Body = nil
	}
	return out
}

func (h *GatewayHandler) copyResponse(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	header := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	removeHopHeaders(header)

	if _, ok := h.workerPaths[r.URL.Path]; ok {
		header.Set("Cache-Control", "no-cache")
		header.Set("Service-Worker-Allowed", "/")
	}

	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.DebugContext(r.Context(), "response copy interrupted",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
}

// PostMessage handles POST /__gateway/message
func (h *GatewayHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var msg services.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.registry.PostMessage(r.Context(), msg)
	switch {
	case err == nil:
		h.respondJSON(w, http.StatusOK, h.registry.Status())
	case errors.Is(err, services.ErrUnknownMessage):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNoWaitingWorker):
		h.respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "message failed",
			slog.String("type", msg.Type),
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "Failed to deliver message")
	}
}

// UpdateRequest asks the gateway to install another version
type UpdateRequest struct {
	Version string `json:"version"`
}

// Update handles POST /__gateway/update
func (h *GatewayHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Version = strings.TrimSpace(req.Version)
	if req.Version == "" {
		h.respondError(w, http.StatusBadRequest, "version is required")
		return
	}

	info, err := h.registry.Register(r.Context(), req.Version)
	if err != nil {
		if errors.Is(err, services.ErrInstallFailed) {
			h.respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Failed to register version")
		return
	}

	h.respondJSON(w, http.StatusOK, info)
}

// Status handles GET /__gateway/status
func (h *GatewayHandler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	h.respondJSON(w, http.StatusOK, h.registry.Status())
}

// AttachClient handles POST /__gateway/clients
func (h *GatewayHandler) AttachClient(w http.ResponseWriter, r *http.Request) {
	id := h.registry.Attach()
	h.respondJSON(w, http.StatusCreated, map[string]string{"client_id": id})
}

// DetachClient handles DELETE /__gateway/clients/{id}
func (h *GatewayHandler) DetachClient(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Detach(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, services.ErrUnknownClient) {
			h.respondError(w, http.StatusNotFound, "Client not found")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "Failed to detach client")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GatewayHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func (h *GatewayHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func removeHopHeaders(header http.Header) {
	for _, f := range header.Values("Connection") {
		for _, name := range strings.Split(f, ",") {
			if name = strings.TrimSpace(name); name != "" {
				header.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		header.Del(name)
	}
}
