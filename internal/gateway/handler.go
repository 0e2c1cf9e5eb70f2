package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

type Handler struct {
	marketplaceProxy *ServiceProxy
	emailProxy       *ServiceProxy
	logger           *slog.Logger
}

func NewHandler(marketplaceProxy, emailProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		marketplaceProxy: marketplaceProxy,
		emailProxy:       emailProxy,
		logger:           logger,
	}
}

func (h *Handler) HandleMarketplace(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.marketplaceProxy, r.URL.Path)
}

func (h *Handler) HandleEmail(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/email")
	h.proxyRequest(w, r, h.emailProxy, path)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if location := resp.Header.Get("Location"); location != "" {
		w.Header().Set("Location", location)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
