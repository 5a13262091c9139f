package aurora

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// SessionHeader is the HTTP header carrying the session id on the plain HTTP
// transport. Requests without it get a fresh session whose id is returned in
// the same header of the response.
const SessionHeader = "X-Session-ID"

// HTTPServer exposes the dispatcher over plain request/response HTTP. Its
// handlers can be mounted on any router.
type HTTPServer struct {
	server *Server
	logger *slog.Logger
}

// NewHTTPServer creates an HTTP adapter for the given server.
func NewHTTPServer(server *Server) *HTTPServer {
	return &HTTPServer{
		server: server,
		logger: server.logger.With(slog.String("component", "http")),
	}
}

// HandleRPC returns the http.Handler for the RPC endpoint. It decodes one
// canonical request from the body and answers with one canonical response.
// Failures of every kind ride in-band as failure responses; only an
// undecodable body changes the HTTP status.
func (h *HTTPServer) HandleRPC() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.server.draining.Load() {
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.Warn("failed to decode request body", slog.String("err", err.Error()))
			writeJSON(h.logger, w, http.StatusBadRequest,
				newErrorResponse("", ErrorKindTransport, fmt.Sprintf("malformed request: %s", err)))
			return
		}

		sessID := r.Header.Get(SessionHeader)
		if sessID == "" {
			sessID = h.server.Sessions().Create(TransportHTTP, nil).ID
		} else if err := h.server.Sessions().Touch(sessID); err != nil {
			h.logger.Warn("request for unknown session",
				slog.String("sessionID", sessID),
				slog.String("id", req.ID))
			w.Header().Set(SessionHeader, sessID)
			writeJSON(h.logger, w, http.StatusOK,
				newErrorResponse(req.ID, ErrorKindUnknownSession,
					fmt.Sprintf("session %q is not active", sessID)))
			return
		}
		req.sessionID = sessID
		w.Header().Set(SessionHeader, sessID)

		resp := h.server.Dispatch(r.Context(), req)
		writeJSON(h.logger, w, http.StatusOK, resp)
	})
}

// HandleHealth returns the http.Handler for the liveness endpoint. It always
// answers 200 with status "healthy"; it reports liveness, not readiness.
func (h *HTTPServer) HandleHealth(transport TransportKind) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(h.logger, w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"server":    h.server.Info().Name,
			"version":   h.server.Info().Version,
			"transport": string(transport),
		})
	})
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response body", slog.String("err", err.Error()))
	}
}
