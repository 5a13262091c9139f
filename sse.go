package aurora

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

var (
	sseKeepAliveInterval = 15 * time.Second

	errStreamClosed = errors.New("event stream is closed")
)

// Event types emitted on the stream.
const (
	eventTypeEndpoint = "endpoint"
	eventTypeMessage  = "message"
	eventTypePing     = "ping"
)

// SSEServer exposes the dispatcher over server-sent events: each session gets
// a persistent event stream for responses and a POST endpoint for requests.
// Both handlers can be mounted on any router.
//
// The stream emits three event types: "endpoint" (once, announcing the POST
// path for the session), "message" (one canonical Response per dispatched
// request), and "ping" (keep-alive).
type SSEServer struct {
	server      *Server
	messagePath string
	logger      *slog.Logger

	streams sync.Map // session id -> *sseStream
}

type sseStream struct {
	id     string
	sess   *sse.Session
	logger *slog.Logger

	sendMsgs chan sseStreamSendMsg

	done       chan struct{}
	closeOnce  sync.Once
	sendClosed chan struct{}
}

type sseStreamSendMsg struct {
	msg  *sse.Message
	errs chan<- error
}

// NewSSEServer creates an SSE adapter for the given server. messagePath is
// the mount path of the message endpoint, e.g. "/events"; request POSTs go to
// "<messagePath>/<session id>".
func NewSSEServer(server *Server, messagePath string) *SSEServer {
	return &SSEServer{
		server:      server,
		messagePath: strings.TrimSuffix(messagePath, "/"),
		logger:      server.logger.With(slog.String("component", "sse")),
	}
}

// HandleEvents returns the http.Handler for the stream endpoint. A GET opens
// the session's event stream; the optional "session" query parameter lets a
// client keep its id across reconnects, otherwise a fresh id is minted. A
// session may have at most one open stream; a second GET for the same id is
// answered 409. The handler blocks until the client disconnects or the
// session is destroyed.
func (s *SSEServer) HandleEvents() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.server.draining.Load() {
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}

		sessID := r.URL.Query().Get("session")
		if sessID == "" {
			sessID = uuid.New().String()
		}

		if _, active := s.streams.Load(sessID); active {
			s.logger.Warn("rejected second stream for session", slog.String("sessionID", sessID))
			http.Error(w, fmt.Sprintf("session %q already has an open event stream", sessID),
				http.StatusConflict)
			return
		}

		sess, err := sse.Upgrade(w, r)
		if err != nil {
			nErr := fmt.Errorf("failed to upgrade connection: %w", err)
			s.logger.Error("failed to upgrade connection", slog.String("err", err.Error()))
			http.Error(w, nErr.Error(), http.StatusInternalServerError)
			return
		}

		stream := newSSEStream(sessID, sess, s.logger)
		if _, loaded := s.streams.LoadOrStore(sessID, stream); loaded {
			// Lost a race with a concurrent connect for the same id.
			return
		}
		go stream.processSend()

		s.server.Sessions().Ensure(sessID, TransportSSE, stream.close)

		// Tell the client where to POST requests for this session.
		endpoint := &sse.Message{Type: sse.Type(eventTypeEndpoint)}
		endpoint.AppendData(fmt.Sprintf("%s/%s", s.messagePath, sessID))
		if err := stream.send(endpoint); err != nil {
			s.logger.Error("failed to announce message endpoint", slog.String("err", err.Error()))
			s.streams.CompareAndDelete(sessID, stream)
			s.server.Sessions().Destroy(sessID)
			return
		}

		logger := s.logger.With(slog.String("sessionID", sessID))
		logger.Info("event stream opened")

		keepAlive := time.NewTicker(sseKeepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case <-r.Context().Done():
				logger.Info("client disconnected")
				if s.streams.CompareAndDelete(sessID, stream) {
					s.server.Sessions().Destroy(sessID)
				}
				return
			case <-stream.done:
				// Destroyed by the reaper or by shutdown; the close
				// callback already ran.
				logger.Info("event stream closed")
				s.streams.CompareAndDelete(sessID, stream)
				return
			case <-keepAlive.C:
				ping := &sse.Message{Type: sse.Type(eventTypePing)}
				ping.AppendData("keep-alive")
				if err := stream.send(ping); err != nil {
					logger.Warn("keep-alive failed", slog.String("err", err.Error()))
				}
			}
		}
	})
}

// HandleMessage returns the http.Handler for the message endpoint. It accepts
// a canonical Request body for the session named in the URL, answers 202
// immediately, and pushes the eventual Response down the session's event
// stream. Requests for sessions with no open stream are rejected with an
// UnknownSession failure.
func (s *SSEServer) HandleMessage() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.server.draining.Load() {
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}

		sessID := s.sessionIDFromRequest(r)
		if sessID == "" {
			s.logger.Warn("message without session id", slog.String("path", r.URL.Path))
			writeJSON(s.logger, w, http.StatusBadRequest,
				newErrorResponse("", ErrorKindTransport, "missing session id"))
			return
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.logger.Warn("failed to decode message body", slog.String("err", err.Error()))
			writeJSON(s.logger, w, http.StatusBadRequest,
				newErrorResponse("", ErrorKindTransport, fmt.Sprintf("malformed request: %s", err)))
			return
		}

		if _, ok := s.streams.Load(sessID); !ok {
			s.logger.Warn("message for session with no open stream", slog.String("sessionID", sessID))
			writeJSON(s.logger, w, http.StatusNotFound,
				newErrorResponse(req.ID, ErrorKindUnknownSession,
					fmt.Sprintf("session %q has no open event stream", sessID)))
			return
		}

		if err := s.server.Sessions().Touch(sessID); err != nil {
			writeJSON(s.logger, w, http.StatusNotFound,
				newErrorResponse(req.ID, ErrorKindUnknownSession,
					fmt.Sprintf("session %q is not active", sessID)))
			return
		}
		req.sessionID = sessID

		w.WriteHeader(http.StatusAccepted)

		// The response arrives on the event stream, not on this exchange,
		// so the dispatch must outlive the POST's context.
		go s.dispatchAsync(context.WithoutCancel(r.Context()), req)
	})
}

func (s *SSEServer) dispatchAsync(ctx context.Context, req Request) {
	resp := s.server.Dispatch(ctx, req)

	if err := s.push(req.sessionID, resp); err != nil {
		s.logger.Warn("dropping response for closed session",
			slog.String("sessionID", req.sessionID),
			slog.String("id", resp.ID),
			slog.String("err", err.Error()))
	}
}

// push delivers one response down the session's event stream.
func (s *SSEServer) push(sessID string, resp Response) error {
	v, ok := s.streams.Load(sessID)
	if !ok {
		return fmt.Errorf("session %q: %w", sessID, ErrUnknownSession)
	}
	stream := v.(*sseStream)

	respBs, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	msg := &sse.Message{Type: sse.Type(eventTypeMessage)}
	msg.AppendData(string(respBs))
	return stream.send(msg)
}

// sessionIDFromRequest extracts the session id from either the "session"
// query parameter or the trailing path segment under messagePath.
func (s *SSEServer) sessionIDFromRequest(r *http.Request) string {
	if id := r.URL.Query().Get("session"); id != "" {
		return id
	}

	prefix := s.messagePath + "/"
	if strings.HasPrefix(r.URL.Path, prefix) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, prefix), "/")
		if id != "" && !strings.Contains(id, "/") {
			return id
		}
	}
	return ""
}

func newSSEStream(id string, sess *sse.Session, logger *slog.Logger) *sseStream {
	return &sseStream{
		id:         id,
		sess:       sess,
		logger:     logger.With(slog.String("sessionID", id)),
		sendMsgs:   make(chan sseStreamSendMsg, 5),
		done:       make(chan struct{}),
		sendClosed: make(chan struct{}),
	}
}

// close releases the stream. Safe to call from any goroutine, any number of
// times; it is the session's close callback.
func (st *sseStream) close() {
	st.closeOnce.Do(func() {
		close(st.done)
	})
}

func (st *sseStream) send(msg *sse.Message) error {
	errs := make(chan error, 1)

	// Queue the message so a single goroutine owns all writes to the
	// underlying stream.
	select {
	case st.sendMsgs <- sseStreamSendMsg{msg: msg, errs: errs}:
	case <-st.done:
		return errStreamClosed
	}

	select {
	case err := <-errs:
		return err
	case <-st.done:
		return errStreamClosed
	}
}

func (st *sseStream) processSend() {
	defer close(st.sendClosed)

	for {
		select {
		case sm := <-st.sendMsgs:
			if err := st.sess.Send(sm.msg); err != nil {
				st.logger.Warn("failed to send event", slog.String("err", err.Error()))
				select {
				case sm.errs <- err:
				default:
				}
				continue
			}
			if err := st.sess.Flush(); err != nil {
				st.logger.Warn("failed to flush event", slog.String("err", err.Error()))
				select {
				case sm.errs <- err:
				default:
				}
				continue
			}

			select {
			case sm.errs <- nil:
			default:
			}
		case <-st.done:
			return
		}
	}
}
