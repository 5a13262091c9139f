package aurora

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

// clientCore holds what both client flavors share: the server's base URL, the
// HTTP client used to reach it, and a logger.
type clientCore struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

// ClientOption configures an HTTPClient or an SSEClient.
type ClientOption func(*clientCore)

// WithClientLogger sets the client's logger. Defaults to slog.Default().
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *clientCore) {
		c.logger = logger
	}
}

// WithClientHTTP sets the *http.Client used for every request, including the
// SSE stream. Defaults to http.DefaultClient.
func WithClientHTTP(httpc *http.Client) ClientOption {
	return func(c *clientCore) {
		c.httpc = httpc
	}
}

func newClientCore(baseURL, component string, options []ClientOption) clientCore {
	core := clientCore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   http.DefaultClient,
		logger:  slog.Default(),
	}
	for _, opt := range options {
		opt(&core)
	}
	core.logger = core.logger.With(slog.String("component", component))
	return core
}

// HTTPClient calls a server over the plain HTTP transport. The session id the
// server assigns on first contact is remembered and presented on every later
// call, so one client is one session. Safe for concurrent use.
type HTTPClient struct {
	clientCore

	mu        sync.Mutex
	sessionID string
}

// NewHTTPClient creates a client for the server at baseURL, which must serve
// the RPC endpoint at baseURL+"/rpc" and the health endpoint at
// baseURL+"/health".
func NewHTTPClient(baseURL string, options ...ClientOption) *HTTPClient {
	return &HTTPClient{
		clientCore: newClientCore(baseURL, "http-client", options),
	}
}

// SessionID returns the session id assigned by the server, or an empty string
// before the first successful call.
func (c *HTTPClient) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Call invokes a tool and returns the server's response. Failures the server
// reports ride inside the response; a non-nil error means the exchange itself
// broke down. When the server no longer knows the session, the cached id is
// dropped so the next call starts a fresh one.
func (c *HTTPClient) Call(ctx context.Context, tool string, arguments map[string]any) (Response, error) {
	req := Request{
		ID:        uuid.New().String(),
		Tool:      tool,
		Arguments: arguments,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if sessID := c.SessionID(); sessID != "" {
		httpReq.Header.Set(SessionHeader, sessID)
	}

	httpResp, err := c.httpc.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("failed to call server: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		bs, _ := io.ReadAll(httpResp.Body)
		return Response{}, fmt.Errorf("server answered %s: %s", httpResp.Status, strings.TrimSpace(string(bs)))
	}

	if sessID := httpResp.Header.Get(SessionHeader); sessID != "" {
		c.mu.Lock()
		c.sessionID = sessID
		c.mu.Unlock()
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if !resp.OK && resp.Error != nil && resp.Error.Kind == ErrorKindUnknownSession {
		c.mu.Lock()
		c.sessionID = ""
		c.mu.Unlock()
		c.logger.Debug("session expired, dropping cached id")
	}

	return resp, nil
}

// Health describes the payload of the health endpoint.
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Server    string `json:"server"`
	Version   string `json:"version"`
	Transport string `json:"transport"`
}

// Health fetches the server's health endpoint.
func (c *HTTPClient) Health(ctx context.Context) (Health, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Health{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpResp, err := c.httpc.Do(httpReq)
	if err != nil {
		return Health{}, fmt.Errorf("failed to call server: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return Health{}, fmt.Errorf("server answered %s", httpResp.Status)
	}

	var health Health
	if err := json.NewDecoder(httpResp.Body).Decode(&health); err != nil {
		return Health{}, fmt.Errorf("failed to decode health response: %w", err)
	}
	return health, nil
}

// SSEClient talks to a server's SSE transport. Connect opens the persistent
// event stream and learns the session's message endpoint from the first
// event; Call then posts requests to that endpoint and waits for the matching
// response to come back down the stream. A client connects once; create a new
// client to reconnect. Safe for concurrent use after Connect.
type SSEClient struct {
	clientCore

	eventsPath string
	cancel     context.CancelFunc
	readerDone chan struct{}

	mu         sync.Mutex
	sessionID  string
	messageURL string
	pending    map[string]chan Response
}

// NewSSEClient creates a client for the server at baseURL, whose event stream
// is served at baseURL+eventsPath.
func NewSSEClient(baseURL, eventsPath string, options ...ClientOption) *SSEClient {
	return &SSEClient{
		clientCore: newClientCore(baseURL, "sse-client", options),
		eventsPath: "/" + strings.Trim(eventsPath, "/"),
		readerDone: make(chan struct{}),
		pending:    make(map[string]chan Response),
	}
}

// SessionID returns the session id announced by the server, or an empty
// string before Connect succeeds.
func (c *SSEClient) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Connect opens the event stream and blocks until the server announces the
// session's message endpoint or ctx is done. The stream is then consumed in
// the background until Close is called or the connection drops.
func (c *SSEClient) Connect(ctx context.Context) error {
	// The stream has to outlive Connect, so it hangs off its own context
	// and only Close tears it down.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+c.eventsPath, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create stream request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := c.httpc.Do(httpReq)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		bs, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		cancel()
		return fmt.Errorf("server answered %s: %s", httpResp.Status, strings.TrimSpace(string(bs)))
	}

	endpoints := make(chan string, 1)
	go c.readEvents(httpResp.Body, endpoints)

	select {
	case endpoint, ok := <-endpoints:
		if !ok {
			cancel()
			return fmt.Errorf("event stream ended before announcing an endpoint")
		}
		c.mu.Lock()
		c.messageURL = c.baseURL + endpoint
		c.sessionID = path.Base(endpoint)
		c.mu.Unlock()
		c.logger.Debug("connected", slog.String("sessionID", path.Base(endpoint)))
		return nil
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("failed to connect: %w", ctx.Err())
	}
}

// Call invokes a tool and waits for its response to arrive on the event
// stream. Connect must have succeeded first.
func (c *SSEClient) Call(ctx context.Context, tool string, arguments map[string]any) (Response, error) {
	c.mu.Lock()
	messageURL := c.messageURL
	c.mu.Unlock()
	if messageURL == "" {
		return Response{}, fmt.Errorf("client is not connected")
	}

	req := Request{
		ID:        uuid.New().String(),
		Tool:      tool,
		Arguments: arguments,
	}

	ch := make(chan Response, 1)
	c.mu.Lock()
	c.pending[req.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, messageURL, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpc.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("failed to post request: %w", err)
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusAccepted:
		// The response arrives on the stream.
	case http.StatusBadRequest, http.StatusNotFound:
		// The server rejected the call up front with an in-band response.
		var resp Response
		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return Response{}, fmt.Errorf("server answered %s with an undecodable body: %w", httpResp.Status, err)
		}
		return resp, nil
	default:
		bs, _ := io.ReadAll(httpResp.Body)
		return Response{}, fmt.Errorf("server answered %s: %s", httpResp.Status, strings.TrimSpace(string(bs)))
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, errStreamClosed
		}
		return resp, nil
	case <-ctx.Done():
		return Response{}, fmt.Errorf("tool %q call canceled: %w", tool, ctx.Err())
	}
}

// Close tears down the event stream and waits for the background reader to
// finish. The server notices the disconnect and destroys the session.
func (c *SSEClient) Close() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.readerDone
}

// readEvents consumes the stream until it ends. The first endpoint event is
// handed to Connect; message events are matched to in-flight calls by id.
func (c *SSEClient) readEvents(body io.ReadCloser, endpoints chan<- string) {
	defer close(c.readerDone)
	defer body.Close()
	defer close(endpoints)

	for ev, err := range sse.Read(body, nil) {
		if err != nil {
			c.logger.Debug("event stream ended", slog.String("err", err.Error()))
			break
		}

		switch ev.Type {
		case eventTypeEndpoint:
			select {
			case endpoints <- ev.Data:
			default:
			}
		case eventTypeMessage:
			c.deliver(ev.Data)
		case eventTypePing:
			// Keep-alive, nothing to do.
		default:
			c.logger.Warn("unknown event type", slog.String("type", ev.Type))
		}
	}

	c.failPending()
}

// deliver routes a message event to the call waiting for it. Responses
// nobody waits for anymore, such as after a call timed out, are dropped.
func (c *SSEClient) deliver(data string) {
	var resp Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Warn("failed to decode message event", slog.String("err", err.Error()))
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("dropping unclaimed response", slog.String("id", resp.ID))
		return
	}
	ch <- resp
}

// failPending wakes every in-flight call once the stream has ended; without
// a stream their responses can never arrive.
func (c *SSEClient) failPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan Response)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
}
