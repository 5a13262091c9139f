package aurora

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// StdIO serves canonical requests over newline-delimited JSON on a
// reader/writer pair, normally the process's stdin and stdout. It carries a
// single long-lived session and processes requests strictly one at a time in
// arrival order, so responses always come back in request order.
type StdIO struct {
	server *Server
	reader io.Reader
	writer io.Writer
	logger *slog.Logger
}

type lineWithErr struct {
	line string
	err  error
}

// NewStdIO creates a stdio adapter for the given server.
func NewStdIO(server *Server, reader io.Reader, writer io.Writer) *StdIO {
	return &StdIO{
		server: server,
		reader: reader,
		writer: writer,
		logger: server.logger.With(slog.String("component", "stdio")),
	}
}

// Listen reads requests until the reader is exhausted or ctx is canceled,
// writing one response line per request line. Lines that fail to decode
// produce a TransportError response with an empty id and do not stop the
// loop. End of input and context cancellation are clean exits.
func (s *StdIO) Listen(ctx context.Context) error {
	sess := s.server.Sessions().Create(TransportStdio, nil)
	defer func() {
		s.server.Sessions().Destroy(sess.ID)
	}()

	logger := s.logger.With(slog.String("sessionID", sess.ID))
	logger.Info("stdio transport listening")

	// bufio.Reader instead of bufio.Scanner to avoid max token size errors.
	reader := bufio.NewReader(s.reader)

	for {
		line, err := s.readLine(ctx, reader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				logger.Info("stdio transport closed")
				return nil
			}
			logger.Error("failed to read request line", slog.String("err", err.Error()))
			return fmt.Errorf("failed to read request line: %w", err)
		}

		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			logger.Error("failed to decode request", slog.String("err", err.Error()))
			resp := newErrorResponse("", ErrorKindTransport,
				fmt.Sprintf("malformed request: %s", err))
			if wErr := s.write(resp); wErr != nil {
				return fmt.Errorf("failed to write response: %w", wErr)
			}
			continue
		}

		// The reaper may have taken the session during a long quiet
		// stretch; stdio clients keep working, so give them a fresh one.
		if tErr := s.server.Sessions().Touch(sess.ID); tErr != nil {
			sess = s.server.Sessions().Create(TransportStdio, nil)
			logger = s.logger.With(slog.String("sessionID", sess.ID))
			logger.Info("stdio session recreated after reap")
		}
		req.sessionID = sess.ID

		resp := s.server.Dispatch(ctx, req)
		if err := s.write(resp); err != nil {
			logger.Error("failed to write response", slog.String("err", err.Error()))
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
}

// readLine reads one newline-terminated line in a goroutine so the loop can
// still observe cancellation while blocked on a slow reader.
func (s *StdIO) readLine(ctx context.Context, reader *bufio.Reader) (string, error) {
	lines := make(chan lineWithErr, 1)

	go func() {
		line, err := reader.ReadString('\n')
		if err != nil {
			lines <- lineWithErr{err: err}
			return
		}
		lines <- lineWithErr{line: strings.TrimSuffix(line, "\n")}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.server.done:
		return "", context.Canceled
	case lwe := <-lines:
		return lwe.line, lwe.err
	}
}

func (s *StdIO) write(resp Response) error {
	respBs, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	// Append newline to maintain message framing.
	respBs = append(respBs, '\n')

	if _, err := s.writer.Write(respBs); err != nil {
		return err
	}
	return nil
}
