package wire

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"sync"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/protocol"
)

// maxMessageSize caps one newline-delimited message. File reads can be
// large, so this is well above bufio's default.
const maxMessageSize = 16 << 20

// StdioTransport speaks newline-delimited JSON-RPC over a pair of pipes,
// normally a child process's stdout (reader) and stdin (writer).
type StdioTransport struct {
	pending *pending
	logger  logging.Logger
	reader  io.ReadCloser
	writer  io.WriteCloser

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewStdioTransport starts reading from r immediately. Closing the transport
// closes both r and w.
func NewStdioTransport(r io.ReadCloser, w io.WriteCloser, logger logging.Logger) *StdioTransport {
	if logger == nil {
		logger = logging.Nop()
	}
	t := &StdioTransport{
		pending: newPending("req"),
		logger:  logger.WithFields(logging.String("component", "wire"), logging.String("wire", "stdio")),
		reader:  r,
		writer:  w,
		done:    make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *StdioTransport) readLoop() {
	defer close(t.done)
	defer t.pending.closeAll()

	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		t.processMessage(line)
	}
	if err := scanner.Err(); err != nil {
		t.logger.WithError(err).Debug("stdio read stopped")
	}
}

// processMessage must not retain data; the scanner reuses it.
func (t *StdioTransport) processMessage(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic processing message",
				logging.Any("panic", r), logging.String("stack", string(debug.Stack())))
		}
	}()

	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		t.logger.WithError(err).Warn("dropping unreadable message")
		return
	}
	switch {
	case msg.IsResponse():
		if !t.pending.deliver(msg.Response()) {
			t.logger.Debug("reply for abandoned request", logging.Any("id", msg.ID))
		}
	case msg.IsRequest():
		t.answer(msg)
	case msg.IsNotification():
		t.logger.Debug("server notification", logging.String("method", msg.Method))
	}
}

// answer replies to requests the server sends us. Only ping is supported.
func (t *StdioTransport) answer(msg *protocol.Message) {
	var resp *protocol.Response
	if msg.Method == protocol.MethodPing {
		var err error
		if resp, err = protocol.NewResponse(msg.ID, struct{}{}); err != nil {
			return
		}
	} else {
		resp = protocol.NewErrorResponse(msg.ID, protocol.MethodNotFound, "method not supported by client: "+msg.Method)
	}
	if err := t.write(resp); err != nil {
		t.logger.WithError(err).Debug("reply to server request failed", logging.String("method", msg.Method))
	}
}

func (t *StdioTransport) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error marshalling message: %w", err)
	}
	data = append(data, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write to tool server: %w", err)
	}
	return nil
}

// Call sends a request and waits for the reply with the same ID.
func (t *StdioTransport) Call(ctx context.Context, method string, params any) (protocol.RawMessage, error) {
	id := t.pending.next()
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	ch, err := t.pending.register(id)
	if err != nil {
		return nil, err
	}
	if err := t.write(req); err != nil {
		t.pending.forget(id)
		return nil, err
	}

	resp, err := t.pending.wait(ctx, id, ch)
	if err != nil {
		if ctx.Err() != nil {
			sendCancel(t, id, ctx.Err())
		}
		return nil, err
	}
	return resultOf(resp)
}

// Notify sends a one-way message.
func (t *StdioTransport) Notify(_ context.Context, method string, params any) error {
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	return t.write(n)
}

// Done is closed once the server's output ends.
func (t *StdioTransport) Done() <-chan struct{} { return t.done }

// Close closes both pipes and fails any outstanding calls.
func (t *StdioTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		// not under writeMu: a write blocked on a stuck child must not
		// hold up Close
		err = t.writer.Close()
		if rerr := t.reader.Close(); err == nil {
			err = rerr
		}
		<-t.done
	})
	return err
}
