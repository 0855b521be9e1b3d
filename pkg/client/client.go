// Package client implements a client for the filecmd protocol.
//
// A Client owns one TCP connection and sends one request at a time:
// Do writes a framed command and blocks until the matching framed response
// arrives. The server answers requests on a connection in order, so a Client
// can be reused for any number of commands.
//
// Example usage:
//
//	c, err := client.Dial(ctx, "localhost:6667", client.Options{})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	if err := c.Upload(ctx, "notes.txt", data); err != nil {
//	    return err
//	}
//	files, err := c.List(ctx)
package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/marmos91/filecmd/internal/protocol/frame"
)

// Response status values.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Defaults used when the corresponding Options field is zero.
const (
	DefaultDialTimeout     = 10 * time.Second
	DefaultRequestTimeout  = 5 * time.Minute
	DefaultMaxResponseSize = 512 << 20
	readChunkSize          = 64 << 10
)

// ErrInvalidName is returned for names the protocol cannot carry.
var ErrInvalidName = errors.New("invalid file name")

// ServerError is a FAILED response from the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server: " + e.Message
}

// Options configures a Client.
type Options struct {
	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration

	// RequestTimeout bounds one request/response exchange when ctx has no deadline.
	RequestTimeout time.Duration

	// MaxResponseSize bounds the bytes buffered while waiting for a response.
	MaxResponseSize int
}

func (o *Options) applyDefaults() {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.MaxResponseSize <= 0 {
		o.MaxResponseSize = DefaultMaxResponseSize
	}
}

// Reply is a decoded server response. Only the fields of the response kind
// that was sent are populated.
type Reply struct {
	Status   string   `json:"status"`
	Error    string   `json:"error,omitempty"`
	Message  string   `json:"message,omitempty"`
	Filename string   `json:"filename,omitempty"`
	Content  string   `json:"content,omitempty"`
	Files    []string `json:"files,omitempty"`
}

// OK reports whether the server answered SUCCESS.
func (r *Reply) OK() bool {
	return r.Status == StatusSuccess
}

// Err returns a *ServerError for FAILED replies and nil otherwise.
func (r *Reply) Err() error {
	if r.OK() {
		return nil
	}
	msg := r.Error
	if msg == "" {
		msg = fmt.Sprintf("unexpected status %q", r.Status)
	}
	return &ServerError{Message: msg}
}

// Client is a connection to a filecmd server.
//
// Thread safety:
// Safe for concurrent use; requests are serialized on the connection.
type Client struct {
	conn   net.Conn
	opts   Options
	frames *frame.Buffer
	buf    []byte

	mu sync.Mutex
}

// Dial connects to the server at addr.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	opts.applyDefaults()

	d := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	return NewClient(conn, opts), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, opts Options) *Client {
	opts.applyDefaults()
	return &Client{
		conn:   conn,
		opts:   opts,
		frames: frame.NewBuffer(opts.MaxResponseSize),
		buf:    make([]byte, readChunkSize),
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends one raw command line and returns the server's reply.
//
// A FAILED reply is returned with a nil error; transport and decoding
// problems are returned as errors. The connection should be discarded after
// an error.
func (c *Client) Do(ctx context.Context, line string) (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.opts.RequestTimeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	defer c.conn.SetDeadline(time.Time{})

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := c.conn.Write(frame.Encode([]byte(line))); err != nil {
		return nil, c.wrapErr(ctx, "send", err)
	}

	raw, err := c.readFrame()
	if err != nil {
		return nil, c.wrapErr(ctx, "receive", err)
	}

	var reply Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &reply, nil
}

func (c *Client) readFrame() ([]byte, error) {
	for {
		if f, ok := c.frames.Next(); ok {
			return f, nil
		}

		n, err := c.conn.Read(c.buf)
		if n > 0 {
			if appendErr := c.frames.Append(c.buf[:n]); appendErr != nil {
				return nil, appendErr
			}
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

// wrapErr prefers the context error when the deadline was forced by cancellation.
func (c *Client) wrapErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// call runs Do and turns FAILED replies into errors.
func (c *Client) call(ctx context.Context, line string) (*Reply, error) {
	reply, err := c.Do(ctx, line)
	if err != nil {
		return nil, err
	}
	if err := reply.Err(); err != nil {
		return nil, err
	}
	return reply, nil
}

// List returns the names of the stored files.
func (c *Client) List(ctx context.Context) ([]string, error) {
	reply, err := c.call(ctx, "list")
	if err != nil {
		return nil, err
	}
	if reply.Files == nil {
		return []string{}, nil
	}
	return reply.Files, nil
}

// Get downloads the file called name.
func (c *Client) Get(ctx context.Context, name string) ([]byte, error) {
	if name == "" {
		return nil, ErrInvalidName
	}

	reply, err := c.call(ctx, shellquote.Join("get", name))
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(reply.Content)
	if err != nil {
		return nil, fmt.Errorf("decode content of %s: %w", name, err)
	}
	return data, nil
}

// Upload stores data under name, replacing any existing file.
//
// The upload command takes its name verbatim up to the first space, so names
// containing whitespace cannot be uploaded.
func (c *Client) Upload(ctx context.Context, name string, data []byte) error {
	if name == "" || strings.ContainsAny(name, " \t\r\n\v\f") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	_, err := c.call(ctx, "upload "+name+" "+base64.StdEncoding.EncodeToString(data))
	return err
}

// Delete removes the file called name.
func (c *Client) Delete(ctx context.Context, name string) error {
	if name == "" {
		return ErrInvalidName
	}

	_, err := c.call(ctx, shellquote.Join("delete", name))
	return err
}
