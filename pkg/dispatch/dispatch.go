// Package dispatch maps parsed requests onto storage operations.
//
// The Dispatcher is the only component that knows the verb table. Each verb
// handler returns an explicit (Response, error) pair; Dispatch folds errors
// into FAILED responses so nothing escapes to the session as a Go error or a
// panic.
package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/marmos91/filecmd/internal/logger"
	"github.com/marmos91/filecmd/internal/protocol/command"
	"github.com/marmos91/filecmd/pkg/store"
)

// Client-facing failure messages. They are sent verbatim as the "error" field,
// which is why they are capitalized.
//
//nolint:staticcheck // error strings are part of the wire protocol
var (
	errInvalidCommand    = errors.New("Invalid command")
	errFilenameRequired  = errors.New("Filename required")
	errMissingParameters = errors.New("Missing parameters")
	errFileNotFound      = errors.New("File not found")
	errInvalidFilename   = errors.New("Invalid filename")
)

// handlerFunc implements one verb.
type handlerFunc func(ctx context.Context, args []string) (Response, error)

// Dispatcher executes requests against a Store.
//
// A Dispatcher is built once per process and shared by every session in that
// process.
//
// Thread safety:
// Safe for concurrent use as long as the Store is.
type Dispatcher struct {
	store    store.Store
	handlers map[string]handlerFunc
}

// New creates a Dispatcher over s.
func New(s store.Store) *Dispatcher {
	d := &Dispatcher{store: s}
	d.handlers = map[string]handlerFunc{
		command.VerbList:   d.list,
		command.VerbGet:    d.get,
		command.VerbUpload: d.upload,
		command.VerbDelete: d.delete,
	}
	return d
}

// Store returns the backend the dispatcher operates on.
func (d *Dispatcher) Store() store.Store {
	return d.store
}

// Dispatch runs verb with args and always returns a Response.
//
// Unknown verbs produce "Invalid command". Handler errors become FAILED
// responses carrying the error text. A panic inside a handler is recovered
// and reported as "Processing error: <value>".
func (d *Dispatcher) Dispatch(ctx context.Context, verb string, args []string) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Processing error in %s: %v", verb, r)
			resp = Failed("Processing error: %v", r)
		}
	}()

	handler, ok := d.handlers[strings.ToLower(verb)]
	if !ok {
		return Failed("%s", errInvalidCommand.Error())
	}

	logger.Debug("Executing: %s with %d params", verb, len(args))

	resp, err := handler(ctx, args)
	if err != nil {
		logger.Debug("%s failed: %v", verb, err)
		return Failed("%s", err.Error())
	}
	return resp
}

// Handle parses raw and dispatches it. Parse failures become FAILED responses.
func (d *Dispatcher) Handle(ctx context.Context, raw string) (command.Request, Response) {
	req, err := command.Parse(raw)
	if err != nil {
		if errors.Is(err, command.ErrEmptyRequest) {
			return req, Failed("Empty request")
		}
		return req, Failed("Processing error: %v", err)
	}
	return req, d.Dispatch(ctx, req.Verb, req.Args)
}

func (d *Dispatcher) list(ctx context.Context, _ []string) (Response, error) {
	names, err := d.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return &ListResponse{Status: StatusSuccess, Files: names}, nil
}

func (d *Dispatcher) get(ctx context.Context, args []string) (Response, error) {
	if len(args) == 0 || args[0] == "" {
		return nil, errFilenameRequired
	}
	name := args[0]

	data, err := d.store.Read(ctx, name)
	if err != nil {
		return nil, storeError(name, err)
	}

	return &FileResponse{
		Status:   StatusSuccess,
		Filename: name,
		Content:  base64.StdEncoding.EncodeToString(data),
	}, nil
}

func (d *Dispatcher) upload(ctx context.Context, args []string) (Response, error) {
	if len(args) != 2 || args[0] == "" {
		return nil, errMissingParameters
	}
	name, payload := args[0], args[1]

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("Invalid base64 payload: %v", err) //nolint:staticcheck // wire message
	}

	if err := d.store.Write(ctx, name, data); err != nil {
		return nil, storeError(name, err)
	}

	return &MessageResponse{Status: StatusSuccess, Message: "File saved"}, nil
}

func (d *Dispatcher) delete(ctx context.Context, args []string) (Response, error) {
	if len(args) == 0 || args[0] == "" {
		return nil, errFilenameRequired
	}
	name := args[0]

	if err := d.store.Delete(ctx, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errFileNotFound
		}
		return nil, storeError(name, err)
	}

	return &MessageResponse{Status: StatusSuccess, Message: "File deleted"}, nil
}

// storeError turns a backend error into the message sent to the client.
func storeError(name string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s", errFileNotFound, name)
	case errors.Is(err, store.ErrInvalidName):
		return fmt.Errorf("%w: %q", errInvalidFilename, name)
	default:
		return err
	}
}

// decodeBase64 decodes standard padded base64, ignoring embedded whitespace
// such as line breaks inserted by encoders that wrap output.
func decodeBase64(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return base64.StdEncoding.DecodeString(clean)
}
