package dispatch

import (
	"encoding/json"
	"fmt"
)

// Status is the mandatory outcome field of every response.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Response is one reply frame before serialization.
//
// Each concrete type declares the status field first so it is the first key
// on the wire.
type Response interface {
	ResponseStatus() Status
}

// ListResponse answers "list". Files is always encoded, as [] when empty.
type ListResponse struct {
	Status Status   `json:"status"`
	Files  []string `json:"files"`
}

// FileResponse answers "get". Content is the base64 encoding of the file.
type FileResponse struct {
	Status   Status `json:"status"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// MessageResponse answers successful "upload" and "delete".
type MessageResponse struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse is the reply for any failure.
type ErrorResponse struct {
	Status Status `json:"status"`
	Error  string `json:"error"`
}

func (r *ListResponse) ResponseStatus() Status    { return r.Status }
func (r *FileResponse) ResponseStatus() Status    { return r.Status }
func (r *MessageResponse) ResponseStatus() Status { return r.Status }
func (r *ErrorResponse) ResponseStatus() Status   { return r.Status }

// Failed builds an ErrorResponse.
func Failed(format string, args ...any) *ErrorResponse {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &ErrorResponse{Status: StatusFailed, Error: msg}
}

// Marshal serializes r as a single-line JSON object.
//
// A value that cannot be encoded (which the types above never produce)
// becomes a FAILED response so the peer always gets a well-formed reply.
func Marshal(r Response) []byte {
	data, err := json.Marshal(r)
	if err != nil {
		data, _ = json.Marshal(Failed("Processing error: %v", err))
	}
	return data
}
