// Package command parses one request frame into a verb and its arguments.
//
// Grammar:
//
//	request = verb [ whitespace rest ]
//
// The verb is the first whitespace-delimited token, matched case-insensitively.
// For "upload" the rest is split once on the first whitespace run into a file
// name and a base64 payload, which is passed through untouched. For every other
// verb the rest is tokenized with POSIX shell quoting so names containing
// spaces can be quoted; malformed quoting falls back to plain whitespace
// splitting instead of failing the request.
package command

import (
	"errors"
	"strings"
	"unicode"

	"github.com/kballard/go-shellquote"
	"github.com/marmos91/filecmd/internal/logger"
)

// Verbs understood by the server.
const (
	VerbList   = "list"
	VerbGet    = "get"
	VerbUpload = "upload"
	VerbDelete = "delete"
)

// ErrEmptyRequest is returned for a frame holding only whitespace.
var ErrEmptyRequest = errors.New("empty request")

// Request is one parsed frame.
//
// Args is never nil. No arity checks happen here; the dispatcher decides
// what a verb needs.
type Request struct {
	Verb string
	Args []string
}

// Parse splits raw into a Request.
//
// Returns ErrEmptyRequest if raw is blank. Any other input yields a Request,
// including unknown verbs.
func Parse(raw string) (Request, error) {
	if strings.TrimSpace(raw) == "" {
		return Request{}, ErrEmptyRequest
	}

	// Trailing whitespace is significant for upload payloads, so only the
	// left side is trimmed here.
	verb, rest := splitFirst(strings.TrimLeftFunc(raw, unicode.IsSpace))
	req := Request{
		Verb: strings.ToLower(verb),
		Args: []string{},
	}

	if rest == "" {
		return req, nil
	}

	if req.Verb == VerbUpload {
		req.Args = splitUpload(rest)
	} else {
		req.Args = splitQuoted(rest)
	}

	logger.Debug("Parsed request: verb=%s params=%d", req.Verb, len(req.Args))
	return req, nil
}

// splitFirst returns the text before the first whitespace run and the text
// after it with leading whitespace removed.
func splitFirst(s string) (head, rest string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

// splitUpload returns [name, payload]. The payload keeps its bytes verbatim.
//
// "name" alone yields one argument. "name " followed by nothing but
// whitespace yields an empty payload, which uploads an empty file.
func splitUpload(rest string) []string {
	i := strings.IndexFunc(rest, unicode.IsSpace)
	if i < 0 {
		return []string{rest}
	}
	return []string{rest[:i], strings.TrimLeftFunc(rest[i:], unicode.IsSpace)}
}

// splitQuoted tokenizes with shell quoting, falling back to whitespace
// splitting when the quoting is malformed.
func splitQuoted(rest string) []string {
	words, err := shellquote.Split(rest)
	if err != nil {
		logger.Warn("Parameter parsing error: %v", err)
		return strings.Fields(rest)
	}
	if words == nil {
		return []string{}
	}
	return words
}
