package e2e

import (
	"encoding/base64"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/marmos91/filecmd/internal/protocol/frame"
)

// wireReply is the union of all response shapes
type wireReply struct {
	Status   string   `json:"status"`
	Error    string   `json:"error"`
	Message  string   `json:"message"`
	Filename string   `json:"filename"`
	Content  string   `json:"content"`
	Files    []string `json:"files"`
}

// readReply reads one framed JSON reply from conn
func readReply(t *testing.T, conn net.Conn, buf *frame.Buffer) wireReply {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	chunk := make([]byte, 64*1024)
	for {
		if payload, ok := buf.Next(); ok {
			var reply wireReply
			if err := json.Unmarshal(payload, &reply); err != nil {
				t.Fatalf("Invalid JSON reply %q: %v", payload, err)
			}
			return reply
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			if err := buf.Append(chunk[:n]); err != nil {
				t.Fatalf("Reply too large: %v", err)
			}
		}
		if err != nil {
			t.Fatalf("Failed to read reply: %v", err)
		}
	}
}

func writeRaw(t *testing.T, conn net.Conn, s string) {
	t.Helper()

	if _, err := conn.Write([]byte(s)); err != nil {
		t.Fatalf("Failed to write request: %v", err)
	}
}

// TestPipelinedRequests tests several requests sent in a single write
func TestPipelinedRequests(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		conn := tc.RawConn()
		buf := frame.NewBuffer(0)

		payload := base64.StdEncoding.EncodeToString([]byte("pipelined"))
		writeRaw(t, conn, "upload p.txt "+payload+"\r\n\r\nget p.txt\r\n\r\nlist\r\n\r\n")

		if r := readReply(t, conn, buf); r.Status != "SUCCESS" || r.Message != "File saved" {
			t.Errorf("upload reply = %+v", r)
		}

		r := readReply(t, conn, buf)
		if r.Status != "SUCCESS" || r.Filename != "p.txt" || r.Content != payload {
			t.Errorf("get reply = %+v", r)
		}

		r = readReply(t, conn, buf)
		if r.Status != "SUCCESS" || len(r.Files) != 1 || r.Files[0] != "p.txt" {
			t.Errorf("list reply = %+v", r)
		}
	})
}

// TestFragmentedRequest tests a request whose delimiter arrives in pieces
func TestFragmentedRequest(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		conn := tc.RawConn()
		buf := frame.NewBuffer(0)

		for _, part := range []string{"li", "st\r", "\n\r", "\n"} {
			writeRaw(t, conn, part)
			time.Sleep(20 * time.Millisecond)
		}

		if r := readReply(t, conn, buf); r.Status != "SUCCESS" {
			t.Errorf("list reply = %+v", r)
		}
	})
}

// TestErrorsKeepConnectionOpen tests that FAILED replies do not end the session
func TestErrorsKeepConnectionOpen(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		conn := tc.RawConn()
		buf := frame.NewBuffer(0)

		cases := []struct {
			request string
			want    string
		}{
			{"rename a b", "Invalid command"},
			{"", "Empty request"},
			{"get", "Filename required"},
			{"delete", "Filename required"},
			{"upload onlyname", "Missing parameters"},
			{"get missing.txt", "File not found: missing.txt"},
		}

		for _, c := range cases {
			writeRaw(t, conn, c.request+frame.Delimiter)
			r := readReply(t, conn, buf)
			if r.Status != "FAILED" || r.Error != c.want {
				t.Errorf("%q: reply = %+v, want error %q", c.request, r, c.want)
			}
		}

		writeRaw(t, conn, "list"+frame.Delimiter)
		if r := readReply(t, conn, buf); r.Status != "SUCCESS" {
			t.Errorf("list after errors = %+v", r)
		}
	})
}

// TestQuotedFilenames tests names with spaces on get and delete
func TestQuotedFilenames(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		conn := tc.RawConn()
		buf := frame.NewBuffer(0)

		// Upload splits once, so a name with spaces cannot be uploaded; the
		// whole remainder after the first space becomes the payload.
		payload := base64.StdEncoding.EncodeToString([]byte("quoted"))
		writeRaw(t, conn, "upload plain.txt "+payload+frame.Delimiter)
		if r := readReply(t, conn, buf); r.Status != "SUCCESS" {
			t.Fatalf("upload reply = %+v", r)
		}

		writeRaw(t, conn, `get "plain.txt"`+frame.Delimiter)
		if r := readReply(t, conn, buf); r.Status != "SUCCESS" || r.Content != payload {
			t.Errorf("quoted get reply = %+v", r)
		}

		writeRaw(t, conn, `get 'my file.txt'`+frame.Delimiter)
		if r := readReply(t, conn, buf); r.Error != "File not found: my file.txt" {
			t.Errorf("single-quoted get reply = %+v", r)
		}

		writeRaw(t, conn, `DELETE "plain.txt"`+frame.Delimiter)
		if r := readReply(t, conn, buf); r.Status != "SUCCESS" || r.Message != "File deleted" {
			t.Errorf("quoted delete reply = %+v", r)
		}
	})
}

// TestInvalidBase64Upload tests that a corrupt payload is rejected
func TestInvalidBase64Upload(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		conn := tc.RawConn()
		buf := frame.NewBuffer(0)

		writeRaw(t, conn, "upload bad.txt !!!notbase64!!!"+frame.Delimiter)
		if r := readReply(t, conn, buf); r.Status != "FAILED" {
			t.Errorf("upload reply = %+v", r)
		}

		assertListing(t, tc.Dial())
	})
}
