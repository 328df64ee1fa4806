// Package batchtest answers $batch requests in tests. It reads the
// multipart bodies the client encodes and writes batch responses.
package batchtest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/google/uuid"

	"github.com/nlstn/go-odata-client/internal/batch"
)

// InnerRequest is one request read from a batch body.
type InnerRequest struct {
	Method    string
	URL       string
	Header    http.Header
	Body      []byte
	ContentID string
}

// RequestItem is a top-level request part or a changeset of requests.
type RequestItem struct {
	Request   *InnerRequest
	Changeset []*InnerRequest
}

// ReadRequests reads a multipart/mixed batch request body.
func ReadRequests(contentType string, body io.Reader) ([]RequestItem, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("invalid Content-Type %q: %w", contentType, err)
	}
	boundary, ok := params["boundary"]
	if !strings.HasPrefix(mediaType, "multipart/") || !ok {
		return nil, fmt.Errorf("expected multipart/mixed with a boundary, got %q", contentType)
	}

	reader := multipart.NewReader(body, boundary)
	var items []RequestItem
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return items, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read batch part: %w", err)
		}

		partMediaType, partParams, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			return nil, fmt.Errorf("invalid part Content-Type: %w", err)
		}

		if strings.HasPrefix(partMediaType, "multipart/") {
			changesetBoundary, ok := partParams["boundary"]
			if !ok {
				return nil, fmt.Errorf("missing changeset boundary")
			}
			changeset, err := readChangeset(part, changesetBoundary)
			if err != nil {
				return nil, err
			}
			items = append(items, RequestItem{Changeset: changeset})
			continue
		}

		req, err := parseHTTPRequest(part)
		if err != nil {
			return nil, err
		}
		req.ContentID = part.Header.Get("Content-ID")
		items = append(items, RequestItem{Request: req})
	}
}

func readChangeset(r io.Reader, boundary string) ([]*InnerRequest, error) {
	reader := multipart.NewReader(r, boundary)
	var requests []*InnerRequest
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return requests, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read changeset part: %w", err)
		}
		req, err := parseHTTPRequest(part)
		if err != nil {
			return nil, err
		}
		req.ContentID = part.Header.Get("Content-ID")
		requests = append(requests, req)
	}
}

// parseHTTPRequest parses an HTTP request from a multipart part
func parseHTTPRequest(r io.Reader) (*InnerRequest, error) {
	reader := bufio.NewReader(r)

	requestLine, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read request line: %w", err)
	}
	requestLine = strings.TrimRight(requestLine, "\r\n")
	if requestLine == "" {
		return nil, fmt.Errorf("empty request")
	}

	parts := strings.Fields(requestLine)
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid request line: %s", requestLine)
	}

	tp := textproto.NewReader(reader)
	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read headers: %w", err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return &InnerRequest{
		Method: parts[0],
		URL:    parts[1],
		Header: http.Header(mimeHeader),
		Body:   bytes.TrimSpace(body),
	}, nil
}

// WriteResponses writes items as a multipart/mixed batch response. Changeset
// items are written as nested multipart parts.
func WriteResponses(w http.ResponseWriter, items []batch.Item) error {
	boundary := "batchresponse_" + uuid.NewString()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.SetBoundary(boundary); err != nil {
		return err
	}
	for _, item := range items {
		if item.Changeset == nil {
			if err := writeResponsePart(mw, item.Response); err != nil {
				return err
			}
			continue
		}

		changesetBoundary := "changesetresponse_" + uuid.NewString()
		var cs bytes.Buffer
		cw := multipart.NewWriter(&cs)
		if err := cw.SetBoundary(changesetBoundary); err != nil {
			return err
		}
		for _, resp := range item.Changeset {
			if err := writeResponsePart(cw, resp); err != nil {
				return err
			}
		}
		if err := cw.Close(); err != nil {
			return err
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type": {"multipart/mixed; boundary=" + changesetBoundary},
		})
		if err != nil {
			return err
		}
		if _, err := part.Write(cs.Bytes()); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "multipart/mixed; boundary="+boundary)
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(buf.Bytes())
	return err
}

func writeResponsePart(mw *multipart.Writer, resp *batch.Response) error {
	header := textproto.MIMEHeader{
		"Content-Type":              {"application/http"},
		"Content-Transfer-Encoding": {"binary"},
	}
	// Echo Content-ID in the response MIME part envelope if it was present in the request
	if resp.ContentID != "" {
		header.Set("Content-ID", resp.ContentID)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	for key, values := range resp.Header {
		if key == "Content-Length" {
			continue
		}
		for _, value := range values {
			fmt.Fprintf(&buf, "%s: %s\r\n", key, value)
		}
	}
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(resp.Body))
	buf.Write(resp.Body)
	_, err = part.Write(buf.Bytes())
	return err
}
