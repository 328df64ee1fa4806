package batch

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// ErrMalformedResponse indicates a batch response that cannot be decoded.
var ErrMalformedResponse = errors.New("odata: malformed batch response")

// Response is one inner response of a batch.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	ContentID  string
}

// Failed reports whether the response carries an error status.
func (r *Response) Failed() bool {
	return r.StatusCode >= http.StatusBadRequest
}

// Item is one top-level part of a batch response: a single response or the
// responses of a changeset.
type Item struct {
	Response  *Response
	Changeset []*Response
}

// Decode reads a multipart/mixed batch response body.
func Decode(contentType string, body io.Reader) ([]Item, error) {
	boundary, err := multipartBoundary(contentType)
	if err != nil {
		return nil, err
	}

	reader := multipart.NewReader(body, boundary)
	var items []Item
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read batch part: %v", ErrMalformedResponse, err)
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid part Content-Type: %v", ErrMalformedResponse, err)
		}

		switch {
		case strings.HasPrefix(mediaType, "multipart/"):
			changesetBoundary, ok := params["boundary"]
			if !ok {
				return nil, fmt.Errorf("%w: missing changeset boundary", ErrMalformedResponse)
			}
			responses, err := decodeChangeset(part, changesetBoundary)
			if err != nil {
				return nil, err
			}
			items = append(items, Item{Changeset: responses})
		case mediaType == "application/http":
			resp, err := parseHTTPResponse(part)
			if err != nil {
				return nil, err
			}
			resp.ContentID = part.Header.Get("Content-ID")
			items = append(items, Item{Response: resp})
		default:
			return nil, fmt.Errorf("%w: unexpected part type %s", ErrMalformedResponse, mediaType)
		}
	}
	return items, nil
}

func decodeChangeset(r io.Reader, boundary string) ([]*Response, error) {
	reader := multipart.NewReader(r, boundary)
	var responses []*Response
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return responses, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read changeset part: %v", ErrMalformedResponse, err)
		}
		resp, err := parseHTTPResponse(part)
		if err != nil {
			return nil, err
		}
		resp.ContentID = part.Header.Get("Content-ID")
		responses = append(responses, resp)
	}
}

// parseHTTPResponse parses an application/http part holding a status line,
// headers and body.
func parseHTTPResponse(r io.Reader) (*Response, error) {
	resp, err := http.ReadResponse(bufio.NewReader(r), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", ErrMalformedResponse, err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       bytes.TrimSpace(body),
	}, nil
}

func multipartBoundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: invalid Content-Type %q: %v", ErrMalformedResponse, contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("%w: expected multipart/mixed, got %s", ErrMalformedResponse, mediaType)
	}
	boundary, ok := params["boundary"]
	if !ok {
		return "", fmt.Errorf("%w: Content-Type must include boundary parameter", ErrMalformedResponse)
	}
	return boundary, nil
}
