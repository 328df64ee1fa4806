// Package batch implements the OData $batch wire format on the client side:
// encoding recorded requests into one multipart/mixed body with a single
// changeset for all writes, decoding the multipart response, and routing
// response parts back to the requests in submission order.
package batch

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"

	"github.com/google/uuid"

	"github.com/nlstn/go-odata-client/internal/request"
)

// Encoded is an encoded batch request body.
type Encoded struct {
	// Body is the multipart/mixed payload.
	Body []byte

	// ContentType carries the batch boundary.
	ContentType string

	// Boundary is the outer batch boundary.
	Boundary string

	// ChangesetBoundary is the boundary of the changeset part, empty without writes.
	ChangesetBoundary string

	// layout lists, in wire order, the submission index of each top-level
	// read or -1 for the changeset.
	layout []int

	// writes lists the submission indexes of the changeset members in order.
	writes []int

	// count is the number of encoded requests.
	count int
}

// Encoder encodes requests into a batch body.
type Encoder struct {
	// BaseURL, when set, makes request lines absolute. v3 services expect
	// absolute URLs; v4 services resolve relative ones against the service root.
	BaseURL string

	// Header is added to every inner request.
	Header http.Header
}

// Encode places every read as a top-level part and every write, in order,
// in one changeset positioned where the first write was submitted.
func (e *Encoder) Encode(reqs []*request.Request) (*Encoded, error) {
	enc := &Encoded{
		Boundary: "batch_" + uuid.NewString(),
		count:    len(reqs),
	}

	for i, r := range reqs {
		if !r.IsWrite() {
			enc.layout = append(enc.layout, i)
			continue
		}
		if len(enc.writes) == 0 {
			enc.layout = append(enc.layout, -1)
		}
		enc.writes = append(enc.writes, i)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.SetBoundary(enc.Boundary); err != nil {
		return nil, err
	}

	for _, idx := range enc.layout {
		if idx >= 0 {
			if err := e.writeRequestPart(mw, reqs[idx], ""); err != nil {
				return nil, err
			}
			continue
		}
		if err := e.writeChangeset(mw, enc, reqs); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	enc.Body = buf.Bytes()
	enc.ContentType = "multipart/mixed; boundary=" + enc.Boundary
	return enc, nil
}

func (e *Encoder) writeChangeset(mw *multipart.Writer, enc *Encoded, reqs []*request.Request) error {
	enc.ChangesetBoundary = "changeset_" + uuid.NewString()

	var buf bytes.Buffer
	cw := multipart.NewWriter(&buf)
	if err := cw.SetBoundary(enc.ChangesetBoundary); err != nil {
		return err
	}
	for n, idx := range enc.writes {
		if err := e.writeRequestPart(cw, reqs[idx], contentID(n)); err != nil {
			return err
		}
	}
	if err := cw.Close(); err != nil {
		return err
	}

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"multipart/mixed; boundary=" + enc.ChangesetBoundary},
	})
	if err != nil {
		return err
	}
	_, err = part.Write(buf.Bytes())
	return err
}

// contentID numbers changeset members from 1.
func contentID(n int) string {
	return fmt.Sprint(n + 1)
}

func (e *Encoder) writeRequestPart(mw *multipart.Writer, r *request.Request, id string) error {
	header := textproto.MIMEHeader{
		"Content-Type":              {"application/http"},
		"Content-Transfer-Encoding": {"binary"},
	}
	if id != "" {
		header.Set("Content-ID", id)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}

	target := r.RelativeURL()
	if e.BaseURL != "" {
		target = r.URL(e.BaseURL)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s HTTP/1.1\r\n", r.Method, target)

	headers := r.HeaderValues()
	for k, v := range e.Header {
		if _, ok := headers[k]; !ok {
			headers[k] = v
		}
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
		}
	}
	buf.WriteString("\r\n")
	if len(r.Body) > 0 {
		buf.Write(r.Body)
	}

	_, err = part.Write(buf.Bytes())
	return err
}
