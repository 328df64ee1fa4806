package batch

import (
	"fmt"
)

// Result is the response routed to one submitted request.
type Result struct {
	// Response is the inner response, nil when a failed changeset did not
	// report one for this request.
	Response *Response

	// ChangesetFailed is set on every write of a changeset that did not
	// complete; the service rolled all of them back.
	ChangesetFailed bool

	// Cause is the first failed response of the changeset.
	Cause *Response
}

// Demux routes decoded items back to the requests in submission order.
// Changeset responses may arrive nested or flattened into top-level parts; a
// failed changeset may be answered with fewer responses than it had writes.
func (e *Encoded) Demux(items []Item) ([]Result, error) {
	results := make([]Result, e.count)
	next := 0

	take := func() (Item, error) {
		if next >= len(items) {
			return Item{}, fmt.Errorf("%w: expected more than %d parts", ErrMalformedResponse, len(items))
		}
		item := items[next]
		next++
		return item, nil
	}

	for _, idx := range e.layout {
		if idx >= 0 {
			item, err := take()
			if err != nil {
				return nil, err
			}
			if item.Response == nil {
				return nil, fmt.Errorf("%w: changeset where a single response was expected", ErrMalformedResponse)
			}
			results[idx] = Result{Response: item.Response}
			continue
		}

		var responses []*Response
		if next < len(items) && items[next].Changeset != nil {
			responses = items[next].Changeset
			next++
		} else {
			// Flattened: consume until all writes are answered or one fails.
			for len(responses) < len(e.writes) {
				item, err := take()
				if err != nil {
					return nil, err
				}
				if item.Response == nil {
					return nil, fmt.Errorf("%w: unexpected nested changeset", ErrMalformedResponse)
				}
				responses = append(responses, item.Response)
				if item.Response.Failed() {
					break
				}
			}
		}
		e.routeChangeset(responses, results)
	}

	if next != len(items) {
		return nil, fmt.Errorf("%w: %d parts for %d requests", ErrMalformedResponse, len(items), e.count)
	}
	return results, nil
}

func (e *Encoded) routeChangeset(responses []*Response, results []Result) {
	byID := make(map[string]*Response, len(responses))
	for _, r := range responses {
		if r.ContentID != "" {
			byID[r.ContentID] = r
		}
	}
	useIDs := len(byID) == len(responses) && len(responses) > 0

	var cause *Response
	for _, r := range responses {
		if r.Failed() {
			cause = r
			break
		}
	}
	if cause == nil && len(responses) < len(e.writes) {
		cause = &Response{StatusCode: 0}
	}

	for n, idx := range e.writes {
		var resp *Response
		if useIDs {
			resp = byID[contentID(n)]
		} else if n < len(responses) {
			resp = responses[n]
		}
		if cause != nil {
			// A single failed response may stand for the whole changeset.
			if resp == nil && len(responses) == 1 {
				resp = cause
			}
			results[idx] = Result{Response: resp, ChangesetFailed: true, Cause: cause}
			continue
		}
		results[idx] = Result{Response: resp}
	}
}
