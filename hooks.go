package odata

import (
	"context"
	"fmt"
	"net/http"
)

// RequestHooks lets callers observe or amend every HTTP exchange of a client,
// for example to add authentication or to capture raw responses.
//
// Example:
//
//	client, err := odata.NewClient(serviceURL, odata.WithHooks(odata.RequestHooks{
//	    BeforeRequest: func(ctx context.Context, r *http.Request) error {
//	        r.Header.Set("Authorization", "Bearer "+token)
//	        return nil
//	    },
//	}))
type RequestHooks struct {
	// BeforeRequest is called after all client headers are set, right before
	// the request is sent. Return an error to abort the request.
	BeforeRequest func(ctx context.Context, r *http.Request) error

	// AfterResponse is called with the response before its body is read.
	// Return an error to fail the operation.
	AfterResponse func(ctx context.Context, r *http.Response) error
}

func (h RequestHooks) before(ctx context.Context, r *http.Request) error {
	if h.BeforeRequest == nil {
		return nil
	}
	if err := h.BeforeRequest(ctx, r); err != nil {
		return fmt.Errorf("odata: before request hook: %w", err)
	}
	return nil
}

func (h RequestHooks) after(ctx context.Context, r *http.Response) error {
	if h.AfterResponse == nil {
		return nil
	}
	if err := h.AfterResponse(ctx, r); err != nil {
		return fmt.Errorf("odata: after response hook: %w", err)
	}
	return nil
}
