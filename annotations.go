package odata

import (
	"net/url"

	"github.com/nlstn/go-odata-client/internal/feed"
)

// Annotations holds the feed-level annotations of the most recent page.
// It is owned by the caller and updated in place by every page fetch.
//
// Example:
//
//	var ann odata.Annotations
//	page, err := client.For("People").FindEntries(ctx, &ann)
//	for err == nil && ann.NextPageLink != nil {
//	    page, err = client.For("People").FindEntriesByLink(ctx, ann.NextPageLink, &ann)
//	}
type Annotations struct {
	// NextPageLink is the absolute link to the next page, nil on the last page.
	NextPageLink *url.URL

	// Count is the total number of matching entries, independent of paging.
	// It is only present when the service reported it.
	Count *int64

	// DeltaLink fetches the changes since this result, when change tracking was requested.
	DeltaLink *url.URL
}

// update copies the annotations of page. The next link is replaced on every
// page; a count missing from a later page keeps the previous one.
func (a *Annotations) update(page *feed.Page) {
	if a == nil || page == nil {
		return
	}
	a.NextPageLink = page.NextLink
	if page.Count != nil {
		count := *page.Count
		a.Count = &count
	}
	if page.DeltaLink != nil {
		a.DeltaLink = page.DeltaLink
	}
}

// HasNextPage reports whether another page can be fetched.
func (a *Annotations) HasNextPage() bool {
	return a != nil && a.NextPageLink != nil
}
