// Package websearch is the optional web-search collaborator. The stub
// implementation echoes the query; a real engine can be plugged in behind
// the same method set.
package websearch

import (
	"context"
	"fmt"
)

// Stub satisfies the search contract without a backing engine.
type Stub struct{}

// NewStub constructs the stub searcher.
func NewStub() *Stub { return &Stub{} }

// Search returns a canned result string for the query.
func (s *Stub) Search(ctx context.Context, query string) (string, error) {
	return fmt.Sprintf("Search results for: %s", query), nil
}
