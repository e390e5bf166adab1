// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"fmt"
	"net/http"

	"github.com/openrp/authflow/oidc"
	"github.com/openrp/authflow/storage"
)

// FlowReader defines an interface for getting the oidc.Flow of the end-user
// making a request.
//
// Implementations must be concurrently safe, since the reader will likely be
// used within a concurrent http.Handler
type FlowReader interface {
	// Read returns the Flow of the end-user making r.  The ResponseWriter is
	// provided for flows whose storage writes cookies.
	Read(w http.ResponseWriter, r *http.Request) (*oidc.Flow, error)
}

// FlowReaderFunc adapts an ordinary function to a FlowReader.
type FlowReaderFunc func(w http.ResponseWriter, r *http.Request) (*oidc.Flow, error)

// Read calls fn(w, r).
func (fn FlowReaderFunc) Read(w http.ResponseWriter, r *http.Request) (*oidc.Flow, error) {
	return fn(w, r)
}

// CookieFlowReader implements the FlowReader interface by keeping both the
// end-user's session and the flow's transient values in encrypted cookies,
// so no server side session storage is needed.  It is concurrently safe.
type CookieFlowReader struct {
	Provider *oidc.Provider

	// Key encrypts the cookies.  It must be storage.CookieKeyLen bytes.
	Key []byte

	// Options for every storage.CookieStore created.
	Options []storage.Option
}

// Read creates a Flow over the cookies of r.  It satisfies the FlowReader
// interface.
func (c *CookieFlowReader) Read(w http.ResponseWriter, r *http.Request) (*oidc.Flow, error) {
	const op = "CookieFlowReader.Read"
	if c.Provider == nil {
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrNilParameter)
	}
	s, err := storage.NewCookieStore(w, r, c.Key, c.Options...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	f, err := c.Provider.NewFlow(r.Context(), s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}

// SingleFlowReader implements the FlowReader interface for a single Flow,
// which is handy for CLIs serving one login.  It's only safe for concurrent
// use when its Flow isn't used concurrently.
type SingleFlowReader struct {
	Flow *oidc.Flow
}

// Read returns the single Flow.  It satisfies the FlowReader interface.
func (sr *SingleFlowReader) Read(http.ResponseWriter, *http.Request) (*oidc.Flow, error) {
	const op = "SingleFlowReader.Read"
	if sr.Flow == nil {
		return nil, fmt.Errorf("%s: flow is nil: %w", op, oidc.ErrNilParameter)
	}
	return sr.Flow, nil
}
