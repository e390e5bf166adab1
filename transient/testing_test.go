// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package transient

import (
	"net/http"
	"net/http/httptest"
)

func testRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// testRequest returns a request carrying the live cookies set on prev.
func testRequest(prev *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "https://example.com/callback", nil)
	if prev == nil {
		return req
	}
	for _, c := range prev.Result().Cookies() {
		if c.MaxAge < 0 {
			continue
		}
		req.AddCookie(c)
	}
	return req
}
