// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package httpclient

import (
	"bytes"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw}))

	t.Run("with-ca", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := New(buf.String(), 0)
		require.NoError(err)
		assert.Equal(DefaultTimeout, c.Timeout)
		resp, err := c.Get(srv.URL)
		require.NoError(err)
		defer resp.Body.Close()
		assert.Equal(http.StatusOK, resp.StatusCode)
	})
	t.Run("system-roots", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := New("", time.Second)
		require.NoError(err)
		assert.Equal(time.Second, c.Timeout)
		_, err = c.Get(srv.URL)
		require.Error(err, "the test server's self signed cert must not be trusted")
	})
	t.Run("invalid-pem", func(t *testing.T) {
		_, err := New("not a pem", 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidCertificatePem))
	})
}
