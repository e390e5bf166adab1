// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package httpclient builds the http clients used to reach an identity
// provider.
package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// DefaultTimeout is the overall request timeout of clients built by New.
const DefaultTimeout = 30 * time.Second

// ErrInvalidCertificatePem is returned when a CA PEM can't be parsed.
var ErrInvalidCertificatePem = errors.New("invalid certificate PEM")

// New creates a new http client which will use the optional CA certificate PEM
// if provided, otherwise it will use the installed system CA chain.  A zero
// timeout uses DefaultTimeout.
func New(caPEM string, timeout time.Duration) (*http.Client, error) {
	tr := cleanhttp.DefaultPooledTransport()

	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, ErrInvalidCertificatePem
		}

		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}
