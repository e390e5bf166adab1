// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupportedSigningAlgorithm(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		algs      []Alg
		wantIsErr error
	}{
		{name: "supported signing algorithms", algs: []Alg{RS256, HS256}},
		{name: "none", algs: []Alg{Alg("none")}, wantIsErr: ErrUnsupportedAlg},
		{name: "rs512", algs: []Alg{RS256, Alg("RS512")}, wantIsErr: ErrUnsupportedAlg},
		{name: "lowercase", algs: []Alg{Alg("rs256")}, wantIsErr: ErrUnsupportedAlg},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := SupportedSigningAlgorithm(tt.algs...)
			if tt.wantIsErr != nil {
				require.Error(t, err)
				assert.Truef(t, errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
