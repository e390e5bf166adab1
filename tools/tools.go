// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build tools

// Package tools pins the versions of the tools used to develop authflow, so
// they're tracked in go.mod like any other dependency.  Install them with:
//
//	$ go generate -tags tools tools/tools.go
package tools

// The go:generate directive must stay unindented and outside of the import
// block, keep it in sync with the imports below.
//go:generate go install mvdan.cc/gofumpt

import (
	_ "mvdan.cc/gofumpt"
)
