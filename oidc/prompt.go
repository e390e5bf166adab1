// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"strings"
)

// Prompt is a string value that specifies whether the provider prompts the
// end-user for reauthentication and consent.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthRequest
type Prompt string

const (
	// None asks the provider not to display any authentication or consent
	// user interface pages.
	None Prompt = "none"

	// Login asks the provider to reauthenticate the end-user.
	Login Prompt = "login"

	// Consent asks the provider to prompt the end-user for consent.
	Consent Prompt = "consent"

	// SelectAccount asks the provider to prompt the end-user to select a user
	// account.
	SelectAccount Prompt = "select_account"
)

// promptParam validates and encodes prompts as a space separated list.
func promptParam(prompts []Prompt) (string, error) {
	const op = "promptParam"
	values := make([]string, 0, len(prompts))
	for _, p := range prompts {
		switch p {
		case None:
			if len(prompts) > 1 {
				return "", fmt.Errorf("%s: prompts (%v) includes none with other values: %w", op, prompts, ErrInvalidParameter)
			}
		case Login, Consent, SelectAccount:
		default:
			return "", fmt.Errorf("%s: unsupported prompt %q: %w", op, p, ErrInvalidParameter)
		}
		values = append(values, string(p))
	}
	return strings.Join(values, " "), nil
}
