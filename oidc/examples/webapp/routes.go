// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/openrp/authflow/oidc"
	"github.com/openrp/authflow/oidc/callback"
)

func newMux(fr callback.FlowReader, home string, logger hclog.Logger) (*http.ServeMux, error) {
	const op = "newMux"
	errorFn := errorHandler(logger)
	login, err := callback.Login(fr, errorFn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	authCode, err := callback.AuthCode(fr, successHandler(), errorFn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logout, err := callback.Logout(fr, home, errorFn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", login)
	mux.HandleFunc("/callback", authCode)
	mux.HandleFunc("/logout", logout)
	mux.HandleFunc("/profile", ProfileHandler(fr, logger))
	return mux, nil
}

func successHandler() callback.SuccessResponseFunc {
	return func(state string, s oidc.Session, w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/profile", http.StatusFound)
	}
}

func errorHandler(logger hclog.Logger) callback.ErrorResponseFunc {
	return func(state string, r *oidc.AuthError, e error, w http.ResponseWriter, req *http.Request) {
		if e != nil {
			logger.Error("callback failed", "error", e)
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}
		logger.Warn("provider returned an error", "code", r.Code, "description", r.Description)
		http.Error(w, r.Error(), http.StatusUnauthorized)
	}
}

type profile struct {
	User                 map[string]interface{} `json:"user"`
	AccessTokenExpiresAt time.Time              `json:"access_token_expires_at"`
	Expired              bool                   `json:"expired"`
}

// ProfileHandler writes the end-user's profile, or sends them to /login when
// they have no session.
func ProfileHandler(fr callback.FlowReader, logger hclog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := fr.Read(w, r)
		if err != nil {
			logger.Error("unable to read flow", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s := f.Session()
		if s.User == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		data, err := json.MarshalIndent(profile{
			User:                 s.User,
			AccessTokenExpiresAt: s.AccessTokenExpiresAt,
			Expired:              s.Expired(time.Now()),
		}, "", "    ")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	}
}
