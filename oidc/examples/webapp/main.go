// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// webapp is a small web application which signs end-users in with an oidc
// provider.  Sessions are kept in encrypted cookies, so it needs no server
// side storage.
//
//	OIDC_DOMAIN=your-tenant.example.com OIDC_CLIENT_ID=... \
//	OIDC_CLIENT_SECRET=... OIDC_COOKIE_KEY=$(openssl rand -hex 32 | cut -c1-32) \
//	OIDC_PORT=3000 go run ./oidc/examples/webapp
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/hashicorp/go-hclog"

	"github.com/openrp/authflow/oidc"
	"github.com/openrp/authflow/oidc/callback"
	"github.com/openrp/authflow/storage"
)

// List of required configuration environment variables
const (
	domain       = "OIDC_DOMAIN"
	clientID     = "OIDC_CLIENT_ID"
	clientSecret = "OIDC_CLIENT_SECRET"
	cookieKey    = "OIDC_COOKIE_KEY"
	port         = "OIDC_PORT"
)

func envConfig() (map[string]string, error) {
	const op = "envConfig"
	env := map[string]string{}
	for _, k := range []string{domain, clientID, clientSecret, cookieKey, port} {
		v := os.Getenv(k)
		if v == "" {
			return nil, fmt.Errorf("%s: %s is empty", op, k)
		}
		env[k] = v
	}
	return env, nil
}

func main() {
	usePKCE := flag.Bool("pkce", false, "use PKCE")
	useUserInfo := flag.Bool("userinfo", false, "read the end-user's profile from the userinfo endpoint")
	configFile := flag.String("config", "", "optional yaml config file, used instead of the environment")
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "webapp",
		Level: hclog.LevelFromString(os.Getenv("OIDC_LOG_LEVEL")),
	})

	env, err := envConfig()
	if err != nil {
		logger.Error("invalid environment", "error", err)
		os.Exit(1)
	}
	redirectURL := fmt.Sprintf("http://localhost:%s/callback", env[port])

	opts := []oidc.Option{oidc.WithLogger(logger.Named("oidc"))}
	if *usePKCE {
		opts = append(opts, oidc.WithPKCE())
	}
	if *useUserInfo {
		opts = append(opts, oidc.WithUserInfo())
	}

	var c *oidc.Config
	switch *configFile {
	case "":
		c, err = oidc.NewConfig(env[domain], env[clientID], oidc.ClientSecret(env[clientSecret]), redirectURL, opts...)
	default:
		c, err = oidc.LoadConfig(*configFile, opts...)
	}
	if err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	p, err := oidc.NewProvider(ctx, c)
	if err != nil {
		logger.Error("unable to create provider", "error", err)
		os.Exit(1)
	}

	fr := &callback.CookieFlowReader{
		Provider: p,
		Key:      []byte(env[cookieKey]),
		// the app is served over http from localhost
		Options: []storage.Option{storage.WithInsecureCookies()},
	}

	mux, err := newMux(fr, fmt.Sprintf("http://localhost:%s/", env[port]), logger)
	if err != nil {
		logger.Error("unable to create handlers", "error", err)
		os.Exit(1)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%s", env[port]))
	if err != nil {
		logger.Error("unable to listen", "error", err)
		os.Exit(1)
	}
	srv := &http.Server{Handler: mux}

	srvCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvCh <- err
		}
	}()

	select {
	case err := <-srvCh:
		logger.Error("server closed", "error", err)
	case <-ctx.Done():
		logger.Info("interrupted")
		_ = srv.Shutdown(context.Background())
	}
}
