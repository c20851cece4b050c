// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the standalone HTTP server mlmd starts when metricsEnabled
// is set (§6.6), exposing /metrics for Prometheus scraping with an
// optional basic-auth gate.
type Server struct {
	manager        *Manager
	basicAuthUsers map[string]string
	server         *http.Server
}

// NewMetricsServer builds a Server listening on host:port. basicAuthUsers
// is a comma-separated "user:pass,user2:pass2" list; malformed entries
// (no colon) are skipped rather than rejected outright, since a typo in
// one pair shouldn't lock every configured user out. An empty string
// disables auth entirely.
func NewMetricsServer(manager *Manager, host string, port int, basicAuthUsers string) *Server {
	users := parseBasicAuthUsers(basicAuthUsers)

	mux := http.NewServeMux()
	handler := promhttp.HandlerFor(manager.GetRegistry(), promhttp.HandlerOpts{})
	if len(users) > 0 {
		handler = BasicAuth("mlmd metrics", users)(handler)
	}
	mux.Handle("/metrics", handler)

	return &Server{
		manager:        manager,
		basicAuthUsers: users,
		server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", host, port),
			Handler: mux,
		},
	}
}

func parseBasicAuthUsers(raw string) map[string]string {
	users := make(map[string]string)
	if raw == "" {
		return users
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		user, pass, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		users[strings.TrimSpace(user)] = strings.TrimSpace(pass)
	}
	return users
}

// ListenAndServe blocks serving the metrics endpoint until Stop or
// Shutdown is called.
func (s *Server) ListenAndServe() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes the listener immediately without waiting for in-flight
// scrapes to finish.
func (s *Server) Stop() error {
	return s.server.Close()
}

// Shutdown gracefully stops the server, waiting for in-flight scrapes
// to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// BasicAuth wraps next with an HTTP basic-auth check against users,
// constant-time-comparing the password to avoid a timing oracle.
func BasicAuth(realm string, users map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				unauthorized(w, realm)
				return
			}
			want, exists := users[username]
			if !exists || subtle.ConstantTimeCompare([]byte(password), []byte(want)) != 1 {
				unauthorized(w, realm)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Basic realm=%q`, realm))
	w.WriteHeader(http.StatusUnauthorized)
}
