// Package api provides the HTTP surface the dialogue engine calls.
//
// It exposes a single action webhook plus a health endpoint, and wires the
// store, catalog, selector, resolver, and mailer modules together at
// startup.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/QuitPrep/internal/actions"
	"github.com/BTreeMap/QuitPrep/internal/catalog"
	"github.com/BTreeMap/QuitPrep/internal/email"
	"github.com/BTreeMap/QuitPrep/internal/selector"
	"github.com/BTreeMap/QuitPrep/internal/session"
	"github.com/BTreeMap/QuitPrep/internal/store"
)

// Default configuration constants
const (
	// DefaultAddr is the default API listen address.
	DefaultAddr = ":5055"
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr        string
	CatalogPath string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the API server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithCatalogPath sets the path of the activity catalog CSV.
func WithCatalogPath(path string) Option {
	return func(o *Opts) {
		o.CatalogPath = path
	}
}

// Server dispatches webhook requests to the action handler.
type Server struct {
	handler *actions.Handler
	addr    string
}

// NewServer creates an API server around an action handler.
func NewServer(handler *actions.Handler, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{handler: handler, addr: cfg.Addr}
}

// Routes returns the server's HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run assembles all modules from the provided options and serves the API.
// The mailer is optional: without an SMTP host the reminder action logs and
// skips.
func Run(storeOpts []store.Option, mailOpts []email.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.CatalogPath == "" {
		return fmt.Errorf("activity catalog path not set")
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load activity catalog: %w", err)
	}

	st, err := store.NewStore(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	var mailer actions.ReminderSender
	if len(mailOpts) > 0 {
		m, err := email.NewMailer(mailOpts...)
		if err != nil {
			return fmt.Errorf("failed to initialize mailer: %w", err)
		}
		mailer = m
	} else {
		slog.Warn("api.Run: no SMTP configuration, reminder emails disabled")
	}

	handler := actions.NewHandler(st, session.NewResolver(st, cat), selector.NewSelector(st, cat), mailer)
	server := NewServer(handler, apiOpts...)

	slog.Info("QuitPrep action server listening", "addr", server.addr, "activities", cat.Len())
	return http.ListenAndServe(server.addr, server.Routes())
}
