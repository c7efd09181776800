// Package api exposes the HTTP surface: registration, the two-step login
// flow, and the protected user directory routes.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/middenhq/midden/pkg/middleware"
)

// Server wires handlers, authentication, and the permission gate onto a
// gorilla/mux router.
type Server struct {
	router *mux.Router
}

// ServerOptions collects the collaborators the server routes to.
type ServerOptions struct {
	Auth          *AuthHandlers
	Users         *UserHandlers
	Authenticator *middleware.Authenticator
	Gate          *middleware.PermissionGate
}

// NewServer creates a new API server with all routes configured
func NewServer(opts ServerOptions) *Server {
	s := &Server{router: mux.NewRouter()}
	s.setupRoutes(opts)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(opts ServerOptions) {
	// Public routes
	s.router.HandleFunc("/", opts.Auth.Banner).Methods("GET")
	s.router.HandleFunc("/register", opts.Auth.Register).Methods("POST")
	s.router.HandleFunc("/login", opts.Auth.Login).Methods("POST")
	s.router.HandleFunc("/verify-2fa", opts.Auth.Verify).Methods("POST")

	// Protected routes: bearer token first, then a per-route permission slug.
	protected := s.router.PathPrefix("/users").Subrouter()
	protected.Use(opts.Authenticator.Middleware)

	protected.Handle("", opts.Gate.Require("read:users")(http.HandlerFunc(opts.Users.List))).Methods("GET")
	protected.Handle("/{id}", opts.Gate.Require("write:users")(http.HandlerFunc(opts.Users.Delete))).Methods("DELETE")
	protected.Handle("/{id}/role", opts.Gate.Require("write:users")(http.HandlerFunc(opts.Users.UpdateRole))).Methods("PATCH")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
