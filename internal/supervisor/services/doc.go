// SetlistGraph - DJ Setlist Ingestion and Transition Graph Pipeline
// Copyright 2026 SetlistGraph Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/setlistgraph/pipeline

/*
Package services provides suture.Service wrappers for dispatcher components.

This package adapts existing application components to the suture v4 supervision
model, translating a component's lifecycle (today only the ListenAndServe/
Shutdown pattern of an HTTP server) into suture's context-aware Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation (ListenAndServe/Shutdown to Serve pattern)
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

This is the only wrapper the dispatcher registers today; it runs in the
tree's API layer. The data and messaging layers exist for a future
background service (periodic re-ingestion, store compaction) but have no
wrapper to register yet.

# Usage Example

Creating and registering services:

	import (
	    "net/http"
	    "time"

	    "github.com/setlistgraph/pipeline/internal/supervisor"
	    "github.com/setlistgraph/pipeline/internal/supervisor/services"
	)

	func setupSupervisor(server *http.Server) {
	    tree, _ := supervisor.NewSupervisorTree(logger, config)

	    // HTTP server with 30s shutdown timeout
	    httpSvc := services.NewHTTPServerService(server, 30*time.Second)
	    tree.AddAPIService(httpSvc)

	    // Start supervision
	    tree.Serve(ctx)
	}

# Lifecycle Patterns

Three common lifecycle patterns map onto Serve as below. Only the
ListenAndServe pattern has a wrapper in this package (HTTPServerService);
the other two are sketches.

Start/Stop Pattern:

	type StartStopper interface {
	    Start(ctx context.Context) error
	    Stop() error
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    if err := s.component.Start(ctx); err != nil {
	        return err
	    }
	    <-ctx.Done()
	    return s.component.Stop()
	}

Run Pattern:

	type Runner interface {
	    Run() error  // Blocks until complete
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    errCh := make(chan error, 1)
	    go func() { errCh <- s.component.Run() }()
	    select {
	    case err := <-errCh: return err
	    case <-ctx.Done(): s.component.Shutdown(); return nil
	    }
	}

ListenAndServe Pattern:

	type Listener interface {
	    ListenAndServe() error
	    Shutdown(ctx context.Context) error
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    go s.server.ListenAndServe()
	    <-ctx.Done()
	    return s.server.Shutdown(shutdownCtx)
	}

# Error Handling

Return values determine supervisor behavior:

	nil                    -> Service stopped, supervisor will restart
	error                  -> Service crashed, supervisor will restart
	ctx.Err()              -> Shutdown requested, normal termination
	suture.ErrDoNotRestart -> Service finished, will not restart

Example error handling:

	func (s *HTTPServerService) Serve(ctx context.Context) error {
	    errCh := make(chan error, 1)
	    go func() { errCh <- s.server.ListenAndServe() }()

	    select {
	    case err := <-errCh:
	        // Listen failure - supervisor restarts the service
	        return fmt.Errorf("http server failed: %w", err)
	    case <-ctx.Done():
	    }

	    shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	    defer cancel()
	    if err := s.server.Shutdown(shutdownCtx); err != nil {
	        return fmt.Errorf("http server shutdown failed: %w", err)
	    }
	    return ctx.Err() // Clean shutdown, no restart
	}

# Service Identification

All services implement fmt.Stringer for logging:

	func (s *HTTPServerService) String() string {
	    return "http-server"
	}

Suture uses this for log messages:

	INFO http-server: starting
	INFO http-server: stopped
	ERROR http-server: restarting after failure

# Testing

Services can be tested with mock components:

	type MockServer struct {
	    started  bool
	    shutdown bool
	    stop     chan struct{}
	}

	func (m *MockServer) ListenAndServe() error {
	    m.started = true
	    <-m.stop // Block until shutdown
	    return http.ErrServerClosed
	}

	func (m *MockServer) Shutdown(ctx context.Context) error {
	    m.shutdown = true
	    close(m.stop)
	    return nil
	}

	func TestHTTPService(t *testing.T) {
	    mock := &MockServer{stop: make(chan struct{})}
	    svc := services.NewHTTPServerService(mock, time.Second)

	    ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	    defer cancel()

	    svc.Serve(ctx)

	    if !mock.started { t.Error("server not started") }
	    if !mock.shutdown { t.Error("server not shutdown") }
	}

# Thread Safety

All service wrappers are safe for concurrent use:
  - State is protected by mutexes where needed
  - Context cancellation is handled atomically
  - Multiple Serve calls are not supported (undefined behavior)

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
*/
package services
