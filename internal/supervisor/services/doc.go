// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package services provides suture.Service wrappers for the attribution
backend's two long-running components.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation (ListenAndServe/Run to Serve pattern)
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining in-flight requests

WebSocket Hub (WebSocketHubService):
  - Wraps websocket.Hub with context support
  - Handles client connection cleanup on shutdown
  - Broadcasts a shutdown notification to connected clients

# Usage Example

	import (
	    "net/http"
	    "time"

	    "github.com/attributiond/backend/internal/supervisor"
	    "github.com/attributiond/backend/internal/supervisor/services"
	)

	func setupSupervisor(server *http.Server, hub *websocket.Hub) {
	    tree, _ := supervisor.NewSupervisorTree(logger, config)

	    httpSvc := services.NewHTTPServerService(server, 10*time.Second)
	    tree.AddAPIService(httpSvc)

	    wsSvc := services.NewWebSocketHubService(hub)
	    tree.AddMessagingService(wsSvc)

	    tree.Serve(ctx)
	}

# Lifecycle Patterns

ListenAndServe Pattern (HTTPServerService):

	type Listener interface {
	    ListenAndServe() error
	    Shutdown(ctx context.Context) error
	}

	func (s *HTTPServerService) Serve(ctx context.Context) error {
	    go s.server.ListenAndServe()
	    <-ctx.Done()
	    return s.server.Shutdown(shutdownCtx)
	}

Context-aware Run Pattern (WebSocketHubService):

	type ContextHub interface {
	    RunWithContext(ctx context.Context) error
	}

	func (s *WebSocketHubService) Serve(ctx context.Context) error {
	    return s.hub.RunWithContext(ctx)
	}

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# Service Identification

Both services implement fmt.Stringer for logging:

	func (s *HTTPServerService) String() string {
	    return "http-server"
	}

Suture uses this for log messages:

	INFO http-server: starting
	INFO http-server: stopped
	ERROR http-server: restarting after failure

# Thread Safety

Both service wrappers are safe for concurrent use:
  - Context cancellation is handled atomically
  - Multiple Serve calls on the same instance are not supported

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
  - internal/websocket: WebSocket hub implementation
*/
package services
