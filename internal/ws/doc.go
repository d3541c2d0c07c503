// Package ws implements the feedwatch WebSocket hub.
//
// Hub manages a set of connected clients and broadcasts the current feed
// snapshot to all of them on a configurable interval (default 5s in
// production).
//
// New(store, interval) creates a Hub.
// Hub.Run(ctx) starts the broadcast ticker and blocks until ctx is cancelled,
// then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// snapshot immediately on connect, then streams updates on each tick.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema the REST layer serves */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/stream by the daemon.
package ws
