// Package push holds the live WebSocket connections used for in-app
// notifications and implements the push delivery channel on top of them.
package push
