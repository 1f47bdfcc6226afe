// Package server exposes the optional local HTTP API used for
// monitoring: health, session state, sanitized configuration, runtime
// statistics, and Prometheus metrics. It is bound to localhost by
// default and carries no dictation functionality.
package server
