// Package timeouts defines shared timeout constants used across meteorfall
// processes so server and client boundaries agree on their limits.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// StoreQuery caps one catalog store query issued by an API request.
const StoreQuery = 10 * time.Second

// ClientRequest is the default limit for one browse client fetch.
const ClientRequest = 15 * time.Second
