// Package application wires the service together. It opens the store
// connection, builds the handler and router on top of the resulting model
// registry and owns the HTTP server, so the main package only deals with
// flags, configuration and signals.
package application
