// Package suites holds the built-in downstream suites. Every suite lives in its own file and registers itself
// with [ecosystem.DefaultRegistry] on import.
package suites
