// Package integration provides cross-package tests for researchmind.
// They wire the registry, transports, agent manager, orchestrator, run
// history and health checks together against real worker processes and
// HTTP endpoints.
//
// Build tag: integration
// Run with: go test -tags integration ./internal/integration/...
package integration
