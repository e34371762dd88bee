//go:build tools

// Package tools documents development tool dependencies.
// These tools are run via `go run` or installed with `go install` and are not
// tracked in go.mod since they are development tools, not runtime dependencies.
package tools

// Development tools:
//
// mockgen - regenerates internal/mocks from the ports in internal/core
//   Run: go generate ./internal/mocks
//   Version: go.uber.org/mock/mockgen@v0.6.0 (matches go.mod)
//
// playwright - installs the browser driver used by browser submitters
//   Install: go run github.com/playwright-community/playwright-go/cmd/playwright@v0.5200.1 install --with-deps chromium
//   Needed only when SUBMITTERS_BROWSER_ENABLED=true
//
// golangci-lint - linting; the nolint directives in this tree target it
//   Install: go install github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest
