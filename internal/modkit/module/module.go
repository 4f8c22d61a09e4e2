// Package module defines the contract modules share with composition roots
package module

import (
	phttp "newswire/internal/platform/net/http"
)

// Module is what a composition root needs from a service module: mount it,
// name it in logs, and reach its ports for cross-module wiring
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
