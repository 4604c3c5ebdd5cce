//go:build windows

package app

import (
	"context"

	"github.com/rs/zerolog"
)

// watchSignals has no user signals to map on Windows; use the HTTP API.
func watchSignals(ctx context.Context, _ visibilityController, _ zerolog.Logger) {
	<-ctx.Done()
}
