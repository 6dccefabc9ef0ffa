// Package cli provides the command-line interface for mediacrawl.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/law-makers/mediacrawl/internal/app"
)

// ctxKey is used for storing the application in a command's context
type ctxKey string

const appKey ctxKey = "app"

// SetApp stores the Application in the command's context
func SetApp(cmd *cobra.Command, a *app.Application) {
	if cmd == nil {
		return
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appKey, a))
}

// GetApp retrieves the Application from the command's context
func GetApp(cmd *cobra.Command) *app.Application {
	if cmd == nil || cmd.Context() == nil {
		return nil
	}
	a, _ := cmd.Context().Value(appKey).(*app.Application)
	return a
}
