// Command friendcards serves the relationship and card API and manages its
// database schema.
//
//	friendcards serve
//	friendcards migrate [up|status]
//	friendcards seed <name>
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/friendcards/backend/internal/app"
)

func main() {
	if err := app.Run(context.Background(), os.Args[1:]); err != nil {
		slog.Error("friendcards exited with error", "error", err)
		os.Exit(1)
	}
}
