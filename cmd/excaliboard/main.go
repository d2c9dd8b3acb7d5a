package main

import (
	"log/slog"
	"os"

	"github.com/excaliboard/excaliboard/cmd/excaliboard/commands"
)

func main() {
	// Text logs on stderr until the configured level and format are known.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	commands.Execute()
}
