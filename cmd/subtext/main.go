package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"

	"github.com/MeKo-Tech/subtext/cmd/subtext/cmd"
	"github.com/MeKo-Tech/subtext/internal/version"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	if err := fang.Execute(context.Background(), cmd.RootCmd, fang.WithVersion(version.String())); err != nil {
		os.Exit(1)
	}
}
