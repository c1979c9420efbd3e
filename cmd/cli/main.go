package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/fortress/internal/client/cli"
	"github.com/dmitrijs2005/fortress/internal/client/config"
	"github.com/dmitrijs2005/fortress/internal/flagx"
)

func main() {
	cfg := config.LoadConfig()

	args := flagx.StripArgs(os.Args[1:], []string{"-f", "-t", "-c", "-config"})

	app := cli.NewApp(cfg)
	if err := app.Run(context.Background(), args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
