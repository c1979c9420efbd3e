package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/fortress/internal/server"
	"github.com/dmitrijs2005/fortress/internal/server/config"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	if err := server.Run(context.Background(), cfg); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
