package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/awnumar/memguard"

	"github.com/dmitrijs2005/denauth/internal/flagx"
	"github.com/dmitrijs2005/denauth/internal/server"
	"github.com/dmitrijs2005/denauth/internal/server/config"
)

func main() {
	memguard.CatchInterrupt()
	defer memguard.Purge()

	ctx := context.Background()
	cfg := config.LoadConfig()

	if err := server.Run(ctx, cfg, commandArgs(os.Args[1:]), os.Stdout); err != nil {
		log.Printf("%v", err)
		memguard.SafeExit(exitCode(err))
	}
}

// commandArgs drops the flags consumed by config.LoadConfig so the rest can
// be parsed as a subcommand.
func commandArgs(args []string) []string {
	owned := append(append([]string{}, config.Flags...), flagx.ConfigFileFlags...)
	return flagx.ExcludeArgs(args, owned)
}

func exitCode(err error) int {
	if errors.Is(err, server.ErrUsage) {
		return 2
	}
	return 1
}
