package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/careercoach/internal/buildinfo"
	"github.com/dmitrijs2005/careercoach/internal/client/cli"
	"github.com/dmitrijs2005/careercoach/internal/client/config"
	"github.com/dmitrijs2005/careercoach/internal/flagx"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	// A link the OS launched us with arrives as the first positional argument.
	var initialLink string
	if args := flagx.Positional(os.Args[1:], config.ValueFlags); len(args) > 0 {
		initialLink = args[0]
	}

	app, err := cli.NewApp(ctx, cfg, initialLink)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
