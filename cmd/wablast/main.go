package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/bjo163/wablast/config"
	"github.com/bjo163/wablast/internal/api"
	"github.com/bjo163/wablast/internal/app"
	"github.com/bjo163/wablast/internal/webserver"
	"go.uber.org/zap"
)

var (
	conffile = flag.String("c", "/etc/wablast.yml", "config yaml file")
	initdb   = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
	showver  = flag.Bool("v", false, "print version and exit")
)

var version = "dev"

func main() {
	flag.Parse()

	if *showver {
		fmt.Println("wablast", version)
		return
	}

	cfg := config.LoadConfig(*conffile)
	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.S().Info("database initialized")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api.InitRouter()
	server := webserver.NewWebServer(application)

	application.StartBackgroundJobs(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		zap.S().Errorf("webserver stopped: %v", err)
	case <-ctx.Done():
		zap.S().Info("shutdown signal received")
	}
}
