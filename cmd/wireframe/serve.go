package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aeolun/distcore/pkg/config"
	"github.com/aeolun/distcore/pkg/gateway"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "~/.distcore/config.toml", "Path to config file")
	listenAddr := fs.String("listen", "", "Override gateway.listen_addr")
	debug := fs.Bool("debug", false, "Enable debug logging to stderr")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listenAddr != "" {
		cfg.Gateway.ListenAddr = *listenAddr
	}
	if *debug {
		gateway.EnableDebugLogging(os.Stderr)
	}

	srv := gateway.New(gateway.Config{
		ListenAddr: cfg.Gateway.ListenAddr,
		HTTPPort:   cfg.Gateway.HTTPPort,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("shutdown signal received")
		if err := srv.Stop(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	return srv.Start()
}
