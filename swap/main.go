package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/egaotan/solana-stateless-swap/config"
	"github.com/egaotan/solana-stateless-swap/swap/app"
	"github.com/egaotan/solana-stateless-swap/utils"
)

func main() {
	//
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGABRT)
	go shutdown(cancel, quit)
	//
	if len(os.Args) != 2 {
		panic("args is invalid")
	}
	cfg, err := config.Load(os.Args[1])
	if err != nil {
		panic(err)
	}
	config.LogPath = cfg.LogPath
	config.LogLevel = cfg.LogLevel
	utils.SetLevel(cfg.LogLevel)
	//
	s, err := app.NewSwap(ctx, cfg)
	if err != nil {
		panic(err)
	}
	if err := s.Service(); err != nil {
		panic(err)
	}
}

func shutdown(cancel context.CancelFunc, quit <-chan os.Signal) {
	osCall := <-quit
	fmt.Printf("System call: %v, swap is shutting down......\n", osCall)
	cancel()
}
