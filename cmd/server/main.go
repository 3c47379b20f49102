package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dimiro1/banner"

	"github.com/robit-man/gemma3-evaluation-app/pkg/app"
)

const version = "dev"

func printBanner() {
	tpl := "{{ .Title \"GEMMA3\" \"\" 0 }}\nFunction Calling Interface - Version: " + version + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	printBanner()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	engine, err := app.NewEngine(app.EngineOptions{Config: cfg})
	if err != nil {
		fmt.Fprintln(os.Stderr, "init:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "serve:", err)
		os.Exit(1)
	}
}
