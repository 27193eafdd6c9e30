package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weavebot/weavebot/pkg/config"
	"github.com/weavebot/weavebot/pkg/lifecycle"
)

var (
	version   = "dev"
	gitCommit string
)

const shutdownGrace = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		startCmd(os.Args[2:])
	case "status":
		statusCmd(os.Args[2:])
	case "version", "--version", "-v":
		printVersion()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Usage: weavebot <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  start    Load and run the bot until interrupted")
	fmt.Println("  status   Load configuration and print the resolved settings")
	fmt.Println("  version  Show version information")
}

func printVersion() {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	fmt.Printf("weavebot %s\n", v)
}

func loadConfig(args []string) (config.Config, error) {
	return config.Load(args, "./weavebot.json")
}

func startCmd(args []string) {
	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Printf("error loading config: %v\n", err)
		os.Exit(1)
	}

	ctrl := lifecycle.New(&cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Load(ctx); err != nil {
		fmt.Printf("error loading bot: %v\n", err)
		os.Exit(1)
	}
	if err := ctrl.Start(ctx); err != nil {
		fmt.Printf("error starting bot: %v\n", err)
		os.Exit(1)
	}

	bc := ctrl.Context()
	bc.Logger().InfoCF("weavebot", "started", map[string]interface{}{
		"name":            cfg.Name,
		"message_adapter": cfg.MessageAdapter,
	})

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := ctrl.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("error during shutdown: %v\n", err)
		os.Exit(1)
	}
}

func statusCmd(args []string) {
	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Printf("error loading config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("name:             %s\n", cfg.Name)
	fmt.Printf("log level:        %s\n", cfg.LogLevel)
	fmt.Printf("message adapter:  %s\n", cfg.MessageAdapter)
	fmt.Printf("nlu adapter:      %s\n", cfg.NLUAdapter)
	fmt.Printf("storage adapter:  %s\n", cfg.StorageAdapter)
	fmt.Printf("autosave:         %t\n", cfg.AutoSave)
}
