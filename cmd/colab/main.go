// Command colab is the terminal client for a Co_Lab server.
//
//	colab -server http://localhost:8080
//
// COLAB_SERVER sets the default server URL.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chzyer/readline"

	"github.com/sakif/colab/internal/client"
	"github.com/sakif/colab/internal/client/cli"
	"github.com/sakif/colab/internal/client/state"
)

func main() {
	defaultServer := os.Getenv("COLAB_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	serverURL := flag.String("server", defaultServer, "Co_Lab server base URL")
	history := flag.String("history", defaultHistoryFile(), "readline history file (empty disables history)")
	flag.Parse()

	if err := run(*serverURL, *history); err != nil {
		fmt.Fprintln(os.Stderr, "colab:", err)
		os.Exit(1)
	}
}

func run(serverURL, historyFile string) error {
	api, err := client.New(serverURL)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "colab> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	// SIGTERM cancels in-flight requests; Ctrl+C is readline's ErrInterrupt.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	store := state.NewStore(state.Default())
	return cli.New(rl, api, store, rl.Stdout()).Run(ctx)
}

func defaultHistoryFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "colab_history")
}
