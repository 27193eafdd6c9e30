// Package shell implements D1, the zero-config default message
// adapter: a local readline REPL that feeds typed lines into the
// thought process and prints Envelope text back to stdout. Grounded
// on the teacher's cmd_agent.go interactiveMode/simpleInteractiveMode
// pair (readline.NewEx with a bufio.Reader fallback when the terminal
// can't be initialised, e.g. running under a test harness or with
// stdin redirected from a file).
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/message"
)

// Name is the factory-registration name, and config.Defaults's
// MessageAdapter value.
const Name = "shell"

// Adapter is the running shell REPL.
type Adapter struct {
	info    adapter.BotInfo
	room    message.Room
	user    message.User
	rl      *readline.Instance
	cancel  context.CancelFunc
	stopped chan struct{}
	mu      sync.Mutex
}

// New is the adapter.Factory registered under Name.
func New(info adapter.BotInfo) (adapter.Adapter, error) {
	return &Adapter{
		info: info,
		room: message.NewDirectRoom(),
		user: message.User{ID: "operator", Name: "operator"},
	}, nil
}

// Name satisfies adapter.Adapter.
func (a *Adapter) Name() string { return Name }

// Start launches the REPL loop in a goroutine so lifecycle.Start never
// blocks on stdin; readline failures (no controlling terminal, e.g.
// under `go test`) fall back to a plain bufio.Reader loop, exactly
// the fallback the teacher's own interactiveMode takes.
func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.stopped = make(chan struct{})
	a.mu.Unlock()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s> ", a.info.Name),
		HistoryFile:     filepath.Join(os.TempDir(), "."+a.info.Name+"_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		a.info.Log.WarnCF("shell", "readline init failed, falling back to plain stdin", map[string]interface{}{
			"error": err.Error(),
		})
		go a.simpleLoop(runCtx)
		return nil
	}

	a.mu.Lock()
	a.rl = rl
	a.mu.Unlock()
	go a.readlineLoop(runCtx)
	return nil
}

func (a *Adapter) readlineLoop(ctx context.Context) {
	defer close(a.stopped)
	defer a.rl.Close()
	for {
		line, err := a.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return
			}
			continue
		}
		a.deliver(ctx, line)
	}
}

func (a *Adapter) simpleLoop(ctx context.Context) {
	defer close(a.stopped)
	reader := bufio.NewReader(os.Stdin)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		a.deliver(ctx, line)
	}
}

func (a *Adapter) deliver(ctx context.Context, line string) {
	text := strings.TrimSpace(line)
	if text == "" {
		return
	}
	if text == "exit" || text == "quit" {
		if a.cancel != nil {
			a.cancel()
		}
		return
	}
	msg := message.NewText(a.user, a.room, text)
	a.info.Receive(ctx, msg)
}

// Shutdown cancels the REPL loop. When readline is active, closing it
// reliably unblocks the pending Readline() call, so Shutdown can wait
// for the loop to exit; the bufio.Reader fallback has no such hook
// (an in-flight blocking read on stdin can't be interrupted), so
// Shutdown only cancels it and returns without waiting.
func (a *Adapter) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	rl := a.rl
	stopped := a.stopped
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if rl == nil {
		return nil
	}
	if err := rl.Close(); err != nil {
		return err
	}
	if stopped != nil {
		select {
		case <-stopped:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Dispatch prints every text line in env to stdout, the only delivery
// method a local terminal supports.
func (a *Adapter) Dispatch(ctx context.Context, env *message.Envelope) error {
	for _, t := range env.Texts {
		fmt.Println(t)
	}
	return nil
}
