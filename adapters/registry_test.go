package adapters

import (
	"strings"
	"testing"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/config"
)

// Every adapter Factory reads its vendor config straight off
// info.Config, the way lifecycle.Load always supplies it populated
// (never nil); tests stand in an empty *config.Config for the same
// reason rather than a zero BotInfo.
func emptyBotInfo() adapter.BotInfo {
	return adapter.BotInfo{Config: &config.Config{}}
}

func TestRegisterBuiltinsRegistersEveryFactory(t *testing.T) {
	// Every builtin except shell and file requires vendor config, so resolving it
	// with a bare BotInfo fails on that missing config rather than on
	// "no factory registered" -- proof RegisterBuiltins actually wired
	// the name in.
	messageAdapters := []string{"discord", "slack", "telegram", "lark", "dingtalk", "tencent", "websocket"}
	nluAdapters := []string{"anthropic", "openai"}
	storageAdapters := []string{"cloud"}

	reg := adapter.New()
	RegisterBuiltins(reg)

	for _, name := range messageAdapters {
		t.Run(name, func(t *testing.T) {
			err := reg.LoadMessage(name, emptyBotInfo())
			if err == nil {
				t.Fatalf("%s: expected a missing-config error, got none", name)
			}
			if strings.Contains(err.Error(), "no factory registered") {
				t.Fatalf("%s: factory was never registered: %v", name, err)
			}
		})
	}
	for _, name := range nluAdapters {
		t.Run(name, func(t *testing.T) {
			if err := reg.LoadNLU(name, emptyBotInfo()); err == nil {
				t.Fatalf("%s: expected a missing-config error, got none", name)
			}
		})
	}
	for _, name := range storageAdapters {
		t.Run(name, func(t *testing.T) {
			if err := reg.LoadStorage(name, emptyBotInfo()); err == nil {
				t.Fatalf("%s: expected a missing-config error, got none", name)
			}
		})
	}
}

func TestRegisterBuiltinsShellNeedsNoConfig(t *testing.T) {
	reg := adapter.New()
	RegisterBuiltins(reg)

	if err := reg.LoadMessage("shell", emptyBotInfo()); err != nil {
		t.Fatalf("shell adapter should load without config, got: %v", err)
	}
	if reg.Message() == nil {
		t.Fatal("expected the shell adapter to populate the message slot")
	}
}

func TestRegisterBuiltinsFileNeedsNoConfig(t *testing.T) {
	reg := adapter.New()
	RegisterBuiltins(reg)

	if err := reg.LoadStorage("file", emptyBotInfo()); err != nil {
		t.Fatalf("file adapter should load with a default dir, got: %v", err)
	}
	if reg.Storage() == nil {
		t.Fatal("expected the file adapter to populate the storage slot")
	}
}
