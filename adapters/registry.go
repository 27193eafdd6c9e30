// Package adapters wires every builtin D1-D12 factory into an
// adapter.Registry, the way cmd/picoclaw's main.go wires each
// concrete channels.*Channel into its own bus subscription. Callers
// register once during lifecycle.Load, then resolve by name via
// config.Config's MessageAdapter/NLUAdapter/StorageAdapter fields.
package adapters

import (
	"github.com/weavebot/weavebot/adapters/dingtalk"
	"github.com/weavebot/weavebot/adapters/discord"
	"github.com/weavebot/weavebot/adapters/lark"
	"github.com/weavebot/weavebot/adapters/nlu/anthropic"
	"github.com/weavebot/weavebot/adapters/nlu/openai"
	"github.com/weavebot/weavebot/adapters/shell"
	"github.com/weavebot/weavebot/adapters/slack"
	"github.com/weavebot/weavebot/adapters/storage/cloud"
	"github.com/weavebot/weavebot/adapters/storage/file"
	"github.com/weavebot/weavebot/adapters/telegram"
	"github.com/weavebot/weavebot/adapters/tencent"
	"github.com/weavebot/weavebot/adapters/websocket"
	"github.com/weavebot/weavebot/pkg/adapter"
)

// RegisterBuiltins registers every builtin adapter factory by name.
// It never fails: registration only stores the factory, the factory
// itself validates required config lazily when resolved.
func RegisterBuiltins(reg *adapter.Registry) {
	reg.RegisterFactory(shell.Name, shell.New)
	reg.RegisterFactory(discord.Name, discord.New)
	reg.RegisterFactory(slack.Name, slack.New)
	reg.RegisterFactory(telegram.Name, telegram.New)
	reg.RegisterFactory(lark.Name, lark.New)
	reg.RegisterFactory(dingtalk.Name, dingtalk.New)
	reg.RegisterFactory(tencent.Name, tencent.New)
	reg.RegisterFactory(websocket.Name, websocket.New)

	reg.RegisterFactory(anthropic.Name, anthropic.New)
	reg.RegisterFactory(openai.Name, openai.New)

	reg.RegisterFactory(file.Name, file.Factory)
	reg.RegisterFactory(cloud.Name, cloud.New)
}
