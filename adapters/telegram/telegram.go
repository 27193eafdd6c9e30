// Package telegram implements D4, wrapping mymmrac/telego's long-
// polling bot handler. Grounded on the teacher's
// pkg/channels/telegram.go TelegramChannel: UpdatesViaLongPolling
// feeding a telegohandler.BotHandler, the composite chatID:threadID
// key for forum topics, and SendMessageParams for outbound replies.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/config"
	"github.com/weavebot/weavebot/pkg/message"
)

// Name is the factory-registration name.
const Name = "telegram"

// Adapter wraps a telego.Bot long-polling handler as a MessageAdapter.
type Adapter struct {
	info    adapter.BotInfo
	cfg     config.TelegramConfig
	bot     *telego.Bot
	handler *th.BotHandler
}

// New is the adapter.Factory registered under Name.
func New(info adapter.BotInfo) (adapter.Adapter, error) {
	cfg := info.Config.Telegram
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: new bot: %w", err)
	}
	return &Adapter{info: info, cfg: cfg, bot: bot}, nil
}

// Name satisfies adapter.Adapter.
func (a *Adapter) Name() string { return Name }

// Start begins long polling and registers the message handler.
func (a *Adapter) Start(ctx context.Context) error {
	updates, err := a.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{Timeout: 30})
	if err != nil {
		return fmt.Errorf("telegram: long polling: %w", err)
	}

	handler, err := th.NewBotHandler(a.bot, updates)
	if err != nil {
		return fmt.Errorf("telegram: new handler: %w", err)
	}
	a.handler = handler

	handler.HandleMessage(func(hctx *th.Context, msg telego.Message) error {
		a.handleMessage(ctx, &msg)
		return nil
	}, th.AnyMessageWithText())

	go handler.Start()
	go func() {
		<-ctx.Done()
		handler.Stop()
	}()

	a.info.Log.InfoCF("telegram", "connected", map[string]interface{}{"username": a.bot.Username()})
	return nil
}

// Shutdown stops the long-polling handler.
func (a *Adapter) Shutdown(ctx context.Context) error {
	if a.handler != nil {
		a.handler.Stop()
	}
	return nil
}

func (a *Adapter) handleMessage(ctx context.Context, msg *telego.Message) {
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}

	chatIDStr := strconv.FormatInt(msg.Chat.ID, 10)
	meta := map[string]string{}
	if msg.MessageThreadID != 0 {
		meta["thread_id"] = strconv.Itoa(msg.MessageThreadID)
	}
	room := message.Room{ID: chatIDStr, Metadata: meta}
	user := message.User{ID: strconv.FormatInt(msg.From.ID, 10), Name: msg.From.Username}
	a.info.Receive(ctx, message.NewText(user, room, strings.TrimSpace(msg.Text)))
}

// Dispatch sends each envelope text as a Telegram message, forwarding
// to the forum thread when Room.Metadata["thread_id"] is set.
func (a *Adapter) Dispatch(ctx context.Context, env *message.Envelope) error {
	chatID, err := strconv.ParseInt(env.Room.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", env.Room.ID, err)
	}

	var threadID int
	if v := env.Room.Metadata["thread_id"]; v != "" {
		threadID, _ = strconv.Atoi(v)
	}

	for _, text := range env.Texts {
		params := &telego.SendMessageParams{ChatID: tu.ID(chatID), Text: text}
		if threadID != 0 {
			params.MessageThreadID = threadID
		}
		if _, err := a.bot.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("telegram: send message: %w", err)
		}
	}
	return nil
}
