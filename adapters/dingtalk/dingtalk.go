// Package dingtalk implements D6, wrapping
// open-dingtalk/dingtalk-stream-sdk-go's stream client for DingTalk
// chatbot events. No teacher channel targets DingTalk, so the
// connect/dispatch shape here follows the SDK's own documented
// StreamClient/ChatBotFrameRouter usage, kept in the same
// Start(ctx)/handler-registration/Close() shape as the teacher's other
// websocket-style channels (feishu_64.go, qq.go).
package dingtalk

import (
	"context"
	"fmt"

	"github.com/open-dingtalk/dingtalk-stream-sdk-go/chatbot"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/client"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/config"
	"github.com/weavebot/weavebot/pkg/message"
)

// Name is the factory-registration name.
const Name = "dingtalk"

// Adapter wraps a DingTalk stream client as a MessageAdapter.
type Adapter struct {
	info   adapter.BotInfo
	cfg    config.DingTalkConfig
	client *client.StreamClient
	cancel context.CancelFunc
}

// New is the adapter.Factory registered under Name.
func New(info adapter.BotInfo) (adapter.Adapter, error) {
	cfg := info.Config.DingTalk
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("dingtalk: client_id and client_secret are required")
	}
	cli := client.NewStreamClient(client.WithAppCredential(client.NewAppCredentialConfig(cfg.ClientID, cfg.ClientSecret)))
	return &Adapter{info: info, cfg: cfg, client: cli}, nil
}

// Name satisfies adapter.Adapter.
func (a *Adapter) Name() string { return Name }

// Start registers the chatbot callback router and opens the stream
// connection.
func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	router := chatbot.NewDefaultChatBotFrameRouter(func(c context.Context, data *chatbot.BotCallbackDataModel) ([]byte, error) {
		a.handleMessage(ctx, data)
		return []byte(""), nil
	})
	a.client.RegisterChatBotCallbackRouter(router)

	go func() {
		if err := a.client.Start(runCtx); err != nil {
			a.info.Log.ErrorCF("dingtalk", "stream client stopped with error", map[string]interface{}{"error": err.Error()})
		}
	}()

	a.info.Log.InfoCF("dingtalk", "connected (stream mode)", nil)
	return nil
}

// Shutdown closes the stream connection.
func (a *Adapter) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.client.Close()
	return nil
}

func (a *Adapter) handleMessage(ctx context.Context, data *chatbot.BotCallbackDataModel) {
	if data == nil || data.Text.Content == "" {
		return
	}
	room := message.Room{ID: data.ConversationId, Metadata: map[string]string{
		"conversation_type": data.ConversationType,
		"session_webhook":   data.SessionWebhook,
	}}
	user := message.User{ID: data.SenderStaffId, Name: data.SenderNick}
	a.info.Receive(ctx, message.NewText(user, room, data.Text.Content))
}

// Dispatch replies via the session webhook captured on Room.Metadata,
// the only delivery channel a DingTalk chatbot callback exposes.
func (a *Adapter) Dispatch(ctx context.Context, env *message.Envelope) error {
	webhook := env.Room.Metadata["session_webhook"]
	if webhook == "" {
		return fmt.Errorf("dingtalk: no session webhook on envelope")
	}
	for _, text := range env.Texts {
		if err := chatbot.SendMessageWebhook(chatbot.NewTextMessage(text), webhook); err != nil {
			return fmt.Errorf("dingtalk: send message: %w", err)
		}
	}
	return nil
}
