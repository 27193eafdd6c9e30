// Package lark implements D5, wrapping larksuite/oapi-sdk-go/v3's
// websocket long-connection client for Feishu/Lark. Grounded on the
// teacher's pkg/channels/feishu_64.go FeishuChannel: an
// event.NewDispatcher bound to OnP2MessageReceiveV1, driven by
// larkws.Client.Start, and Im.V1.Message.Create for outbound sends.
package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkdispatcher "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/config"
	"github.com/weavebot/weavebot/pkg/message"
)

// Name is the factory-registration name.
const Name = "lark"

// Adapter wraps a Lark websocket long-connection client as a
// MessageAdapter.
type Adapter struct {
	info     adapter.BotInfo
	cfg      config.FeishuConfig
	client   *lark.Client
	wsClient *larkws.Client
	cancel   context.CancelFunc
}

// New is the adapter.Factory registered under Name.
func New(info adapter.BotInfo) (adapter.Adapter, error) {
	cfg := info.Config.Feishu
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("lark: app_id and app_secret are required")
	}
	return &Adapter{
		info:   info,
		cfg:    cfg,
		client: lark.NewClient(cfg.AppID, cfg.AppSecret),
	}, nil
}

// Name satisfies adapter.Adapter.
func (a *Adapter) Name() string { return Name }

// Start connects the websocket long-connection client and dispatches
// P2 message-receive events.
func (a *Adapter) Start(ctx context.Context) error {
	dispatcher := larkdispatcher.NewEventDispatcher(a.cfg.VerificationToken, a.cfg.EncryptKey).
		OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
			a.handleMessageReceive(ctx, event)
			return nil
		})

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.wsClient = larkws.NewClient(a.cfg.AppID, a.cfg.AppSecret, larkws.WithEventHandler(dispatcher))

	wsClient := a.wsClient
	go func() {
		if err := wsClient.Start(runCtx); err != nil {
			a.info.Log.ErrorCF("lark", "websocket stopped with error", map[string]interface{}{"error": err.Error()})
		}
	}()

	a.info.Log.InfoCF("lark", "connected (websocket mode)", nil)
	return nil
}

// Shutdown tears down the websocket connection.
func (a *Adapter) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wsClient = nil
	return nil
}

func (a *Adapter) handleMessageReceive(ctx context.Context, event *larkim.P2MessageReceiveV1) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return
	}
	msg := event.Event.Message
	sender := event.Event.Sender

	chatID := stringValue(msg.ChatId)
	if chatID == "" {
		return
	}

	senderID := extractSenderID(sender)
	if senderID == "" {
		senderID = "unknown"
	}

	content := extractMessageContent(msg)
	if content == "" {
		return
	}

	room := message.Room{ID: chatID}
	user := message.User{ID: senderID}
	a.info.Receive(ctx, message.NewText(user, room, content))
}

func extractSenderID(sender *larkim.EventSender) string {
	if sender == nil || sender.SenderId == nil {
		return ""
	}
	if sender.SenderId.UserId != nil && *sender.SenderId.UserId != "" {
		return *sender.SenderId.UserId
	}
	if sender.SenderId.OpenId != nil && *sender.SenderId.OpenId != "" {
		return *sender.SenderId.OpenId
	}
	return ""
}

func extractMessageContent(msg *larkim.EventMessage) string {
	if msg == nil || msg.Content == nil || *msg.Content == "" {
		return ""
	}
	if msg.MessageType != nil && *msg.MessageType == larkim.MsgTypeText {
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(*msg.Content), &payload); err == nil {
			return payload.Text
		}
	}
	return *msg.Content
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// Dispatch sends each envelope text as a Lark text message via
// Im.V1.Message.Create.
func (a *Adapter) Dispatch(ctx context.Context, env *message.Envelope) error {
	for _, text := range env.Texts {
		payload, err := json.Marshal(map[string]string{"text": text})
		if err != nil {
			return fmt.Errorf("lark: marshal content: %w", err)
		}
		req := larkim.NewCreateMessageReqBuilder().
			ReceiveIdType(larkim.ReceiveIdTypeChatId).
			Body(larkim.NewCreateMessageReqBodyBuilder().
				ReceiveId(env.Room.ID).
				MsgType(larkim.MsgTypeText).
				Content(string(payload)).
				Uuid(fmt.Sprintf("weavebot-%d", time.Now().UnixNano())).
				Build()).
			Build()

		resp, err := a.client.Im.V1.Message.Create(ctx, req)
		if err != nil {
			return fmt.Errorf("lark: send message: %w", err)
		}
		if !resp.Success() {
			return fmt.Errorf("lark: api error: code=%d msg=%s", resp.Code, resp.Msg)
		}
	}
	return nil
}
