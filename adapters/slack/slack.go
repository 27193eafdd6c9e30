// Package slack implements D3, wrapping slack-go/slack's Socket Mode
// client. Grounded on the teacher's pkg/channels/slack.go SlackChannel:
// the same socketmode.Client event loop dispatching EventsAPI messages
// after Ack, and the same channel-ID/thread-timestamp composite key
// for threaded replies.
package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/config"
	"github.com/weavebot/weavebot/pkg/message"
)

// Name is the factory-registration name.
const Name = "slack"

// Adapter wraps a Socket Mode session as a MessageAdapter.
type Adapter struct {
	info      adapter.BotInfo
	cfg       config.SlackConfig
	api       *slack.Client
	socket    *socketmode.Client
	botUserID string
	cancel    context.CancelFunc
}

// New is the adapter.Factory registered under Name.
func New(info adapter.BotInfo) (adapter.Adapter, error) {
	cfg := info.Config.Slack
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, fmt.Errorf("slack: bot_token and app_token are required")
	}
	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))
	return &Adapter{
		info:   info,
		cfg:    cfg,
		api:    api,
		socket: socketmode.New(api),
	}, nil
}

// Name satisfies adapter.Adapter.
func (a *Adapter) Name() string { return Name }

// Start authenticates and launches the Socket Mode connection.
func (a *Adapter) Start(ctx context.Context) error {
	authResp, err := a.api.AuthTest()
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	a.botUserID = authResp.UserID

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go a.eventLoop(runCtx)
	go func() {
		if err := a.socket.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			a.info.Log.ErrorCF("slack", "socket mode connection error", map[string]interface{}{"error": err.Error()})
		}
	}()

	a.info.Log.InfoCF("slack", "connected", map[string]interface{}{"bot_user_id": a.botUserID, "team": authResp.Team})
	return nil
}

// Shutdown tears down the Socket Mode connection.
func (a *Adapter) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

func (a *Adapter) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.socket.Events:
			if !ok {
				return
			}
			if ev.Type == socketmode.EventTypeEventsAPI {
				a.handleEventsAPI(ctx, ev)
			}
		}
	}
}

func (a *Adapter) handleEventsAPI(ctx context.Context, ev socketmode.Event) {
	if ev.Request != nil {
		a.socket.Ack(*ev.Request)
	}
	outer, ok := ev.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	if inner, ok := outer.InnerEvent.Data.(*slackevents.MessageEvent); ok {
		a.handleMessageEvent(ctx, inner)
	}
}

func (a *Adapter) handleMessageEvent(ctx context.Context, ev *slackevents.MessageEvent) {
	if ev.User == a.botUserID || ev.User == "" || ev.BotID != "" {
		return
	}
	if ev.SubType != "" && ev.SubType != "file_share" {
		return
	}

	content := strings.TrimSpace(a.stripMention(ev.Text))
	if content == "" {
		return
	}

	chatID := ev.Channel
	meta := map[string]string{}
	if ev.ThreadTimeStamp != "" {
		meta["thread_ts"] = ev.ThreadTimeStamp
	}
	room := message.Room{ID: chatID, Metadata: meta}
	user := message.User{ID: ev.User}
	a.info.Receive(ctx, message.NewText(user, room, content))
}

func (a *Adapter) stripMention(text string) string {
	if a.botUserID == "" {
		return text
	}
	return strings.ReplaceAll(text, fmt.Sprintf("<@%s>", a.botUserID), "")
}

// Dispatch posts a chat.postMessage per envelope text, threading the
// reply when Room.Metadata["thread_ts"] is set.
func (a *Adapter) Dispatch(ctx context.Context, env *message.Envelope) error {
	threadTS := env.Room.Metadata["thread_ts"]
	for _, text := range env.Texts {
		opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
		if threadTS != "" {
			opts = append(opts, slack.MsgOptionTS(threadTS))
		}
		if _, _, err := a.api.PostMessageContext(ctx, env.Room.ID, opts...); err != nil {
			return fmt.Errorf("slack: post message: %w", err)
		}
	}
	return nil
}
