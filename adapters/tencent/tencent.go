// Package tencent implements D7, wrapping tencent-connect/botgo for
// the QQ channel bot platform. Grounded on the teacher's
// pkg/channels/qq.go QQChannel: a token.QQBotTokenSource refreshed by
// token.StartRefreshAccessToken, an openapi.OpenAPI client resolving
// the websocket access point, and a botgo.SessionManager driving the
// event.RegisterHandlers dispatch for C2C and group-mention messages.
package tencent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tencent-connect/botgo"
	"github.com/tencent-connect/botgo/dto"
	"github.com/tencent-connect/botgo/event"
	"github.com/tencent-connect/botgo/openapi"
	"github.com/tencent-connect/botgo/token"
	"golang.org/x/oauth2"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/config"
	"github.com/weavebot/weavebot/pkg/message"
)

// Name is the factory-registration name.
const Name = "tencent"

// Adapter wraps a botgo websocket session as a MessageAdapter.
type Adapter struct {
	info        adapter.BotInfo
	cfg         config.TencentConfig
	api         openapi.OpenAPI
	tokenSource oauth2.TokenSource
	sessionMgr  botgo.SessionManager
	cancel      context.CancelFunc

	mu           sync.Mutex
	processedIDs map[string]bool
}

// New is the adapter.Factory registered under Name.
func New(info adapter.BotInfo) (adapter.Adapter, error) {
	cfg := info.Config.Tencent
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("tencent: app_id and app_secret are required")
	}
	return &Adapter{info: info, cfg: cfg, processedIDs: make(map[string]bool)}, nil
}

// Name satisfies adapter.Adapter.
func (a *Adapter) Name() string { return Name }

// Start refreshes an access token, resolves the websocket access
// point, and starts the session manager.
func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	credentials := &token.QQBotCredentials{AppID: a.cfg.AppID, AppSecret: a.cfg.AppSecret}
	a.tokenSource = token.NewQQBotTokenSource(credentials)
	if err := token.StartRefreshAccessToken(runCtx, a.tokenSource); err != nil {
		return fmt.Errorf("tencent: token refresh: %w", err)
	}

	a.api = botgo.NewOpenAPI(a.cfg.AppID, a.tokenSource).WithTimeout(5 * time.Second)

	intent := event.RegisterHandlers(
		a.handleC2C(ctx),
		a.handleGroupAt(ctx),
	)

	wsInfo, err := a.api.WS(runCtx, nil, "")
	if err != nil {
		return fmt.Errorf("tencent: websocket info: %w", err)
	}

	a.sessionMgr = botgo.NewSessionManager()
	go func() {
		if err := a.sessionMgr.Start(wsInfo, a.tokenSource, &intent); err != nil {
			a.info.Log.ErrorCF("tencent", "websocket session error", map[string]interface{}{"error": err.Error()})
		}
	}()

	a.info.Log.InfoCF("tencent", "connected", map[string]interface{}{"shards": wsInfo.Shards})
	return nil
}

// Shutdown tears down the websocket session.
func (a *Adapter) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

func (a *Adapter) isDuplicate(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.processedIDs[id] {
		return true
	}
	a.processedIDs[id] = true
	if len(a.processedIDs) > 10000 {
		count := 0
		for k := range a.processedIDs {
			if count >= 5000 {
				break
			}
			delete(a.processedIDs, k)
			count++
		}
	}
	return false
}

func (a *Adapter) handleC2C(ctx context.Context) event.C2CMessageEventHandler {
	return func(_ *dto.WSPayload, data *dto.WSC2CMessageData) error {
		if a.isDuplicate(data.ID) || data.Author == nil || data.Author.ID == "" || data.Content == "" {
			return nil
		}
		room := message.Room{ID: data.Author.ID, Metadata: map[string]string{"peer_kind": "direct"}}
		user := message.User{ID: data.Author.ID}
		a.info.Receive(ctx, message.NewText(user, room, data.Content))
		return nil
	}
}

func (a *Adapter) handleGroupAt(ctx context.Context) event.GroupATMessageEventHandler {
	return func(_ *dto.WSPayload, data *dto.WSGroupATMessageData) error {
		if a.isDuplicate(data.ID) || data.Author == nil || data.Author.ID == "" || data.Content == "" {
			return nil
		}
		room := message.Room{ID: data.GroupID, Metadata: map[string]string{"peer_kind": "group"}}
		user := message.User{ID: data.Author.ID}
		a.info.Receive(ctx, message.NewText(user, room, data.Content))
		return nil
	}
}

// Dispatch sends each envelope text as a C2C message. Group replies
// are out of scope for the initial botgo API surface used here, the
// same C2C-only path the teacher's QQChannel.Send takes.
func (a *Adapter) Dispatch(ctx context.Context, env *message.Envelope) error {
	for _, text := range env.Texts {
		if _, err := a.api.PostC2CMessage(ctx, env.Room.ID, &dto.MessageToCreate{Content: text}); err != nil {
			return fmt.Errorf("tencent: send c2c message: %w", err)
		}
	}
	return nil
}
