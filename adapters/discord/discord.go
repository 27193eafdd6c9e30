// Package discord implements D2, wrapping bwmarrin/discordgo. Grounded
// on the teacher's pkg/channels/discord.go DiscordChannel: same
// AddHandler/Open lifecycle, the same self-message and mention-only
// filtering, and the same typing-indicator loop, generalized from the
// teacher's flat bus.OutboundMessage into this repo's Envelope model.
package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/config"
	"github.com/weavebot/weavebot/pkg/message"
)

// Name is the factory-registration name.
const Name = "discord"

const sendTimeout = 10 * time.Second

// Adapter wraps a discordgo.Session as a MessageAdapter.
type Adapter struct {
	info      adapter.BotInfo
	cfg       config.DiscordConfig
	session   *discordgo.Session
	botUserID string

	typingMu   sync.Mutex
	typingStop map[string]chan struct{}
}

// New is the adapter.Factory registered under Name.
func New(info adapter.BotInfo) (adapter.Adapter, error) {
	cfg := info.Config.Discord
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord: token is required")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	return &Adapter{
		info:       info,
		cfg:        cfg,
		session:    session,
		typingStop: make(map[string]chan struct{}),
	}, nil
}

// Name satisfies adapter.Adapter.
func (a *Adapter) Name() string { return Name }

// Start opens the gateway session and registers the message handler.
func (a *Adapter) Start(ctx context.Context) error {
	botUser, err := a.session.User("@me")
	if err != nil {
		return fmt.Errorf("discord: get bot user: %w", err)
	}
	a.botUserID = botUser.ID

	a.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(ctx, s, m)
	})

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	a.info.Log.InfoCF("discord", "connected", map[string]interface{}{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})
	return nil
}

// Shutdown closes the gateway session and stops all typing loops.
func (a *Adapter) Shutdown(ctx context.Context) error {
	a.typingMu.Lock()
	for id, stop := range a.typingStop {
		close(stop)
		delete(a.typingStop, id)
	}
	a.typingMu.Unlock()
	return a.session.Close()
}

func (a *Adapter) handleMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil || m.Author.ID == a.botUserID {
		return
	}

	if a.cfg.MentionOnly && m.GuildID != "" {
		mentioned := false
		for _, mention := range m.Mentions {
			if mention.ID == a.botUserID {
				mentioned = true
				break
			}
		}
		if !mentioned {
			return
		}
	}

	content := strings.TrimSpace(a.stripMention(m.Content))
	if content == "" {
		return
	}

	a.startTyping(ctx, m.ChannelID)

	room := message.Room{ID: m.ChannelID, Metadata: map[string]string{"guild_id": m.GuildID}}
	user := message.User{ID: m.Author.ID, Name: m.Author.Username}
	msg := message.NewText(user, room, content)
	a.info.Receive(ctx, msg)
}

func (a *Adapter) stripMention(text string) string {
	if a.botUserID == "" {
		return text
	}
	text = strings.ReplaceAll(text, fmt.Sprintf("<@%s>", a.botUserID), "")
	text = strings.ReplaceAll(text, fmt.Sprintf("<@!%s>", a.botUserID), "")
	return text
}

func (a *Adapter) startTyping(ctx context.Context, channelID string) {
	a.typingMu.Lock()
	if stop, ok := a.typingStop[channelID]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	a.typingStop[channelID] = stop
	a.typingMu.Unlock()

	go func() {
		_ = a.session.ChannelTyping(channelID)
		ticker := time.NewTicker(8 * time.Second)
		defer ticker.Stop()
		timeout := time.After(5 * time.Minute)
		for {
			select {
			case <-stop:
				return
			case <-timeout:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = a.session.ChannelTyping(channelID)
			}
		}
	}()
}

func (a *Adapter) stopTyping(channelID string) {
	a.typingMu.Lock()
	defer a.typingMu.Unlock()
	if stop, ok := a.typingStop[channelID]; ok {
		close(stop)
		delete(a.typingStop, channelID)
	}
}

// Dispatch sends every envelope text as one Discord message.
func (a *Adapter) Dispatch(ctx context.Context, env *message.Envelope) error {
	a.stopTyping(env.Room.ID)

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	for _, text := range env.Texts {
		done := make(chan error, 1)
		go func(t string) {
			_, err := a.session.ChannelMessageSend(env.Room.ID, t)
			done <- err
		}(text)
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("discord: send: %w", err)
			}
		case <-sendCtx.Done():
			return fmt.Errorf("discord: send timeout: %w", sendCtx.Err())
		}
	}
	return nil
}
