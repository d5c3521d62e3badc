package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/kikitori/internal/discord"
)

type Client struct {
	session *discordgo.Session
	token   string
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token: token,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	s.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates)
	s.State.TrackVoice = true

	opened := make(chan error, 1)
	go func() { opened <- s.Open() }()
	select {
	case err := <-opened:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		go func() {
			if err := <-opened; err == nil {
				_ = s.Close()
			}
		}()
		return ctx.Err()
	}
	c.session = s
	slog.Info("discord gateway connected")
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) JoinVoiceChannel(guildID, channelID string) (discordpkg.VoiceConnection, error) {
	if c.session == nil {
		return nil, fmt.Errorf("discord session is not initialized")
	}
	// Muted, not deafened: the bot only listens.
	vc, err := c.session.ChannelVoiceJoin(guildID, channelID, true, false)
	if err != nil {
		return nil, err
	}
	return &voiceConnectionImpl{vc: vc}, nil
}

func (c *Client) GetUserVoiceChannelID(guildID, userID string) (string, error) {
	if c.session == nil {
		return "", nil
	}
	if c.session.State != nil {
		vs, err := c.session.State.VoiceState(guildID, userID)
		if err == nil && vs != nil {
			return vs.ChannelID, nil
		}
	}

	// Cache may be cold right after startup; ask the REST API directly.
	vs, err := c.session.UserVoiceState(guildID, userID)
	if err != nil {
		if isRESTNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if vs == nil {
		return "", nil
	}
	return vs.ChannelID, nil
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}

type voiceConnectionImpl struct {
	vc *discordgo.VoiceConnection
}

func (v *voiceConnectionImpl) Disconnect() error {
	return v.vc.Disconnect()
}

func (v *voiceConnectionImpl) ReceiveAudio(callback func(userID string, opusPacket []byte)) {
	if v.vc.OpusRecv == nil {
		return
	}
	ssrcToUser := make(map[uint32]string)
	var mu sync.RWMutex
	v.vc.AddHandler(func(vc *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
		mu.Lock()
		if vs.Speaking {
			ssrcToUser[uint32(vs.SSRC)] = vs.UserID
		}
		mu.Unlock()
	})
	for p := range v.vc.OpusRecv {
		if p == nil || len(p.Opus) == 0 {
			continue
		}
		mu.RLock()
		userID := ssrcToUser[p.SSRC]
		mu.RUnlock()
		if userID == "" {
			userID = strconv.FormatUint(uint64(p.SSRC), 10)
		}
		callback(userID, p.Opus)
	}
}
