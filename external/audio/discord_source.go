package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/discord"
)

// DiscordSource captures a voice channel. Speakers are decoded and mixed,
// then down-sampled from 48 kHz stereo to the configured mono rate. A frame
// is produced on every voice tick, silent or not, so source time advances
// with wall-clock time.
type DiscordSource struct {
	client       discord.Client
	guildID      string
	channelID    string
	followUserID string
	sampleRate   int
	newMixer     audio.MixerFactory
}

func NewDiscordSource(client discord.Client, guildID, channelID, followUserID string, sampleRate int, newMixer audio.MixerFactory) (*DiscordSource, error) {
	if sampleRate <= 0 || audio.VoiceSampleRate%sampleRate != 0 {
		return nil, fmt.Errorf("voice capture cannot produce %d Hz from %d Hz", sampleRate, audio.VoiceSampleRate)
	}
	if channelID == "" && followUserID == "" {
		return nil, fmt.Errorf("voice capture needs a channel id or a user to follow")
	}
	return &DiscordSource{
		client:       client,
		guildID:      guildID,
		channelID:    channelID,
		followUserID: followUserID,
		sampleRate:   sampleRate,
		newMixer:     newMixer,
	}, nil
}

func (s *DiscordSource) Key() string {
	if s.channelID != "" {
		return "discord:" + s.guildID + ":" + s.channelID
	}
	return "discord:" + s.guildID + ":follow:" + s.followUserID
}

func (s *DiscordSource) Open(ctx context.Context) (audio.Capture, error) {
	if err := s.client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: discord connect: %v", audio.ErrDeviceUnavailable, err)
	}
	channelID, err := s.resolveChannel()
	if err != nil {
		_ = s.client.Close()
		return nil, err
	}
	voice, err := s.client.JoinVoiceChannel(s.guildID, channelID)
	if err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("%w: join voice channel %s: %v", audio.ErrDeviceUnavailable, channelID, err)
	}
	slog.Info("joined voice channel", "guild_id", s.guildID, "channel_id", channelID)

	mixer := s.newMixer()
	c := &discordCapture{
		client:     s.client,
		voice:      voice,
		mixer:      mixer,
		sampleRate: s.sampleRate,
		factor:     audio.VoiceSampleRate / s.sampleRate,
		buf:        make([]int16, audio.VoiceFrameSamples),
		ticker:     time.NewTicker(audio.VoiceFrameDuration),
		done:       make(chan struct{}),
	}
	go voice.ReceiveAudio(func(userID string, packet []byte) {
		n := c.packets.Add(1)
		if n == 1 || n%500 == 0 {
			slog.Info("received opus packet", "channel_id", channelID, "user_id", userID, "packet_bytes", len(packet), "total_packets", n)
		}
		mixer.WriteOpusPacket(userID, packet)
	})
	return c, nil
}

func (s *DiscordSource) resolveChannel() (string, error) {
	if s.channelID != "" {
		return s.channelID, nil
	}
	channelID, err := s.client.GetUserVoiceChannelID(s.guildID, s.followUserID)
	if err != nil {
		return "", fmt.Errorf("%w: resolve voice channel of user %s: %v", audio.ErrDeviceUnavailable, s.followUserID, err)
	}
	if channelID == "" {
		return "", fmt.Errorf("%w: user %s is not in a voice channel", audio.ErrDeviceUnavailable, s.followUserID)
	}
	return channelID, nil
}

type discordCapture struct {
	client     discord.Client
	voice      discord.VoiceConnection
	mixer      audio.Mixer
	sampleRate int
	factor     int
	buf        []int16
	ticker     *time.Ticker
	done       chan struct{}
	closeOnce  sync.Once
	packets    atomic.Int64
}

func (c *discordCapture) Read(ctx context.Context) (audio.Frame, error) {
	select {
	case <-c.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ticker.C:
	}
	n := c.mixer.ReadMixed(c.buf)
	if n == 0 {
		return make(audio.Frame, audio.VoiceFrameSamples/audio.VoiceChannels/c.factor), nil
	}
	mono := audio.DownmixInterleaved(c.buf[:n], audio.VoiceChannels)
	return audio.Frame(audio.Decimate(mono, c.factor)), nil
}

func (c *discordCapture) SampleRate() int {
	return c.sampleRate
}

func (c *discordCapture) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.ticker.Stop()
		c.mixer.Close()
		if derr := c.voice.Disconnect(); derr != nil {
			slog.Warn("failed to disconnect voice channel", "error", derr)
		}
		err = c.client.Close()
		slog.Info("voice capture closed", "total_packets", c.packets.Load())
	})
	return err
}
