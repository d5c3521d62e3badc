package discord

import "context"

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	JoinVoiceChannel(guildID, channelID string) (VoiceConnection, error)
	GetUserVoiceChannelID(guildID, userID string) (string, error)
}

type VoiceConnection interface {
	Disconnect() error
	// ReceiveAudio delivers opus packets per speaking user until the
	// connection is closed.
	ReceiveAudio(callback func(userID string, opusPacket []byte))
}
