package audio

import (
	"fmt"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/discord"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.ProvideValue(injector, audio.MixerFactory(func() audio.Mixer {
		return NewOpusMixer()
	}))
	do.Provide(injector, func(i do.Injector) (audio.Source, error) {
		cfg := do.MustInvoke[*config.Config](i)
		var (
			src audio.Source
			err error
		)
		switch cfg.AudioSource {
		case config.AudioSourceMic:
			src, err = NewFFmpegSource(cfg.AudioCaptureCommand, cfg.AudioInputDevice, cfg.AudioSampleRate, cfg.AudioFrameDuration, cfg.AudioDeviceProbeTimeout)
		case config.AudioSourceFile:
			src, err = NewWAVSource(cfg.AudioFilePath, cfg.AudioSampleRate, cfg.AudioFrameDuration)
		case config.AudioSourceDiscord:
			dc := do.MustInvoke[discord.Client](i)
			newMixer := do.MustInvoke[audio.MixerFactory](i)
			src, err = NewDiscordSource(dc, cfg.DiscordGuildID, cfg.DiscordVCID, cfg.DiscordFollowUserID, cfg.AudioSampleRate, newMixer)
		default:
			err = fmt.Errorf("unknown audio source %q", cfg.AudioSource)
		}
		if err != nil {
			return nil, err
		}
		return src, nil
	})
}
