package output

import (
	"os"

	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/output"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (output.Sink, error) {
		c := do.MustInvoke[*config.Config](i)
		format, err := output.ParseFormat(c.OutputFormat)
		if err != nil {
			return nil, err
		}
		sinks := output.Fanout{output.NewWriter(os.Stdout, format, c.OutputSuppressEmpty)}
		if c.TranscriptWebhookURL != "" {
			sinks = append(sinks, NewWebhookSink(c.TranscriptWebhookURL, c.OutputSuppressEmpty))
		}
		if c.NATSURL != "" {
			natsSink, err := NewNATSSink(c.NATSURL, c.NATSSubject)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, natsSink)
		}
		return sinks, nil
	})
}
