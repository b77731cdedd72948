package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Log writes every event of ch to log until ch is closed or ctx is done.
func Log(ctx context.Context, log zerolog.Logger, ch <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			ev := log.Info()
			switch e.Level {
			case LevelWarning:
				ev = log.Warn()
			case LevelError:
				ev = log.Error()
			}
			ev.Time("at", e.Time).Str("kind", string(e.Kind)).Str("instrument", e.Instrument).Msg(e.Message)
		}
	}
}
