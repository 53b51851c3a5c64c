package notify

import "github.com/rs/zerolog"

// LogSink writes events to a zerolog logger, errors at error level.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) LogSink { return LogSink{log: log} }

func (s LogSink) Emit(e Event) {
	evt := s.log.Info()
	if e.Kind == KindError {
		evt = s.log.Error()
	}
	evt = evt.Time("at", e.Time).Str("kind", string(e.Kind)).Str("session_id", e.SessionID)
	if e.Instrument != "" {
		evt = evt.Str("instrument", e.Instrument)
	}
	for k, v := range e.Fields {
		evt = evt.Float64(k, v)
	}
	evt.Msg(e.Message)
}
