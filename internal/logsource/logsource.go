package logsource

import "github.com/devmkr/Vislog/internal/model"

// LogSource is a unified interface for all CLEF inputs (TCP, stdin).
// Every envelope on Lines is one complete record.
type LogSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of records
	Stop()                              // graceful shutdown
	Name() string                       // "tcp", "stdin"
}
