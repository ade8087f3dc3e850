package store

import "fmt"

// Backend names a sink implementation.
type Backend string

const (
	BackendBleve Backend = "bleve"
	BackendJSONL Backend = "jsonl"
)

// Open creates the sink for backend at path.
func Open(backend, path string) (Sink, error) {
	switch Backend(backend) {
	case BackendBleve, "":
		return NewBleveIndex(path)
	case BackendJSONL:
		return NewJSONLSink(path)
	default:
		return nil, fmt.Errorf("unknown output backend: %s (valid options: bleve, jsonl)", backend)
	}
}
