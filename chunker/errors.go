package chunker

import "fmt"

// ConfigError is raised at construction time: an unknown algorithm
// name, a malformed failing-chunker map, or a size parameter that
// violates a chunker's own invariants.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("chunker: config error (%s): %s", e.Field, e.Msg)
}

// ConsistencyError indicates the content-defined chunker reached EOF
// with bytesRead != bytesYielded — a bug in the chunker, not a caller
// mistake, hence Next panics with this rather than returning it.
type ConsistencyError struct {
	BytesRead    int64
	BytesYielded int64
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("chunker: internal consistency error: bytesRead=%d bytesYielded=%d", e.BytesRead, e.BytesYielded)
}
