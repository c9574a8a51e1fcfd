package codec

import "runtime"

// DefaultMaxDepth bounds type nesting when Options.MaxDepth is zero.
const DefaultMaxDepth = 64

// Direction names the codec pass reported to an Observer.
type Direction string

const (
	DirectionDecode Direction = "decode"
	DirectionEncode Direction = "encode"
)

// Observer receives statistics at the end of each table and container.
// Implementations must be safe for concurrent use; tables decode in
// parallel.
type Observer interface {
	ObserveTable(dir Direction, table string, entries int)
	ObserveContainer(dir Direction, size, poolSize int)
}

// Options tunes a Codec. The zero value is ready to use.
type Options struct {
	// Observer, when set, is told about every table and container.
	Observer Observer

	// MaxDepth limits nesting of pointers, arrays, repeats, structs and
	// references. Zero means DefaultMaxDepth.
	MaxDepth int

	// Jobs limits how many tables decode concurrently. Zero means
	// GOMAXPROCS.
	Jobs int
}

func (o Options) maxDepth() int {
	if o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return DefaultMaxDepth
}

func (o Options) jobs() int {
	if o.Jobs > 0 {
		return o.Jobs
	}
	return runtime.GOMAXPROCS(0)
}
