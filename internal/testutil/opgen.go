package testutil

import "fmt"

// OpKind names a ring operation.
type OpKind uint8

const (
	// OpStartWriter starts (or restarts) the writer over the region.
	OpStartWriter OpKind = iota
	// OpWrite puts Msg.
	OpWrite
	// OpRead reads once with reader Reader.
	OpRead
)

// Op is one generated ring operation.
type Op struct {
	Kind   OpKind
	Msg    []byte
	Reader int
}

func (o Op) String() string {
	switch o.Kind {
	case OpStartWriter:
		return "StartWriter"
	case OpWrite:
		return fmt.Sprintf("Write(%q)", o.Msg)
	default:
		return fmt.Sprintf("Read(reader=%d)", o.Reader)
	}
}

// OpGenConfig configures the operation generator. Rates are percentages
// (0-100); whatever remains after RestartRate and WriteRate is reads.
type OpGenConfig struct {
	// RestartRate is the percentage of ops that restart the writer.
	RestartRate int

	// WriteRate is the percentage of ops that write a message.
	WriteRate int

	// OversizeRate is the percentage of writes longer than blockSize-1.
	OversizeRate int

	// TerminatorRate is the percentage of writes containing a newline.
	TerminatorRate int
}

// DefaultOpGenConfig returns a balanced configuration.
func DefaultOpGenConfig() OpGenConfig {
	return OpGenConfig{
		RestartRate:    3,
		WriteRate:      45,
		OversizeRate:   8,
		TerminatorRate: 4,
	}
}

// OpGenerator generates deterministic operations from a byte stream.
//
// The first op is always [OpStartWriter], so writes have a writer.
type OpGenerator struct {
	stream    *ByteStream
	config    OpGenConfig
	blockSize int
	readers   int
	started   bool
}

// NewOpGenerator creates a generator for a ring with the given block size
// and number of readers.
func NewOpGenerator(fuzzBytes []byte, blockSize, readers int, cfg *OpGenConfig) *OpGenerator {
	return &OpGenerator{
		stream:    NewByteStream(fuzzBytes),
		config:    *cfg,
		blockSize: blockSize,
		readers:   readers,
	}
}

// HasMore reports whether more operations can be generated.
func (g *OpGenerator) HasMore() bool {
	return g.stream.HasMore()
}

// NextOp generates the next operation.
func (g *OpGenerator) NextOp() Op {
	if !g.started {
		g.started = true

		return Op{Kind: OpStartWriter}
	}

	choice := g.stream.NextInt(100)

	cumulative := g.config.RestartRate
	if choice < cumulative {
		return Op{Kind: OpStartWriter}
	}

	cumulative += g.config.WriteRate
	if choice < cumulative {
		return Op{Kind: OpWrite, Msg: g.genMessage()}
	}

	return Op{Kind: OpRead, Reader: g.stream.NextInt(g.readers)}
}

func (g *OpGenerator) genMessage() []byte {
	maxLen := g.blockSize - 1

	n := g.stream.NextInt(maxLen + 1)
	if g.stream.NextInt(100) < g.config.OversizeRate {
		n = maxLen + 1 + g.stream.NextInt(4)
	}

	msg := g.stream.NextPayload(n)

	if n > 0 && g.stream.NextInt(100) < g.config.TerminatorRate {
		msg[g.stream.NextInt(n)] = '\n'
	}

	return msg
}
