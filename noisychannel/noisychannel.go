// Package noisychannel is the black-box collaborator spec.md §1
// describes: something that may drop, duplicate, or corrupt a
// datagram before it reaches the wire. The physical layer calls it but
// does not own it, so tests can substitute a deterministic or
// pass-through channel without touching physical.UDPSimulated.
package noisychannel

import "math/rand"

// Channel decides what happens to an outbound datagram before it is
// written to the underlying socket.
type Channel interface {
	// Apply returns the (possibly mutated) set of datagrams that
	// should actually be written — zero datagrams means dropped, two
	// or more means duplicated.
	Apply(data []byte) [][]byte
}

// Passthrough never drops, duplicates, or corrupts anything. This is
// the production default — real loss/duplication/corruption comes
// from the actual network, not from an injected simulator.
type Passthrough struct{}

// Apply implements Channel.
func (Passthrough) Apply(data []byte) [][]byte { return [][]byte{data} }

// Lossy drops, duplicates, and corrupts with independent, configurable
// probabilities, for exercising the transport's retransmission and
// deduplication logic under controlled conditions (spec.md §8's
// end-to-end scenarios). Rand must be set (via NewLossy, or by hand
// before the first Apply) and is drawn from on every call — unlike a
// fresh generator constructed per call, the same *rand.Rand carries
// its state forward so repeated calls actually vary instead of
// replaying the same first draw every time.
type Lossy struct {
	DropProbability      float64
	DuplicateProbability float64
	CorruptProbability   float64
	Rand                 *rand.Rand
}

// NewLossy builds a Lossy channel with its own seeded generator, so
// separate instances (e.g. one per direction in a test) don't share
// state.
func NewLossy(dropProbability, duplicateProbability, corruptProbability float64, seed int64) *Lossy {
	return &Lossy{
		DropProbability:      dropProbability,
		DuplicateProbability: duplicateProbability,
		CorruptProbability:   corruptProbability,
		Rand:                 rand.New(rand.NewSource(seed)),
	}
}

// Apply implements Channel. l must have a non-nil Rand (NewLossy sets
// one); a zero-value Lossy is not itself usable.
func (l *Lossy) Apply(data []byte) [][]byte {
	r := l.Rand
	if r.Float64() < l.DropProbability {
		return nil
	}

	out := append([]byte(nil), data...)
	if r.Float64() < l.CorruptProbability && len(out) > 0 {
		out[len(out)-1] ^= 0xFF
	}

	result := [][]byte{out}
	if r.Float64() < l.DuplicateProbability {
		result = append(result, append([]byte(nil), out...))
	}
	return result
}
