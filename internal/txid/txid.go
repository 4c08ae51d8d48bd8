// Package txid issues transaction identifiers shared by every EVSE of a
// station.
package txid

import (
	"strconv"
	"sync/atomic"
)

type Generator struct {
	last atomic.Int64
}

// New returns a generator whose first identifier is start+1.
func New(start int64) *Generator {
	g := &Generator{}
	g.last.Store(start)
	return g
}

func (g *Generator) Next() string {
	return strconv.FormatInt(g.last.Add(1), 10)
}
