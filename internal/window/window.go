// Package window builds the buffer-expanded context windows that are embedded
// in place of bare units.
package window

import (
	"errors"
	"strings"

	"github.com/dshills/semchunk/pkg/types"
)

// DefaultBufferSize is the number of neighbours taken on each side of a unit
const DefaultBufferSize = 1

// ErrNegativeBuffer is returned for a buffer size below zero
var ErrNegativeBuffer = errors.New("buffer size must be non-negative")

// Build returns a copy of units with ContextWindow set on every element.
//
// The window for unit i is the content of units [i-bufferSize, i-1], each
// followed by a space, then unit i followed by a space, then the content of
// units [i+1, i+bufferSize] written back to back, trimmed. Trailing
// neighbours are not separated from each other.
func Build(units []types.TextUnit, bufferSize int) ([]types.TextUnit, error) {
	if bufferSize < 0 {
		return nil, ErrNegativeBuffer
	}

	out := types.CloneUnits(units)
	for i := range out {
		w := windowAt(units, i, bufferSize)
		out[i].ContextWindow = &w
	}
	return out, nil
}

func windowAt(units []types.TextUnit, i, bufferSize int) string {
	var b strings.Builder

	for j := max(0, i-bufferSize); j < i; j++ {
		b.WriteString(units[j].Content)
		b.WriteByte(' ')
	}

	b.WriteString(units[i].Content)
	b.WriteByte(' ')

	last := min(len(units)-1, i+bufferSize)
	for j := i + 1; j <= last; j++ {
		b.WriteString(units[j].Content)
	}

	return strings.TrimSpace(b.String())
}

// Texts returns the context windows of all units that have one, in order,
// together with the positions they came from.
func Texts(units []types.TextUnit) ([]string, []int) {
	texts := make([]string, 0, len(units))
	positions := make([]int, 0, len(units))
	for i, u := range units {
		if !u.HasContextWindow() {
			continue
		}
		texts = append(texts, *u.ContextWindow)
		positions = append(positions, i)
	}
	return texts, positions
}
