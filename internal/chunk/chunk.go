// Package chunk splits strings that exceed a fixed storage-field width into
// ordered, bounded-length parts and reconstructs them. It has no semantic
// awareness of the value: a payload may be split mid-token.
package chunk

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/avelkov/licbroker/internal/common"
)

// MaxChunkSize is the width of one attribute slot, in characters.
const MaxChunkSize = 255

// Part is one stored chunk. Index is 1-based and gapless within a set.
type Part struct {
	Index int
	Value string
}

// Key returns the attribute key for the chunk at index, baseName + index.
// The bare base name never holds data itself.
func Key(baseName string, index int) string {
	return baseName + strconv.Itoa(index)
}

// Encode slices value into consecutive chunks of at most MaxChunkSize
// characters. The empty string encodes to zero chunks. Slicing is by rune
// offset so a multi-byte character is never split across slots.
func Encode(value string) []Part {
	if value == "" {
		return nil
	}

	runes := []rune(value)
	parts := make([]Part, 0, (len(runes)+MaxChunkSize-1)/MaxChunkSize)
	for i := 0; i < len(runes); i += MaxChunkSize {
		end := i + MaxChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, Part{Index: len(parts) + 1, Value: string(runes[i:end])})
	}
	return parts
}

// Decode reconstructs the original value from suffix-indexed parts.
//
// The indices must be exactly the contiguous range 1..N: a missing middle
// index means the stored data is corrupt, not that the value was short, and
// yields ErrIncompleteData rather than a silently truncated result. Zero
// parts decode to the empty string.
func Decode(parts map[int]string) (string, error) {
	if len(parts) == 0 {
		return "", nil
	}

	indices := make([]int, 0, len(parts))
	for i := range parts {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	var b strings.Builder
	for pos, idx := range indices {
		if idx != pos+1 {
			return "", fmt.Errorf("%w: chunk sequence has a gap at index %d", common.ErrIncompleteData, pos+1)
		}
		b.WriteString(parts[idx])
	}
	return b.String(), nil
}
