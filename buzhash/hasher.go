package buzhash

// Hasher holds a derived 256-entry table for one seed and computes
// buzhash sums against it. A Hasher carries no window state of its
// own — callers own the sliding window (the content-defined chunker
// keeps its window inside its chunking buffer) and pass the bytes to
// remove/add on each Update call.
type Hasher struct {
	table [256]uint32
}

// New derives a Hasher's table from seed. Table derivation is O(256);
// reuse one Hasher across an entire stream rather than constructing a
// fresh one per chunk.
func New(seed uint32) *Hasher {
	return &Hasher{table: DeriveTable(seed)}
}

// Sum computes the full hash over window, per the package doc's
// formula. window must have length >= 1; a window of length 1
// degenerates to table[window[0]].
func (h *Hasher) Sum(window []byte) uint32 {
	return sum(&h.table, window)
}

// Update advances sum by one byte: remove leaves the window, add
// enters it, windowLen is the (fixed) window width W.
func (h *Hasher) Update(sum uint32, remove, add byte, windowLen int) uint32 {
	return update(&h.table, sum, remove, add, windowLen)
}

func sum(table *[256]uint32, window []byte) uint32 {
	w := len(window)
	var s uint32
	for i := 0; i < w-1; i++ {
		s ^= RotateLeft32(table[window[i]], uint(w-1-i))
	}
	s ^= table[window[w-1]]
	return s
}

func update(table *[256]uint32, sum uint32, remove, add byte, windowLen int) uint32 {
	return RotateLeft32(sum, 1) ^ RotateLeft32(table[remove], uint(windowLen)) ^ table[add]
}

// Buzhash computes the full hash over data under the table derived
// from seed, for callers that want to fingerprint a fixed-size block
// without constructing a Hasher — e.g. a store verifying a chunk's
// content hash independently of the chunker that produced it.
func Buzhash(data []byte, seed uint32) uint32 {
	table := DeriveTable(seed)
	return sum(&table, data)
}

// Update is the free-function form of Hasher.Update, deriving its
// table fresh from seed. Prefer a Hasher for repeated calls against
// the same seed.
func Update(sumv uint32, remove, add byte, windowLen int, seed uint32) uint32 {
	table := DeriveTable(seed)
	return update(&table, sumv, remove, add, windowLen)
}
