package tt

import (
	"context"
	"log"
	"math/bits"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/metric"

	"github.com/lucaspeterson/chesscore/internal/board"
	"github.com/lucaspeterson/chesscore/internal/threadpool"
)

// Table is the shared, lock-free transposition table. All operations
// except Resize and Clear are wait-free; every load and store on the
// backing clusters is a lock-free sync/atomic operation, so concurrent probers and
// writers never block each other and torn (tag, data) reads are
// expected and tolerated by callers.
type Table struct {
	clusters     []cluster
	backingMem   []byte
	clusterCount uint64
	generation8  atomic.Uint32 // low 8 bits significant, wraps mod 256

	pool *threadpool.Pool

	probeCount metric.Int64Counter
	hitCount   metric.Int64Counter
}

// Option configures optional ambient behavior of a Table.
type Option func(*Table)

// WithMeter attaches an OpenTelemetry meter the table records probe and
// hit counters to. Passing a nil meter (the default) disables
// instrumentation entirely; no metric call is ever made on the hot path
// when it is nil.
func WithMeter(meter metric.Meter) Option {
	return func(t *Table) {
		if meter == nil {
			return
		}
		var err error
		t.probeCount, err = meter.Int64Counter("tt.probes")
		if err != nil {
			log.Printf("tt: failed to create probes counter: %v", err)
		}
		t.hitCount, err = meter.Int64Counter("tt.hits")
		if err != nil {
			log.Printf("tt: failed to create hits counter: %v", err)
		}
	}
}

// New creates an empty table. Call Resize before use.
func New(threads int, opts ...Option) *Table {
	t := &Table{pool: threadpool.New(threads)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Resize frees any prior storage and allocates
// floor(mbSize*1MiB/sizeof(Cluster)) clusters, then parallel-clears them.
// Allocation failure is fatal and logged, matching spec.md's failure
// model for TT resize.
func (t *Table) Resize(mbSize int) {
	releaseClusters(t.backingMem)

	const bytesPerMB = 1024 * 1024
	n := (mbSize * bytesPerMB) / clusterByteSize
	if n < 1 {
		n = 1
	}

	clusters, mem := allocateClusters(n)
	if clusters == nil {
		log.Fatalf("tt: failed to allocate %d MiB transposition table", mbSize)
	}

	t.clusters = clusters
	t.backingMem = mem
	t.clusterCount = uint64(n)
	t.generation8.Store(0)

	t.Clear()
}

// clusterByteSize is sizeof(cluster) used for the MiB-to-cluster-count
// conversion; kept in sync with cluster's padded layout in cluster.go.
const clusterByteSize = 64

// Clear zero-fills every cluster, partitioning the work evenly across
// the table's thread pool, and resets the generation counter to 0.
func (t *Table) Clear() {
	n := len(t.clusters)
	if n == 0 {
		return
	}
	t.pool.ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			c := &t.clusters[i]
			for j := range c.entries {
				c.entries[j].tag32.Store(0)
				c.entries[j].data64.Store(0)
			}
		}
	})
	t.generation8.Store(0)
}

// NewSearch must be called before each new root search. It atomically
// advances the generation counter by GenerationDelta, wrapping mod 256.
func (t *Table) NewSearch() {
	for {
		old := t.generation8.Load()
		next := (old + GenerationDelta) & 0xFF
		if t.generation8.CompareAndSwap(old, next) {
			return
		}
	}
}

// clusterIndex maps a 64-bit hash key onto a cluster index, using a
// 128-bit multiply-high instead of a modulo so the mapping stays uniform
// without a division, exactly as spec.md's `(key * clusterCount) >> 64`.
func (t *Table) clusterIndex(key uint64) uint64 {
	hi, _ := bits.Mul64(key, t.clusterCount)
	return hi
}

// Writer holds a reference to one cluster slot and publishes new entries
// into it. It is only valid for the lifetime of the Table it came from.
type Writer struct {
	slot *entry
	tag  uint16
	gen  func() uint8
}

// Probe looks up key's cluster and scans its three slots for a matching
// tag. On a hit it returns the unpacked data and a Writer bound to that
// slot; on a miss it selects a replacement slot by the least
// (depth8 - relative_age) and returns an empty Data (an empty slot's
// depth8 of 0 with DepthEntryOffset applied: Depth is DepthEntryOffset) and a Writer
// bound to the replacement slot.
func (t *Table) Probe(key uint64) (found bool, data Data, w Writer) {
	if t.probeCount != nil {
		t.probeCount.Add(context.Background(), 1)
	}

	idx := t.clusterIndex(key)
	cl := &t.clusters[idx]
	tag16 := uint16(key)
	currentGen := uint8(t.generation8.Load())

	for i := range cl.entries {
		e := &cl.entries[i]
		if uint16(e.tag32.Load()) == tag16 {
			word := e.data64.Load()
			depth8, genBound8, move, value, eval := unpackData(word)
			if depth8 != 0 {
				if t.hitCount != nil {
					t.hitCount.Add(context.Background(), 1)
				}
				return true, Data{
					Move:        move,
					Value:       value,
					Eval:        eval,
					Depth:       int8(int(depth8) + DepthEntryOffset),
					Bound:       boundOf(genBound8),
					IsPV:        isPVOf(genBound8),
					generation8: currentGen,
				}, Writer{slot: e, tag: tag16, gen: t.currentGeneration}
			}
		}
	}

	replace := &cl.entries[0]
	replaceScore := replacementScore(replace, currentGen)
	for i := 1; i < clusterSize; i++ {
		e := &cl.entries[i]
		score := replacementScore(e, currentGen)
		if score < replaceScore {
			replace = e
			replaceScore = score
		}
	}

	return false, Data{Depth: DepthEntryOffset, generation8: currentGen}, Writer{slot: replace, tag: tag16, gen: t.currentGeneration}
}

func (t *Table) currentGeneration() uint8 {
	return uint8(t.generation8.Load())
}

// replacementScore is depth8 - relative_age (as an int so it can go
// negative); the slot with the smallest score is the least valuable and
// is preferred for eviction.
func replacementScore(e *entry, currentGen uint8) int {
	depth8, genBound8, _, _, _ := unpackData(e.data64.Load())
	return int(depth8) - int(relativeAge(genBound8, currentGen))
}

// Prefetch issues a soft hint that key's cluster will be accessed soon.
// Go has no portable prefetch intrinsic reachable without assembly, so
// this performs a relaxed load of the cluster's first tag word, enough
// to pull the cache line into L1 on most platforms without the cost of
// an actual probe.
func (t *Table) Prefetch(key uint64) {
	idx := t.clusterIndex(key)
	_ = t.clusters[idx].entries[0].tag32.Load()
}

// HashFull samples the first 1000 clusters and returns, in parts per
// thousand, how many of their slots are occupied (depth8 != 0) and
// written within maxAge generations of the current one.
func (t *Table) HashFull(maxAge int) int {
	sampleSize := 1000
	if uint64(sampleSize) > t.clusterCount {
		sampleSize = int(t.clusterCount)
	}
	if sampleSize == 0 {
		return 0
	}

	currentGen := t.currentGeneration()
	maxRelativeAge := uint8(maxAge * GenerationDelta)
	used := 0
	for i := 0; i < sampleSize; i++ {
		for s := 0; s < clusterSize; s++ {
			e := &t.clusters[i].entries[s]
			depth8, genBound8, _, _, _ := unpackData(e.data64.Load())
			if depth8 != 0 && relativeAge(genBound8, currentGen) <= maxRelativeAge {
				used++
			}
		}
	}
	return (used * 1000) / (sampleSize * clusterSize)
}

// ChecksumClusters hashes the raw cluster bytes with xxhash, used by
// tests to assert Clear actually zeroed storage without walking every
// slot field-by-field.
func (t *Table) ChecksumClusters() uint64 {
	h := xxhash.New()
	for i := range t.clusters {
		cl := &t.clusters[i]
		for s := range cl.entries {
			var buf [12]byte
			tag := cl.entries[s].tag32.Load()
			data := cl.entries[s].data64.Load()
			buf[0] = byte(tag)
			buf[1] = byte(tag >> 8)
			buf[2] = byte(tag >> 16)
			buf[3] = byte(tag >> 24)
			for b := 0; b < 8; b++ {
				buf[4+b] = byte(data >> (8 * b))
			}
			_, _ = h.Write(buf[:])
		}
	}
	return h.Sum64()
}

// Write publishes a new entry into the slot this Writer holds, following
// spec.md's five-step write decision procedure exactly: preserve the
// existing move when the new one is null and the tag still matches;
// then overwrite when the bound is exact, the tag mismatches (different
// position), the new entry is "deeper enough", or the current entry is
// stale from a prior search; when none of these hold but the move
// differs from the stored one, only the move is replaced in the existing
// entry.
func (w Writer) Write(value, eval int16, depth int8, bound Bound, move board.Move, isPV bool) {
	oldWord := w.slot.data64.Load()
	oldDepth8, oldGenBound8, oldMove, oldValue, oldEval := unpackData(oldWord)
	oldTag := uint16(w.slot.tag32.Load())

	if move == board.NoMove && oldTag == w.tag {
		move = oldMove
	}

	newDepth8 := uint8(int(depth) - DepthEntryOffset)

	shouldWrite := bound == BoundExact ||
		oldTag != w.tag ||
		int(newDepth8)+2*boolToInt(isPV) > int(oldDepth8)-4 ||
		relativeAge(oldGenBound8, w.gen()) != 0

	if !shouldWrite {
		if move != oldMove {
			w.slot.data64.Store(packData(oldDepth8, oldGenBound8, move, oldValue, oldEval))
		}
		return
	}

	if newDepth8 == 0 {
		panic("tt: depth out of representable range")
	}

	gb := genBound(generationOf8(w.gen()), isPV, bound)
	w.slot.data64.Store(packData(newDepth8, gb, move, value, eval))
	w.slot.tag32.Store(uint32(w.tag))
}

func generationOf8(gen8 uint8) uint8 { return gen8 & GenerationMask }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
