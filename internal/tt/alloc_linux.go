//go:build linux

package tt

import (
	"log"
	"unsafe"

	"golang.org/x/sys/unix"
)

// allocateClusters maps n clusters of backing storage, preferring
// huge-page-backed anonymous memory (2 MiB pages on Linux), falling back
// to a plain anonymous mmap, and finally to a Go-runtime-backed slice.
// Failure to get huge pages is logged with log.Printf and is not fatal; failure
// to get any memory at all is fatal, matching the teacher's use of the
// standard log package on unrecoverable allocation paths (e.g.
// internal/tablebase's syzygy file mapping).
func allocateClusters(n int) ([]cluster, []byte) {
	size := n * int(unsafe.Sizeof(cluster{}))
	if size == 0 {
		return nil, nil
	}

	if mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB); err == nil {
		return clustersFromBytes(mem, n), mem
	}

	log.Printf("tt: huge pages unavailable, falling back to plain mmap")
	if mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS); err == nil {
		return clustersFromBytes(mem, n), mem
	}

	log.Printf("tt: anonymous mmap unavailable, falling back to Go-managed memory")
	return make([]cluster, n), nil
}

func releaseClusters(mem []byte) {
	if mem != nil {
		_ = unix.Munmap(mem)
	}
}

func clustersFromBytes(mem []byte, n int) []cluster {
	return unsafe.Slice((*cluster)(unsafe.Pointer(&mem[0])), n)
}
