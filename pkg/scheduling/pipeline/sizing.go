package pipeline

import "runtime"

// Sizing is a pair of queue capacity and slot count.
type Sizing struct {
	MaxPages   int
	MaxThreads int
}

// SizingFunc supplies default sizes for a pipeline.
type SizingFunc func() Sizing

// reservedCPUs are left to the scheduling goroutine and the data source.
const reservedCPUs = 2

// pagesPerThread is the default queue depth per worker slot.
const pagesPerThread = 10

// HardwareSizing derives sizes from runtime.NumCPU: two CPUs are held back
// when more than two are available, and the queue holds ten pages per slot.
func HardwareSizing() Sizing {
	return sizingFor(runtime.NumCPU())
}

func sizingFor(cpus int) Sizing {
	threads := 1
	if cpus > reservedCPUs {
		threads = cpus - reservedCPUs
	}
	return Sizing{
		MaxPages:   threads * pagesPerThread,
		MaxThreads: threads,
	}
}

// FixedSizing returns a SizingFunc that always yields the given sizes.
func FixedSizing(maxPages, maxThreads int) SizingFunc {
	return func() Sizing {
		return Sizing{MaxPages: maxPages, MaxThreads: maxThreads}
	}
}
