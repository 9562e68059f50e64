package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"unsafe"

	"github.com/google/subcommands"
	"github.com/ngrange/nalloc/pkg/nalloc"
	"golang.org/x/sync/errgroup"
)

// runCmd drives blocks*workers pseudorandom allocate/release/reallocate
// sequences against a single shared Allocator, exercising spec.md §5's
// single-mutex concurrency model and the quantified properties of §8.
type runCmd struct {
	blocks  int
	workers int
	seed    int64
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "drive a randomized concurrent allocate/release/reallocate workload" }
func (*runCmd) Usage() string {
	return "run [-blocks N] [-workers N] [-seed N]:\n" +
		"  allocate/release/reallocate a pseudorandom workload across concurrent workers, then audit invariants.\n"
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.blocks, "blocks", 256, "blocks allocated per worker")
	f.IntVar(&c.workers, "workers", 4, "number of concurrent workers")
	f.Int64Var(&c.seed, "seed", 1, "PRNG seed; each worker derives its own stream from it")
}

func (c *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := nalloc.New(nil)

	g, _ := errgroup.WithContext(ctx)
	for w := 0; w < c.workers; w++ {
		w := w
		g.Go(func() error {
			return workload(a, c.blocks, c.seed+int64(w))
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if violations := a.Audit(); len(violations) != 0 {
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, v)
		}
		return subcommands.ExitFailure
	}
	if err := a.Dump(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// live is one outstanding allocation a workload still owns.
type live struct {
	ptr  unsafe.Pointer
	size uint64
}

// workload allocates n pseudorandom-sized blocks in [0, 64*1024), then
// repeatedly picks a live block at random and either releases it or
// reallocates it to a new pseudorandom size, until every block has been
// released exactly once.
func workload(a *nalloc.Allocator, n int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	var blocks []live

	for i := 0; i < n; i++ {
		size := uint64(rng.Intn(64 * 1024))
		p := a.Allocate(size)
		if p == nil {
			return fmt.Errorf("allocate(%d) returned nil under the configured workload", size)
		}
		fillPattern(p, size, byte(i))
		blocks = append(blocks, live{ptr: p, size: size})
	}

	for len(blocks) > 0 {
		i := rng.Intn(len(blocks))
		b := blocks[i]
		blocks[i] = blocks[len(blocks)-1]
		blocks = blocks[:len(blocks)-1]

		if rng.Intn(2) == 0 {
			a.Release(b.ptr)
			continue
		}
		newSize := uint64(rng.Intn(64 * 1024))
		q := a.Reallocate(b.ptr, newSize)
		if newSize == 0 {
			continue
		}
		if q == nil {
			return fmt.Errorf("reallocate(%d) returned nil under the configured workload", newSize)
		}
		blocks = append(blocks, live{ptr: q, size: newSize})
	}
	return nil
}

func fillPattern(p unsafe.Pointer, n uint64, b byte) {
	buf := unsafe.Slice((*byte)(p), n)
	for i := range buf {
		buf[i] = b
	}
}
