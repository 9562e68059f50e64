// Command allocstress drives the allocator through randomized concurrent
// workloads and prints its diagnostic dump. It is the test harness
// spec.md explicitly places outside the allocator's core: nothing here
// participates in allocate/reallocate/release itself.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&dumpCmd{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}
