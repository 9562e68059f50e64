package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"
	"github.com/ngrange/nalloc/pkg/nalloc"
)

// dumpCmd prints the shared package-level Allocator's diagnostic report.
// On its own it is mostly useful piped after other commands in a script;
// run's own Execute already dumps its private Allocator directly.
type dumpCmd struct{}

func (*dumpCmd) Name() string           { return "dump" }
func (*dumpCmd) Synopsis() string       { return "print the shared allocator's diagnostic report" }
func (*dumpCmd) Usage() string          { return "dump:\n  print dump_allocations() for the package-level allocator.\n" }
func (*dumpCmd) SetFlags(*flag.FlagSet) {}

func (*dumpCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	nalloc.Dump()
	return subcommands.ExitSuccess
}
