// Package maincmd wires the command-line surface of the nat tool: argument
// parsing and dispatch (github.com/mna/mainer), with each subcommand
// (run, repl, tokenize, disassemble) implemented as a method on Cmd and
// found by reflection.
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"
)

const binName = "nat"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> [<path>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> [<path>...] [-- <arg>...]
       %[1]s -h|--help
       %[1]s -v|--version

Compiler and virtual machine for the nat scripting language.

The <command> can be one of:
       run                       Compile and execute the given file.
       repl                      Start an interactive read-eval-print loop.
       tokenize                  Execute the scanner phase of the
                                 compilation and print the resulting
                                 tokens.
       disassemble               Compile the given file and print its
                                 bytecode, without executing it.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --trace-exec              Print every executed instruction and the
                                 stack before it, to stderr.
       --gc-stress               Run a collection at every closure call.
       --gc-log                  Log every allocate/mark/sweep decision,
                                 to stderr.

More information on the nat repository:
       https://github.com/mna/nenuphar
`, binName)
)

// Cmd is the mainer.Runner implementation for the nat binary: it owns the
// parsed flags and dispatches to the matching subcommand method.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	// mirrored as NAT_TRACE_EXEC / NAT_GC_STRESS / NAT_GC_LOG by mainer's
	// EnvPrefix-based resolution (see Main); internal/cli.Config exposes the
	// same knobs for callers that skip the mainer.Parser path entirely.
	TraceExec bool `flag:"trace-exec"`
	GCStress  bool `flag:"gc-stress"`
	GCLog     bool `flag:"gc-log"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string) {
	c.args = args
}

func (c *Cmd) SetFlags(flags map[string]bool) {
	c.flags = flags
}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	if len(c.args) == 0 {
		return errors.New("no command specified")
	}

	cmdName := c.args[0]

	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", c.args[0])
	}

	if (cmdName == "tokenize" || cmdName == "disassemble" || cmdName == "run") && len(c.args[1:]) == 0 {
		return fmt.Errorf("%s: at least one file must be provided", cmdName)
	}

	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   true,
		EnvPrefix: strings.ToUpper(binName) + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success

	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		// each command takes care of printing its own errors
		return mainer.Failure
	}
	return mainer.Success
}

// buildCmds finds every method of v that matches the subcommand signature
// (context.Context, mainer.Stdio, []string) error and indexes it by its
// lower-cased method name.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
