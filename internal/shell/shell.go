// Package shell provides the runner and command surface around the broker
// core: an entry table (each exec'd on its own goroutine, bound to a fresh
// Node) and a command table (run on the shell's own goroutine), plus a
// line-oriented REPL on a plain bufio.Scanner.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/xinyang-go/tos/internal/guard"
	"github.com/xinyang-go/tos/internal/logger"
	"github.com/xinyang-go/tos/internal/node"
	"github.com/xinyang-go/tos/internal/registry"
)

// EntryFunc is a runnable entry. ctx carries the Node the runner bound
// before invoking it; the return value is the entry's exit code.
type EntryFunc func(ctx context.Context, args []string) int

// CmdFunc is a built-in or host-registered shell command.
type CmdFunc func(sh *Shell, args []string) int

var (
	entryMu sync.RWMutex
	entries = map[string]EntryFunc{}

	cmdMu    sync.RWMutex
	commands = map[string]CmdFunc{}
)

// RegisterEntry installs fn under name in the global entry table. Packages
// normally call this from init so every entry is registered before main
// starts the REPL.
func RegisterEntry(name string, fn EntryFunc) {
	entryMu.Lock()
	entries[name] = fn
	entryMu.Unlock()
}

// RegisterCommand installs fn under name in the global command table.
func RegisterCommand(name string, fn CmdFunc) {
	cmdMu.Lock()
	commands[name] = fn
	cmdMu.Unlock()
}

func init() {
	RegisterCommand("list", cmdList)
	RegisterCommand("exec", cmdExec)
	RegisterCommand("logger", cmdLogger)
	RegisterCommand("stop", cmdStop)
	RegisterCommand("script", cmdScript)
	RegisterCommand("console", cmdConsole)
}

// Shell is the REPL and command-dispatch state: the registry every node
// and entry shares, the NodeGuard gating exec, and the current input
// source (switchable via `script`/`console`).
type Shell struct {
	Reg       *registry.Registry
	Guard     *guard.NodeGuard
	LogFormat logger.Format
	MaxTokens int
	Out       io.Writer

	mu     sync.Mutex
	input  *bufio.Scanner
	closer io.Closer // non-nil if input came from an open file, closed on switch
}

// New constructs a Shell reading from os.Stdin until redirected.
func New(reg *registry.Registry, g *guard.NodeGuard, format logger.Format, maxTokens int) *Shell {
	sh := &Shell{Reg: reg, Guard: g, LogFormat: format, MaxTokens: maxTokens, Out: os.Stdout}
	sh.input = bufio.NewScanner(os.Stdin)
	return sh
}

// Run reads lines from the current input until EOF, dispatching each as a
// command. Command failure never terminates the loop. EOF on a script file
// falls back to the console; EOF on the console ends the shell.
func (sh *Shell) Run() {
	for {
		fmt.Fprint(sh.Out, ">>> ")
		sh.mu.Lock()
		scanner := sh.input
		fromFile := sh.closer != nil
		sh.mu.Unlock()
		if !scanner.Scan() {
			if fromFile {
				sh.setInput(os.Stdin, nil)
				continue
			}
			return
		}
		sh.Exec(scanner.Text())
	}
}

// Exec tokenizes and dispatches one line. Comment lines (first non-space
// rune '#') and blank lines are skipped silently.
func (sh *Shell) Exec(line string) int {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return 0
	}

	tokens := strings.Fields(trimmed)
	if len(tokens) > sh.MaxTokens {
		tokens = tokens[:sh.MaxTokens]
	}

	cmdMu.RLock()
	fn, ok := commands[tokens[0]]
	cmdMu.RUnlock()
	if !ok {
		fmt.Fprintf(sh.Out, "NotFound: unknown command %q\n", tokens[0])
		return -1
	}
	return fn(sh, tokens[1:])
}

// setInput swaps the current input source, closing the previous one if it
// was a file.
func (sh *Shell) setInput(r io.Reader, closer io.Closer) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.closer != nil {
		sh.closer.Close()
	}
	sh.input = bufio.NewScanner(r)
	sh.closer = closer
}

// RunEntry looks up name in the global entry table, binds a fresh Node to
// a goroutine, and invokes the entry. Returns false if name is not
// registered or NodeGuard rejects the exec.
func (sh *Shell) RunEntry(name string, args []string) (spawned bool, reason string) {
	entryMu.RLock()
	fn, ok := entries[name]
	entryMu.RUnlock()
	if !ok {
		return false, fmt.Sprintf("NotFound: unknown entry %q", name)
	}

	if sh.Guard != nil {
		if admit, why := sh.Guard.Admit(); !admit {
			return false, "rejected: " + why
		}
	}

	h, err := node.CreateNode(sh.Reg, name)
	if err != nil {
		return false, fmt.Sprintf("failed to create node: %v", err)
	}
	if sh.Guard != nil {
		sh.Guard.NodeStarted()
	}

	n, _ := h.Get()
	go func() {
		defer h.Release()
		if sh.Guard != nil {
			defer sh.Guard.NodeStopped()
		}
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("node", n.Name()).
					Bytes("stack", debug.Stack()).
					Msg("entry panicked")
			}
		}()
		ctx := node.NewContext(context.Background(), n)
		fn(ctx, args)
	}()

	return true, ""
}
