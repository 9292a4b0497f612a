package shell

import (
	"fmt"
	"os"
	"sort"

	"github.com/xinyang-go/tos/internal/logger"
	"github.com/xinyang-go/tos/internal/node"
	"github.com/xinyang-go/tos/internal/objkind"
	"github.com/xinyang-go/tos/internal/registry"
	"github.com/xinyang-go/tos/internal/shellutil"
)

// cmdList implements `list [-e|-c|-o]`: enumerate registered entries,
// commands, or live objects (kind, name, refcount).
func cmdList(sh *Shell, args []string) int {
	mode := "-o"
	if len(args) > 0 {
		mode = args[0]
	}

	switch mode {
	case "-e":
		entryMu.RLock()
		names := make([]string, 0, len(entries))
		for n := range entries {
			names = append(names, n)
		}
		entryMu.RUnlock()
		sort.Strings(names)
		rows := make([][]string, len(names))
		for i, n := range names {
			rows[i] = []string{n}
		}
		shellutil.RenderTable(sh.Out, []string{"ENTRY"}, rows)

	case "-c":
		cmdMu.RLock()
		names := make([]string, 0, len(commands))
		for n := range commands {
			names = append(names, n)
		}
		cmdMu.RUnlock()
		sort.Strings(names)
		rows := make([][]string, len(names))
		for i, n := range names {
			rows[i] = []string{n}
		}
		shellutil.RenderTable(sh.Out, []string{"COMMAND"}, rows)

	case "-o":
		var rows [][]string
		for _, k := range objkind.All() {
			objs, err := sh.Reg.List(k)
			if err != nil {
				continue
			}
			for _, o := range objs {
				rows = append(rows, []string{k.String(), o.Name, fmt.Sprintf("%d", o.RefCount)})
			}
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i][0]+rows[i][1] < rows[j][0]+rows[j][1] })
		shellutil.RenderTable(sh.Out, []string{"KIND", "NAME", "REFCOUNT"}, rows)

	default:
		fmt.Fprintf(sh.Out, "list: unknown flag %q\n", mode)
		return -1
	}
	return 0
}

// cmdExec implements `exec <entry> [args...]`.
func cmdExec(sh *Shell, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(sh.Out, "exec: missing entry name")
		return -1
	}
	spawned, reason := sh.RunEntry(args[0], args[1:])
	if !spawned {
		fmt.Fprintln(sh.Out, reason)
		return -1
	}
	return 0
}

// cmdLogger implements `logger [node-glob] -l {none|error|warning|info}`.
func cmdLogger(sh *Shell, args []string) int {
	glob, levelStr := "", ""
	for i := 0; i < len(args); i++ {
		if args[i] == "-l" && i+1 < len(args) {
			levelStr = args[i+1]
			i++
			continue
		}
		glob = args[i]
	}

	level, ok := logger.ParseLevel(levelStr)
	if !ok {
		fmt.Fprintf(sh.Out, "logger: invalid level %q\n", levelStr)
		return -1
	}

	if glob == "" {
		logger.SetGlobalLevel(level)
		return 0
	}

	handles, err := registry.ListTyped[*logger.Logger](sh.Reg, objkind.Logger)
	if err != nil {
		fmt.Fprintln(sh.Out, err)
		return -1
	}
	for _, h := range handles {
		l, _ := h.Get()
		if shellutil.Match(glob, l.Name()) {
			l.SetLocalLevel(level)
		}
		h.Release()
	}
	return 0
}

// cmdStop implements `stop <node-glob>`: clear running on every matching
// Node.
func cmdStop(sh *Shell, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(sh.Out, "stop: missing glob")
		return -1
	}
	glob := args[0]

	handles, err := registry.ListTyped[*node.Node](sh.Reg, objkind.Node)
	if err != nil {
		fmt.Fprintln(sh.Out, err)
		return -1
	}
	for _, h := range handles {
		n, _ := h.Get()
		if shellutil.Match(glob, n.Name()) {
			n.Stop()
		}
		h.Release()
	}
	return 0
}

// cmdScript implements `script <file>`: redirect command input from file.
func cmdScript(sh *Shell, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(sh.Out, "script: missing file")
		return -1
	}
	f, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintln(sh.Out, err)
		return -1
	}
	sh.setInput(f, f)
	return 0
}

// cmdConsole implements `console`: redirect command input back to the
// terminal.
func cmdConsole(sh *Shell, args []string) int {
	sh.setInput(os.Stdin, nil)
	return 0
}
