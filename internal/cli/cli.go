package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/amirbrooks/fivetask/internal/config"
	"github.com/amirbrooks/fivetask/internal/export"
	"github.com/amirbrooks/fivetask/internal/kv"
	"github.com/amirbrooks/fivetask/internal/mood"
	"github.com/amirbrooks/fivetask/internal/store"
	"github.com/amirbrooks/fivetask/internal/task"
	"github.com/amirbrooks/fivetask/internal/tui"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitFull     = 5
	ExitInternal = 10
)

type GlobalFlags struct {
	Root    string
	JSON    bool
	Plain   bool
	ASCII   bool
	Quiet   bool
	Verbose bool
}

// env carries the global flags and standard streams into each command.
type env struct {
	gf     GlobalFlags
	stdin  *bufio.Reader
	stdout io.Writer
	stderr io.Writer
}

func reorderFlags(args []string, takesValue map[string]bool) []string {
	if len(args) == 0 {
		return args
	}
	var flags []string
	var rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			if i+1 < len(args) {
				rest = append(rest, args[i+1:]...)
			}
			break
		}
		if strings.HasPrefix(a, "-") && a != "-" {
			flags = append(flags, a)
			if takesValue[a] && !strings.Contains(a, "=") {
				if i+1 < len(args) {
					flags = append(flags, args[i+1])
					i++
				}
			}
			continue
		}
		rest = append(rest, a)
	}
	return append(flags, rest...)
}

func Run(args []string) int {
	return RunIO(args, os.Stdin, os.Stdout, os.Stderr)
}

// RunIO is Run with explicit streams.
func RunIO(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	gf, rest, err := extractGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return ExitUsage
	}
	e := &env{gf: gf, stdin: bufio.NewReader(stdin), stdout: stdout, stderr: stderr}

	if len(rest) == 0 {
		printHelp(stdout)
		return ExitUsage
	}

	cmd := rest[0]
	cmdArgs := rest[1:]

	switch cmd {
	case "help", "--help", "-h":
		printHelp(stdout)
		return ExitOK
	case "init":
		return cmdInit(e, cmdArgs)
	case "config", "cfg":
		return cmdConfig(e, cmdArgs)
	case "status":
		return withStore(e, "status", cmdArgs, cmdStatus)
	case "add":
		return withStore(e, "add", cmdArgs, cmdAdd)
	case "ls", "list":
		return withStore(e, "ls", cmdArgs, cmdList)
	case "done", "toggle":
		return withStore(e, "done", cmdArgs, cmdDone)
	case "rm", "delete":
		return withStore(e, "rm", cmdArgs, cmdRemove)
	case "undo":
		return withStore(e, "undo", cmdArgs, cmdUndo)
	case "edit":
		return withStore(e, "edit", cmdArgs, cmdEdit)
	case "clear":
		return withStore(e, "clear", cmdArgs, cmdClear)
	case "export":
		return withStore(e, "export", cmdArgs, cmdExport)
	case "tui", "ui":
		return withStore(e, "tui", cmdArgs, cmdTUI)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		printHelp(stderr)
		return ExitUsage
	}
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `fivetask - five slots, one opinionated mascot

Usage:
  fivetask [global flags] <command> [args]

Global flags:
  --root <path>    Store root (default: ~/.fivetask or FIVETASK_ROOT)
  --json           JSON output
  --plain          TSV output
  --ascii          ASCII-only mascot in the TUI
  --quiet          Suppress mascot lines and confirmations
  --verbose        Log storage activity to stderr

Commands:
  init
  status
  add "<text>"
  ls
  done <n|id-prefix>        Toggle completion
  rm <n|id-prefix>          Delete (undo window applies)
  undo
  edit <n|id-prefix> "<text>"
  clear [--yes]
  config show
  config set <key> <value>
  export --pdf <path|->
  tui

Selectors:
  1-5 picks by position; anything else matches an id prefix (tsk_ optional).
`)
}

func extractGlobalFlags(args []string) (GlobalFlags, []string, error) {
	// Allow flags anywhere by scanning and stripping known globals.
	gf := GlobalFlags{}

	if env := os.Getenv("FIVETASK_ROOT"); env != "" {
		gf.Root = env
	} else {
		home, _ := os.UserHomeDir()
		if home != "" {
			gf.Root = filepath.Join(home, ".fivetask")
		} else {
			gf.Root = ".fivetask"
		}
	}

	out := make([]string, 0, len(args))
	skip := 0

	for i := 0; i < len(args); i++ {
		if skip > 0 {
			skip--
			continue
		}
		a := args[i]
		switch a {
		case "--root":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--root requires a value")
			}
			gf.Root = args[i+1]
			skip = 1
		case "--json":
			gf.JSON = true
		case "--plain":
			gf.Plain = true
		case "--ascii":
			gf.ASCII = true
		case "--quiet":
			gf.Quiet = true
		case "--verbose":
			gf.Verbose = true
		default:
			out = append(out, a)
		}
	}

	if gf.JSON && gf.Plain {
		return gf, nil, errors.New("--json and --plain are mutually exclusive")
	}
	return gf, out, nil
}

type storeCmd func(e *env, st *store.Store, cfg *config.Config, args []string) int

func withStore(e *env, name string, args []string, fn storeCmd) int {
	st, cfg, err := openStore(e)
	if err != nil {
		fmt.Fprintf(e.stderr, "%s: %v\n", name, err)
		return ExitInternal
	}
	defer st.Close()
	return fn(e, st, cfg, args)
}

// logger reports persistence failures; --verbose adds activity lines.
func (e *env) logger() *log.Logger {
	return log.New(e.stderr, "fivetask: ", 0)
}

func openStore(e *env) (*store.Store, *config.Config, error) {
	cfg, err := config.Load(config.Path(e.gf.Root))
	if err != nil {
		return nil, nil, err
	}
	backend, err := kv.Open(cfg.Storage.Backend, e.gf.Root)
	if err != nil {
		return nil, nil, err
	}
	pool, err := mood.LoadPool(cfg.Locale)
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}
	logger := e.logger()
	if e.gf.Verbose {
		logger.Printf("opening %s store at %s (key %s)", cfg.Storage.Backend, e.gf.Root, cfg.Storage.Key)
	}
	st, err := store.Open(backend,
		store.WithKey(cfg.Storage.Key),
		store.WithUndoWindow(cfg.UndoWindow),
		store.WithPicker(mood.NewPicker(pool, nil)),
		store.WithLogger(logger),
	)
	if err != nil {
		_ = backend.Close()
		return nil, nil, err
	}
	return st, cfg, nil
}

// fail maps store errors to exit codes.
func fail(e *env, cmd string, err error) int {
	var mc *store.MatchConflictError
	switch {
	case errors.As(err, &mc):
		fmt.Fprintf(e.stderr, "%s: ambiguous id prefix\n", cmd)
		for _, t := range mc.Matches {
			fmt.Fprintf(e.stderr, "  %s  %s\n", t.ID, t.Text)
		}
		return ExitConflict
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNothingToUndo):
		fmt.Fprintf(e.stderr, "%s: %v\n", cmd, err)
		return ExitNotFound
	case errors.Is(err, store.ErrInvalid):
		fmt.Fprintf(e.stderr, "%s: %v\n", cmd, err)
		return ExitUsage
	case errors.Is(err, store.ErrFull):
		return ExitFull
	default:
		fmt.Fprintf(e.stderr, "%s: %v\n", cmd, err)
		return ExitInternal
	}
}

func (e *env) writeJSON(payload any) int {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		fmt.Fprintln(e.stderr, "json:", err)
		return ExitInternal
	}
	return ExitOK
}

// say prints the mascot's current line unless --quiet.
func (e *env) say(snap store.Snapshot) {
	if e.gf.Quiet || e.gf.JSON {
		return
	}
	fmt.Fprintf(e.stdout, "[%s] %q\n", snap.Mood, snap.Quote)
}

func snapshotPayload(snap store.Snapshot) map[string]any {
	p := map[string]any{
		"tasks":     snap.Tasks,
		"mood":      snap.Mood,
		"quote":     snap.Quote,
		"remaining": snap.Remaining,
		"capacity":  store.Capacity,
	}
	if snap.Undo != nil {
		p["undo"] = map[string]any{"task": snap.Undo, "expiresAt": snap.UndoDeadline.UnixMilli()}
	}
	return p
}

func cmdInit(e *env, args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	backend := fs.String("backend", "", "Storage backend (dir|sqlite)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	path := config.Path(e.gf.Root)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(e.stderr, "init:", err)
		return ExitInternal
	}
	if strings.TrimSpace(*backend) != "" {
		if err := cfg.Set("storage.backend", *backend); err != nil {
			fmt.Fprintln(e.stderr, "init:", err)
			return ExitUsage
		}
	}
	if err := config.Save(path, *cfg); err != nil {
		fmt.Fprintln(e.stderr, "init:", err)
		return ExitInternal
	}
	kvs, err := kv.Open(cfg.Storage.Backend, e.gf.Root)
	if err != nil {
		fmt.Fprintln(e.stderr, "init:", err)
		return ExitInternal
	}
	_ = kvs.Close()
	if !e.gf.Quiet {
		fmt.Fprintln(e.stdout, "Initialized fivetask store at:", e.gf.Root)
	}
	return ExitOK
}

func cmdStatus(e *env, st *store.Store, _ *config.Config, args []string) int {
	snap := st.Snapshot()
	if e.gf.JSON {
		return e.writeJSON(snapshotPayload(snap))
	}
	if e.gf.Plain {
		w := tabwriter.NewWriter(e.stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		fmt.Fprintf(w, "mood\t%s\n", snap.Mood)
		fmt.Fprintf(w, "quote\t%s\n", snap.Quote)
		fmt.Fprintf(w, "remaining\t%d\n", snap.Remaining)
		fmt.Fprintf(w, "capacity\t%d\n", store.Capacity)
		_ = w.Flush()
		return ExitOK
	}
	fmt.Fprintf(e.stdout, "Mood: %s\n", snap.Mood)
	fmt.Fprintf(e.stdout, "  %q\n", snap.Quote)
	fmt.Fprintf(e.stdout, "Slots: %d / %d\n", snap.Remaining, store.Capacity)
	if snap.Undo != nil {
		fmt.Fprintf(e.stdout, "%s %s (fivetask undo)\n", st.Notices().Deleted, snap.Undo.Text)
	}
	return ExitOK
}

func cmdAdd(e *env, st *store.Store, _ *config.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(e.stderr, "Usage: fivetask add \"<text>\"")
		return ExitUsage
	}
	t, err := st.Add(strings.Join(args, " "))
	if err != nil {
		if errors.Is(err, store.ErrFull) {
			fmt.Fprintln(e.stderr, "add:", st.Notices().ListFull)
			e.say(st.Snapshot())
		}
		return fail(e, "add", err)
	}
	snap := st.Snapshot()
	if e.gf.JSON {
		return e.writeJSON(map[string]any{"task": t, "remaining": snap.Remaining})
	}
	if !e.gf.Quiet {
		fmt.Fprintf(e.stdout, "%s %s\n", t.ID, t.Text)
	}
	e.say(snap)
	return ExitOK
}

func cmdList(e *env, st *store.Store, _ *config.Config, args []string) int {
	snap := st.Snapshot()
	if e.gf.JSON {
		return e.writeJSON(snapshotPayload(snap))
	}
	notices := st.Notices()
	if e.gf.Plain {
		w := tabwriter.NewWriter(e.stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "POS\tID\tDONE\tSTALE\tCREATED\tTEXT")
		for i, t := range snap.Tasks {
			fmt.Fprintf(w, "%d\t%s\t%t\t%t\t%s\t%s\n", i+1, t.ID, t.Completed, snap.IsStale(t), t.CreatedAt.Format("2006-01-02T15:04:05Z"), t.Text)
		}
		_ = w.Flush()
		return ExitOK
	}
	if len(snap.Tasks) == 0 {
		fmt.Fprintln(e.stdout, notices.Empty)
		return ExitOK
	}
	w := tabwriter.NewWriter(e.stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tS\tAGE\tTASK")
	for i, t := range snap.Tasks {
		text := t.Text
		if snap.IsStale(t) {
			text += "  (" + notices.Stale + ")"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, t.IDShort(8), t.StatusAbbrev(), t.Age(snap.Now), text)
	}
	_ = w.Flush()
	fmt.Fprintf(e.stdout, "Slots: %d / %d\n", snap.Remaining, store.Capacity)
	return ExitOK
}

func resolveOne(e *env, st *store.Store, cmd string, args []string, usage string) (string, int) {
	if len(args) < 1 {
		fmt.Fprintln(e.stderr, "Usage: "+usage)
		return "", ExitUsage
	}
	id, err := st.Resolve(args[0])
	if err != nil {
		return "", fail(e, cmd, err)
	}
	return id, ExitOK
}

func findTask(snap store.Snapshot, id string) (task.Task, bool) {
	for _, t := range snap.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return task.Task{}, false
}

func cmdDone(e *env, st *store.Store, _ *config.Config, args []string) int {
	id, code := resolveOne(e, st, "done", args, "fivetask done <n|id-prefix>")
	if code != ExitOK {
		return code
	}
	if err := st.ToggleComplete(id); err != nil {
		return fail(e, "done", err)
	}
	snap := st.Snapshot()
	t, _ := findTask(snap, id)
	if e.gf.JSON {
		return e.writeJSON(map[string]any{"task": t})
	}
	if !e.gf.Quiet {
		if t.Completed {
			fmt.Fprintf(e.stdout, "Done %s\n", t.ID)
		} else {
			fmt.Fprintf(e.stdout, "Reopened %s\n", t.ID)
		}
	}
	e.say(snap)
	return ExitOK
}

func cmdRemove(e *env, st *store.Store, cfg *config.Config, args []string) int {
	id, code := resolveOne(e, st, "rm", args, "fivetask rm <n|id-prefix>")
	if code != ExitOK {
		return code
	}
	t, err := st.Delete(id)
	if err != nil {
		return fail(e, "rm", err)
	}
	snap := st.Snapshot()
	if e.gf.JSON {
		return e.writeJSON(map[string]any{"task": t, "expiresAt": snap.UndoDeadline.UnixMilli()})
	}
	if !e.gf.Quiet {
		fmt.Fprintf(e.stdout, "%s %s (undo within %s: fivetask undo)\n", st.Notices().Deleted, t.Text, cfg.UndoWindow)
	}
	e.say(snap)
	return ExitOK
}

func cmdUndo(e *env, st *store.Store, _ *config.Config, args []string) int {
	if err := st.UndoDelete(); err != nil {
		if errors.Is(err, store.ErrFull) {
			fmt.Fprintln(e.stderr, "undo:", st.Notices().UndoFull)
		}
		return fail(e, "undo", err)
	}
	snap := st.Snapshot()
	if e.gf.JSON {
		return e.writeJSON(map[string]any{"task": snap.Tasks[0]})
	}
	if !e.gf.Quiet {
		fmt.Fprintf(e.stdout, "Restored %s %s\n", snap.Tasks[0].ID, snap.Tasks[0].Text)
	}
	e.say(snap)
	return ExitOK
}

func cmdEdit(e *env, st *store.Store, _ *config.Config, args []string) int {
	const usage = "fivetask edit <n|id-prefix> \"<text>\""
	if len(args) < 2 {
		fmt.Fprintln(e.stderr, "Usage: "+usage)
		return ExitUsage
	}
	id, code := resolveOne(e, st, "edit", args, usage)
	if code != ExitOK {
		return code
	}
	if err := st.EditText(id, strings.Join(args[1:], " ")); err != nil {
		return fail(e, "edit", err)
	}
	t, _ := findTask(st.Snapshot(), id)
	if e.gf.JSON {
		return e.writeJSON(map[string]any{"task": t})
	}
	if !e.gf.Quiet {
		fmt.Fprintf(e.stdout, "Updated %s %s\n", t.ID, t.Text)
	}
	return ExitOK
}

func cmdClear(e *env, st *store.Store, _ *config.Config, args []string) int {
	args = reorderFlags(args, map[string]bool{"--yes": false, "-y": false})
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	fs.BoolVar(yes, "y", false, "Shorthand for --yes")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	confirm := store.ConfirmFunc(func(prompt string) bool {
		if *yes {
			return true
		}
		fmt.Fprintf(e.stderr, "%s [y/N] ", prompt)
		line, _ := e.stdin.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	})
	if err := st.ClearAll(confirm); err != nil {
		if errors.Is(err, store.ErrCanceled) {
			if !e.gf.Quiet {
				fmt.Fprintln(e.stdout, "Canceled.")
			}
			return ExitOK
		}
		return fail(e, "clear", err)
	}
	snap := st.Snapshot()
	if e.gf.JSON {
		return e.writeJSON(snapshotPayload(snap))
	}
	e.say(snap)
	return ExitOK
}

func cmdExport(e *env, st *store.Store, _ *config.Config, args []string) int {
	args = reorderFlags(args, map[string]bool{"--pdf": true})
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	pdfPath := fs.String("pdf", "", "Write a printable PDF to <path> (- for stdout)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if strings.TrimSpace(*pdfPath) == "" {
		fmt.Fprintln(e.stderr, "Usage: fivetask export --pdf <path|->")
		return ExitUsage
	}
	snap := st.Snapshot()
	if *pdfPath == "-" {
		if err := export.WritePDF(e.stdout, snap, st.Notices()); err != nil {
			fmt.Fprintln(e.stderr, "export:", err)
			return ExitInternal
		}
		return ExitOK
	}
	if err := writePDFFile(*pdfPath, snap, st.Notices()); err != nil {
		fmt.Fprintln(e.stderr, "export:", err)
		return ExitInternal
	}
	if !e.gf.Quiet {
		fmt.Fprintln(e.stdout, "Wrote PDF to:", *pdfPath)
	}
	return ExitOK
}

func writePDFFile(path string, snap store.Snapshot, notices mood.Notices) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WritePDF(f, snap, notices); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func cmdTUI(e *env, st *store.Store, cfg *config.Config, args []string) int {
	err := tui.Run(st, tui.Options{
		IdleAfter: cfg.IdleAfter,
		ASCII:     cfg.ASCII || e.gf.ASCII,
	})
	if err != nil {
		fmt.Fprintln(e.stderr, "tui:", err)
		return ExitInternal
	}
	return ExitOK
}

func cmdConfig(e *env, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(e.stderr, "Usage: fivetask config <show|set> ...")
		return ExitUsage
	}
	switch args[0] {
	case "show":
		return cmdConfigShow(e)
	case "set":
		return cmdConfigSet(e, args[1:])
	default:
		fmt.Fprintln(e.stderr, "Usage: fivetask config <show|set> ...")
		return ExitUsage
	}
}

func cmdConfigShow(e *env) int {
	path := config.Path(e.gf.Root)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(e.stderr, "config show:", err)
		return ExitInternal
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if e.gf.JSON {
		values := map[string]string{}
		for _, pair := range cfg.Values() {
			values[pair[0]] = pair[1]
		}
		return e.writeJSON(map[string]any{
			"root":        e.gf.Root,
			"config_path": path,
			"exists":      exists,
			"config":      values,
		})
	}

	if e.gf.Plain {
		w := tabwriter.NewWriter(e.stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		fmt.Fprintf(w, "root\t%s\n", e.gf.Root)
		fmt.Fprintf(w, "config_path\t%s\n", path)
		fmt.Fprintf(w, "exists\t%t\n", exists)
		for _, pair := range cfg.Values() {
			fmt.Fprintf(w, "%s\t%s\n", pair[0], pair[1])
		}
		_ = w.Flush()
		return ExitOK
	}

	fmt.Fprintln(e.stdout, "Config")
	fmt.Fprintln(e.stdout, "  Root:", e.gf.Root)
	if exists {
		fmt.Fprintln(e.stdout, "  Config file:", path)
	} else {
		fmt.Fprintln(e.stdout, "  Config file:", path, "(not found; defaults shown)")
	}
	for _, pair := range cfg.Values() {
		fmt.Fprintf(e.stdout, "  %s: %s\n", pair[0], pair[1])
	}
	return ExitOK
}

func cmdConfigSet(e *env, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(e.stderr, "Usage: fivetask config set <key> <value>")
		return ExitUsage
	}
	key := strings.ToLower(strings.TrimSpace(args[0]))
	value := strings.TrimSpace(strings.Join(args[1:], " "))
	path := config.Path(e.gf.Root)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(e.stderr, "config set:", err)
		return ExitInternal
	}
	if err := cfg.Set(key, value); err != nil {
		fmt.Fprintln(e.stderr, "config set:", err)
		return ExitUsage
	}
	if err := config.Save(path, *cfg); err != nil {
		fmt.Fprintln(e.stderr, "config set:", err)
		return ExitInternal
	}
	if !e.gf.Quiet {
		fmt.Fprintf(e.stdout, "Updated %s\n", key)
	}
	return ExitOK
}
