package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"

	"github.com/roach88/querycanvas/internal/canvas"
	"github.com/roach88/querycanvas/internal/catalog"
	"github.com/roach88/querycanvas/internal/engine"
	"github.com/roach88/querycanvas/internal/ir"
	"github.com/roach88/querycanvas/internal/queryir"
	"github.com/roach88/querycanvas/internal/querysql"
	"github.com/roach88/querycanvas/internal/store"
)

// ShellOptions holds flags for the shell command.
type ShellOptions struct {
	*RootOptions
	Script string // read commands from a file instead of the terminal
	Open   string // design to open from the store at startup
}

// errQuit ends the REPL loop.
var errQuit = errors.New("quit")

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "shell <catalog>",
		Short: "Build a design interactively",
		Long: `Start an interactive canvas over a relation catalog.

Every command is one gesture on the canvas. A connection is drawn with two
clicks: the first arms the source field, the second completes it on a field
of another instance.

  qcanvas> place users
  placed i1 (users)
  qcanvas> place orders 240 0
  placed i2 (orders)
  qcanvas> click i1.id
  armed i1.id
  qcanvas> click i2.user_id
  connected c1: users.id → orders.user_id (INNER JOIN)
  qcanvas> kind c1 left
  qcanvas> sql

With --script, commands are read from a file; failing lines are reported
and the exit code is 1 if any failed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Script, "script", "", "run commands from a file")
	cmd.Flags().StringVar(&opts.Open, "open", "", "open a saved design (requires --db)")

	return cmd
}

func runShell(opts *ShellOptions, catalogPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cat, cliErr := LoadCatalog(catalogPath)
	if cliErr != nil {
		return formatter.failWith(ExitCommandError, cliErr.Code, cliErr.Message, cliErr.Details)
	}
	compiler, err := opts.compiler()
	if err != nil {
		return formatter.failWith(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sh := NewShell(ctx, cat, compiler, st, cmd.OutOrStdout())
	defer sh.Close()

	if opts.Open != "" {
		if err := sh.Execute("open " + opts.Open); err != nil {
			return formatter.failWith(ExitCommandError, ErrCodeNoDesign, err.Error(), nil)
		}
	}

	if opts.Script != "" {
		return runScript(sh, opts.Script, cmd.OutOrStdout())
	}
	return runREPL(sh, cmd.OutOrStdout())
}

// runScript executes every line of a script file. Blank lines and lines
// starting with # are skipped.
func runScript(sh *Shell, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: cannot open script", ErrCodeNotFound), err)
	}
	defer f.Close()

	failed := 0
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		err := sh.Execute(line)
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "✗ line %d: %v\n", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return WrapExitError(ExitCommandError, "reading script", err)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d script line(s) failed", failed))
	}
	return nil
}

func runREPL(sh *Shell, out io.Writer) error {
	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:          "qcanvas> ",
		HistoryFile:     historyPath(),
		AutoComplete:    sh.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start line editor", err)
	}
	defer rl.Close()

	fmt.Fprintln(out, "qcanvas shell. Type 'help' for commands, 'quit' to exit.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			// Ctrl-C abandons a half-drawn connection.
			if sh.engine.Session().Armed {
				_ = sh.Execute("cancel")
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "reading input", err)
		}

		err = sh.Execute(line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "✗ %v\n", err)
		}
	}
}

func historyPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "qcanvas")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

// Shell is one interactive canvas. Commands are submitted to an engine
// running its single-writer loop on a background goroutine.
type Shell struct {
	ctx      context.Context
	catalog  *catalog.Catalog
	compiler *querysql.SQLCompiler
	store    *store.Store
	out      io.Writer

	engine *engine.Engine
	cancel context.CancelFunc
	done   chan struct{}

	// design is the name the canvas was opened from or last saved as.
	design string
	// unjournaled is set when the canvas was restored from a snapshot. Its
	// journal does not start from an empty canvas, so save does not
	// append it.
	unjournaled bool
	commands    map[string]shellCommand
}

type shellCommand struct {
	usage string
	help  string
	run   func(args []string) error
}

// NewShell creates a shell with an empty canvas. st may be nil; save and
// open then fail.
func NewShell(ctx context.Context, cat *catalog.Catalog, compiler *querysql.SQLCompiler, st *store.Store, out io.Writer) *Shell {
	s := &Shell{
		ctx:      ctx,
		catalog:  cat,
		compiler: compiler,
		store:    st,
		out:      out,
	}
	s.initCommands()
	s.start(engine.New(cat, s.engineOptions(canvas.NewSequenceGenerator("i"), canvas.NewSequenceGenerator("c"))...))
	return s
}

func (s *Shell) engineOptions(instanceIDs, connectionIDs *canvas.SequenceGenerator) []engine.Option {
	return []engine.Option{
		engine.WithInstanceIDs(instanceIDs),
		engine.WithConnectionIDs(connectionIDs),
		engine.WithCompiler(s.compiler),
	}
}

// start runs e's loop, replacing the current engine.
func (s *Shell) start(e *engine.Engine) {
	s.stop()

	ctx, cancel := context.WithCancel(s.ctx)
	s.engine = e
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		_ = e.Run(ctx)
	}(s.done)
}

func (s *Shell) stop() {
	if s.engine == nil {
		return
	}
	s.engine.Stop()
	<-s.done
	s.cancel()
	s.engine = nil
}

// Close stops the engine loop.
func (s *Shell) Close() {
	s.stop()
}

// Engine returns the engine behind the current canvas.
func (s *Shell) Engine() *engine.Engine {
	return s.engine
}

// Execute runs one command line. A rejected gesture is returned as an
// error; the canvas is unchanged by it.
func (s *Shell) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	name := strings.ToLower(fields[0])
	c, ok := s.commands[name]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", fields[0])
	}
	return c.run(fields[1:])
}

func (s *Shell) initCommands() {
	s.commands = map[string]shellCommand{
		"place":  {"place <relation> [x y]", "place an instance of a relation", s.cmdPlace},
		"remove": {"remove <instance>", "remove an instance and its connections", s.cmdRemove},
		"move":   {"move <instance> <x> <y>", "move an instance", s.cmdMove},
		"click":  {"click <instance>.<column>", "click a field: arm a connection or complete it", s.cmdClick},
		"cancel": {"cancel", "abandon a half-drawn connection", s.cmdCancel},
		"unlink": {"unlink <connection>", "remove a connection", s.cmdUnlink},
		"kind":   {"kind <connection> <inner|left|right|full>", "set a connection's join kind", s.cmdKind},
		"sql":    {"sql", "print the query for the canvas", s.cmdSQL},
		"reset":  {"reset", "clear the canvas", s.cmdReset},
		"show":   {"show", "list instances, connections and the session", s.cmdShow},
		"save":   {"save <name>", "save the design and its gesture journal", s.cmdSave},
		"open":   {"open <name>", "replace the canvas with a saved design", s.cmdOpen},
		"export": {"export <file.yaml>", "write the design file", s.cmdExport},
		"help":   {"help", "list commands", s.cmdHelp},
		"quit":   {"quit", "leave the shell", func([]string) error { return errQuit }},
	}
	s.commands["exit"] = s.commands["quit"]
}

// submit applies g through the engine loop and returns the outcome. A
// rejected gesture comes back as its canvas error.
func (s *Shell) submit(g engine.Gesture) (engine.Outcome, error) {
	out := <-s.engine.Submit(g)
	if out.Err == nil {
		return out, nil
	}
	if out.Session.Armed && canvas.CodeOf(out.Err) != "" {
		return out, fmt.Errorf("%w (still armed on %s.%s)", out.Err, out.Session.SourceInstanceID, out.Session.SourceColumn)
	}
	return out, out.Err
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format+"\n", args...)
}

func usageError(c string) error {
	return fmt.Errorf("usage: %s", c)
}

func (s *Shell) cmdPlace(args []string) error {
	if len(args) != 1 && len(args) != 3 {
		return usageError(s.commands["place"].usage)
	}

	relationID := args[0]
	if rel, ok := s.catalog.Resolve(relationID); ok {
		relationID = rel.ID
	}

	var pos ir.Position
	if len(args) == 3 {
		var err error
		if pos, err = parsePosition(args[1], args[2]); err != nil {
			return err
		}
	}

	out, err := s.submit(engine.PlaceRelation{RelationID: relationID, Position: pos})
	if err != nil {
		return err
	}
	s.printf("placed %s (%s)", out.Instance.InstanceID, out.Instance.RelationID)
	return nil
}

func (s *Shell) cmdRemove(args []string) error {
	if len(args) != 1 {
		return usageError(s.commands["remove"].usage)
	}
	detached := len(s.engine.ConnectionsTouching(args[0]))

	out, err := s.submit(engine.RemoveInstance{InstanceID: args[0]})
	if err != nil {
		return err
	}
	if !out.Changed {
		s.printf("no instance %s", args[0])
		return nil
	}
	s.printf("removed %s and %d connection(s)", args[0], detached)
	return nil
}

func (s *Shell) cmdMove(args []string) error {
	if len(args) != 3 {
		return usageError(s.commands["move"].usage)
	}
	pos, err := parsePosition(args[1], args[2])
	if err != nil {
		return err
	}
	if _, err := s.submit(engine.MoveInstance{InstanceID: args[0], Position: pos}); err != nil {
		return err
	}
	s.printf("moved %s to (%d, %d)", args[0], pos.X, pos.Y)
	return nil
}

func (s *Shell) cmdClick(args []string) error {
	var instanceID, column string
	switch len(args) {
	case 1:
		var err error
		if instanceID, column, err = splitEndpoint(args[0]); err != nil {
			return err
		}
	case 2:
		instanceID, column = args[0], args[1]
	default:
		return usageError(s.commands["click"].usage)
	}

	out, err := s.submit(engine.ActivateField{InstanceID: instanceID, Column: column})
	if err != nil {
		return err
	}
	if out.Connection == nil {
		s.printf("armed %s.%s", instanceID, column)
		return nil
	}
	s.printf("connected %s: %s", out.Connection.ID, s.label(out.Connection.ID))
	return nil
}

// label returns the display label of a connection.
func (s *Shell) label(connectionID string) string {
	for _, rc := range s.engine.ResolvedConnections() {
		if rc.ID == connectionID {
			return rc.Label
		}
	}
	return connectionID
}

func (s *Shell) cmdCancel(args []string) error {
	out, err := s.submit(engine.CancelSession{})
	if err != nil {
		return err
	}
	if out.Changed {
		s.printf("cancelled")
	} else {
		s.printf("nothing to cancel")
	}
	return nil
}

func (s *Shell) cmdUnlink(args []string) error {
	if len(args) != 1 {
		return usageError(s.commands["unlink"].usage)
	}
	out, err := s.submit(engine.RemoveConnection{ConnectionID: args[0]})
	if err != nil {
		return err
	}
	if out.Changed {
		s.printf("removed %s", args[0])
	} else {
		s.printf("no connection %s", args[0])
	}
	return nil
}

func (s *Shell) cmdKind(args []string) error {
	if len(args) != 2 {
		return usageError(s.commands["kind"].usage)
	}
	kind, err := ir.ParseJoinKind(args[1])
	if err != nil {
		// Let the canvas reject it so the attempt is journaled.
		kind = ir.JoinKind(args[1])
	}
	if _, err := s.submit(engine.SetJoinKind{ConnectionID: args[0], JoinKind: kind}); err != nil {
		return err
	}
	s.printf("%s: %s", args[0], s.label(args[0]))
	return nil
}

func (s *Shell) cmdSQL(args []string) error {
	out, err := s.submit(engine.RequestCompile{})
	if err != nil {
		return err
	}
	s.printf("%s", out.Query)

	snapshot := s.engine.Snapshot(s.design)
	if sel, ok := s.compiler.Build(snapshot.Instances, snapshot.Connections, s.catalog); ok {
		for _, w := range queryir.Validate(sel).Warnings {
			s.printf("-- warning: %s", w)
		}
	}
	return nil
}

func (s *Shell) cmdReset(args []string) error {
	if _, err := s.submit(engine.ResetCanvas{}); err != nil {
		return err
	}
	s.printf("canvas cleared")
	return nil
}

func (s *Shell) cmdShow(args []string) error {
	instances := s.engine.Instances()
	if len(instances) == 0 {
		s.printf("canvas is empty")
	}
	for _, inst := range instances {
		s.printf("%s  %s  (%d, %d)", inst.InstanceID, inst.RelationID, inst.Position.X, inst.Position.Y)
	}
	for _, rc := range s.engine.ResolvedConnections() {
		s.printf("%s  %s.%s → %s.%s  %s",
			rc.ID, rc.SourceInstanceID, rc.SourceColumn, rc.TargetInstanceID, rc.TargetColumn, rc.JoinKind.Phrase())
	}
	s.printf("session: %s", s.engine.Session())
	return nil
}

func (s *Shell) cmdSave(args []string) error {
	if len(args) != 1 {
		return usageError(s.commands["save"].usage)
	}
	if s.store == nil {
		return fmt.Errorf("no store configured (pass --db or set %s)", EnvDB)
	}
	name := args[0]

	last, err := s.store.LastSeq(s.ctx, name)
	if err != nil {
		return err
	}
	if last > 0 && s.design != name {
		return fmt.Errorf("design %q already has a journal; open it first or save under another name", name)
	}

	info, err := s.store.SaveDesign(s.ctx, name, s.engine.Snapshot(name))
	if err != nil {
		return err
	}
	if !s.unjournaled {
		if err := s.store.AppendGestures(s.ctx, name, s.engine.Journal()); err != nil {
			return err
		}
	}
	s.design = name
	s.printf("saved %s revision %d (%s)", name, info.Revision, shortHash(info.Hash))
	return nil
}

// cmdOpen replays a saved design's journal, so the reopened canvas keeps
// its history and can be saved again under the same name. A design
// without a journal is restored from its snapshot.
func (s *Shell) cmdOpen(args []string) error {
	if len(args) != 1 {
		return usageError(s.commands["open"].usage)
	}
	if s.store == nil {
		return fmt.Errorf("no store configured (pass --db or set %s)", EnvDB)
	}
	name := args[0]

	journal, err := s.store.ReadJournal(s.ctx, name)
	if err != nil {
		return err
	}

	instanceIDs := canvas.NewSequenceGenerator("i")
	connectionIDs := canvas.NewSequenceGenerator("c")
	opts := s.engineOptions(instanceIDs, connectionIDs)

	var e *engine.Engine
	unjournaled := len(journal) == 0
	if !unjournaled {
		e, err = engine.Replay(s.ctx, s.catalog, journal, opts...)
	} else {
		var design ir.Design
		design, err = s.store.LoadDesign(s.ctx, name)
		if err == nil {
			e, err = engine.NewFromDesign(design, s.catalog, opts...)
		}
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}

	// Ids of removed instances stay retired too.
	for _, entry := range journal {
		instanceIDs.Skip(entry.InstanceID)
		connectionIDs.Skip(entry.ConnectionID)
	}
	for _, inst := range e.Instances() {
		instanceIDs.Skip(inst.InstanceID)
	}
	for _, c := range e.Connections() {
		connectionIDs.Skip(c.ID)
	}

	s.start(e)
	s.design = name
	s.unjournaled = unjournaled
	s.printf("opened %s: %d instance(s), %d connection(s)", name, len(e.Instances()), len(e.Connections()))
	return nil
}

func (s *Shell) cmdExport(args []string) error {
	if len(args) != 1 {
		return usageError(s.commands["export"].usage)
	}
	name := s.design
	if name == "" {
		name = designNameFromPath(args[0])
	}
	if err := WriteDesignFile(args[0], s.engine.Snapshot(name)); err != nil {
		return err
	}
	s.printf("wrote %s", args[0])
	return nil
}

func (s *Shell) cmdHelp(args []string) error {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		if name != "exit" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	width := 0
	for _, name := range names {
		width = max(width, len(s.commands[name].usage))
	}
	for _, name := range names {
		c := s.commands[name]
		s.printf("  %-*s  %s", width, c.usage, c.help)
	}
	return nil
}

// completer completes command names, relation ids after place, and
// instance and connection ids elsewhere.
func (s *Shell) completer() readline.AutoCompleter {
	relations := func(string) []string {
		var ids []string
		for _, rel := range s.catalog.List() {
			ids = append(ids, rel.ID)
		}
		return ids
	}
	instances := func(string) []string {
		var ids []string
		for _, inst := range s.engine.Instances() {
			ids = append(ids, inst.InstanceID)
		}
		return ids
	}
	fields := func(string) []string {
		var out []string
		for _, inst := range s.engine.Instances() {
			rel, ok := s.catalog.Lookup(inst.RelationID)
			if !ok {
				continue
			}
			for _, col := range rel.Columns {
				out = append(out, inst.InstanceID+"."+col.Name)
			}
		}
		return out
	}
	connections := func(string) []string {
		var ids []string
		for _, c := range s.engine.Connections() {
			ids = append(ids, c.ID)
		}
		return ids
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("place", readline.PcItemDynamic(relations)),
		readline.PcItem("remove", readline.PcItemDynamic(instances)),
		readline.PcItem("move", readline.PcItemDynamic(instances)),
		readline.PcItem("click", readline.PcItemDynamic(fields)),
		readline.PcItem("cancel"),
		readline.PcItem("unlink", readline.PcItemDynamic(connections)),
		readline.PcItem("kind", readline.PcItemDynamic(connections,
			readline.PcItem("inner"),
			readline.PcItem("left"),
			readline.PcItem("right"),
			readline.PcItem("full"),
		)),
		readline.PcItem("sql"),
		readline.PcItem("reset"),
		readline.PcItem("show"),
		readline.PcItem("save"),
		readline.PcItem("open"),
		readline.PcItem("export"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

func parsePosition(xs, ys string) (ir.Position, error) {
	x, err := strconv.ParseInt(xs, 10, 64)
	if err != nil {
		return ir.Position{}, fmt.Errorf("invalid x %q", xs)
	}
	y, err := strconv.ParseInt(ys, 10, 64)
	if err != nil {
		return ir.Position{}, fmt.Errorf("invalid y %q", ys)
	}
	return ir.Position{X: x, Y: y}, nil
}

func shortHash(h string) string {
	if i := strings.IndexByte(h, ':'); i >= 0 {
		h = h[i+1:]
	}
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
