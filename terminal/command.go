package terminal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"memcheat/cheat"
	"memcheat/coloransi"
	"memcheat/hexdump"
	"memcheat/process"
	"memcheat/process/memory_map"
	"memcheat/scan"
	"memcheat/value"
)

const (
	defaultResults = 20
	defaultPeek    = 64
	maxPeek        = 1 << 16
)

var argumentsErr = "invalid number of arguments, expected %s, actual %d"

type cmdFn func(ctx context.Context, t *Term, args []string) error

type command struct {
	aliases []string
	fn      cmdFn
	help    string
}

func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

type Commands struct {
	cmds []command
}

func NewCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{
			aliases: []string{"help", "h"},
			fn:      c.help,
			help: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{
			aliases: []string{"regions", "maps"},
			fn:      regions,
			help: `Lists the target's readable regions.

	regions [mask]

mask is a class list such as "heap", "heap+main" or "all" (the default).`},
		{
			aliases: []string{"scope"},
			fn:      scope,
			help: `Shows or sets the region classes searched by start.

	scope [mask]`},
		{
			aliases: []string{"fast"},
			fn:      fast,
			help: `Shows or toggles fast scanning (aligned addresses only).

	fast [on|off]`},
		{
			aliases: []string{"start", "s"},
			fn:      start,
			help: `Starts a new search, discarding any previous candidates.

	start <type> <op> [value] [upper]

type is one of u8 u16 u32 u64 s8 s16 s32 s64 f32 f64 aob string.
op is eq, gt, lt, between or unknown.`},
		{
			aliases: []string{"refine", "r", "next"},
			fn:      refine,
			help: `Narrows the current candidates.

	refine <op> [value] [upper]

op is eq, gt, lt, between, changed, unchanged, increased or decreased.`},
		{
			aliases: []string{"results", "res"},
			fn:      results,
			help: `Lists candidates with the value seen by the last pass.

	results [n]`},
		{
			aliases: []string{"progress", "status"},
			fn:      progress,
			help:    "Shows the search state and the progress of a running pass.",
		},
		{
			aliases: []string{"reset"},
			fn:      reset,
			help:    "Discards the current search.",
		},
		{
			aliases: []string{"peek", "x"},
			fn:      peek,
			help: `Hex dumps target memory.

	peek <addr> [n]`},
		{
			aliases: []string{"poke", "w"},
			fn:      poke,
			help: `Writes a value into the target.

	poke <addr> <type> <value>`},
		{
			aliases: []string{"promote", "p"},
			fn:      promote,
			help: `Turns an address into an enabled cheat.

	promote <name> <addr> [value]

Without a value the candidate's last seen value is frozen.`},
		{
			aliases: []string{"cheat", "c"},
			fn:      cheats,
			help: `Manages the cheat list.

	cheat ls
	cheat add <name> <addr> <type> <value>
	cheat rm <name>
	cheat on <name>
	cheat off <name>
	cheat load [file]
	cheat save [file]`},
		{
			aliases: []string{"apply"},
			fn:      apply,
			help:    "Applies every enabled cheat once.",
		},
		{
			aliases: []string{"exit", "quit", "q"},
			fn:      exit,
			help:    "Exits the shell.",
		},
	}
	return c
}

// Find looks up the command for cmdstr; unknown names yield noCmdAvailable
func (c *Commands) Find(cmdstr string) command {
	if cmdstr == "" {
		return command{aliases: []string{"nullcmd"}, fn: nullCommand}
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v
		}
	}

	return command{aliases: []string{cmdstr}, fn: noCmdAvailable}
}

func (c *Commands) Call(ctx context.Context, t *Term, args []string) error {
	if len(args) == 0 {
		return nil
	}
	return c.Find(args[0]).fn(ctx, t, args[1:])
}

func (c *Commands) aliases() []string {
	var out []string
	for _, cmd := range c.cmds {
		out = append(out, cmd.aliases...)
	}
	return out
}

func (c *Commands) help(ctx context.Context, t *Term, args []string) error {
	if len(args) > 0 {
		cmd := c.Find(args[0])
		if cmd.help == "" {
			return fmt.Errorf("%w: %s", errNoCmd, args[0])
		}
		fmt.Fprintln(t.stdout, cmd.help)
		return nil
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 0, '-', 0)
	for _, cmd := range c.cmds {
		h := cmd.help
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(t.stdout)
	return nil
}

func regions(ctx context.Context, t *Term, args []string) error {
	mask := memory_map.KindAll
	if len(args) > 0 {
		var err error
		if mask, err = memory_map.ParseKindMask(strings.Join(args, "+")); err != nil {
			return err
		}
	}

	list, err := t.engine.Regions(mask)
	if err != nil {
		return err
	}

	tbl := newTable(
		column{header: "start"},
		column{header: "end"},
		column{header: "perm"},
		column{header: "class", format: t.kindColor},
		column{header: "size", right: true},
	)
	var total uint64
	for _, r := range list {
		tbl.add(fmt.Sprintf("%016x", r.Base), fmt.Sprintf("%016x", r.End()), r.Perm.String(), r.Kind.String(), strconv.FormatUint(r.Length, 10))
		total += r.Length
	}
	if err := tbl.render(t.stdout); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%d regions, %d bytes\n", len(list), total)
	return nil
}

func (t *Term) kindColor(s string) string {
	switch s {
	case memory_map.KindHeap.String():
		return t.paint.Foreground(coloransi.Green, s)
	case memory_map.KindCodeMutable.String():
		return t.paint.Foreground(coloransi.Orange, s)
	case memory_map.KindCodeStatic.String():
		return t.paint.Foreground(coloransi.BrightBlack, s)
	}
	return s
}

func scope(ctx context.Context, t *Term, args []string) error {
	if len(args) > 0 {
		mask, err := memory_map.ParseKindMask(strings.Join(args, "+"))
		if err != nil {
			return err
		}
		t.engine.SetScope(mask)
	}
	fmt.Fprintf(t.stdout, "scope: %s\n", t.engine.Scope())
	return nil
}

func fast(ctx context.Context, t *Term, args []string) error {
	session := t.engine.Session()
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "on", "true", "1":
			session.SetFastScan(true)
		case "off", "false", "0":
			session.SetFastScan(false)
		default:
			return fmt.Errorf("fast takes on or off, got %q", args[0])
		}
	}
	state := "off"
	if session.FastScan() {
		state = "on"
	}
	fmt.Fprintf(t.stdout, "fast scanning: %s\n", state)
	return nil
}

func start(ctx context.Context, t *Term, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf(argumentsErr, "at least 2", len(args))
	}

	dt, err := value.ParseDataType(args[0])
	if err != nil {
		return err
	}
	pred, err := scan.ParsePredicate(args[1], dt, args[2:]...)
	if err != nil {
		return err
	}

	fmt.Fprintf(t.stdout, "Searching %s for %s %s...\n", t.engine.Scope(), dt, pred)
	res, err := t.engine.Start(ctx, dt, pred)
	if err != nil {
		return err
	}
	t.printPass(res)
	return nil
}

func refine(ctx context.Context, t *Term, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(argumentsErr, "at least 1", len(args))
	}

	session := t.engine.Session()
	if session.State() != scan.HasCandidates {
		return fmt.Errorf("%w: nothing to refine (%s), use start", scan.ErrInvalidState, session.State())
	}

	pred, err := scan.ParsePredicate(args[0], session.DataType(), args[1:]...)
	if err != nil {
		return err
	}

	res, err := t.engine.Refine(ctx, pred)
	if err != nil {
		return err
	}
	t.printPass(res)
	return nil
}

func (t *Term) printPass(res scan.PassResult) {
	if res.NoRegions {
		fmt.Fprintf(t.stdout, "No regions in scope %s\n", t.engine.Scope())
		return
	}

	count := t.paint.Foreground(coloransi.Green, res.Matched)
	if res.Matched == 0 {
		count = t.paint.Foreground(coloransi.Red, res.Matched)
	}
	fmt.Fprintf(t.stdout, "Pass %d (%s): %s candidates", res.Pass, res.Operation, count)
	if res.Removed > 0 {
		fmt.Fprintf(t.stdout, ", %d removed", res.Removed)
	}
	if res.Faults > 0 {
		fmt.Fprintf(t.stdout, ", %s", t.paint.Foreground(coloransi.Yellow, res.Faults, "unreadable"))
	}
	fmt.Fprintf(t.stdout, " [%d tested in %s]\n", res.Scanned, res.Elapsed.Round(time.Microsecond))

	if res.Matched == 0 {
		fmt.Fprintln(t.stdout, "No candidates left, start a new search")
	}
}

func results(ctx context.Context, t *Term, args []string) error {
	n := defaultResults
	if len(args) > 0 {
		var err error
		if n, err = strconv.Atoi(args[0]); err != nil || n <= 0 {
			return fmt.Errorf("invalid result count %q", args[0])
		}
	}

	session := t.engine.Session()
	total := session.Count()
	if total == 0 {
		fmt.Fprintf(t.stdout, "No candidates (%s)\n", session.State())
		return nil
	}

	tbl := newTable(
		column{header: "#", right: true},
		column{header: "address", format: func(s string) string { return t.paint.Foreground(coloransi.Cyan, s) }},
		column{header: "value", right: true},
	)
	for i, c := range session.CandidatesN(n) {
		tbl.add(strconv.Itoa(i), c.Address.ToString(), value.Format(c.LastValue))
	}
	if err := tbl.render(t.stdout); err != nil {
		return err
	}
	if total > n {
		fmt.Fprintf(t.stdout, "... showing %d of %d candidates\n", n, total)
	}
	return nil
}

func progress(ctx context.Context, t *Term, args []string) error {
	p := t.engine.Progress()

	fmt.Fprintf(t.stdout, "state: %s (%s)\n", p.State, searchCount(p.Passes))
	if t.engine.Scanning() {
		fmt.Fprintf(t.stdout, "regions: %d/%d candidates: %d/%d faults: %d\n",
			p.RegionsDone, p.RegionsTotal, p.CandidatesDone, p.CandidatesTotal, p.Faults)
	}
	if p.State == scan.HasCandidates || p.State == scan.Empty {
		fmt.Fprintf(t.stdout, "candidates: %d type: %s\n", p.Candidates, t.engine.Session().DataType())
	}
	fmt.Fprintf(t.stdout, "cheats: %d, apply loop: %s\n", t.engine.Cheats().Len(), runningText(t.engine.Applier().Running()))
	return nil
}

func searchCount(n int) string {
	switch n {
	case 0:
		return "no searches"
	case 1:
		return "one search"
	}
	return fmt.Sprintf("%d searches", n)
}

func runningText(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

func reset(ctx context.Context, t *Term, args []string) error {
	t.engine.Reset()
	fmt.Fprintln(t.stdout, "Search reset")
	return nil
}

func peek(ctx context.Context, t *Term, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf(argumentsErr, "1 or 2", len(args))
	}

	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	n := defaultPeek
	if len(args) == 2 {
		if n, err = strconv.Atoi(args[1]); err != nil || n <= 0 || n > maxPeek {
			return fmt.Errorf("invalid length %q", args[1])
		}
	}

	data, err := t.engine.Read(addr, n)
	if err != nil {
		return err
	}

	regions, _ := t.engine.Regions(memory_map.KindAll)
	return hexdump.Dump(t.stdout, data, hexdump.Options{
		StartAddress: uint64(addr),
		Regions:      regions,
		Painter:      t.paint,
	})
}

func poke(ctx context.Context, t *Term, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf(argumentsErr, "3", len(args))
	}

	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	dt, err := value.ParseDataType(args[1])
	if err != nil {
		return err
	}
	v, err := value.Parse(args[2], dt)
	if err != nil {
		return err
	}

	if err := t.engine.Write(addr, v); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%s <- %s (%s)\n", addr.ToString(), v, v.Type())
	return nil
}

func promote(ctx context.Context, t *Term, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf(argumentsErr, "2 or 3", len(args))
	}

	addr, err := parseAddress(args[1])
	if err != nil {
		return err
	}

	var v value.Value
	if len(args) == 3 {
		dt := t.engine.Session().DataType()
		if dt.Size() == 0 {
			return fmt.Errorf("%w: no search type to parse %q with", scan.ErrInvalidState, args[2])
		}
		if v, err = value.Parse(args[2], dt); err != nil {
			return err
		}
	}

	entry, err := t.engine.Promote(args[0], addr, v)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Cheat %q: %s\n", entry.Name, entry.Patches[0])
	return nil
}

func cheats(ctx context.Context, t *Term, args []string) error {
	if len(args) == 0 {
		return listCheats(t)
	}

	list := t.engine.Cheats()
	sub, rest := args[0], args[1:]

	needName := func() error {
		if len(rest) != 1 {
			return fmt.Errorf(argumentsErr, "a cheat name", len(rest))
		}
		return nil
	}

	switch sub {
	case "ls", "list":
		return listCheats(t)

	case "add":
		if len(rest) != 4 {
			return fmt.Errorf(argumentsErr, "4", len(rest))
		}
		addr, err := parseAddress(rest[1])
		if err != nil {
			return err
		}
		dt, err := value.ParseDataType(rest[2])
		if err != nil {
			return err
		}
		v, err := value.Parse(rest[3], dt)
		if err != nil {
			return err
		}
		entry, err := cheat.NewEntry(rest[0], true, cheat.Patch{Address: addr, Value: v})
		if err != nil {
			return err
		}
		return list.Add(entry)

	case "rm", "remove", "del":
		if err := needName(); err != nil {
			return err
		}
		return list.Remove(rest[0])

	case "on", "enable":
		if err := needName(); err != nil {
			return err
		}
		return list.SetEnabled(rest[0], true)

	case "off", "disable":
		if err := needName(); err != nil {
			return err
		}
		return list.SetEnabled(rest[0], false)

	case "load":
		path := t.engine.Config().Cheats
		if len(rest) > 0 {
			path = rest[0]
		}
		n, err := t.engine.LoadCheats(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(t.stdout, "Loaded %d cheats from %s\n", n, path)
		return nil

	case "save":
		path := t.engine.Config().Cheats
		if len(rest) > 0 {
			path = rest[0]
		}
		if err := t.engine.SaveCheats(path); err != nil {
			return err
		}
		fmt.Fprintf(t.stdout, "Saved %d cheats to %s\n", list.Len(), path)
		return nil
	}

	return fmt.Errorf("unknown cheat command %q, see help cheat", sub)
}

func listCheats(t *Term) error {
	entries := t.engine.Cheats().List()
	if len(entries) == 0 {
		fmt.Fprintln(t.stdout, "No cheats")
		return nil
	}

	tbl := newTable(
		column{header: "name"},
		column{header: "state", format: func(s string) string {
			if s == "on" {
				return t.paint.Foreground(coloransi.Green, s)
			}
			return t.paint.Foreground(coloransi.BrightBlack, s)
		}},
		column{header: "patches"},
	)
	for _, e := range entries {
		state := "off"
		if e.Enabled {
			state = "on"
		}
		patches := make([]string, len(e.Patches))
		for i, p := range e.Patches {
			patches[i] = p.String()
		}
		tbl.add(e.Name, state, strings.Join(patches, ", "))
	}
	return tbl.render(t.stdout)
}

func apply(ctx context.Context, t *Term, args []string) error {
	var (
		res cheat.ApplyResult
		err error
	)
	if t.engine.Applier().Running() {
		res, err = t.engine.TriggerApply(ctx)
	} else {
		res, err = t.engine.ApplyNow()
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(t.stdout, "Applied %d cheats, %d writes", res.Entries, res.Writes)
	if len(res.Failures) > 0 {
		fmt.Fprintf(t.stdout, ", %s", t.paint.Foreground(coloransi.Red, len(res.Failures), "failed"))
	}
	fmt.Fprintln(t.stdout)
	for _, f := range res.Failures {
		fmt.Fprintf(t.stdout, "    %s\n", f.Error())
	}
	return nil
}

func parseAddress(s string) (process.ProcessMemoryAddress, error) {
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return process.ProcessMemoryAddress(n), nil
}

type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exit(ctx context.Context, t *Term, args []string) error {
	return ExitRequestError{}
}

var errNoCmd = errors.New("command not available")

func noCmdAvailable(ctx context.Context, t *Term, args []string) error {
	return errNoCmd
}

func nullCommand(ctx context.Context, t *Term, args []string) error {
	return nil
}
