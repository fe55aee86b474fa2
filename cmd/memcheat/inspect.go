package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"memcheat/coloransi"
	"memcheat/hexdump"
	"memcheat/process"
	"memcheat/process/memory_map"
	"memcheat/process_blob"
	"memcheat/process_linux"
	"memcheat/scan"
	"memcheat/value"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli"
)

var ps = cli.Command{
	Name:      "ps",
	Usage:     "list processes, optionally only those matching a name",
	ArgsUsage: "[name]",
	Action: func(c *cli.Context) error {
		var (
			list []process.ProcessInfo
			err  error
		)
		if name := c.Args().First(); name != "" {
			list, err = process_linux.ListByName(name)
		} else {
			list, err = process_linux.List()
		}
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "PID\tNAME")
		for _, p := range list {
			fmt.Fprintf(w, "%d\t%s\n", p.PID, p.Name)
		}
		return w.Flush()
	},
}

var regions = cli.Command{
	Name:  "regions",
	Usage: "print the classified memory regions of a process",
	Flags: append([]cli.Flag{maskFlag("all")}, targetFlags...),
	Action: func(c *cli.Context) error {
		mask, err := parseMask(c)
		if err != nil {
			return err
		}
		proc, err := openTarget(c)
		if err != nil {
			return err
		}
		defer proc.Close()

		list, err := proc.EnumerateRegions(mask)
		if err != nil {
			return err
		}

		var total uint64
		for _, r := range list {
			fmt.Println(r)
			total += r.Length
		}
		fmt.Printf("%d regions, %d bytes\n", len(list), total)
		return nil
	},
}

var scanCmd = cli.Command{
	Name:  "scan",
	Usage: "run one first pass and print the matches",
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:  "type, t",
			Usage: "value type: u8..u64, s8..s64, f32, f64, aob, string",
			Value: "u32",
		},
		cli.StringFlag{
			Name:  "op, o",
			Usage: "eq, gt, lt, between or unknown",
			Value: "eq",
		},
		cli.StringFlag{
			Name:  "value, v",
			Usage: "value to compare with, lower bound for between",
		},
		cli.StringFlag{
			Name:  "value2",
			Usage: "upper bound for between",
		},
		cli.IntFlag{
			Name:  "limit, l",
			Usage: "number of matches to print",
			Value: 20,
		},
		cli.BoolFlag{
			Name:  "slow",
			Usage: "test every byte offset instead of aligned addresses only",
		},
		cli.IntFlag{
			Name:  "maxdop",
			Usage: "regions scanned in parallel",
		},
		maskFlag(""),
	}, targetFlags...),
	Action: func(c *cli.Context) error {
		dt, err := value.ParseDataType(c.String("type"))
		if err != nil {
			return err
		}

		var operands []string
		for _, name := range []string{"value", "value2"} {
			if c.IsSet(name) {
				operands = append(operands, c.String(name))
			}
		}
		pred, err := scan.ParsePredicate(c.String("op"), dt, operands...)
		if err != nil {
			return err
		}

		proc, err := openTarget(c)
		if err != nil {
			return err
		}
		defer proc.Close()

		e, err := newEngine(c, proc)
		if err != nil {
			return err
		}

		ctx, stop := interruptContext()
		defer stop()

		res, err := e.Start(ctx, dt, pred)
		if err != nil {
			return err
		}
		if res.NoRegions {
			fmt.Printf("No regions in scope %s\n", e.Scope())
			return nil
		}

		fmt.Printf("%d matches, %d addresses tested, %d unreadable pages, %s\n", res.Matched, res.Scanned, res.Faults, res.Elapsed)
		for _, cand := range e.Session().CandidatesN(c.Int("limit")) {
			fmt.Printf("%s  %s\n", cand.Address.ToString(), value.Format(cand.LastValue))
		}
		return nil
	},
}

var peek = cli.Command{
	Name:  "peek",
	Usage: "hex dump memory of a process or of a saved dump",
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:  "from, f",
			Usage: "dump directory to read instead of a live process",
		},
		cli.StringFlag{
			Name:  "addr, a",
			Usage: "address to read, 0x prefixed for hex",
		},
		cli.IntFlag{
			Name:  "size, s",
			Usage: "number of bytes",
			Value: 256,
		},
	}, targetFlags...),
	Action: func(c *cli.Context) error {
		addr, err := strconv.ParseUint(c.String("addr"), 0, 64)
		if err != nil {
			return fmt.Errorf("invalid --addr %q", c.String("addr"))
		}
		if c.Int("size") <= 0 {
			return errors.New("--size must be positive")
		}

		var proc process.Process
		if dir := c.String("from"); dir != "" {
			blob := process_blob.NewProcessDump()
			if err := blob.Load(dir); err != nil {
				return err
			}
			proc = blob
		} else {
			live, err := openTarget(c)
			if err != nil {
				return err
			}
			proc = live
		}
		defer proc.Close()

		data, err := proc.ReadMemory(process.ProcessMemoryAddress(addr), process.ProcessMemorySize(c.Int("size")))
		if err != nil {
			return err
		}

		mapped, _ := proc.EnumerateRegions(memory_map.KindAll)
		return hexdump.Dump(colorable.NewColorableStdout(), data, hexdump.Options{
			StartAddress: addr,
			Regions:      mapped,
			Painter:      coloransi.Painter{Enabled: isatty.IsTerminal(os.Stdout.Fd())},
		})
	},
}

// interruptContext is cancelled by the first SIGINT or SIGTERM
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
