package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"memcheat/cheat"
	"memcheat/process"
	"memcheat/process_blob"
	"memcheat/terminal"

	"github.com/urfave/cli"
)

var shellFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "cheats",
		Usage: "cheat file loaded at start and used by cheat load/save",
	},
	cli.BoolFlag{
		Name:  "slow",
		Usage: "start with fast scanning off",
	},
	cli.IntFlag{
		Name:  "maxdop",
		Usage: "regions scanned in parallel",
	},
	maskFlag(""),
}

var attach = cli.Command{
	Name:  "attach",
	Usage: "open an interactive shell on a running process",
	Flags: append(append([]cli.Flag{}, shellFlags...), targetFlags...),
	Action: func(c *cli.Context) error {
		proc, err := openTarget(c)
		if err != nil {
			return err
		}
		defer proc.Close()

		return runShell(c, proc, fmt.Sprint(proc.GetPID()))
	},
}

var open = cli.Command{
	Name:  "open",
	Usage: "open an interactive shell on a saved dump",
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:  "from, f",
			Usage: "dump directory written by memcheat dump",
		},
	}, shellFlags...),
	Action: func(c *cli.Context) error {
		dir := c.String("from")
		if dir == "" {
			return errors.New("--from is required")
		}

		blob := process_blob.NewProcessDump()
		if err := blob.Load(dir); err != nil {
			return err
		}
		defer blob.Close()

		fmt.Printf("Loaded dump of %s (pid %d), %d regions\n", blob.Name, blob.PID, len(blob.MemoryMap))
		return runShell(c, blob, filepath.Base(filepath.Clean(dir)))
	},
}

func runShell(c *cli.Context, acc process.MemoryAccessor, name string) error {
	e, err := newEngine(c, acc)
	if err != nil {
		return err
	}
	if err := loadDefaultCheats(e); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	return terminal.New(e, name).Run(context.Background())
}

var dump = cli.Command{
	Name:  "dump",
	Usage: "save the readable memory of a process to a directory",
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:  "output, o",
			Usage: "output directory",
		},
	}, targetFlags...),
	Action: func(c *cli.Context) error {
		output := c.String("output")
		if output == "" {
			return errors.New("--output is required")
		}

		proc, err := openTarget(c)
		if err != nil {
			return err
		}
		defer proc.Close()

		fmt.Printf("Saving process %d to %s...\n", proc.GetPID(), output)
		if err := proc.Save(output); err != nil {
			return err
		}
		fmt.Println("Dump saved successfully.")
		return nil
	},
}

var apply = cli.Command{
	Name:  "apply",
	Usage: "keep the enabled cheats of a cheat file applied until interrupted",
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:  "cheats",
			Usage: "cheat file, defaults to the configured one",
		},
		cli.DurationFlag{
			Name:  "interval, i",
			Usage: "time between applications",
		},
	}, targetFlags...),
	Action: func(c *cli.Context) error {
		proc, err := openTarget(c)
		if err != nil {
			return err
		}
		defer proc.Close()

		var last cheat.ApplyResult
		e, err := newEngine(c, proc, cheat.WithResultHandler(func(res cheat.ApplyResult, err error) {
			if err == nil {
				last = res
			}
		}))
		if err != nil {
			return err
		}

		n, err := e.LoadCheats(e.Config().Cheats)
		if err != nil {
			return err
		}
		fmt.Printf("Applying %d cheats to process %d every %s, ^C to stop\n", n, proc.GetPID(), e.Applier().Interval())

		ctx, stop := interruptContext()
		defer stop()

		started := time.Now()
		if err := e.RunApplier(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		stats := e.Applier().Stats()
		fmt.Printf("Stopped after %s: %d ticks, %d applied, %d failed writes\n",
			time.Since(started).Round(time.Millisecond), stats.Ticks, stats.Applied, stats.Failures)
		if len(last.Failures) > 0 {
			fmt.Println("Last failures:")
			for _, f := range last.Failures {
				fmt.Println("   ", f.Error())
			}
		}
		return nil
	},
}
