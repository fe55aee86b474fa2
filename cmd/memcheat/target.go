package main

import (
	"errors"
	"fmt"
	"os"

	"memcheat/cheat"
	"memcheat/config"
	"memcheat/engine"
	"memcheat/process"
	"memcheat/process/memory_map"
	"memcheat/process_linux"

	"github.com/urfave/cli"
)

var targetFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "pid, p",
		Usage: "target process id",
	},
	cli.StringFlag{
		Name:  "name, n",
		Usage: "target process name, matched against comm and the executable name",
	},
}

// openTarget attaches to the process named by --pid or --name
func openTarget(c *cli.Context) (*process_linux.LinuxProcess, error) {
	pid, name := c.Int("pid"), c.String("name")

	switch {
	case pid != 0 && name != "":
		return nil, errors.New("give either --pid or --name, not both")
	case name != "":
		info, err := process_linux.OneByName(name)
		if err != nil {
			return nil, err
		}
		pid = int(info.PID)
	case pid == 0:
		return nil, errors.New("--pid or --name is required")
	}

	return process_linux.NewWithPID(process.ProcessID(pid))
}

// loadConfig reads the --config file and applies the command's overrides
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.LoadFile(c.GlobalString("config"))
	if err != nil {
		return cfg, err
	}

	if c.IsSet("mask") {
		cfg.Scan.Regions = c.String("mask")
	}
	if c.IsSet("slow") {
		cfg.Scan.FastScan = !c.Bool("slow")
	}
	if c.IsSet("maxdop") {
		cfg.Scan.MaxDOP = uint(c.Int("maxdop"))
	}
	if c.IsSet("interval") {
		cfg.Apply.Interval = config.Duration(c.Duration("interval"))
	}
	if c.IsSet("cheats") {
		cfg.Cheats = c.String("cheats")
	}

	return cfg, cfg.Validate()
}

func newEngine(c *cli.Context, acc process.MemoryAccessor, options ...cheat.ApplierOption) (*engine.Engine, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return engine.New(acc, cfg, options...)
}

// loadDefaultCheats loads the configured cheat file when it exists
func loadDefaultCheats(e *engine.Engine) error {
	path := e.Config().Cheats
	if path == "" {
		return nil
	}
	if _, err := os.Stat(config.ExpandPath(path)); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	n, err := e.LoadCheats(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	fmt.Printf("Loaded %d cheats from %s\n", n, path)
	return nil
}

func maskFlag(value string) cli.StringFlag {
	return cli.StringFlag{
		Name:  "mask, m",
		Usage: "region classes: heap, main, code, mapped or all, joined with +",
		Value: value,
	}
}

func parseMask(c *cli.Context) (memory_map.Kind, error) {
	return memory_map.ParseKindMask(c.String("mask"))
}
