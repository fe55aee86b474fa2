// Package terminal is the interactive memcheat shell
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"memcheat/coloransi"
	"memcheat/config"
	"memcheat/engine"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"
	"github.com/google/shlex"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const (
	prompt      = "(memcheat) "
	historyFile = "history"
)

type Term struct {
	engine      *engine.Engine
	prompt      string
	line        *liner.State
	cmds        *Commands
	historyFile *os.File
	stdout      io.Writer
	paint       coloransi.Painter

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a shell over e writing to the process stdout. name, when
// given, is shown in the prompt.
func New(e *engine.Engine, name string) *Term {
	t := newTerm(e, colorable.NewColorableStdout(), isatty.IsTerminal(os.Stdout.Fd()))
	if name != "" {
		t.prompt = fmt.Sprintf("(memcheat %s) ", name)
	}
	return t
}

func newTerm(e *engine.Engine, w io.Writer, color bool) *Term {
	return &Term{
		engine: e,
		prompt: prompt,
		cmds:   NewCommands(),
		stdout: w,
		paint:  coloransi.Painter{Enabled: color},
	}
}

// sigintGuard cancels the running command until done is closed; at the
// prompt liner handles ^C itself
func (t *Term) sigintGuard(ch <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ch:
		}

		t.mu.Lock()
		cancel := t.cancel
		t.mu.Unlock()

		if cancel != nil {
			fmt.Fprintln(t.stdout, "received SIGINT, cancelling")
			cancel()
		}
	}
}

// Run reads commands until exit or EOF. The cheat apply loop runs in the
// background for the lifetime of the shell.
func (t *Term) Run(ctx context.Context) error {
	t.line = liner.NewLiner()
	defer t.line.Close()
	t.line.SetCtrlCAborts(true)

	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, syscall.SIGINT)
	defer func() {
		signal.Stop(ch)
		close(done)
	}()
	go t.sigintGuard(ch, done)

	cmds := trie.New()
	for _, alias := range t.cmds.aliases() {
		cmds.Add(alias, nil)
	}
	t.line.SetCompleter(func(line string) (c []string) {
		c = cmds.PrefixSearch(line)
		return
	})

	if err := t.openHistory(); err != nil {
		fmt.Fprintf(t.stdout, "Unable to open history file: %v. History will not be saved for this session.\n", err)
	}

	ctx, stop := context.WithCancel(ctx)
	applier := make(chan error, 1)
	go func() {
		applier <- t.engine.RunApplier(ctx)
	}()
	defer func() {
		stop()
		<-applier
	}()

	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			return fmt.Errorf("prompt for input failed: %w", err)
		}

		if err := t.Execute(ctx, cmdstr); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(t.stdout, "Command failed: %s\n", err)
		}
	}
}

// Execute runs one command line. SIGINT cancels it while it runs.
func (t *Term) Execute(ctx context.Context, cmdstr string) error {
	args, err := shlex.Split(cmdstr)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.cancel = nil
		t.mu.Unlock()
	}()

	return t.cmds.Call(ctx, t, args)
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if strings.TrimSpace(l) != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) openHistory() error {
	fullHistory := filepath.Join(config.ExpandPath(config.DefaultDir), historyFile)
	if err := os.MkdirAll(filepath.Dir(fullHistory), 0755); err != nil {
		return fmt.Errorf("create parent dir failed: %v", err)
	}

	f, err := os.OpenFile(fullHistory, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	if _, err := t.line.ReadHistory(f); err != nil {
		f.Close()
		return err
	}

	t.historyFile = f
	return nil
}

func (t *Term) handleExit() error {
	if t.historyFile == nil {
		return nil
	}

	if err := t.historyFile.Truncate(0); err != nil {
		return err
	}
	if _, err := t.historyFile.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := t.line.WriteHistory(t.historyFile); err != nil {
		fmt.Fprintln(t.stdout, "readline history error:", err)
		return err
	}
	return t.historyFile.Close()
}
