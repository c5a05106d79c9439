// Command repcrep runs a replicated, snapshot-isolated transaction manager
// simulator over a command-stream file. Batch mode replays the whole
// stream to stdout; -tui steps through it interactively.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"repcrep/pkg/command"
	"repcrep/pkg/driver"
	"repcrep/pkg/report"
)

func main() {
	var (
		useTUI = flag.Bool("tui", false, "step through the command stream interactively")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: repcrep [-tui] <command-file>")
		os.Exit(2)
	}

	cmds, err := readCommandFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "repcrep:", err)
		os.Exit(1)
	}

	if *useTUI {
		if err := runTUI(cmds); err != nil {
			fmt.Fprintln(os.Stderr, "repcrep:", err)
			os.Exit(1)
		}
		return
	}

	d := driver.New(report.NewReporter(os.Stdout))
	if err := d.Run(cmds); err != nil {
		fmt.Fprintln(os.Stderr, "repcrep:", err)
		os.Exit(1)
	}
}

func readCommandFile(path string) ([]command.Command, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return command.ParseStream(lines)
}

func runTUI(cmds []command.Command) error {
	_, err := tea.NewProgram(newModel(cmds)).Run()
	return err
}
