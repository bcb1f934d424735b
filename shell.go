package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"go-kvtree/client"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const shellHelp = `Reads one command per line: put, get, del, scan, dump, stats, verify,
reset. Type 'exit' to quit.`

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands interactively",
		Long:  shellHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return readlineLoop(a.cfg.Shell.Prompt, a.cfg.Shell.HistoryFile, a.execLine)
		},
	}
}

func connectCmd() *cobra.Command {
	var prompt, history string

	cmd := &cobra.Command{
		Use:   "connect <host:port>",
		Short: "Run commands interactively against a server",
		Long:  shellHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Dial(args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			return readlineLoop(prompt, history, c.Exec)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "kvtree> ", "shell prompt")
	cmd.Flags().StringVar(&history, "history", "", "history file")
	return cmd
}

func readlineLoop(prompt, history string, exec func(line string) (string, error)) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     history,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	return shell(rl.Readline, rl.Stdout(), exec)
}

// shell executes lines returned by readLine until it fails or the user
// exits. Errors of single commands are printed, not returned.
func shell(readLine func() (string, error), out io.Writer, exec func(line string) (string, error)) error {
	for {
		line, err := readLine()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		res, err := exec(line)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		if _, err := io.WriteString(out, res); err != nil {
			return err
		}
	}
}

// execLine parses and runs one command against the local tree.
func (a *app) execLine(line string) (string, error) {
	q, err := a.services.ParserService.ParseQuery([]byte(line))
	if err != nil {
		return "", err
	}

	res, err := a.services.ExecutorService.Exec(q)
	if err != nil {
		return "", err
	}

	buf := &bytes.Buffer{}
	_, err = res.WriteTo(buf)
	return buf.String(), err
}
