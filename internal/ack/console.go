package ack

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Console reads acknowledgments from a terminal. An empty line releases the
// oldest waiting instance; any other line is taken as an instance id.
type Console struct {
	Hub *Hub
	In  io.Reader
	Out io.Writer
	Log *slog.Logger
}

// Run returns when In is exhausted or ctx ends. A blocked read on In is left
// behind on cancellation. Reaching the end of In is logged as a warning and
// returns nil; waiting instances then need another front end.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.In)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Hub.Changed():
			c.prompt()
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read acknowledgments: %w", err)
			}
			c.log().Warn("stdin closed; purchase acknowledgments need --listen")
			return nil
		case line := <-lines:
			c.handle(strings.TrimSpace(line))
		}
	}
}

func (c *Console) prompt() {
	pending := c.Hub.Pending()
	if len(pending) == 0 {
		return
	}
	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.Instance
	}
	fmt.Fprintf(c.Out, "waiting for purchase: %s\npress Enter to continue the oldest, or type an instance id: ", strings.Join(ids, ", "))
}

func (c *Console) handle(line string) {
	var (
		id  = line
		err error
	)
	if line == "" {
		id, err = c.Hub.AckOldest()
	} else {
		err = c.Hub.Ack(line)
	}
	if err != nil {
		fmt.Fprintf(c.Out, "%v\n", err)
		return
	}
	c.log().Info("purchase acknowledged from console", "instance", id)
	fmt.Fprintf(c.Out, "continuing %s\n", id)
	c.prompt()
}

func (c *Console) log() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}
