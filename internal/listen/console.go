package listen

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Console reads one typed line per Listen. It is the text-mode stand-in for
// the microphone.
type Console struct {
	sc     *bufio.Scanner
	out    io.Writer
	prompt string
	lines  chan string
	errs   chan error
}

func NewConsole(in io.Reader, out io.Writer, prompt string) *Console {
	c := &Console{
		sc:     bufio.NewScanner(in),
		out:    out,
		prompt: prompt,
		lines:  make(chan string),
		errs:   make(chan error, 1),
	}
	go c.read()
	return c
}

func (c *Console) read() {
	for c.sc.Scan() {
		c.lines <- c.sc.Text()
	}
	err := c.sc.Err()
	if err == nil {
		err = io.EOF
	}
	c.errs <- err
	close(c.lines)
}

// Listen blocks until a line arrives or ctx is done. A cancelled ctx yields
// "" and no error, like a microphone timeout.
func (c *Console) Listen(ctx context.Context) (string, error) {
	if c.out != nil && c.prompt != "" {
		fmt.Fprint(c.out, c.prompt)
	}

	select {
	case <-ctx.Done():
		return "", nil
	case line, ok := <-c.lines:
		if !ok {
			err := <-c.errs
			c.errs <- err
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}
