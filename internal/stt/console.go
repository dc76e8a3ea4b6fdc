package stt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Console reads "transcripts" line by line from a reader. Echo mode uses
// it so the loop runs with no audio device and no network.
type Console struct {
	sc  *bufio.Scanner
	out io.Writer
}

func NewConsole(r io.Reader, out io.Writer) *Console {
	return &Console{sc: bufio.NewScanner(r), out: out}
}

func (c *Console) Transcribe(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprint(c.out, "> ")
	if !c.sc.Scan() {
		if err := c.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}

	text := strings.TrimSpace(c.sc.Text())
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
