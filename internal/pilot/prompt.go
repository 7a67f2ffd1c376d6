package pilot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/signalsfoundry/airspace-simulator/model"
)

// ErrMalformedVector is returned by ParseVector for input that is not three
// numbers.
var ErrMalformedVector = errors.New("expected three numbers")

// Prompter writes prompts to out and reads answers line by line from in.
// Lines are read on a background goroutine so Ask can honor its context;
// a single Prompter should own in for the life of the process.
type Prompter struct {
	in  io.Reader
	out io.Writer

	start sync.Once
	lines chan string
	err   error // set before lines is closed
}

// NewPrompter creates a Prompter. Nothing is read until the first Ask.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	if out == nil {
		out = io.Discard
	}
	return &Prompter{in: in, out: out, lines: make(chan string)}
}

func (p *Prompter) readLoop() {
	defer close(p.lines)
	sc := bufio.NewScanner(p.in)
	for sc.Scan() {
		p.lines <- sc.Text()
	}
	p.err = sc.Err()
}

// Ask prints prompt and waits for one line of input. It returns io.EOF once
// input is exhausted and ctx.Err() if ctx ends first.
func (p *Prompter) Ask(ctx context.Context, prompt string) (string, error) {
	p.start.Do(func() { go p.readLoop() })
	if _, err := io.WriteString(p.out, prompt); err != nil {
		return "", err
	}
	select {
	case line, ok := <-p.lines:
		if !ok {
			if p.err != nil {
				return "", p.err
			}
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Printf writes a message to the prompter's output.
func (p *Prompter) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// AskVector prompts until it gets a valid vector. Malformed answers are
// reported and the prompt is repeated; a blank answer returns ok == false.
func (p *Prompter) AskVector(ctx context.Context, prompt string) (v model.Vec3, ok bool, err error) {
	for {
		line, err := p.Ask(ctx, prompt)
		if err != nil {
			return model.Vec3{}, false, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return model.Vec3{}, false, nil
		}
		v, err := ParseVector(line)
		if err != nil {
			p.Printf("invalid input %q: %v\n", line, err)
			continue
		}
		return v, true, nil
	}
}

// AskInt prompts until it gets an integer. Blank answers re-prompt.
func (p *Prompter) AskInt(ctx context.Context, prompt string) (int, error) {
	for {
		line, err := p.Ask(ctx, prompt)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			p.Printf("invalid input %q: expected an integer\n", strings.TrimSpace(line))
			continue
		}
		return n, nil
	}
}

// ParseVector parses "x y z", allowing commas as separators.
func ParseVector(s string) (model.Vec3, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != 3 {
		return model.Vec3{}, fmt.Errorf("%w, got %d", ErrMalformedVector, len(fields))
	}
	var xyz [3]float64
	for i, f := range fields {
		val, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return model.Vec3{}, fmt.Errorf("%w: %q is not a number", ErrMalformedVector, f)
		}
		xyz[i] = val
	}
	return model.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}
