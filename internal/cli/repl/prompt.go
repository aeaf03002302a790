package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/yndnr/feedauth-go/internal/core/form"
)

// SecretReader reads one line without echo.
type SecretReader func() (string, error)

// Prompter reads form input line by line.
type Prompter struct {
	in         *bufio.Reader
	out        io.Writer
	readSecret SecretReader
}

// NewPrompter creates a Prompter. readSecret may be nil, in which case
// secret fields are read like any other line.
func NewPrompter(in io.Reader, out io.Writer, readSecret SecretReader) *Prompter {
	br, ok := in.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(in)
	}
	return &Prompter{in: br, out: out, readSecret: readSecret}
}

// ReadLine prints prompt and returns the next line without its newline.
// A final line without a newline is returned with a nil error; io.EOF is
// returned only when nothing was read.
func (p *Prompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *Prompter) readField(name string) (string, error) {
	prompt := FieldLabel(name) + ": "
	if IsSecretField(name) && p.readSecret != nil {
		fmt.Fprint(p.out, prompt)
		return p.readSecret()
	}
	return p.ReadLine(prompt)
}

// Fill prompts for every field of f that is not yet valid, in display order.
//
// Each answer is applied with UpdateField followed by BlurField. While the
// field shows an error its hint is printed and the field asked again.
// Returns io.EOF if input ends first, or ctx.Err() once ctx is done.
func (p *Prompter) Fill(ctx context.Context, f *form.Form) error {
	for _, name := range f.Names() {
		for {
			if fld, _ := f.Field(name); fld.Valid() {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			value, err := p.readField(name)
			if err != nil {
				return err
			}
			if !IsSecretField(name) {
				value = strings.TrimSpace(value)
			}
			if err := f.UpdateField(name, value); err != nil {
				return err
			}
			if err := f.BlurField(name); err != nil {
				return err
			}

			if fld, _ := f.Field(name); fld.ShowError() {
				fmt.Fprintln(p.out, "  "+FieldHint(name))
			}
		}
	}
	return nil
}
