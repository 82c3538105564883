// Package source reads the model output that carries a change set.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
)

// Stdin is the --input value that forces reading standard input.
const Stdin = "-"

// ErrEmpty is returned when the chosen source holds only whitespace.
var ErrEmpty = errors.New("input is empty, nothing to process")

// Kind names where content came from.
type Kind string

const (
	KindFile      Kind = "file"
	KindStdin     Kind = "stdin"
	KindClipboard Kind = "clipboard"
)

// Provider picks an input source: an explicit file, piped stdin, or the
// clipboard.
type Provider struct {
	Input string

	stdin         io.Reader
	stdinPiped    func() bool
	readClipboard func() (string, error)
}

// New creates a Provider. input is a file path, "-" for stdin, or empty to
// auto-detect.
func New(input string) *Provider {
	return &Provider{
		Input:         input,
		stdin:         os.Stdin,
		stdinPiped:    stdinIsPiped,
		readClipboard: clipboard.ReadAll,
	}
}

// GetContent returns the input text and the source it was read from.
func (p *Provider) GetContent() (string, Kind, error) {
	var (
		content string
		kind    Kind
		err     error
	)
	switch {
	case p.Input != "" && p.Input != Stdin:
		kind = KindFile
		content, err = readFile(p.Input)
	case p.Input == Stdin || p.stdinPiped():
		kind = KindStdin
		content, err = readAll(p.stdin)
	default:
		kind = KindClipboard
		content, err = p.readClipboard()
		if err != nil {
			err = fmt.Errorf("failed to read from clipboard: %w", err)
		}
	}
	if err != nil {
		return "", kind, err
	}
	if strings.TrimSpace(content) == "" {
		return "", kind, ErrEmpty
	}
	return content, kind, nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read input file: %w", err)
	}
	return string(data), nil
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return string(data), nil
}

func stdinIsPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
