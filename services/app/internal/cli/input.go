package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// errAborted is returned when the user leaves a prompt sequence.
var errAborted = errors.New("cancelled")

// lockedWriter serializes writes from the command loop and from identity
// observers running on other goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func (s *Shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) println(args ...any) {
	_, _ = fmt.Fprintln(s.out, args...)
}

// readLine reads one line. EOF after partial input returns that input.
func (s *Shell) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ask prompts for a line of text.
func (s *Shell) ask(prompt string) (string, error) {
	s.printf("%s: ", prompt)
	return s.readLine()
}

// askRequired re-prompts until a non-empty answer is given. An EOF aborts.
func (s *Shell) askRequired(prompt string) (string, error) {
	for {
		v, err := s.ask(prompt)
		if err != nil {
			return "", errAborted
		}
		if v != "" {
			return v, nil
		}
		s.printf("%s is required.\n", prompt)
	}
}

// askDefault prompts showing the current value. An empty answer returns nil.
func (s *Shell) askDefault(prompt, current string) (*string, error) {
	s.printf("%s [%s]: ", prompt, current)
	v, err := s.readLine()
	if err != nil {
		return nil, errAborted
	}
	if v == "" {
		return nil, nil
	}
	return &v, nil
}

// askFloat prompts for a number within [lo, hi].
func (s *Shell) askFloat(prompt string, lo, hi float64) (float64, error) {
	for {
		v, err := s.askRequired(prompt)
		if err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64)
		if err == nil && f >= lo && f <= hi {
			return f, nil
		}
		s.printf("%s must be a number between %g and %g.\n", prompt, lo, hi)
	}
}

// askPassword reads a password without echo when attached to a terminal.
func (s *Shell) askPassword() (string, error) {
	s.printf("Password: ")
	pw, err := s.readPassword()
	if err != nil {
		return "", errAborted
	}
	return pw, nil
}

// confirm asks the user to type want exactly.
func (s *Shell) confirm(prompt, want string) bool {
	v, err := s.ask(prompt)
	return err == nil && v == want
}
