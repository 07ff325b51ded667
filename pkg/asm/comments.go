package asm

import (
	"bufio"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// commentState caches the source lines of generator files so that every
// emitted instruction can carry the // comment immediately preceding the
// Builder call that produced it, without re-reading a file once
// per instruction.
type commentState struct {
	lines map[string][]string
}

// captureComments walks the call stack looking for the first frame inside
// a generator callback (i.e. outside this package) and returns any // line
// comments immediately above that call site, innermost line last.
func (b *Builder) captureComments() []string {
	var pcs [32]uintptr
	n := runtime.Callers(2, pcs[:])
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if isAsmPackageFrame(frame.Function) {
			if !more {
				return nil
			}
			continue
		}
		return b.commentsAbove(frame.File, frame.Line)
	}
}

func isAsmPackageFrame(fn string) bool {
	return strings.HasPrefix(fn, "github.com/snes65816/romgen/pkg/asm.")
}

func (b *Builder) commentsAbove(file string, line int) []string {
	lines := b.sourceLines(file)
	if lines == nil || line < 2 || line > len(lines) {
		return nil
	}
	var out []string
	for i := line - 2; i >= 0; i-- {
		text := trimLeadingSpace(lines[i])
		if len(text) < 2 || text[0] != '/' || text[1] != '/' {
			break
		}
		out = append([]string{trimLeadingSpace(text[2:])}, out...)
	}
	return out
}

func (b *Builder) sourceLines(file string) []string {
	if b.comments.lines == nil {
		b.comments.lines = make(map[string][]string)
	}
	if lines, ok := b.comments.lines[file]; ok {
		return lines
	}
	f, err := os.Open(file)
	if err != nil {
		// a generator source file that can't be reopened for comment
		// capture is logged and skipped; it never fails the build.
		logrus.WithError(err).WithField("file", file).Warn("could not open generator source for comment capture")
		b.comments.lines[file] = nil
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	b.comments.lines[file] = lines
	return lines
}

func trimLeadingSpace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return s[i:]
}
