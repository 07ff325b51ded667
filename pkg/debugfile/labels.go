package debugfile

import (
	"fmt"
	"io"
	"strings"

	"github.com/snes65816/romgen/pkg/asm"
)

// WriteLabels writes the line-oriented label file: one line per
// instruction that carries a label (a function's entry point) or a
// captured source comment, of the form
// "SnesPrgRom:<lowercase-hex-offset>:<label>[:<comment1>\n<comment2>...]".
// Each additional comment is joined by the literal two-character sequence
// backslash-n, not an actual newline.
func WriteLabels(w io.Writer, reg *asm.Registry) error {
	for _, rf := range reg.Functions() {
		if rf.Name == "" {
			continue
		}
		for i := range rf.Meta {
			m := &rf.Meta[i]

			label := ""
			if i == 0 {
				label = rf.Name
			}
			if label == "" && len(m.Comments) == 0 {
				continue
			}

			line := fmt.Sprintf("SnesPrgRom:%x:%s", rf.Offset+m.Offset, label)
			if len(m.Comments) > 0 {
				line += ":" + strings.Join(m.Comments, `\n`)
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}
