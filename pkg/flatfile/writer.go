package flatfile

import (
	"fmt"
	"io"
	"strings"

	"github.com/crystal-mush/gorom/pkg/persist"
)

// writer accumulates the first error so callers can write a whole record and
// check once.
type writer struct {
	w   io.Writer
	err error
}

func (wr *writer) writef(format string, args ...any) {
	if wr.err != nil {
		return
	}
	_, wr.err = fmt.Fprintf(wr.w, format, args...)
}

// writeString writes "key value~". The reader drops blanks before the value
// and every '\r', and a tilde ends it, so values holding any of those are
// refused rather than written in a form that reads back differently.
func (wr *writer) writeString(key, s string) {
	if wr.err != nil {
		return
	}
	switch {
	case strings.ContainsRune(s, '~'):
		wr.err = persist.Errorf(persist.NoLine, "%s: value contains '~': %q", key, s)
		return
	case strings.ContainsRune(s, '\r'):
		wr.err = persist.Errorf(persist.NoLine, "%s: value contains a carriage return: %q", key, s)
		return
	case strings.HasPrefix(s, " ") || strings.HasPrefix(s, "\t"):
		wr.err = persist.Errorf(persist.NoLine, "%s: value starts with a blank: %q", key, s)
		return
	}
	wr.writef("%s %s~\n", key, s)
}

// writeWord writes a value read back with ReadWord, which stops at the
// first blank.
func (wr *writer) writeWord(key, word string, n int) {
	if wr.err != nil {
		return
	}
	if word == "" || strings.ContainsAny(word, " \t\r\n") {
		wr.err = persist.Errorf(persist.NoLine, "%s: %q is not a single word", key, word)
		return
	}
	wr.writef("%s %s %d\n", key, word, n)
}

// writeInts writes "key n n n" on one line.
func (wr *writer) writeInts(key string, vals []int) {
	var sb strings.Builder
	sb.WriteString(key)
	for _, v := range vals {
		fmt.Fprintf(&sb, " %d", v)
	}
	wr.writef("%s\n", sb.String())
}
