package helpers

import (
	"bytes"
	"encoding/hex"
	"os"
	"strings"
)

func CreateDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// CloneBytes returns a copy of b that shares no memory with it. A nil input
// yields an empty, non-nil slice.
func CloneBytes(b []byte) []byte {
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}

// Printable renders a key or value for logs and dumps: plain text when every
// byte is printable ASCII, 0x-prefixed hex otherwise. Text that itself starts
// with 0x is hex encoded too, so uncut output parses back with ParseBytes.
// Long inputs are cut.
func Printable(b []byte, limit int) string {
	cut := b
	if limit > 0 && len(cut) > limit {
		cut = cut[:limit]
	}

	s := ""
	plain := !bytes.HasPrefix(b, []byte("0x")) &&
		bytes.IndexFunc(cut, func(r rune) bool { return r < 0x20 || r > 0x7e }) == -1
	if plain {
		s = string(cut)
	} else {
		s = "0x" + hex.EncodeToString(cut)
	}

	if len(cut) < len(b) {
		s += "..."
	}
	return s
}

// ParseBytes is the reverse of Printable for user input: a 0x prefix marks
// a hex literal, anything else is taken verbatim.
func ParseBytes(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0x") {
		return hex.DecodeString(s[2:])
	}
	return []byte(s), nil
}

// RecoverOnError returns a function to be deferred that turns a panic with
// an error value into *err. Other panics are re-raised.
func RecoverOnError(err *error) func() {
	return func() {
		r := recover()
		if r == nil {
			return
		}

		e, ok := r.(error)
		if !ok {
			panic(r)
		}
		*err = e
	}
}
