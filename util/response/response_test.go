package response

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReader(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf)

	lines := [][]byte{[]byte("hello"), {}, bytes.Repeat([]byte{7}, 5000)}
	for _, l := range lines {
		require.NoError(t, w.WriteLine(l))
	}

	r := NewReader(buf)
	for _, l := range lines {
		got, err := r.ReadLine()
		require.NoError(t, err)
		require.Equal(t, l, got)
	}

	_, err := r.ReadLine()
	require.ErrorIs(t, err, io.EOF)
}

func TestReader_Truncated(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, NewWriter(buf).WriteLine([]byte("truncated")))
	buf.Truncate(buf.Len() - 2)

	_, err := NewReader(buf).ReadLine()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = NewReader(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})).ReadLine()
	require.ErrorIs(t, err, ErrLineTooLong)
}
