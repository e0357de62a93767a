package stream

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderStep(t *testing.T) {
	d := NewDecoder(10)

	for i := 0; i < 3; i++ {
		n, done := d.Step([]byte{1, 2, 3})
		assert.Equal(t, 3, n)
		assert.False(t, done)
	}
	assert.Equal(t, 1, d.Remaining())

	// only the remaining target is consumed from an oversized chunk
	n, done := d.Step([]byte{4, 5, 6, 7, 8})
	assert.Equal(t, 1, n)
	assert.True(t, done)

	assert.Equal(t, []byte{1, 2, 3, 1, 2, 3, 1, 2, 3, 4}, d.Bytes())
}

func TestDecoderEmptyChunk(t *testing.T) {
	d := NewDecoder(2)

	n, done := d.Step(nil)
	assert.Equal(t, 0, n)
	assert.False(t, done)
}

func TestReadFull(t *testing.T) {
	in := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 5)

	b, err := ReadFull(bytes.NewReader(in), len(in), 4)
	require.NoError(t, err)
	assert.Equal(t, in, b)
}

func TestReadFullShort(t *testing.T) {
	_, err := ReadFull(bytes.NewReader([]byte{1, 2, 3}), 10, 4)
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestEncoderStep(t *testing.T) {
	rows := [][]byte{
		bytes.Repeat([]byte{1}, 10),
		bytes.Repeat([]byte{2}, 10),
		bytes.Repeat([]byte{3}, 10),
	}
	i := 0
	e := NewEncoder(func() ([]byte, bool) {
		if i == len(rows) {
			return nil, false
		}
		row := rows[i]
		i++
		return row, true
	})

	var out []byte
	steps := 0
	for {
		b, more := e.Step(7)
		assert.True(t, len(b) <= 7)
		out = append(out, b...)
		steps++
		if !more {
			break
		}
	}

	assert.Equal(t, 5, steps)
	assert.Equal(t, bytes.Join(rows, nil), out)
}

func TestEncoderRowAtomic(t *testing.T) {
	// the source is only pulled between output steps, never mid-row
	pulls := 0
	e := NewEncoder(func() ([]byte, bool) {
		if pulls == 2 {
			return nil, false
		}
		pulls++
		return []byte{9, 9, 9, 9}, true
	})

	_, more := e.Step(3)
	assert.True(t, more)
	assert.Equal(t, 1, pulls)

	_, more = e.Step(3)
	assert.True(t, more)
	assert.Equal(t, 2, pulls)
}

func TestEncoderDone(t *testing.T) {
	e := NewEncoder(func() ([]byte, bool) { return nil, false })

	out, more := e.Step(8)
	assert.Len(t, out, 0)
	assert.False(t, more)
}

func TestWriteAll(t *testing.T) {
	rows := 0
	e := NewEncoder(func() ([]byte, bool) {
		if rows == 4 {
			return nil, false
		}
		rows++
		return []byte{byte(rows), byte(rows)}, true
	})

	var buf bytes.Buffer
	n, err := e.WriteAll(&buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte{1, 1, 2, 2, 3, 3, 4, 4}, buf.Bytes())
}
