/*
Package stream provides bounded-buffer state machines that let encode
and decode proceed incrementally across many small buffers instead of
holding a whole image in memory at once.

Both machines are plain value types advanced by explicit calls; there
is no spontaneous progress between steps and no cancellation, so they
can be driven by any I/O strategy. Independent sessions share no state
and may run concurrently.
*/
package stream

import "io"

// Decoder accumulates raw bytes up to a fixed target count, at which
// point the whole buffer becomes available for a single decode of the
// underlying primitive.
type Decoder struct {
	buf    []byte
	target int
}

// NewDecoder returns a Decoder that accumulates target bytes.
func NewDecoder(target int) *Decoder {
	return &Decoder{
		buf:    make([]byte, 0, target),
		target: target,
	}
}

// Step consumes bytes from chunk, up to the remaining target. It
// returns how many bytes it consumed and whether the target has been
// reached; until then the caller supplies more input.
func (d *Decoder) Step(chunk []byte) (int, bool) {
	n := d.target - len(d.buf)
	if n > len(chunk) {
		n = len(chunk)
	}
	d.buf = append(d.buf, chunk[:n]...)
	return n, len(d.buf) == d.target
}

// Remaining returns how many more bytes Step will consume.
func (d *Decoder) Remaining() int {
	return d.target - len(d.buf)
}

// Bytes returns the accumulated buffer. It is only complete once Step
// has reported done.
func (d *Decoder) Bytes() []byte {
	return d.buf
}

// ReadFull drives d from r in chunks of at most chunkSize bytes until
// the target is reached, returning the accumulated buffer.
func ReadFull(r io.Reader, target, chunkSize int) ([]byte, error) {
	if chunkSize <= 0 || chunkSize > target {
		chunkSize = target
	}
	d := NewDecoder(target)
	chunk := make([]byte, chunkSize)
	for d.Remaining() > 0 {
		n := d.Remaining()
		if n > chunkSize {
			n = chunkSize
		}
		m, err := io.ReadFull(r, chunk[:n])
		d.Step(chunk[:m])
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return d.Bytes(), err
		}
	}
	return d.Bytes(), nil
}

// Encoder slices a pending output buffer into caller-sized pieces,
// refilling it from a source that yields one atomically-encoded unit
// (a row, or a single pixel for raw index data) at a time. A row's
// encoding is never split across refills, only across output steps.
type Encoder struct {
	pending []byte
	next    func() ([]byte, bool)
	done    bool
}

// NewEncoder returns an Encoder drawing from next. next returns the
// encoded bytes for the next unit and false once the source is
// exhausted, in which case the returned bytes are ignored.
func NewEncoder(next func() ([]byte, bool)) *Encoder {
	return &Encoder{next: next}
}

// Step returns up to max encoded bytes and whether more remain. The
// returned slice is only valid until the next call.
func (e *Encoder) Step(max int) ([]byte, bool) {
	for !e.done && len(e.pending) < max {
		unit, ok := e.next()
		if !ok {
			e.done = true
			break
		}
		e.pending = append(e.pending, unit...)
	}
	n := max
	if n > len(e.pending) {
		n = len(e.pending)
	}
	out := e.pending[:n]
	e.pending = e.pending[n:]
	return out, len(e.pending) > 0 || !e.done
}

// WriteAll drives e to completion, writing steps of at most max bytes
// to w and returning the total written.
func (e *Encoder) WriteAll(w io.Writer, max int) (int, error) {
	if max <= 0 {
		max = 16384
	}
	var total int
	for {
		out, more := e.Step(max)
		if len(out) > 0 {
			n, err := w.Write(out)
			total += n
			if err != nil {
				return total, err
			}
		}
		if !more {
			return total, nil
		}
	}
}
