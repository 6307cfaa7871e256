package protocol

import (
	"bytes"
	"io"
)

// Framer splits a byte stream into Terminator-delimited frames. It keeps a
// per-connection buffer so a frame may arrive across any number of reads, and
// multiple frames arriving in one read are returned one at a time.
type Framer struct {
	r   io.Reader
	buf []byte
	max int
}

// NewFramer returns a Framer reading from r. max bounds the size of a single
// frame including the terminator; a peer that sends more without a terminator
// gets ErrFrameTooLarge and must be disconnected.
func NewFramer(r io.Reader, max int) *Framer {
	return &Framer{r: r, max: max}
}

// ReadFrame returns the next frame with the terminator stripped. It returns
// io.EOF when the peer closes the stream before a terminator arrives; any
// buffered partial frame is discarded.
func (f *Framer) ReadFrame() (string, error) {
	for {
		if i := bytes.Index(f.buf, []byte(Terminator)); i >= 0 {
			frame := string(f.buf[:i])
			f.buf = f.buf[i+len(Terminator):]
			return frame, nil
		}

		if len(f.buf) >= f.max {
			return "", ErrFrameTooLarge
		}

		chunk := make([]byte, 512)
		n, err := f.r.Read(chunk)
		if n > 0 {
			f.buf = append(f.buf, chunk[:n]...)
			continue
		}
		if err != nil {
			return "", err
		}
	}
}

// WriteFrame appends the terminator to unit and writes it to w in full.
// io.Writer already guarantees n == len(p) unless an error is returned, so a
// single write either delivers the whole frame or fails.
func WriteFrame(w io.Writer, unit string) error {
	_, err := io.WriteString(w, unit+Terminator)
	return err
}
