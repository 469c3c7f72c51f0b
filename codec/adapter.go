package codec

import (
	"bytes"
	"io"
)

// A source may return (0, nil) now and then; this many in a row means it's stuck.
const maxEmptyPulls = 100

type puller struct {
	r   io.Reader
	err error // first failure of the source itself; io.EOF is not a failure.
}

func (p *puller) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	for i := 0; i < maxEmptyPulls; i++ {
		n, err := p.r.Read(buf)
		if err != nil && err != io.EOF && p.err == nil {
			p.err = err
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
	p.err = io.ErrNoProgress
	return 0, p.err
}

type pusher struct {
	w   io.Writer
	err error // first failure of the sink.
}

func (p *pusher) Write(buf []byte) (int, error) {
	n, err := p.w.Write(buf)
	if err == nil && n < len(buf) {
		err = io.ErrShortWrite
	}
	if err != nil && p.err == nil {
		p.err = err
	}
	return n, err
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
