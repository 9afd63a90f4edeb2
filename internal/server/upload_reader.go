package server

import "io"

// chunkStream hands out upload messages in order, with one message of
// look-ahead for the reader of the next file.
type chunkStream struct {
	recv    func() (*UploadRequest, error)
	pending *UploadRequest
	done    bool
}

func (c *chunkStream) next() (*UploadRequest, error) {
	if m := c.pending; m != nil {
		c.pending = nil
		return m, nil
	}
	if c.done {
		return nil, io.EOF
	}
	m, err := c.recv()
	if err == io.EOF {
		c.done = true
	}
	return m, err
}

// fileReader streams the chunks of one manifest entry. Chunks for earlier
// entries (skipped or partly read) are discarded; the first chunk of a
// later entry ends this file.
type fileReader struct {
	stream *chunkStream
	index  int
	buf    []byte
	eof    bool
}

func (r *fileReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		msg, err := r.stream.next()
		if err == io.EOF {
			r.eof = true
			continue
		}
		if err != nil {
			return 0, err
		}
		switch {
		case msg.Index < r.index:
		case msg.Index > r.index:
			r.stream.pending = msg
			r.eof = true
		default:
			r.buf = msg.Chunk
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
