package httpvalidator

import (
	"bytes"
	"io"
	"sync"
)

// Buffers that grew beyond this are not returned to the pool.
const maxPooledBuffer = 1 << 20

var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// readBody reads r to the end using a pooled buffer and returns an exact-size copy.
func readBody(r io.Reader) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		if buf.Cap() <= maxPooledBuffer {
			bufferPool.Put(buf)
		}
	}()

	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}
