package encoding

import (
	"bytes"
	"encoding/json"
	"log/slog"
)

// BufferPool recycles the buffers used to render documents
type BufferPool struct {
	pool chan *bytes.Buffer
}

// NewBufferPool creates a pool holding at most size idle buffers
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = 4
	}
	return &BufferPool{pool: make(chan *bytes.Buffer, size)}
}

// Get retrieves an empty buffer from the pool
func (bp *BufferPool) Get() *bytes.Buffer {
	select {
	case buf := <-bp.pool:
		buf.Reset()
		return buf
	default:
		return new(bytes.Buffer)
	}
}

// Put returns a buffer to the pool
func (bp *BufferPool) Put(buf *bytes.Buffer) {
	select {
	case bp.pool <- buf:
	default:
		slog.Debug("Buffer pool full, discarding buffer")
	}
}

// DocumentEncoder renders persisted documents the way the checked-in JSON files are formatted:
// two-space indentation, no HTML escaping, trailing newline.
type DocumentEncoder struct {
	buffers *BufferPool
	indent  string
}

// NewDocumentEncoder creates an encoder with two-space indentation
func NewDocumentEncoder() *DocumentEncoder {
	return &DocumentEncoder{
		buffers: NewBufferPool(8),
		indent:  "  ",
	}
}

// Marshal encodes v as an indented document
func (de *DocumentEncoder) Marshal(v interface{}) ([]byte, error) {
	buf := de.buffers.Get()
	defer de.buffers.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", de.indent)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Unmarshal decodes a document, preserving number precision
func (de *DocumentEncoder) Unmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	return dec.Decode(v)
}

var globalEncoder = NewDocumentEncoder()

// MarshalDocument encodes v with the shared document encoder
func MarshalDocument(v interface{}) ([]byte, error) {
	return globalEncoder.Marshal(v)
}

// UnmarshalDocument decodes data with the shared document encoder
func UnmarshalDocument(data []byte, v interface{}) error {
	return globalEncoder.Unmarshal(data, v)
}
