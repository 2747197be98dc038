package server

import (
	"sync"

	"github.com/codetesla51/webserv/buffer"
)

// Buffer pools for reducing allocations across connections

// inputBufferPool holds buffers that receive raw socket bytes
var inputBufferPool = sync.Pool{
	New: func() interface{} {
		return buffer.New(4096)
	},
}

// outputBufferPool holds buffers for staging responses
var outputBufferPool = sync.Pool{
	New: func() interface{} {
		return buffer.New(8192)
	},
}

// Pool size limits - buffers that grew larger than this are discarded
const (
	maxPoolBufferSize = 1 << 20 // 1MB
)

func getBuffer(p *sync.Pool) *buffer.Buffer {
	b := p.Get().(*buffer.Buffer)
	b.RetrieveAll()
	return b
}

func putBuffer(p *sync.Pool, b *buffer.Buffer) {
	if b.Cap() <= maxPoolBufferSize {
		p.Put(b)
	}
}
