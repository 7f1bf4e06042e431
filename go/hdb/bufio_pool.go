/*
Copyright 2024 The HanaDB Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package hdb

import (
	"bufio"
	"io"
	"sync"
)

const connBufferSize = 16 * 1024

// writersPool caches write buffers, as each connection creates one
// per request and destroys it afterwards.
var writersPool = sync.Pool{New: func() any { return bufio.NewWriterSize(nil, connBufferSize) }}

// getWriter returns a new or cached buffered writer on w.
func getWriter(w io.Writer) *bufio.Writer {
	bw := writersPool.Get().(*bufio.Writer)
	bw.Reset(w)
	return bw
}

// putWriter returns the writer to the pool. The writer must be
// flushed before.
func putWriter(bw *bufio.Writer) {
	bw.Reset(nil)
	writersPool.Put(bw)
}
