// Package pool provides reusable buffers for the hot paths: window text and
// image-path queries during enumeration, and string assembly.
package pool

import (
	"strings"
	"sync"
)

const (
	// WindowTextSize covers nearly all window titles.
	WindowTextSize = 512
	// PathSize covers nearly all executable paths.
	PathSize = 1024
	// maxRetained keeps one oversized request from pinning memory.
	maxRetained = 32 * 1024
)

var stringBuilderPool = sync.Pool{
	New: func() any { return new(strings.Builder) },
}

// GetStringBuilder returns an empty builder.
func GetStringBuilder() *strings.Builder {
	return stringBuilderPool.Get().(*strings.Builder)
}

// PutStringBuilder resets sb and returns it to the pool.
func PutStringBuilder(sb *strings.Builder) {
	if sb == nil || sb.Cap() > maxRetained {
		return
	}
	sb.Reset()
	stringBuilderPool.Put(sb)
}

var windowTextPool = sync.Pool{
	New: func() any {
		buf := make([]uint16, WindowTextSize)
		return &buf
	},
}

var pathPool = sync.Pool{
	New: func() any {
		buf := make([]uint16, PathSize)
		return &buf
	},
}

// GetWindowText returns a UTF-16 buffer of at least n units.
func GetWindowText(n int) *[]uint16 {
	return getUTF16(&windowTextPool, n)
}

// PutWindowText returns a buffer obtained from GetWindowText.
func PutWindowText(buf *[]uint16) {
	putUTF16(&windowTextPool, buf)
}

// GetPath returns a UTF-16 buffer of at least n units.
func GetPath(n int) *[]uint16 {
	return getUTF16(&pathPool, n)
}

// PutPath returns a buffer obtained from GetPath.
func PutPath(buf *[]uint16) {
	putUTF16(&pathPool, buf)
}

func getUTF16(p *sync.Pool, n int) *[]uint16 {
	buf := p.Get().(*[]uint16)
	if cap(*buf) < n {
		grown := make([]uint16, n)
		return &grown
	}
	*buf = (*buf)[:cap(*buf)]
	return buf
}

func putUTF16(p *sync.Pool, buf *[]uint16) {
	if buf == nil || cap(*buf) > maxRetained {
		return
	}
	clear(*buf)
	p.Put(buf)
}
