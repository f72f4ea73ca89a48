package region

import "unsafe"

// CacheLineSize is the assumed CPU cache line size in bytes.
//
// 64 bytes covers amd64 and arm64. Aligning region buffers to it keeps a
// buffer's first byte from sharing a line with unrelated allocator metadata.
const CacheLineSize = 64

// alignedBytes allocates a byte slice of the given length whose first
// element sits on a cache line boundary.
func alignedBytes(size int) []byte {
	raw := make([]byte, size+CacheLineSize)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	offset := 0
	if rem := addr % CacheLineSize; rem != 0 {
		offset = int(CacheLineSize - rem)
	}

	return raw[offset : offset+size : offset+size]
}
