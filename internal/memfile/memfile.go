/*
Copyright © 2026 the iRadar authors.
This file is part of iRadar.

iRadar is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

iRadar is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with iRadar.  If not, see <http://www.gnu.org/licenses/>.*/

// Package memfile provides an in-memory ReaderAt/WriterAt so that
// netCDF containers can be encoded to and decoded from byte slices
// without touching the filesystem.
package memfile

import (
	"fmt"
	"io"
)

// File is a growable byte buffer addressable by offset.
type File struct {
	b []byte
}

// New wraps b in a File. The slice is not copied.
func New(b []byte) *File { return &File{b: b} }

// Bytes returns the current contents.
func (f *File) Bytes() []byte { return f.b }

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("memfile: negative offset %d", off)
	}
	if off >= int64(len(f.b)) {
		return 0, io.EOF
	}
	n := copy(p, f.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt, growing the buffer as needed.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("memfile: negative offset %d", off)
	}
	if need := off + int64(len(p)); need > int64(len(f.b)) {
		grown := make([]byte, need)
		copy(grown, f.b)
		f.b = grown
	}
	return copy(f.b[off:], p), nil
}
