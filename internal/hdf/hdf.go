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

// Package hdf is a narrow read-only surface over HDF5 files,
// covering exactly what ODIM composite decoding needs: 2-D unsigned
// integer datasets and scalar attributes addressed by group path.
// Keeping the cgo binding behind this interface lets the decoders
// be tested with in-memory fakes.
package hdf

import (
	"fmt"

	"gonum.org/v1/hdf5"
)

// A File is an open HDF5 file.
type File interface {
	// Dims returns the dimensions of a 2-D dataset.
	Dims(dataset string) (height, width int, err error)
	// ReadUint reads a uint8 or uint16 dataset, widened to
	// uint16, in row-major order.
	ReadUint(dataset string) ([]uint16, error)
	// AttrFloat reads a scalar numeric attribute of the group at
	// path.
	AttrFloat(path, name string) (float64, error)
	// AttrString reads a string attribute of the group at path.
	AttrString(path, name string) (string, error)
	Close() error
}

// Open opens the HDF5 file at path for reading.
func Open(path string) (File, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("hdf: opening %s: %v", path, err)
	}
	return &file{f: f}, nil
}

type file struct {
	f *hdf5.File
}

func (f *file) Close() error { return f.f.Close() }

func (f *file) dims(d *hdf5.Dataset) (int, int, error) {
	space := d.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return 0, 0, err
	}
	if len(dims) != 2 {
		return 0, 0, fmt.Errorf("hdf: dataset has %d dimensions, want 2", len(dims))
	}
	return int(dims[0]), int(dims[1]), nil
}

func (f *file) Dims(dataset string) (int, int, error) {
	d, err := f.f.OpenDataset(dataset)
	if err != nil {
		return 0, 0, fmt.Errorf("hdf: opening dataset %s: %v", dataset, err)
	}
	defer d.Close()
	h, w, err := f.dims(d)
	if err != nil {
		return 0, 0, fmt.Errorf("hdf: dataset %s: %v", dataset, err)
	}
	return h, w, nil
}

func (f *file) ReadUint(dataset string) ([]uint16, error) {
	d, err := f.f.OpenDataset(dataset)
	if err != nil {
		return nil, fmt.Errorf("hdf: opening dataset %s: %v", dataset, err)
	}
	defer d.Close()
	h, w, err := f.dims(d)
	if err != nil {
		return nil, fmt.Errorf("hdf: dataset %s: %v", dataset, err)
	}
	dt, err := d.Datatype()
	if err != nil {
		return nil, fmt.Errorf("hdf: dataset %s type: %v", dataset, err)
	}
	size := dt.Size()
	dt.Close()
	switch size {
	case 1:
		buf := make([]uint8, h*w)
		if err := d.Read(&buf); err != nil {
			return nil, fmt.Errorf("hdf: reading dataset %s: %v", dataset, err)
		}
		out := make([]uint16, len(buf))
		for i, v := range buf {
			out[i] = uint16(v)
		}
		return out, nil
	case 2:
		buf := make([]uint16, h*w)
		if err := d.Read(&buf); err != nil {
			return nil, fmt.Errorf("hdf: reading dataset %s: %v", dataset, err)
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("hdf: dataset %s has unsupported element size %d", dataset, size)
	}
}

func (f *file) AttrFloat(path, name string) (float64, error) {
	g, err := f.f.OpenGroup(path)
	if err != nil {
		return 0, fmt.Errorf("hdf: opening group %s: %v", path, err)
	}
	defer g.Close()
	a, err := g.OpenAttribute(name)
	if err != nil {
		return 0, fmt.Errorf("hdf: opening attribute %s/%s: %v", path, name, err)
	}
	defer a.Close()
	var v float64
	if err := a.Read(&v, hdf5.T_NATIVE_DOUBLE); err != nil {
		return 0, fmt.Errorf("hdf: reading attribute %s/%s: %v", path, name, err)
	}
	return v, nil
}

func (f *file) AttrString(path, name string) (string, error) {
	g, err := f.f.OpenGroup(path)
	if err != nil {
		return "", fmt.Errorf("hdf: opening group %s: %v", path, err)
	}
	defer g.Close()
	a, err := g.OpenAttribute(name)
	if err != nil {
		return "", fmt.Errorf("hdf: opening attribute %s/%s: %v", path, name, err)
	}
	defer a.Close()
	var v string
	if err := a.Read(&v, hdf5.T_GO_STRING); err != nil {
		return "", fmt.Errorf("hdf: reading attribute %s/%s: %v", path, name, err)
	}
	return v, nil
}
