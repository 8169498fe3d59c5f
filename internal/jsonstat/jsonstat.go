// Package jsonstat decodes JSON-stat 2.0 datasets into a typed form and walks
// the flattened value array back to per-dimension category codes.
//
// Dimension order comes from the payload's id array and is never assumed.
// For flat index i, the category position of dimension d is recovered by
// walking dimensions from last to first:
//
//	pos[d] = rem % size[d]; rem /= size[d]
package jsonstat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

var (
	// ErrMissingDimension means the dimension list or a named dimension is absent.
	ErrMissingDimension = errors.New("jsonstat: missing dimension")
	// ErrMalformed means the payload's structure is internally inconsistent.
	ErrMalformed = errors.New("jsonstat: malformed dataset")
)

// Dimension is one decoded dimension: category codes in position order plus
// their human labels.
type Dimension struct {
	ID     string
	Label  string
	Codes  []string
	Labels map[string]string
}

// Dataset is the typed intermediate form of a JSON-stat 2.0 dataset.
type Dataset struct {
	ID         []string
	Size       []int
	Dimensions map[string]Dimension
	Values     []*float64 // len == product(Size); nil entries are missing cells
}

// Cell is one value with the category code of each dimension, in ID order.
type Cell struct {
	Index int
	Codes []string
	Value *float64
}

type wireDataset struct {
	Class     string                   `json:"class"`
	ID        []string                 `json:"id"`
	Size      []int                    `json:"size"`
	Dimension map[string]wireDimension `json:"dimension"`
	Value     json.RawMessage          `json:"value"`
}

type wireDimension struct {
	Label    string `json:"label"`
	Category struct {
		Index json.RawMessage   `json:"index"`
		Label map[string]string `json:"label"`
	} `json:"category"`
}

// Decode parses raw into a Dataset, validating the dimension metadata
// against the value array.
func Decode(raw []byte) (*Dataset, error) {
	var w wireDataset
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(w.ID) == 0 || len(w.Size) == 0 {
		return nil, fmt.Errorf("%w: id/size arrays absent", ErrMissingDimension)
	}
	if len(w.ID) != len(w.Size) {
		return nil, fmt.Errorf("%w: %d ids but %d sizes", ErrMalformed, len(w.ID), len(w.Size))
	}

	ds := &Dataset{
		ID:         w.ID,
		Size:       w.Size,
		Dimensions: make(map[string]Dimension, len(w.ID)),
	}
	total := 1
	for i, id := range w.ID {
		wd, ok := w.Dimension[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q listed in id but not described", ErrMissingDimension, id)
		}
		codes, err := decodeIndex(wd.Category.Index, wd.Category.Label)
		if err != nil {
			return nil, fmt.Errorf("%w: dimension %q: %v", ErrMalformed, id, err)
		}
		if len(codes) != w.Size[i] {
			return nil, fmt.Errorf("%w: dimension %q has %d categories but size %d", ErrMalformed, id, len(codes), w.Size[i])
		}
		ds.Dimensions[id] = Dimension{ID: id, Label: wd.Label, Codes: codes, Labels: wd.Category.Label}
		total *= w.Size[i]
	}

	values, err := decodeValues(w.Value, total)
	if err != nil {
		return nil, err
	}
	ds.Values = values
	return ds, nil
}

// decodeIndex accepts category.index as an array of codes or an object of
// code to position. Single-category dimensions may omit the index and carry
// only a label.
func decodeIndex(raw json.RawMessage, labels map[string]string) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		if len(labels) == 1 {
			for code := range labels {
				return []string{code}, nil
			}
		}
		return nil, errors.New("category index absent")
	}

	if raw[0] == '[' {
		var codes []string
		if err := json.Unmarshal(raw, &codes); err != nil {
			return nil, err
		}
		return codes, nil
	}

	var byCode map[string]int
	if err := json.Unmarshal(raw, &byCode); err != nil {
		return nil, err
	}
	codes := make([]string, len(byCode))
	seen := make([]bool, len(byCode))
	for code, pos := range byCode {
		if pos < 0 || pos >= len(codes) || seen[pos] {
			return nil, fmt.Errorf("category %q has invalid position %d", code, pos)
		}
		codes[pos] = code
		seen[pos] = true
	}
	return codes, nil
}

// decodeValues accepts the dense array form or the sparse object form.
func decodeValues(raw json.RawMessage, total int) ([]*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: value absent", ErrMalformed)
	}

	if raw[0] == '[' {
		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("%w: value: %v", ErrMalformed, err)
		}
		if len(values) != total {
			return nil, fmt.Errorf("%w: %d values for %d cells", ErrMalformed, len(values), total)
		}
		return values, nil
	}

	var sparse map[string]*float64
	if err := json.Unmarshal(raw, &sparse); err != nil {
		return nil, fmt.Errorf("%w: value: %v", ErrMalformed, err)
	}
	values := make([]*float64, total)
	for k, v := range sparse {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= total {
			return nil, fmt.Errorf("%w: value index %q out of range", ErrMalformed, k)
		}
		values[i] = v
	}
	return values, nil
}

// Require checks that every named dimension is present.
func (d *Dataset) Require(dims ...string) error {
	for _, id := range dims {
		if _, ok := d.Dimensions[id]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingDimension, id)
		}
	}
	return nil
}

// Position returns the index of dimension id in the dataset's dimension order, or -1.
func (d *Dataset) Position(id string) int {
	for i, v := range d.ID {
		if v == id {
			return i
		}
	}
	return -1
}

// Coordinates recovers the category position of each dimension for flat index i.
func (d *Dataset) Coordinates(i int) []int {
	pos := make([]int, len(d.Size))
	rem := i
	for dim := len(d.Size) - 1; dim >= 0; dim-- {
		pos[dim] = rem % d.Size[dim]
		rem /= d.Size[dim]
	}
	return pos
}

// Cells returns every cell, missing values included, in flat index order.
func (d *Dataset) Cells() []Cell {
	cells := make([]Cell, len(d.Values))
	for i, v := range d.Values {
		pos := d.Coordinates(i)
		codes := make([]string, len(pos))
		for dim, p := range pos {
			codes[dim] = d.Dimensions[d.ID[dim]].Codes[p]
		}
		cells[i] = Cell{Index: i, Codes: codes, Value: v}
	}
	return cells
}

// Code returns the category code of dimension id for cell c, or "" if the
// dataset has no such dimension.
func (d *Dataset) Code(c Cell, id string) string {
	if p := d.Position(id); p >= 0 {
		return c.Codes[p]
	}
	return ""
}

// Label returns the human label of a dimension category, falling back to the code.
func (d *Dataset) Label(id, code string) string {
	if l, ok := d.Dimensions[id].Labels[code]; ok {
		return l
	}
	return code
}

// CodesOf lists dimension id's category codes in position order.
func (d *Dataset) CodesOf(id string) []string {
	return d.Dimensions[id].Codes
}

// SortedCodes returns codes sorted descending. Week
// and month labels sort chronologically, so this lists newest first.
func SortedCodes(codes []string) []string {
	out := append([]string(nil), codes...)
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}
