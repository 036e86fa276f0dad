// Package layout computes struct field offsets, padding, and alignment,
// plus the tagged-union representation used for enums and the
// Outcome<T,E> error-return type (spec.md section 3, "Layouts").
package layout

import "fmt"

// FieldInfo describes one field of a StructLayout.
type FieldInfo struct {
	Name   string
	Type   string
	Offset int64
	Size   int64
	Align  int64
}

// StructLayout is the computed layout of a struct: fields in declaration
// order, each placed at the next offset aligned up to its own alignment.
type StructLayout struct {
	Name        string
	Fields      []FieldInfo
	Size        int64 // total size, rounded up to Align
	Align       int64 // the maximum alignment of any field
	TailPadding int64 // bytes added after the last field to reach Size
}

// EnumLayout is the tagged representation of an enum: a discriminant of
// width sufficient for the variant count (minimum 32 bits), followed by
// a payload large and aligned enough to hold any variant's payload.
type EnumLayout struct {
	Name              string
	DiscriminantSize  int64
	DiscriminantAlign int64
	PayloadSize       int64
	PayloadAlign      int64
	PayloadOffset     int64
	Size              int64
	Align             int64
}

// Outcome's field indices are hard-coded by name rather than discovered
// generically: discriminant=0, data=1 (spec.md section 4.8/9's explicit
// Open Question). internal/lir.Lowerer.fieldIndex mirrors these two
// constants directly rather than importing this package, since LIR's
// field resolution happens before a StructLayout for the concrete T/E
// instantiation is available.
const (
	OutcomeDiscriminantIndex = 0
	OutcomeDataIndex         = 1
)

// Calculator computes layouts for a fixed target ABI. x64 is the only
// target spec.md's System V AMD64 calling-convention note names.
type Calculator struct {
	PointerSize  int64
	MaxAlignment int64
}

// NewCalculator builds a Calculator for x64: 8-byte pointers, 16-byte
// max alignment (SSE).
func NewCalculator() *Calculator {
	return &Calculator{PointerSize: 8, MaxAlignment: 16}
}

// StructOf computes a StructLayout from fields in declaration order.
func (c *Calculator) StructOf(name string, fields []FieldInfo) (*StructLayout, error) {
	if len(fields) == 0 {
		return &StructLayout{Name: name, Size: 0, Align: 1}, nil
	}

	laidOut := make([]FieldInfo, 0, len(fields))

	offset := int64(0)
	align := int64(1)

	for _, f := range fields {
		if f.Size <= 0 {
			return nil, fmt.Errorf("layout: field %q has non-positive size %d", f.Name, f.Size)
		}

		fieldAlign := f.Align
		if fieldAlign <= 0 {
			fieldAlign = 1
		}

		if !isPowerOfTwo(fieldAlign) {
			return nil, fmt.Errorf("layout: field %q alignment %d is not a power of two", f.Name, fieldAlign)
		}

		if fieldAlign > align {
			align = fieldAlign
		}

		placedAt := alignUp(offset, fieldAlign)

		laidOut = append(laidOut, FieldInfo{
			Name:   f.Name,
			Type:   f.Type,
			Offset: placedAt,
			Size:   f.Size,
			Align:  fieldAlign,
		})

		offset = placedAt + f.Size
	}

	size := alignUp(offset, align)

	return &StructLayout{
		Name:        name,
		Fields:      laidOut,
		Size:        size,
		Align:       align,
		TailPadding: size - offset,
	}, nil
}

// EnumOf computes the tagged-representation layout for an enum with
// variantCount variants, each needing up to payloadSize bytes aligned to
// payloadAlign for its largest-payload variant.
func (c *Calculator) EnumOf(name string, variantCount int, payloadSize, payloadAlign int64) (*EnumLayout, error) {
	if variantCount < 0 {
		return nil, fmt.Errorf("layout: enum %q has negative variant count %d", name, variantCount)
	}

	if payloadSize < 0 {
		return nil, fmt.Errorf("layout: enum %q has negative payload size %d", name, payloadSize)
	}

	discSize := discriminantSize(variantCount)

	payAlign := payloadAlign
	if payAlign <= 0 {
		payAlign = 1
	}

	align := discSize
	if payAlign > align {
		align = payAlign
	}

	payloadOffset := alignUp(discSize, payAlign)
	total := alignUp(payloadOffset+payloadSize, align)

	return &EnumLayout{
		Name:              name,
		DiscriminantSize:  discSize,
		DiscriminantAlign: discSize,
		PayloadSize:       payloadSize,
		PayloadAlign:      payAlign,
		PayloadOffset:     payloadOffset,
		Size:              total,
		Align:             align,
	}, nil
}

// Outcome builds the fixed `{ i32 discriminant, payload }` layout every
// `T | E` return type shares, with a payload slot sized/aligned to fit
// whichever of T/E is larger.
func (c *Calculator) Outcome(payloadSize, payloadAlign int64) (*StructLayout, error) {
	return c.StructOf("Outcome", []FieldInfo{
		{Name: "discriminant", Type: "i32", Size: 4, Align: 4},
		{Name: "data", Type: "payload", Size: payloadSize, Align: payloadAlign},
	})
}

// discriminantSize returns the byte width needed to distinguish
// variantCount values, floored at 4 bytes (32 bits) per the reference
// implementation's minimum.
func discriminantSize(variantCount int) int64 {
	if variantCount <= 1<<32 {
		return 4
	}

	return 8
}

func isPowerOfTwo(n int64) bool {
	return n > 0 && n&(n-1) == 0
}

func alignUp(value, align int64) int64 {
	if align <= 1 {
		return value
	}

	return (value + align - 1) &^ (align - 1)
}

// Offset looks up a field's byte offset by name.
func (sl *StructLayout) Offset(fieldName string) (int64, bool) {
	for _, f := range sl.Fields {
		if f.Name == fieldName {
			return f.Offset, true
		}
	}

	return 0, false
}

func (sl *StructLayout) String() string {
	return fmt.Sprintf("struct %s { %d fields, size %d, align %d, tail_padding %d }",
		sl.Name, len(sl.Fields), sl.Size, sl.Align, sl.TailPadding)
}

func (el *EnumLayout) String() string {
	return fmt.Sprintf("enum %s { discriminant %d bytes, payload %d bytes @ align %d, size %d }",
		el.Name, el.DiscriminantSize, el.PayloadSize, el.PayloadAlign, el.Size)
}
