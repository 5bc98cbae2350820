// Package ply decodes the PLY polygon file container into column-major raw
// property buffers.
//
// Scalar properties of every element are returned as tightly packed
// little-endian columns, whatever the on-disk format was. List properties
// are parsed and dropped. Typed conversion of the columns is left to the
// caller.
package ply

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Format is the body encoding declared in the header.
type Format int

const (
	ASCII Format = iota
	BinaryLittleEndian
	BinaryBigEndian
)

func (f Format) String() string {
	switch f {
	case ASCII:
		return "ascii"
	case BinaryLittleEndian:
		return "binary_little_endian"
	case BinaryBigEndian:
		return "binary_big_endian"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Type is a scalar property type.
type Type int

const (
	Invalid Type = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64
)

var typeNames = map[string]Type{
	"char": Int8, "int8": Int8,
	"uchar": Uint8, "uint8": Uint8,
	"short": Int16, "int16": Int16,
	"ushort": Uint16, "uint16": Uint16,
	"int": Int32, "int32": Int32,
	"uint": Uint32, "uint32": Uint32,
	"float": Float32, "float32": Float32,
	"double": Float64, "float64": Float64,
}

// Size returns the encoded width in bytes.
func (t Type) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether the type is a floating point type.
func (t Type) IsFloat() bool { return t == Float32 || t == Float64 }

func (t Type) String() string {
	for name, tt := range typeNames {
		if tt == t && !strings.ContainsAny(name, "0123456789") {
			return name
		}
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Property describes one property declaration.
type Property struct {
	Name      string
	Type      Type // item type for lists
	IsList    bool
	CountType Type // list length type
}

// Column holds the decoded values of one scalar property.
type Column struct {
	Type Type
	Data []byte // little-endian, Count*Type.Size() bytes
}

// Len returns the number of values.
func (c Column) Len() int {
	if s := c.Type.Size(); s > 0 {
		return len(c.Data) / s
	}
	return 0
}

// Float64 returns value i widened to float64.
func (c Column) Float64(i int) float64 {
	switch c.Type {
	case Int8:
		return float64(int8(c.Data[i]))
	case Uint8:
		return float64(c.Data[i])
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(c.Data[i*2:])))
	case Uint16:
		return float64(binary.LittleEndian.Uint16(c.Data[i*2:]))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(c.Data[i*4:])))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(c.Data[i*4:]))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(c.Data[i*4:])))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(c.Data[i*8:]))
	}
	return 0
}

// Element is one element declaration with its decoded scalar columns.
type Element struct {
	Name       string
	Count      int
	Properties []Property
	Columns    map[string]Column
}

// Has reports whether all named scalar properties are present.
func (e *Element) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := e.Columns[n]; !ok {
			return false
		}
	}
	return true
}

// File is a decoded PLY file.
type File struct {
	Format   Format
	Comments []string
	Elements []*Element
}

// Element returns the named element or nil.
func (f *File) Element(name string) *Element {
	for _, e := range f.Elements {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// ErrNotPLY is returned when the magic line is missing.
var ErrNotPLY = errors.New("ply: not a PLY file")

// maxPrealloc bounds the records a column reserves from the header count;
// beyond it columns grow as the body is read.
const maxPrealloc = 1 << 20

// Decode reads a complete PLY file.
func Decode(r io.Reader) (*File, error) {
	br := bufio.NewReaderSize(r, 1<<16)
	f, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	for _, e := range f.Elements {
		e.Columns = make(map[string]Column, len(e.Properties))
		for _, p := range e.Properties {
			if !p.IsList {
				e.Columns[p.Name] = Column{Type: p.Type, Data: make([]byte, 0, min(e.Count, maxPrealloc)*p.Type.Size())}
			}
		}
		switch f.Format {
		case ASCII:
			err = readASCII(br, e)
		default:
			err = readBinary(br, e, f.byteOrder())
		}
		if err != nil {
			return nil, fmt.Errorf("ply: element %s: %w", e.Name, err)
		}
	}
	return f, nil
}

func (f *File) byteOrder() binary.ByteOrder {
	if f.Format == BinaryBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func readHeader(br *bufio.Reader) (*File, error) {
	line, err := readLine(br)
	if err != nil || line != "ply" {
		return nil, ErrNotPLY
	}

	f := &File{}
	var cur *Element
	haveFormat := false
	for {
		line, err := readLine(br)
		if err != nil {
			return nil, fmt.Errorf("ply: header: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) != 3 {
				return nil, fmt.Errorf("ply: bad format line %q", line)
			}
			switch fields[1] {
			case "ascii":
				f.Format = ASCII
			case "binary_little_endian":
				f.Format = BinaryLittleEndian
			case "binary_big_endian":
				f.Format = BinaryBigEndian
			default:
				return nil, fmt.Errorf("ply: unknown format %q", fields[1])
			}
			haveFormat = true
		case "comment", "obj_info":
			f.Comments = append(f.Comments, strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("ply: bad element line %q", line)
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("ply: bad element count %q", fields[2])
			}
			cur = &Element{Name: fields[1], Count: n}
			f.Elements = append(f.Elements, cur)
		case "property":
			if cur == nil {
				return nil, fmt.Errorf("ply: property before element: %q", line)
			}
			p, err := parseProperty(fields)
			if err != nil {
				return nil, err
			}
			cur.Properties = append(cur.Properties, p)
		case "end_header":
			if !haveFormat {
				return nil, errors.New("ply: header has no format line")
			}
			for _, e := range f.Elements {
				if err := e.checkSize(); err != nil {
					return nil, err
				}
			}
			return f, nil
		default:
			return nil, fmt.Errorf("ply: unknown header keyword %q", fields[0])
		}
	}
}

// checkSize rejects counts whose body size does not fit in an int.
func (e *Element) checkSize() error {
	row := 0
	for _, p := range e.Properties {
		if p.IsList {
			row += p.CountType.Size()
		} else {
			row += p.Type.Size()
		}
	}
	if row > 0 && e.Count > math.MaxInt/row {
		return fmt.Errorf("ply: element %s: count %d too large", e.Name, e.Count)
	}
	return nil
}

func parseProperty(fields []string) (Property, error) {
	if len(fields) == 5 && fields[1] == "list" {
		ct, ok1 := typeNames[fields[2]]
		it, ok2 := typeNames[fields[3]]
		if !ok1 || !ok2 || ct.IsFloat() {
			return Property{}, fmt.Errorf("ply: bad list property %q", strings.Join(fields, " "))
		}
		return Property{Name: fields[4], Type: it, IsList: true, CountType: ct}, nil
	}
	if len(fields) != 3 {
		return Property{}, fmt.Errorf("ply: bad property %q", strings.Join(fields, " "))
	}
	t, ok := typeNames[fields[1]]
	if !ok {
		return Property{}, fmt.Errorf("ply: unknown property type %q", fields[1])
	}
	return Property{Name: fields[2], Type: t}, nil
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readBinary(br *bufio.Reader, e *Element, order binary.ByteOrder) error {
	var scratch [8]byte
	for i := 0; i < e.Count; i++ {
		for _, p := range e.Properties {
			if p.IsList {
				n, err := readBinaryScalar(br, p.CountType, order, scratch[:])
				if err != nil {
					return err
				}
				if _, err := br.Discard(int(n) * p.Type.Size()); err != nil {
					return fmt.Errorf("record %d: %w", i, io.ErrUnexpectedEOF)
				}
				continue
			}
			size := p.Type.Size()
			if _, err := io.ReadFull(br, scratch[:size]); err != nil {
				return fmt.Errorf("record %d: %w", i, io.ErrUnexpectedEOF)
			}
			if order == binary.BigEndian {
				reverse(scratch[:size])
			}
			col := e.Columns[p.Name]
			col.Data = append(col.Data, scratch[:size]...)
			e.Columns[p.Name] = col
		}
	}
	return nil
}

func readBinaryScalar(br *bufio.Reader, t Type, order binary.ByteOrder, scratch []byte) (float64, error) {
	size := t.Size()
	if _, err := io.ReadFull(br, scratch[:size]); err != nil {
		return 0, io.ErrUnexpectedEOF
	}
	if order == binary.BigEndian {
		reverse(scratch[:size])
	}
	return Column{Type: t, Data: scratch[:size]}.Float64(0), nil
}

func readASCII(br *bufio.Reader, e *Element) error {
	for i := 0; i < e.Count; i++ {
		line, err := readLine(br)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, io.ErrUnexpectedEOF)
		}
		tokens := strings.Fields(line)
		k := 0
		next := func() (string, error) {
			if k >= len(tokens) {
				return "", fmt.Errorf("record %d: too few values", i)
			}
			k++
			return tokens[k-1], nil
		}
		for _, p := range e.Properties {
			if p.IsList {
				tok, err := next()
				if err != nil {
					return err
				}
				n, err := strconv.Atoi(tok)
				if err != nil || n < 0 {
					return fmt.Errorf("record %d: bad list length %q", i, tok)
				}
				if k+n > len(tokens) {
					return fmt.Errorf("record %d: too few values", i)
				}
				k += n
				continue
			}
			tok, err := next()
			if err != nil {
				return err
			}
			col := e.Columns[p.Name]
			col.Data, err = appendASCII(col.Data, p.Type, tok)
			if err != nil {
				return fmt.Errorf("record %d property %s: %w", i, p.Name, err)
			}
			e.Columns[p.Name] = col
		}
	}
	return nil
}

func appendASCII(dst []byte, t Type, tok string) ([]byte, error) {
	switch t {
	case Float32:
		v, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return dst, err
		}
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v))), nil
	case Float64:
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return dst, err
		}
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v)), nil
	case Int8, Int16, Int32:
		v, err := strconv.ParseInt(tok, 10, t.Size()*8)
		if err != nil {
			return dst, err
		}
		return appendInt(dst, t, uint64(v)), nil
	default:
		v, err := strconv.ParseUint(tok, 10, t.Size()*8)
		if err != nil {
			return dst, err
		}
		return appendInt(dst, t, v), nil
	}
}

func appendInt(dst []byte, t Type, v uint64) []byte {
	switch t.Size() {
	case 1:
		return append(dst, byte(v))
	case 2:
		return binary.LittleEndian.AppendUint16(dst, uint16(v))
	default:
		return binary.LittleEndian.AppendUint32(dst, uint32(v))
	}
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
