package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Encode writes f. Only scalar properties are supported; every element's
// Columns must hold Count values for each declared property.
func Encode(w io.Writer, f *File) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "ply\nformat %s 1.0\n", f.Format)
	for _, c := range f.Comments {
		fmt.Fprintf(bw, "comment %s\n", c)
	}
	for _, e := range f.Elements {
		fmt.Fprintf(bw, "element %s %d\n", e.Name, e.Count)
		for _, p := range e.Properties {
			if p.IsList {
				return fmt.Errorf("ply: encode %s.%s: list properties are not supported", e.Name, p.Name)
			}
			col, ok := e.Columns[p.Name]
			if !ok || col.Type != p.Type || col.Len() != e.Count {
				return fmt.Errorf("ply: encode %s.%s: column does not match declaration", e.Name, p.Name)
			}
			fmt.Fprintf(bw, "property %s %s\n", p.Type, p.Name)
		}
	}
	bw.WriteString("end_header\n")

	for _, e := range f.Elements {
		for i := 0; i < e.Count; i++ {
			for j, p := range e.Properties {
				col := e.Columns[p.Name]
				size := p.Type.Size()
				raw := col.Data[i*size : (i+1)*size]
				switch f.Format {
				case ASCII:
					if j > 0 {
						bw.WriteByte(' ')
					}
					bw.WriteString(formatASCII(col, i))
				case BinaryBigEndian:
					var tmp [8]byte
					copy(tmp[:], raw)
					reverse(tmp[:size])
					bw.Write(tmp[:size])
				default:
					bw.Write(raw)
				}
			}
			if f.Format == ASCII {
				bw.WriteByte('\n')
			}
		}
	}
	return bw.Flush()
}

func formatASCII(c Column, i int) string {
	switch c.Type {
	case Float32:
		return strconv.FormatFloat(c.Float64(i), 'g', -1, 32)
	case Float64:
		return strconv.FormatFloat(c.Float64(i), 'g', -1, 64)
	default:
		return strconv.FormatInt(int64(c.Float64(i)), 10)
	}
}

// Float32Column packs float32 values into a column.
func Float32Column(v []float32) Column {
	data := make([]byte, 0, len(v)*4)
	for _, x := range v {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(x))
	}
	return Column{Type: Float32, Data: data}
}

// Float64Column packs float64 values into a column.
func Float64Column(v []float64) Column {
	data := make([]byte, 0, len(v)*8)
	for _, x := range v {
		data = binary.LittleEndian.AppendUint64(data, math.Float64bits(x))
	}
	return Column{Type: Float64, Data: data}
}

// Uint8Column packs bytes into a column.
func Uint8Column(v []uint8) Column {
	return Column{Type: Uint8, Data: append([]byte(nil), v...)}
}
