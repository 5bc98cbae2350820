package ply

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const asciiCube = `ply
format ascii 1.0
comment made by hand
element vertex 3
property float x
property float y
property float z
property uchar red
element face 1
property list uchar int vertex_indices
end_header
0 0 0 255
1 0.5 -2 10
3 4 5 0
3 0 1 2
`

func TestDecodeASCII(t *testing.T) {
	t.Parallel()

	f, err := Decode(strings.NewReader(asciiCube))
	require.NoError(t, err)
	assert.Equal(t, ASCII, f.Format)
	assert.Equal(t, []string{"made by hand"}, f.Comments)

	v := f.Element("vertex")
	require.NotNil(t, v)
	assert.Equal(t, 3, v.Count)
	assert.True(t, v.Has("x", "y", "z", "red"))
	assert.False(t, v.Has("nx"))

	x := v.Columns["x"]
	require.Equal(t, 3, x.Len())
	assert.Equal(t, []float64{0, 1, 3}, []float64{x.Float64(0), x.Float64(1), x.Float64(2)})
	assert.Equal(t, -2.0, v.Columns["z"].Float64(1))
	assert.Equal(t, 255.0, v.Columns["red"].Float64(0))

	face := f.Element("face")
	require.NotNil(t, face)
	assert.Empty(t, face.Columns, "list properties are not kept")
}

func binaryVertexBody(order binary.ByteOrder, pts [][3]float64) []byte {
	var buf bytes.Buffer
	for _, p := range pts {
		for _, c := range p {
			binary.Write(&buf, order, c)
		}
		// one-entry list of int32
		buf.WriteByte(1)
		binary.Write(&buf, order, int32(7))
	}
	return buf.Bytes()
}

func TestDecodeBinary(t *testing.T) {
	t.Parallel()

	pts := [][3]float64{{1.5, -2, 3}, {0.25, 8, -1e-3}}
	for _, tc := range []struct {
		name  string
		fmt   string
		order binary.ByteOrder
	}{
		{"little endian", "binary_little_endian", binary.LittleEndian},
		{"big endian", "binary_big_endian", binary.BigEndian},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			header := "ply\nformat " + tc.fmt + " 1.0\nelement vertex 2\n" +
				"property double x\nproperty double y\nproperty double z\n" +
				"property list uchar int tags\nend_header\n"
			in := append([]byte(header), binaryVertexBody(tc.order, pts)...)

			f, err := Decode(bytes.NewReader(in))
			require.NoError(t, err)
			v := f.Element("vertex")
			require.NotNil(t, v)
			for i, p := range pts {
				assert.Equal(t, p[0], v.Columns["x"].Float64(i))
				assert.Equal(t, p[1], v.Columns["y"].Float64(i))
				assert.Equal(t, p[2], v.Columns["z"].Float64(i))
			}
			// columns are stored little-endian whatever the source order
			assert.Equal(t, math.Float64bits(1.5), binary.LittleEndian.Uint64(v.Columns["x"].Data))
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not ply":        "hello\n",
		"no format":      "ply\nelement vertex 0\nend_header\n",
		"bad type":       "ply\nformat ascii 1.0\nelement vertex 1\nproperty quad x\nend_header\n1\n",
		"orphan prop":    "ply\nformat ascii 1.0\nproperty float x\nend_header\n",
		"truncated":      "ply\nformat binary_little_endian 1.0\nelement vertex 2\nproperty float x\nend_header\n\x00\x00\x80\x3f",
		"too few values": "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nend_header\n1\n",
		"no body":        "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nend_header\n",
		"count overflow": "ply\nformat binary_little_endian 1.0\nelement vertex 4000000000000000000\nproperty float x\nproperty float y\nproperty float z\nend_header\n",
		"huge count":     "ply\nformat binary_little_endian 1.0\nelement vertex 1000000000\nproperty float x\nend_header\n\x00\x00\x80\x3f",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var err error
			require.NotPanics(t, func() { _, err = Decode(strings.NewReader(in)) })
			assert.Error(t, err)
		})
	}

	_, err := Decode(strings.NewReader("hello\n"))
	assert.ErrorIs(t, err, ErrNotPLY)
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	for _, format := range []Format{ASCII, BinaryLittleEndian, BinaryBigEndian} {
		t.Run(format.String(), func(t *testing.T) {
			t.Parallel()
			src := &File{
				Format: format,
				Elements: []*Element{{
					Name:  "vertex",
					Count: 2,
					Properties: []Property{
						{Name: "x", Type: Float32},
						{Name: "d", Type: Float64},
						{Name: "red", Type: Uint8},
					},
					Columns: map[string]Column{
						"x":   Float32Column([]float32{1.25, -3}),
						"d":   Float64Column([]float64{0.1, 1e10}),
						"red": Uint8Column([]uint8{0, 200}),
					},
				}},
			}
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, src))

			got, err := Decode(io.Reader(&buf))
			require.NoError(t, err)
			v := got.Element("vertex")
			require.NotNil(t, v)
			for name, col := range src.Elements[0].Columns {
				assert.Equal(t, col, v.Columns[name], name)
			}
		})
	}
}
