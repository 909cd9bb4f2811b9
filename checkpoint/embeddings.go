package checkpoint

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"
)

func matrixDimension(vecs [][]float32) (int, error) {
	if len(vecs) == 0 {
		return 0, nil
	}

	dim := len(vecs[0])
	for i, v := range vecs {
		if len(v) != dim {
			return 0, fmt.Errorf("%w: row %d has %d values, want %d", ErrRaggedMatrix, i, len(v), dim)
		}
	}

	return dim, nil
}

// EncodeEmbeddings writes vecs as an embeddings checkpoint.
// All rows must have the same dimension.
func EncodeEmbeddings(w io.Writer, vecs [][]float32, c Compression) error {
	dim, err := matrixDimension(vecs)
	if err != nil {
		return err
	}

	payload := make([]byte, 0, len(vecs)*dim*4)
	for _, v := range vecs {
		for _, x := range v {
			payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(x))
		}
	}

	frame, err := encodeFrame(KindEmbeddings, uint64(len(vecs)), uint64(dim), payload, c)
	if err != nil {
		return err
	}

	_, err = w.Write(frame)

	return err
}

// DecodeEmbeddings decodes an embeddings checkpoint. Rows share one backing
// array; the result does not alias data.
func DecodeEmbeddings(data []byte) ([][]float32, error) {
	h, payload, err := decodeFrame(data, KindEmbeddings, func(h *Header) (uint64, bool) {
		hi, cells := bits.Mul64(h.Count, h.Aux)
		if hi != 0 || cells > math.MaxUint64/4 {
			return 0, false
		}
		return cells * 4, true
	})
	if err != nil {
		return nil, err
	}

	rows, dim := int(h.Count), int(h.Aux)
	flat := make([]float32, rows*dim)

	for i := range flat {
		flat[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}

	vecs := make([][]float32, rows)
	for i := range vecs {
		vecs[i] = flat[i*dim : (i+1)*dim : (i+1)*dim]
	}

	return vecs, nil
}
