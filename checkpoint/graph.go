package checkpoint

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"

	"github.com/hupe1980/vecgroup/graph"
)

const edgeRecordSize = 24 // u int64, v int64, weight float64 bits

// EncodeGraph writes g as a graph checkpoint: node IDs in graph order,
// then edges in canonical order.
func EncodeGraph(w io.Writer, g *graph.Graph, c Compression) error {
	nodes := g.Nodes()
	edges := g.Edges()

	payload := make([]byte, 0, len(nodes)*8+len(edges)*edgeRecordSize)
	for _, id := range nodes {
		payload = binary.LittleEndian.AppendUint64(payload, uint64(id))
	}

	for _, e := range edges {
		payload = binary.LittleEndian.AppendUint64(payload, uint64(e.U))
		payload = binary.LittleEndian.AppendUint64(payload, uint64(e.V))
		payload = binary.LittleEndian.AppendUint64(payload, math.Float64bits(e.Weight))
	}

	frame, err := encodeFrame(KindGraph, uint64(len(nodes)), uint64(len(edges)), payload, c)
	if err != nil {
		return err
	}

	_, err = w.Write(frame)

	return err
}

// DecodeGraph decodes a graph checkpoint. Duplicate nodes, edges that are not
// canonical or that reference unknown nodes, and negative or non-finite
// weights are reported as corruption.
func DecodeGraph(data []byte) (*graph.Graph, error) {
	h, payload, err := decodeFrame(data, KindGraph, func(h *Header) (uint64, bool) {
		hiN, nodeBytes := bits.Mul64(h.Count, 8)
		hiE, edgeBytes := bits.Mul64(h.Aux, edgeRecordSize)
		total, carry := bits.Add64(nodeBytes, edgeBytes, 0)
		return total, hiN == 0 && hiE == 0 && carry == 0
	})
	if err != nil {
		return nil, err
	}

	g := graph.New()
	off := 0

	for i := uint64(0); i < h.Count; i++ {
		id := int64(binary.LittleEndian.Uint64(payload[off:]))
		off += 8

		if !g.AddNode(id) {
			return nil, fmt.Errorf("%w: duplicate node %d", ErrCorrupt, id)
		}
	}

	for i := uint64(0); i < h.Aux; i++ {
		u := int64(binary.LittleEndian.Uint64(payload[off:]))
		v := int64(binary.LittleEndian.Uint64(payload[off+8:]))
		w := math.Float64frombits(binary.LittleEndian.Uint64(payload[off+16:]))
		off += edgeRecordSize

		if u >= v || !g.HasNode(u) || !g.HasNode(v) {
			return nil, fmt.Errorf("%w: invalid edge (%d, %d)", ErrCorrupt, u, v)
		}

		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: invalid weight %v on edge (%d, %d)", ErrCorrupt, w, u, v)
		}

		if !g.AddEdge(u, v, w) {
			return nil, fmt.Errorf("%w: duplicate edge (%d, %d)", ErrCorrupt, u, v)
		}
	}

	return g, nil
}
