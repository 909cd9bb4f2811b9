package hnsw

// LevelStats describes one layer of the graph.
type LevelStats struct {
	Nodes          int
	Connections    int
	AvgConnections float64
}

// Stats holds structural statistics about the HNSW graph.
type Stats struct {
	M        int
	EF       int
	Nodes    int
	MaxLevel int
	Levels   []LevelStats
}

// Stats collects statistics about the HNSW graph
func (h *HNSW) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{
		M:        h.opts.M,
		EF:       h.opts.EFConstruction,
		Nodes:    len(h.nodes),
		MaxLevel: h.maxLevel,
		Levels:   make([]LevelStats, h.maxLevel+1),
	}

	for _, n := range h.nodes {
		for level := n.layer; level >= 0; level-- {
			s.Levels[level].Nodes++
			s.Levels[level].Connections += len(n.connections[level])
		}
	}

	for i := range s.Levels {
		if s.Levels[i].Nodes > 0 {
			s.Levels[i].AvgConnections = float64(s.Levels[i].Connections) / float64(s.Levels[i].Nodes)
		}
	}

	return s
}
