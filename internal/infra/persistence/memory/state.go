package memory

import (
	"sort"
	"time"

	"github.com/Spok95/batch-weighing/internal/domain/archive"
	"github.com/Spok95/batch-weighing/internal/domain/catalog"
	"github.com/Spok95/batch-weighing/internal/domain/packaging"
	"github.com/Spok95/batch-weighing/internal/domain/process"
)

// ProductRow is a product as stored: its materials are kept as ordered ids.
type ProductRow struct {
	ID          string    `json:"id"`
	No          string    `json:"no"`
	MaterialIDs []string  `json:"materialIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Snapshot is a point-in-time copy of every collection. The material
// reverse index is not part of it and is rebuilt on import.
type Snapshot struct {
	Products  []ProductRow       `json:"products"`
	Materials []catalog.Material `json:"materials"`
	Processes []process.Process  `json:"processes"`
	Archive   []archive.Record   `json:"archive"`
	Packaging []packaging.Kind   `json:"packaging"`
}

type state struct {
	products  map[string]ProductRow
	materials map[string]catalog.Material
	referrers map[string]map[string]struct{}
	processes map[string]process.Process
	archive   map[string]archive.Record
	packaging []packaging.Kind
}

func newState() state {
	return state{
		products:  map[string]ProductRow{},
		materials: map[string]catalog.Material{},
		referrers: map[string]map[string]struct{}{},
		processes: map[string]process.Process{},
		archive:   map[string]archive.Record{},
	}
}

// clone copies the maps. Stored values are replaced, never mutated, so only
// the nested referrer sets need a deep copy.
func (s state) clone() state {
	out := newState()
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.materials {
		out.materials[k] = v
	}
	for k, set := range s.referrers {
		cp := make(map[string]struct{}, len(set))
		for id := range set {
			cp[id] = struct{}{}
		}
		out.referrers[k] = cp
	}
	for k, v := range s.processes {
		out.processes[k] = v
	}
	for k, v := range s.archive {
		out.archive[k] = v
	}
	out.packaging = append([]packaging.Kind(nil), s.packaging...)
	return out
}

func (s state) snapshot() Snapshot {
	snap := Snapshot{
		Products:  make([]ProductRow, 0, len(s.products)),
		Materials: make([]catalog.Material, 0, len(s.materials)),
		Processes: make([]process.Process, 0, len(s.processes)),
		Archive:   make([]archive.Record, 0, len(s.archive)),
		Packaging: append([]packaging.Kind{}, s.packaging...),
	}
	for _, p := range s.products {
		p.MaterialIDs = append([]string{}, p.MaterialIDs...)
		snap.Products = append(snap.Products, p)
	}
	for _, m := range s.materials {
		m.Products = nil
		snap.Materials = append(snap.Materials, m)
	}
	for _, p := range s.processes {
		snap.Processes = append(snap.Processes, p.Clone())
	}
	for _, r := range s.archive {
		snap.Archive = append(snap.Archive, r)
	}
	sort.Slice(snap.Products, func(i, j int) bool { return snap.Products[i].ID < snap.Products[j].ID })
	sort.Slice(snap.Materials, func(i, j int) bool { return snap.Materials[i].ID < snap.Materials[j].ID })
	sort.Slice(snap.Processes, func(i, j int) bool { return snap.Processes[i].ID < snap.Processes[j].ID })
	sort.Slice(snap.Archive, func(i, j int) bool { return snap.Archive[i].ID < snap.Archive[j].ID })
	return snap
}

func stateFromSnapshot(snap Snapshot) state {
	st := newState()
	for _, m := range snap.Materials {
		m.Products = nil
		st.materials[m.ID] = m
	}
	for _, p := range snap.Products {
		p.MaterialIDs = append([]string{}, p.MaterialIDs...)
		st.products[p.ID] = p
		for _, mid := range p.MaterialIDs {
			st.link(p.ID, mid)
		}
	}
	for _, p := range snap.Processes {
		st.processes[p.ID] = p.Clone()
	}
	for _, r := range snap.Archive {
		st.archive[r.ID] = r
	}
	st.packaging = append([]packaging.Kind(nil), snap.Packaging...)
	return st
}

func (s state) link(productID, materialID string) {
	set, ok := s.referrers[materialID]
	if !ok {
		set = map[string]struct{}{}
		s.referrers[materialID] = set
	}
	set[productID] = struct{}{}
}

func (s state) unlink(productID, materialID string) {
	set, ok := s.referrers[materialID]
	if !ok {
		return
	}
	delete(set, productID)
	if len(set) == 0 {
		delete(s.referrers, materialID)
	}
}

func (s state) referrersOf(materialID string) []string {
	set := s.referrers[materialID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s state) productByNo(no string) (ProductRow, bool) {
	for _, p := range s.products {
		if p.No == no {
			return p, true
		}
	}
	return ProductRow{}, false
}

func (s state) materialByNo(no string) (catalog.Material, bool) {
	for _, m := range s.materials {
		if m.No == no {
			return m, true
		}
	}
	return catalog.Material{}, false
}

// resolve turns a stored row into a product with its ordered materials.
func (s state) resolve(row ProductRow) catalog.Product {
	p := catalog.Product{
		ID:        row.ID,
		No:        row.No,
		Materials: make([]catalog.Material, 0, len(row.MaterialIDs)),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	for _, id := range row.MaterialIDs {
		if m, ok := s.materials[id]; ok {
			m.Products = nil
			p.Materials = append(p.Materials, m)
		}
	}
	return p
}
