package catalog

import "time"

type Material struct {
	ID string `json:"id"`
	No string `json:"no"`
	// Products is the derived back-reference set. It is filled only when a
	// material is loaded on its own; resolved product materials leave it empty.
	Products  []string  `json:"products,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Product struct {
	ID        string     `json:"id"`
	No        string     `json:"no"`
	Materials []Material `json:"materials"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// MaterialIDs returns the ids of the resolved materials in list order.
func (p *Product) MaterialIDs() []string {
	ids := make([]string, 0, len(p.Materials))
	for _, m := range p.Materials {
		ids = append(ids, m.ID)
	}
	return ids
}

type Filter struct {
	No string
}
