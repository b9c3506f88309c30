package packaging

// Kind is a container type an operator can pick when starting a weighing.
type Kind struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Defaults seeds stores that start empty.
var Defaults = []Kind{
	{ID: "1", Type: "Bag"},
	{ID: "2", Type: "Box"},
	{ID: "3", Type: "Drum"},
	{ID: "4", Type: "Canister"},
}
