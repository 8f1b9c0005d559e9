package group

// Group is a reference to a contact group owned by the messaging platform.
// Only the identifier, name and member count are held locally.
type Group struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary is the projection of a group returned to API callers
type Summary struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary returns the caller facing projection of g
func (g *Group) Summary() Summary {
	return Summary{
		UUID:  g.UUID,
		Name:  g.Name,
		Count: g.Count,
	}
}
