package types

import "slices"

type HandTile struct {
	// ID is the tile's deck ID
	ID TileID `json:"id"`
	// Concealed is false once the tile is part of an exposed meld
	Concealed bool `json:"concealed"`
	// SetID is the meld this tile belongs to, if any
	SetID *string `json:"set_id,omitempty"`
}

// Hand is a player's ordered list of tiles.
type Hand []HandTile

// IDs returns the tile IDs in hand order.
func (h Hand) IDs() []TileID {
	ids := make([]TileID, len(h))
	for i, tile := range h {
		ids[i] = tile.ID
	}
	return ids
}

// Contains reports whether the hand holds the tile.
func (h Hand) Contains(id TileID) bool {
	return slices.ContainsFunc(h, func(t HandTile) bool { return t.ID == id })
}

// Copy returns a deep copy of the hand.
func (h Hand) Copy() Hand {
	if h == nil {
		return nil
	}
	c := make(Hand, len(h))
	for i, tile := range h {
		c[i] = tile
		if tile.SetID != nil {
			setID := *tile.SetID
			c[i].SetID = &setID
		}
	}
	return c
}

// SortByOrder returns a copy of the hand sorted by each tile's position in
// order. Tiles whose IDs are missing from order compare equal to everything,
// and the sort is stable, so they keep their relative placement.
func (h Hand) SortByOrder(order []TileID) Hand {
	positions := make(map[TileID]int, len(order))
	for i, id := range order {
		positions[id] = i
	}

	sorted := h.Copy()
	slices.SortStableFunc(sorted, func(a, b HandTile) int {
		posA, okA := positions[a.ID]
		posB, okB := positions[b.ID]
		if !okA || !okB {
			return 0
		}
		return posA - posB
	})
	return sorted
}

// Meld is a set of tiles grouped together by a player.
type Meld struct {
	SetID     string   `json:"set_id"`
	Tiles     []TileID `json:"tiles"`
	Concealed bool     `json:"concealed"`
}

func (m Meld) Copy() Meld {
	return Meld{
		SetID:     m.SetID,
		Tiles:     slices.Clone(m.Tiles),
		Concealed: m.Concealed,
	}
}
