package types

import (
	"fmt"
	"slices"
	"strconv"
)

// TileID is the numeric identifier of a physical tile in the deck.
type TileID int

type Suit string

const (
	SuitBamboo     Suit = "bamboo"
	SuitCharacters Suit = "characters"
	SuitDots       Suit = "dots"
	SuitWind       Suit = "wind"
	SuitDragon     Suit = "dragon"
	SuitFlower     Suit = "flower"
	SuitSeason     Suit = "season"
)

type Tile struct {
	// ID is unique across the deck
	ID TileID `json:"id"`
	// Suit is the tile's suit
	Suit Suit `json:"suit"`
	// Value is the rank for numbered suits or the name for honors and bonus tiles
	Value string `json:"value"`
}

func (t Tile) String() string {
	return fmt.Sprintf("%s %s", t.Value, t.Suit)
}

// Deck maps tile IDs to tiles.
type Deck map[TileID]Tile

// NewDeck indexes tiles by ID.
func NewDeck(tiles []Tile) Deck {
	deck := make(Deck, len(tiles))
	for _, tile := range tiles {
		deck[tile.ID] = tile
	}
	return deck
}

// Get looks up a tile by ID.
func (d Deck) Get(id TileID) (Tile, bool) {
	tile, ok := d[id]
	return tile, ok
}

// Tiles returns the deck's tiles ordered by ID.
func (d Deck) Tiles() []Tile {
	tiles := make([]Tile, 0, len(d))
	for _, tile := range d {
		tiles = append(tiles, tile)
	}
	slices.SortFunc(tiles, func(a, b Tile) int { return int(a.ID) - int(b.ID) })
	return tiles
}

// NewStandardDeck builds the 144 tile set: three numbered suits, winds and
// dragons four times each, plus one of each flower and season.
func NewStandardDeck() Deck {
	tiles := make([]Tile, 0, 144)
	add := func(suit Suit, value string) {
		tiles = append(tiles, Tile{ID: TileID(len(tiles)), Suit: suit, Value: value})
	}

	for _, suit := range []Suit{SuitBamboo, SuitCharacters, SuitDots} {
		for value := 1; value <= 9; value++ {
			for n := 0; n < 4; n++ {
				add(suit, strconv.Itoa(value))
			}
		}
	}
	for _, wind := range []string{"east", "south", "west", "north"} {
		for n := 0; n < 4; n++ {
			add(SuitWind, wind)
		}
	}
	for _, dragon := range []string{"red", "green", "white"} {
		for n := 0; n < 4; n++ {
			add(SuitDragon, dragon)
		}
	}
	for _, flower := range []string{"plum", "orchid", "chrysanthemum", "bamboo"} {
		add(SuitFlower, flower)
	}
	for _, season := range []string{"spring", "summer", "autumn", "winter"} {
		add(SuitSeason, season)
	}

	return NewDeck(tiles)
}
