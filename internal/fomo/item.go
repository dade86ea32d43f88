// Package fomo simulates demand-driven pricing over a fixed catalog snapshot.
//
// A Simulator owns a derived view of the snapshot and runs two periodic
// processes against it: viewer drift and price surge. The source items are
// never mutated and nothing is persisted.
package fomo

// Item is one catalog entry as supplied by the catalog source.
//
// Callers must supply unique IDs and TotalStock > 0. The simulator does not
// check either: a zero TotalStock makes Scarcity divide by zero.
type Item struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	BasePrice      float64 `json:"base_price"`
	CurrentPrice   float64 `json:"current_price"`
	TotalStock     int     `json:"total_stock"`
	RemainingStock int     `json:"remaining_stock"`
	Viewers        int     `json:"viewers"`
	Active         bool    `json:"is_active"`
	ImageURL       string  `json:"image_url,omitempty"`
}

type SimulatedItem struct {
	Item

	DisplayPrice       float64 `json:"display_price"`
	PriceJustIncreased bool    `json:"price_increased"`
	DisplayViewers     int     `json:"display_viewers"`
}

func newSimulatedItem(it Item) SimulatedItem {
	return SimulatedItem{
		Item:           it,
		DisplayPrice:   it.CurrentPrice,
		DisplayViewers: it.Viewers,
	}
}

type UpdateKind string

const (
	UpdateReset   UpdateKind = "reset"
	UpdateViewers UpdateKind = "viewers"
	UpdateSurge   UpdateKind = "surge"
	UpdateFlash   UpdateKind = "flash"
)

// Update is pushed to subscribers after every state change. Items is a copy
// owned by the receiver.
type Update struct {
	Kind   UpdateKind      `json:"kind"`
	Surged string          `json:"surged,omitempty"`
	Items  []SimulatedItem `json:"items"`
}
