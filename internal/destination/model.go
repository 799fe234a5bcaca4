// Package destination serves the visa destinations showcased on the public pages.
package destination

// Destination is one country the portal processes visas for.
type Destination struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Country        string `json:"country"`
	Region         string `json:"region"`
	ProcessingDays int    `json:"processingDays"`
	FeeCents       int64  `json:"feeCents"`
	ImageURL       string `json:"imageUrl,omitempty"`
	Description    string `json:"description,omitempty"`
	Featured       bool   `json:"featured"`
}
