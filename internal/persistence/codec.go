package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/utafrali/cartkeeper/internal/domain"
)

// record is the persisted shape of one cart line. Field names match the
// payload written by earlier versions of the app, so existing carts still load.
type record struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	ImageURL string          `json:"image_url"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Repair counts records dropped while decoding a snapshot.
type Repair struct {
	Invalid    int
	Duplicates int
}

// Dropped returns the total number of dropped records.
func (r Repair) Dropped() int {
	return r.Invalid + r.Duplicates
}

// Encode serializes state as a JSON array of records in line order. An empty
// cart encodes as [].
func Encode(state domain.CartState) ([]byte, error) {
	lines := state.Lines()
	records := make([]record, len(lines))
	for i, l := range lines {
		records[i] = record{
			ID:       l.ID,
			Title:    l.Title,
			ImageURL: l.ImageURL,
			Price:    l.UnitPrice,
			Quantity: l.Quantity,
		}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot. Records with an empty id or a quantity below 1 are
// dropped, and for repeated ids only the first record is kept; both are counted
// in the returned Repair. A payload that is not a JSON array of records is an error.
func Decode(data []byte) (domain.CartState, Repair, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return domain.CartState{}, Repair{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	var repair Repair
	seen := make(map[string]struct{}, len(records))
	lines := make([]domain.CartLine, 0, len(records))
	for _, r := range records {
		if r.ID == "" || r.Quantity < 1 {
			repair.Invalid++
			continue
		}
		if _, dup := seen[r.ID]; dup {
			repair.Duplicates++
			continue
		}
		seen[r.ID] = struct{}{}
		lines = append(lines, domain.CartLine{
			Product: domain.Product{
				ID:        r.ID,
				Title:     r.Title,
				ImageURL:  r.ImageURL,
				UnitPrice: r.Price,
			},
			Quantity: r.Quantity,
		})
	}

	return domain.NewCartState(lines...), repair, nil
}
