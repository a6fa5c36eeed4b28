package crawler

import (
	"fmt"
	"math"

	"github.com/riching/stock-scraper/internal/models"
)

// priceTolerance is the absolute difference under which two prices count
// as equal. Sources round differently at the second decimal.
const priceTolerance = 0.01

// Comparator checks freshly fetched bars against what the store already
// holds, for reconciliation runs.
type Comparator struct {
	store recordStore
}

func NewComparator(store recordStore) *Comparator {
	return &Comparator{store: store}
}

// Compare reports whether the stored bar for (code, date) agrees with the
// fetched one on all four prices. A missing stored row is a mismatch, as is
// any price differing by more than the tolerance. The diffs list one entry
// per disagreeing field.
func (c *Comparator) Compare(fetched *models.MarketRecord) (bool, []string, error) {
	stored, err := c.store.GetMarketRecord(fetched.Code, fetched.Date)
	if err != nil {
		return false, nil, err
	}
	if stored == nil {
		return false, []string{"no stored record"}, nil
	}

	var diffs []string
	check := func(field string, have, want float64) {
		if math.Abs(have-want) > priceTolerance {
			diffs = append(diffs, fmt.Sprintf("%s: stored %.2f, fetched %.2f", field, have, want))
		}
	}
	check("open", stored.Open, fetched.Open)
	check("high", stored.High, fetched.High)
	check("low", stored.Low, fetched.Low)
	check("close", stored.Close, fetched.Close)

	return len(diffs) == 0, diffs, nil
}
