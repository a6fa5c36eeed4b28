// Package validate holds the structural acceptance rules applied to fetched
// records before they are persisted or compared.
package validate

import (
	"github.com/go-playground/validator/v10"

	"github.com/riching/stock-scraper/internal/models"
)

// Policy validates fetched records. Rules live in the `validate` struct tags
// on the model types; a rejected record is a failure outcome for the worker,
// never an error.
type Policy struct {
	v *validator.Validate
}

func NewPolicy() *Policy {
	return &Policy{v: validator.New()}
}

// ValidRecord reports whether a price bar is structurally acceptable:
// present, all of open/high/low/close strictly positive, and the OHLC
// ordering consistent (high is the maximum, low the minimum). Inconsistent
// source data is rejected, not clamped.
func (p *Policy) ValidRecord(rec *models.MarketRecord) bool {
	if rec == nil {
		return false
	}
	return p.v.Struct(rec) == nil
}

// ValidInfoItem reports whether an information item carries the fields the
// pipeline depends on: non-empty title and content and a computed
// fingerprint.
func (p *Policy) ValidInfoItem(item *models.InfoItem) bool {
	if item == nil {
		return false
	}
	return p.v.Struct(item) == nil
}
