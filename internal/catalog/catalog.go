package catalog

import (
	"fmt"
	"time"

	"github.com/digkill/productgenius/internal/models"
)

const day = 24 * time.Hour

// Definition describes what a package grants when it is activated.
type Definition struct {
	Code     models.PackageCode `json:"code"`
	Title    string             `json:"title"`
	Credits  int                `json:"credits"`
	Validity time.Duration      `json:"validity"`
}

// Months are counted as 30 days so that expiry does not depend on the calendar month of approval.
var (
	Free         = Definition{Code: models.PackageFree, Title: "Free trial", Credits: 1, Validity: 7 * day}
	OneMonth     = Definition{Code: models.Package1M, Title: "Monthly", Credits: 25, Validity: 30 * day}
	ThreeMonths  = Definition{Code: models.Package3M, Title: "3 months", Credits: 80, Validity: 90 * day}
	SixMonths    = Definition{Code: models.Package6M, Title: "6 months", Credits: 150, Validity: 180 * day}
	TwelveMonths = Definition{Code: models.Package12M, Title: "Yearly", Credits: 350, Validity: 365 * day}

	// All is the ordered package table.
	All = []Definition{Free, OneMonth, ThreeMonths, SixMonths, TwelveMonths}
)

// DefinitionOf returns the definition for a package code.
func DefinitionOf(code models.PackageCode) (Definition, error) {
	for _, def := range All {
		if def.Code == code {
			return def, nil
		}
	}
	return Definition{}, fmt.Errorf("unknown package %q", code)
}

// ExpiryFor returns the end of validity for a package activated at now.
func ExpiryFor(code models.PackageCode, now time.Time) (time.Time, error) {
	def, err := DefinitionOf(code)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(def.Validity), nil
}

// Purchasable lists the packages a user may request.
func Purchasable() []Definition {
	out := make([]Definition, 0, len(All)-1)
	for _, def := range All {
		if def.Code.Purchasable() {
			out = append(out, def)
		}
	}
	return out
}
