package parser

import (
	"strings"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
)

// Apply overlays every field the patch supplies onto out. Scalars replace,
// penalty and rating lists replace wholesale. Blank strings are treated as
// not supplied.
func Apply(out *entity.ParsedEarnings, patch entity.EarningsPatch) {
	if patch.Platform != nil {
		if v := strings.TrimSpace(*patch.Platform); v != "" {
			out.Platform = &v
		}
	}
	if patch.Date != nil {
		if v := strings.TrimSpace(*patch.Date); v != "" {
			out.Date = &v
			out.DateISO = nil
			if iso, ok := NormalizeDate(v); ok {
				out.DateISO = &iso
			}
		}
	}
	if patch.Total != nil {
		v := *patch.Total
		out.Total = &v
		out.TotalEstimated = false
	}
	if patch.BasePay != nil {
		v := *patch.BasePay
		out.BasePay = &v
	}
	if patch.Bonus != nil {
		v := *patch.Bonus
		out.Bonus = &v
	}
	if patch.DistancePay != nil {
		v := *patch.DistancePay
		out.DistancePay = &v
	}
	if patch.Penalties != nil {
		pens := make([]entity.Penalty, 0, len(patch.Penalties))
		for _, p := range patch.Penalties {
			var typ *string
			if p.Type != nil {
				t := *p.Type
				typ = &t
			}
			pens = append(pens, entity.Penalty{Type: typ, Amount: p.Amount.Abs()})
		}
		out.Penalties = pens
	}
	if patch.Ratings != nil {
		out.Ratings = append(make([]entity.Rating, 0, len(patch.Ratings)), patch.Ratings...)
	}
}
