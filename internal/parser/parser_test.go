package parser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/llm"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func str(s string) *string { return &s }

type fakeRefiner struct {
	patch *entity.EarningsPatch
	err   error
	panic bool
	calls int
}

func (f *fakeRefiner) Refine(_ context.Context, _ llm.RefineRequest) (*entity.EarningsPatch, []byte, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	return f.patch, nil, f.err
}

func TestParse_NoKeywordsLeavesEverythingUnset(t *testing.T) {
	raw := "Thanks for riding with us\nSee you soon"
	got := New(quietLogger()).Parse(context.Background(), raw, Context{})

	want := entity.ParsedEarnings{Penalties: []entity.Penalty{}, Ratings: []entity.Rating{}, RawText: raw}
	if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestParse_EmptyInputSkipsRefinement(t *testing.T) {
	ref := &fakeRefiner{patch: &entity.EarningsPatch{Total: dec("1")}}
	got := New(quietLogger(), WithRefiner(ref)).Parse(context.Background(), "", Context{})

	if ref.calls != 0 {
		t.Fatalf("refiner called %d times for empty input", ref.calls)
	}
	if got.Total != nil || got.Penalties == nil || got.Ratings == nil {
		t.Fatalf("expected empty result with non-nil lists, got %+v", got)
	}
}

func TestParse_BasePayStripsCurrency(t *testing.T) {
	got := New(quietLogger()).Parse(context.Background(), "Base Pay: ₹250.00", Context{})
	if got.BasePay == nil || !got.BasePay.Equal(decimal.RequireFromString("250.00")) {
		t.Fatalf("base pay = %v, want 250.00", got.BasePay)
	}
}

func TestParse_PenaltiesInSourceOrderAndAbsolute(t *testing.T) {
	raw := "Fine: ₹50\nTrips: 12\nDeduction: -₹10"
	got := New(quietLogger()).Parse(context.Background(), raw, Context{})

	want := []entity.Penalty{
		{Type: str("Fine"), Amount: decimal.RequireFromString("50")},
		{Type: str("Deduction"), Amount: decimal.RequireFromString("10")},
	}
	if diff := cmp.Diff(want, got.Penalties, decimalEqual); diff != "" {
		t.Fatalf("penalties mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_PenaltyWithoutColonOrNumber(t *testing.T) {
	raw := "late surcharge 15\nno penalty this week"
	got := New(quietLogger()).Parse(context.Background(), raw, Context{})

	if len(got.Penalties) != 1 {
		t.Fatalf("expected 1 penalty, got %d: %+v", len(got.Penalties), got.Penalties)
	}
	if *got.Penalties[0].Type != "Deduction" {
		t.Fatalf("type = %q, want Deduction", *got.Penalties[0].Type)
	}
	if !got.Penalties[0].Amount.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("amount = %s, want 15", got.Penalties[0].Amount)
	}
}

func TestParse_Idempotent(t *testing.T) {
	p := New(quietLogger())
	raw := "Platform: Swiggy\nWeek: 01/12/2025\nBase Pay: 1,200\nIncentive: 300\nFuel allowance: 80\nPenalty: 40\nRating: 4.6/5"
	first := p.Parse(context.Background(), raw, Context{Platform: "swiggy"})
	second := p.Parse(context.Background(), raw, Context{Platform: "swiggy"})
	if diff := cmp.Diff(first, second, decimalEqual); diff != "" {
		t.Fatalf("parse is not idempotent (-first +second):\n%s", diff)
	}
}

func TestParse_FallbackTotal(t *testing.T) {
	raw := "Base Pay: ₹250\nBonus: ₹100\nDistance Pay: ₹20\nFine: ₹50"
	got := New(quietLogger()).Parse(context.Background(), raw, Context{})

	if got.Total == nil || !got.Total.Equal(decimal.NewFromInt(320)) {
		t.Fatalf("total = %v, want 320", got.Total)
	}
	if !got.TotalEstimated {
		t.Fatal("expected derived total to be flagged as estimated")
	}
}

func TestParse_DirectTotalIsSetOnce(t *testing.T) {
	raw := "Total: 420\nBase Pay: 250\nTotal earned this week: 999"
	got := New(quietLogger()).Parse(context.Background(), raw, Context{})

	if got.Total == nil || !got.Total.Equal(decimal.NewFromInt(420)) {
		t.Fatalf("total = %v, want 420", got.Total)
	}
	if got.TotalEstimated {
		t.Fatal("extracted total must not be flagged as estimated")
	}
}

func TestParse_RefinementReplacesPenaltiesWholesale(t *testing.T) {
	ref := &fakeRefiner{patch: &entity.EarningsPatch{
		Total:     dec("420"),
		Penalties: []entity.Penalty{{Type: str("fine"), Amount: decimal.NewFromInt(50)}},
	}}
	raw := "Base Pay: 250\nPenalty: ₹30\nLate deduction: ₹10"
	got := New(quietLogger(), WithRefiner(ref)).Parse(context.Background(), raw, Context{})

	want := []entity.Penalty{{Type: str("fine"), Amount: decimal.NewFromInt(50)}}
	if diff := cmp.Diff(want, got.Penalties, decimalEqual); diff != "" {
		t.Fatalf("penalties mismatch (-want +got):\n%s", diff)
	}
	if !got.Total.Equal(decimal.NewFromInt(420)) || got.TotalEstimated {
		t.Fatalf("total = %v estimated=%v, want 420 from refinement", got.Total, got.TotalEstimated)
	}
	if !got.BasePay.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("base pay not supplied by refinement should stay heuristic, got %v", got.BasePay)
	}
}

func TestParse_RefinementFaultsLeaveHeuristicResult(t *testing.T) {
	raw := "Base Pay: 250\nPenalty: 30"
	cases := map[string]*fakeRefiner{
		"error": {err: errors.New("upstream 500")},
		"panic": {panic: true},
		"empty": {patch: &entity.EarningsPatch{}},
		"nil":   {},
	}
	want := New(quietLogger()).Parse(context.Background(), raw, Context{})

	for name, ref := range cases {
		t.Run(name, func(t *testing.T) {
			got := New(quietLogger(), WithRefiner(ref)).Parse(context.Background(), raw, Context{})
			if ref.calls != 1 {
				t.Fatalf("refiner calls = %d, want 1", ref.calls)
			}
			if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
				t.Fatalf("result changed (-want +got):\n%s", diff)
			}
			if !got.Total.Equal(decimal.NewFromInt(220)) {
				t.Fatalf("fallback total = %v, want 220", got.Total)
			}
		})
	}
}

func TestParse_ContextPlatformIsSticky(t *testing.T) {
	p := New(quietLogger())

	got := p.Parse(context.Background(), "Total: 100", Context{Platform: "uber"})
	if got.Platform == nil || *got.Platform != "uber" {
		t.Fatalf("platform = %v, want uber", got.Platform)
	}

	got = p.Parse(context.Background(), "Platform: Deliveroo\nTotal: 100", Context{Platform: "uber"})
	if *got.Platform != "uber" {
		t.Fatalf("heuristic overrode context platform: %q", *got.Platform)
	}

	ref := &fakeRefiner{patch: &entity.EarningsPatch{Platform: str("Ola")}}
	got = New(quietLogger(), WithRefiner(ref)).Parse(context.Background(), "Total: 100", Context{Platform: "uber"})
	if *got.Platform != "Ola" {
		t.Fatalf("refinement should override context platform, got %q", *got.Platform)
	}
}

func TestParse_Rating(t *testing.T) {
	got := New(quietLogger()).Parse(context.Background(), "Rating: 4.8/5", Context{})
	want := []entity.Rating{{Rating: decimal.RequireFromString("4.8")}}
	if diff := cmp.Diff(want, got.Ratings, decimalEqual); diff != "" {
		t.Fatalf("ratings mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_DemoStatement(t *testing.T) {
	raw := "Gig Platform Earnings Summary\n" +
		"Platform: Deliveroo\n" +
		"Date: 2025-12-05\n" +
		"Total Earnings: ₹420.00\n" +
		"Base Pay: ₹250.00\n" +
		"Incentive/Bonus: ₹100.00\n" +
		"Deduction/Penalty: ₹50.00\n" +
		"Trip Count: 10\n" +
		"Hours Logged: 2.5"
	got := New(quietLogger()).Parse(context.Background(), raw, Context{})

	want := entity.ParsedEarnings{
		Platform:  str("Deliveroo"),
		Date:      str("2025-12-05"),
		DateISO:   str("2025-12-05"),
		Total:     dec("420.00"),
		BasePay:   dec("250.00"),
		Bonus:     dec("100.00"),
		Penalties: []entity.Penalty{{Type: str("Deduction/Penalty"), Amount: decimal.RequireFromString("50.00")}},
		Ratings:   []entity.Rating{},
		RawText:   raw,
	}
	if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestParse_CRLFAndFirstValueWins(t *testing.T) {
	raw := "Base Pay: 100\r\n\r\n  basic fare: 999  \r\nBonus: n/a\r\nExtra incentive: 25\r\n"
	got := New(quietLogger()).Parse(context.Background(), raw, Context{})

	if !got.BasePay.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("base pay = %v, want first value 100", got.BasePay)
	}
	if got.Bonus == nil || !got.Bonus.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("bonus = %v, want 25 (first line had no number)", got.Bonus)
	}
}

func TestParse_RecoversFromRulePanic(t *testing.T) {
	p := New(quietLogger())
	p.rules = append(p.rules, lineRule{
		name:    "explode",
		keyword: regexp.MustCompile(`explode`),
		apply:   func(*entity.ParsedEarnings, string) { panic("bad line") },
	})

	raw := "Base Pay: 250\nexplode here\nBonus: 100"
	got := p.Parse(context.Background(), raw, Context{})

	if got.BasePay == nil || !got.BasePay.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected partial result to keep base pay, got %v", got.BasePay)
	}
	if got.Bonus != nil {
		t.Fatalf("lines after the fault should not be processed, got bonus %v", got.Bonus)
	}
	if got.RawText != raw || got.Penalties == nil || got.Ratings == nil {
		t.Fatalf("partial result lost invariants: %+v", got)
	}
}
