package parser

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/llm"
)

// Context carries caller-side hints for a parse.
type Context struct {
	Platform string `json:"platform,omitempty"`
}

// Parser turns statement text into entity.ParsedEarnings. It holds no
// per-call state and is safe for concurrent use.
type Parser struct {
	rules   []lineRule
	refiner llm.Refiner
	logger  *slog.Logger
}

type Option func(*Parser)

// WithRefiner enables the model-assisted refinement pass. A nil refiner
// leaves it disabled.
func WithRefiner(r llm.Refiner) Option {
	return func(p *Parser) {
		p.refiner = r
	}
}

func New(logger *slog.Logger, opts ...Option) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Parser{
		rules:  defaultRules(),
		logger: logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// RefinementEnabled reports whether Parse will call the refiner.
func (p *Parser) RefinementEnabled() bool {
	return p.refiner != nil
}

// Parse never fails. A fault while scanning lines is logged and whatever was
// extracted up to that point is returned.
func (p *Parser) Parse(ctx context.Context, rawText string, pc Context) (out entity.ParsedEarnings) {
	start := time.Now()
	out = entity.NewParsedEarnings(rawText)
	if pl := strings.TrimSpace(pc.Platform); pl != "" {
		out.Platform = &pl
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("parser.parse.recovered",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
				"text_len", len(rawText),
			)
		}
	}()

	lines := splitLines(rawText)
	p.heuristicPass(&out, lines)

	refined := false
	if len(lines) > 0 {
		refined = p.refine(ctx, &out, pc)
	}

	applyFallback(&out)

	if out.Date != nil {
		if iso, ok := NormalizeDate(*out.Date); ok {
			out.DateISO = &iso
		}
	}

	p.logger.Debug("parser.parse.ok",
		"lines", len(lines),
		"penalties", len(out.Penalties),
		"ratings", len(out.Ratings),
		"refined", refined,
		"total_estimated", out.TotalEstimated,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}

func (p *Parser) heuristicPass(out *entity.ParsedEarnings, lines []string) {
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, rule := range p.rules {
			if rule.keyword.MatchString(lower) {
				rule.apply(out, line)
			}
		}
	}
}

// refine reports whether a refinement result was applied. Refiner errors and
// panics leave the heuristic output untouched.
func (p *Parser) refine(ctx context.Context, out *entity.ParsedEarnings, pc Context) bool {
	if p.refiner == nil {
		return false
	}
	patch, err := p.callRefiner(ctx, llm.RefineRequest{RawText: out.RawText, PlatformHint: pc.Platform})
	if err != nil {
		p.logger.Warn("parser.refine.skipped", "reason", "refiner_error", "error", err)
		return false
	}
	if patch.IsEmpty() {
		p.logger.Debug("parser.refine.skipped", "reason", "empty_result")
		return false
	}
	Apply(out, *patch)
	return true
}

func (p *Parser) callRefiner(ctx context.Context, req llm.RefineRequest) (patch *entity.EarningsPatch, err error) {
	defer func() {
		if r := recover(); r != nil {
			patch, err = nil, fmt.Errorf("refiner panic: %v", r)
		}
	}()
	patch, _, err = p.refiner.Refine(ctx, req)
	return patch, err
}

// applyFallback derives an unset total from its components. It only fires
// when at least one component was found; the result is flagged as estimated.
func applyFallback(out *entity.ParsedEarnings) {
	if out.Total != nil || !out.HasComponents() {
		return
	}
	total := out.GrossPay().Sub(out.PenaltyTotal())
	out.Total = &total
	out.TotalEstimated = true
}
