package safety

import (
	"fmt"
	"strings"

	"github.com/engramhq/engram/internal/config"
	"github.com/engramhq/engram/internal/ekind"
	"github.com/engramhq/engram/internal/types"
)

// Gate is the Safety Gate: it scans a capture's text for recognized PII
// kinds and replaces each match with a deterministic "[REDACTED:<kind>]"
// placeholder. Redaction is idempotent — running Redact a second time on
// already-redacted text is a no-op, because the placeholder text never
// matches any of the detection patterns.
type Gate struct {
	patterns []*pattern
	enabled  map[types.PIIKind]bool
	redact   bool
}

// New builds a Gate from the safety section of the config. Disabling
// redact_pii skips substitution but detection still runs: pii_flags stays
// populated so the capture remains auditable even when redaction itself
// is turned off.
func New(cfg config.SafetyConfig) *Gate {
	enabled := make(map[types.PIIKind]bool, len(cfg.KindsEnabled))
	for _, k := range cfg.KindsEnabled {
		enabled[types.PIIKind(k)] = true
	}

	patterns := compilePatterns()
	if !cfg.LuhnRequired {
		for _, p := range patterns {
			if p.kind == types.PIIKindCreditCard {
				p.validate = nil
			}
		}
	}

	return &Gate{
		patterns: patterns,
		enabled:  enabled,
		redact:   cfg.RedactPII,
	}
}

// Redact scans text for enabled PII kinds and returns the redacted text
// together with the bitset of kinds that were found. Patterns run in table
// order, each over the text as left by the ones before it, so a span an
// earlier pattern replaced with a placeholder is not matched by a later one.
func (g *Gate) Redact(text string) (redacted string, flags types.PIIFlag, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("safety: %w: pattern panic: %v", ekind.ErrIngestRejected, r)
		}
	}()

	result := text
	for _, p := range g.patterns {
		if !g.enabled[p.kind] {
			continue
		}

		matches := uniqueMatches(p.regex.FindAllString(result, -1))
		for _, match := range matches {
			if p.validate != nil && !p.validate(match) {
				continue
			}
			flags |= p.kind.Flag()
			if !g.redact {
				// redact_pii=false bypasses substitution but pii_flags is
				// still populated for auditing, per spec §4.2.
				continue
			}
			placeholder := fmt.Sprintf("[REDACTED:%s]", p.kind)
			result = strings.ReplaceAll(result, match, placeholder)
		}
	}

	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		kind := types.PIIKind(m[1])
		if g.enabled[kind] {
			flags |= kind.Flag()
		}
	}

	if !g.redact {
		return text, flags, nil
	}
	return result, flags, nil
}

// uniqueMatches de-duplicates a match slice while preserving first-seen
// order, so a repeated value in the text is only substituted once per pass
// (ReplaceAll already handles every occurrence).
func uniqueMatches(matches []string) []string {
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
