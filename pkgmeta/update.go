package pkgmeta

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roasbeef/patchq/series"
)

var (
	prepPatchRx = regexp.MustCompile(`(?i)^%patch\d+\b`)
	setupRx     = regexp.MustCompile(`(?i)^%setup\b`)
	sectionRx   = regexp.MustCompile(
		`^%(build|install|check|files|changelog|clean|description|pre|post)\b`,
	)
)

// UpdatePatches replaces the spec's patch machinery with the given
// series: the PatchN tag block, conditional wrappers derived from each
// patch's directives, and the %patch application lines under %prep.
// Tags are renumbered from zero in series order. Everything else in
// the file is preserved.
func (s *Spec) UpdatePatches(
	names []string, directives map[string][]series.Directive,
) error {

	removed := make(map[int]bool)

	// Old tag lines go, wrappers included.
	tagAnchor := -1
	for _, tag := range s.tags {
		if tagAnchor == -1 || tag.line < tagAnchor {
			tagAnchor = tag.line
		}
		s.removeWithWrappers(tag.line, removed)
	}
	if tagAnchor == -1 {
		tagAnchor = s.headerAnchor()
	}

	// Old %patch application lines go the same way.
	prepStart, prepEnd := s.prepSection()
	prepAnchor := -1
	for i := prepStart; i >= 0 && i < prepEnd; i++ {
		if !prepPatchRx.MatchString(s.lines[i]) {
			continue
		}
		if prepAnchor == -1 {
			prepAnchor = i
		}
		s.removeWithWrappers(i, removed)
	}
	if prepAnchor == -1 && prepStart >= 0 {
		prepAnchor = s.setupAnchor(prepStart, prepEnd)
	}

	tagBlock := buildTagBlock(names, directives)
	prepBlock := buildPrepBlock(names, directives)

	var out []string
	for i, line := range s.lines {
		if i == tagAnchor {
			out = append(out, tagBlock...)
		}
		if i == prepAnchor && prepStart >= 0 {
			out = append(out, prepBlock...)
		}
		if removed[i] {
			continue
		}
		out = append(out, line)
	}
	if tagAnchor == len(s.lines) {
		out = append(out, tagBlock...)
	}
	if prepAnchor == len(s.lines) && prepStart >= 0 {
		out = append(out, prepBlock...)
	}

	// Re-parse to refresh tag bookkeeping, keeping any redirected Dir.
	reparsed, err := Parse(strings.Join(out, "\n"), s.Path)
	if err != nil {
		return fmt.Errorf("rewrite spec: %w", err)
	}
	s.lines = reparsed.lines
	s.tags = reparsed.tags

	return nil
}

// removeWithWrappers marks a line and any immediately surrounding
// %if/%endif pairs for removal. Only tightly wrapped conditionals are
// taken, matching the shape this tool writes.
func (s *Spec) removeWithWrappers(line int, removed map[int]bool) {
	removed[line] = true

	lo, hi := line-1, line+1
	for lo >= 0 && hi < len(s.lines) &&
		strings.HasPrefix(s.lines[lo], "%if") &&
		strings.HasPrefix(s.lines[hi], "%endif") {

		removed[lo] = true
		removed[hi] = true
		lo--
		hi++
	}
}

// headerAnchor picks where a fresh tag block goes in a spec that never
// had one: right after the last header or Source tag.
func (s *Spec) headerAnchor() int {
	last := -1
	for i, line := range s.lines {
		if headerRx.MatchString(line) || sourceRx.MatchString(line) {
			last = i
		}
	}

	return last + 1
}

// prepSection returns the half-open line range of the %prep section,
// or (-1, -1) when the spec has none.
func (s *Spec) prepSection() (int, int) {
	start := -1
	for i, line := range s.lines {
		if start == -1 {
			if strings.TrimSpace(line) == "%prep" {
				start = i + 1
			}
			continue
		}
		if sectionRx.MatchString(line) {
			return start, i
		}
	}
	if start == -1 {
		return -1, -1
	}

	return start, len(s.lines)
}

// setupAnchor picks where fresh %patch lines go in a prep section that
// never had any: after %setup, else at the section start.
func (s *Spec) setupAnchor(start, end int) int {
	for i := start; i < end; i++ {
		if setupRx.MatchString(s.lines[i]) {
			return i + 1
		}
	}

	return start
}

// conds renders a patch's directive list as conditional macro lines.
func conds(directives []series.Directive) []string {
	var out []string
	for _, d := range directives {
		switch d.Kind {
		case series.DirectiveIf:
			out = append(out, "%if "+d.Arg)
		case series.DirectiveIfArch:
			out = append(out, "%ifarch "+d.Arg)
		}
	}

	return out
}

// buildTagBlock renders the PatchN tag lines, wrapped per directive.
func buildTagBlock(
	names []string, directives map[string][]series.Directive,
) []string {

	var block []string
	for i, name := range names {
		guards := conds(directives[name])
		block = append(block, guards...)
		block = append(block, fmt.Sprintf("Patch%d: %s", i, name))
		for range guards {
			block = append(block, "%endif")
		}
	}

	return block
}

// buildPrepBlock renders the %patch application lines, wrapped the
// same way as their tags.
func buildPrepBlock(
	names []string, directives map[string][]series.Directive,
) []string {

	var block []string
	for i, name := range names {
		guards := conds(directives[name])
		block = append(block, guards...)
		block = append(block, fmt.Sprintf("%%patch%d -p1", i))
		for range guards {
			block = append(block, "%endif")
		}
	}

	return block
}
