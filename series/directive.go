package series

import (
	"fmt"
	"regexp"
	"strings"
)

// DirectiveKind is the closed set of per-patch handling instructions.
type DirectiveKind string

const (
	// DirectiveIgnore excludes the originating commit from export
	// entirely. Takes no argument.
	DirectiveIgnore DirectiveKind = "ignore"

	// DirectiveIf guards the patch with a build-time condition.
	DirectiveIf DirectiveKind = "if"

	// DirectiveIfArch guards the patch with a target architecture.
	DirectiveIfArch DirectiveKind = "ifarch"
)

// Valid returns true if the kind is recognized.
func (k DirectiveKind) Valid() bool {
	switch k {
	case DirectiveIgnore, DirectiveIf, DirectiveIfArch:
		return true
	default:
		return false
	}
}

// TakesArg returns true if the kind requires an argument.
func (k DirectiveKind) TakesArg() bool {
	return k == DirectiveIf || k == DirectiveIfArch
}

// Directive is one parsed handling instruction.
type Directive struct {
	// Kind is the instruction keyword.
	Kind DirectiveKind

	// Arg is the instruction argument. Empty exactly when the kind
	// takes none.
	Arg string
}

// String renders the directive as "keyword" or "keyword arg".
func (d Directive) String() string {
	if d.Arg == "" {
		return string(d.Kind)
	}

	return string(d.Kind) + " " + d.Arg
}

// TrailerLine renders the directive as a commit message line carrying
// the given tag, the form ParseMessage recognizes.
func (d Directive) TrailerLine(tag string) string {
	return tag + ": " + d.String()
}

// Validate checks the kind/argument pairing.
func (d Directive) Validate() error {
	if !d.Kind.Valid() {
		return fmt.Errorf("unknown directive keyword %q", d.Kind)
	}
	if d.Kind.TakesArg() && d.Arg == "" {
		return fmt.Errorf("directive %q requires an argument", d.Kind)
	}
	if !d.Kind.TakesArg() && d.Arg != "" {
		return fmt.Errorf("directive %q takes no argument", d.Kind)
	}

	return nil
}

// HasIgnore reports whether the directive list contains an ignore.
func HasIgnore(directives []Directive) bool {
	for _, d := range directives {
		if d.Kind == DirectiveIgnore {
			return true
		}
	}

	return false
}

// directiveRx matches one directive line for a given tag. The keyword
// charset is letters and hyphens; everything after the first run of
// whitespace is the argument.
func directiveRx(tag string) *regexp.Regexp {
	return regexp.MustCompile(
		`(?i)^` + regexp.QuoteMeta(tag) + `:\s*([a-z-]+)(?:\s+(\S.*?))?\s*$`,
	)
}

// ParseMessage scans a commit message body for directive lines carrying
// the given tag. It returns the directives in the order encountered and
// the body with those lines stripped, so that exported patches do not
// carry them. Unknown keywords and malformed arguments are errors, not
// silently dropped lines.
func ParseMessage(body, tag string) ([]Directive, string, error) {
	rx := directiveRx(tag)

	var (
		directives []Directive
		kept       []string
	)
	for _, line := range strings.Split(body, "\n") {
		m := rx.FindStringSubmatch(line)
		if m == nil {
			kept = append(kept, line)
			continue
		}

		d := Directive{
			Kind: DirectiveKind(strings.ToLower(m[1])),
			Arg:  strings.TrimSpace(m[2]),
		}
		if err := d.Validate(); err != nil {
			return nil, "", fmt.Errorf(
				"directive line %q: %w", line, err,
			)
		}

		directives = append(directives, d)
	}

	return directives, strings.Join(kept, "\n"), nil
}
