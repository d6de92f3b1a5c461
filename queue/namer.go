package queue

import (
	"fmt"
	"regexp"
)

// placeholderRx matches the %(name)s placeholders understood by the
// naming templates.
var placeholderRx = regexp.MustCompile(`%\(([^)]*)\)s`)

// expandTemplate interpolates %(name)s placeholders from vars. A
// placeholder missing from vars fails with ErrConfig.
func expandTemplate(template string, vars map[string]string) (string, error) {
	var unknown string

	out := placeholderRx.ReplaceAllStringFunc(template, func(m string) string {
		name := placeholderRx.FindStringSubmatch(m)[1]
		val, ok := vars[name]
		if !ok {
			if unknown == "" {
				unknown = name
			}

			return m
		}

		return val
	})
	if unknown != "" {
		return "", fmt.Errorf(
			"%w: unknown placeholder %%(%s)s in template %q",
			ErrConfig, unknown, template,
		)
	}

	return out, nil
}

// UpstreamTag renders the tag name locating the upstream baseline for
// a package version. The template may use %(version)s,
// %(upstreamversion)s and %(vendor)s.
func UpstreamTag(template, version, vendor string) (string, error) {
	return expandTemplate(template, map[string]string{
		"version":         version,
		"upstreamversion": version,
		"vendor":          vendor,
	})
}

// BranchNamer derives patch queue branch names from the configured
// template and recognizes them again. The relation between a base
// branch and its queue branch is never stored; it is recomputed from
// the template on every use.
type BranchNamer struct {
	template string
	matcher  *regexp.Regexp
	captures bool
}

// NewBranchNamer compiles a branch name template. The template may use
// %(branch)s (the base branch name) and %(version)s (the package
// version).
func NewBranchNamer(template string) (*BranchNamer, error) {
	if template == "" {
		return nil, fmt.Errorf("%w: empty branch template", ErrConfig)
	}

	// Surface unknown placeholders at construction rather than on
	// first use.
	dummy := map[string]string{"branch": "b", "version": "v"}
	if _, err := expandTemplate(template, dummy); err != nil {
		return nil, err
	}

	pattern := "^"
	captures := false
	last := 0

	for _, m := range placeholderRx.FindAllStringSubmatchIndex(template, -1) {
		pattern += regexp.QuoteMeta(template[last:m[0]])

		switch template[m[2]:m[3]] {
		case "branch":
			pattern += "(?P<branch>.+)"
			captures = true
		case "version":
			pattern += ".+"
		}

		last = m[1]
	}
	pattern += regexp.QuoteMeta(template[last:]) + "$"

	matcher, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: branch template %q: %v", ErrConfig, template, err,
		)
	}

	return &BranchNamer{
		template: template,
		matcher:  matcher,
		captures: captures,
	}, nil
}

// Name renders the queue branch name for a base branch. Templates
// whose expansion equals the base branch itself are rejected.
func (n *BranchNamer) Name(base, version string) (string, error) {
	out, err := expandTemplate(n.template, map[string]string{
		"branch":  base,
		"version": version,
	})
	if err != nil {
		return "", err
	}
	if out == base {
		return "", fmt.Errorf(
			"%w: branch template %q expands to the base branch itself",
			ErrConfig, n.template,
		)
	}

	return out, nil
}

// IsQueueBranch reports whether a branch name matches the template.
func (n *BranchNamer) IsQueueBranch(name string) bool {
	return n.matcher.MatchString(name)
}

// Base recovers the base branch name from a queue branch name.
func (n *BranchNamer) Base(name string) (string, error) {
	if !n.captures {
		return "", fmt.Errorf(
			"%w: branch template %q cannot recover the base branch",
			ErrConfig, n.template,
		)
	}

	m := n.matcher.FindStringSubmatch(name)
	if m == nil {
		return "", fmt.Errorf("%q is not a patch queue branch", name)
	}

	return m[n.matcher.SubexpIndex("branch")], nil
}
