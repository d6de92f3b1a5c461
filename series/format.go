package series

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roasbeef/patchq/git"
)

// mboxDate is the fixed timestamp git uses on mbox From lines. It
// carries no information; the real date lives in the Date header.
const mboxDate = "Mon Sep 17 00:00:00 2001"

// maxNameLen caps generated basenames, numeric prefix and extension
// included.
const maxNameLen = 63

// FormatPatch renders a commit as an mbox-style patch file: authorship
// headers, the message body, then the diff after the --- separator.
// body is the commit body with directive lines already stripped; diff
// is stat-bearing git diff output and lands verbatim.
func FormatPatch(info git.CommitInfo, body, diff string) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From %s %s\n", info.SHA, mboxDate)
	fmt.Fprintf(&buf, "From: %s <%s>\n", info.Author.Name, info.Author.Email)
	fmt.Fprintf(&buf, "Date: %s\n", info.Author.Date)
	fmt.Fprintf(&buf, "Subject: [PATCH] %s\n", info.Subject)
	buf.WriteByte('\n')

	if body = strings.TrimSpace(body); body != "" {
		buf.WriteString(body)
		buf.WriteByte('\n')
	}

	buf.WriteString("---\n")
	buf.WriteString(diff)

	return buf.Bytes()
}

// PatchFileName derives the series filename for a commit patch from
// its sanitized subject and 1-based series position. The base is
// truncated so the whole name fits maxNameLen.
func PatchFileName(base string, position int, numbered bool) string {
	prefix := ""
	if numbered {
		prefix = fmt.Sprintf("%04d-", position)
	}

	const suffix = ".patch"
	if maxBase := maxNameLen - len(prefix) - len(suffix); len(base) > maxBase {
		base = base[:maxBase]
	}

	return prefix + base + suffix
}

// UniqueName disambiguates a candidate filename against already taken
// ones by counting up a numeric suffix ahead of the extension.
func UniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if !taken[candidate] {
			return candidate
		}
	}
}

// DiffFileName derives the filename for a monolithic range diff.
// Revision names may carry ref syntax (slashes, carets), which gets
// flattened for the filesystem.
func DiffFileName(start, end string) string {
	return sanitizeRev(start) + "-to-" + sanitizeRev(end) + ".diff"
}

// sanitizeRev maps every rune a revision name may carry but a portable
// filename may not onto '-'.
func sanitizeRev(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
}
