package series

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/roasbeef/patchq/git"
)

// Header is the authorship and message metadata read back from an
// mbox-style patch file. Bare diff files parse to a zero Header.
type Header struct {
	// Author is the identity from the From/Date headers.
	Author git.Signature

	// Subject is the Subject header with [PATCH ...] brackets removed.
	Subject string

	// Body is the free text between the headers and the --- separator.
	Body string
}

// Message reassembles the commit message for the patch. fallback names
// the commit when the file carried no subject.
func (h Header) Message(fallback string) string {
	subject := h.Subject
	if subject == "" {
		subject = fallback
	}
	if h.Body == "" {
		return subject
	}

	return subject + "\n\n" + h.Body
}

// fromRx extracts name and address from a "Name <addr>" From header.
var fromRx = regexp.MustCompile(`^(.*[^ ])\s*<(\S*)>$`)

// bracketRx strips leading [PATCH], [PATCH v2 3/7] and similar tags
// from subjects.
var bracketRx = regexp.MustCompile(`^\[[^\]]*\]\s*`)

// ParseHeader reads the mbox-style header block and body of a patch
// file up to the --- separator; the diff itself is not consumed. Files
// that start straight with diff content yield a zero Header and no
// error, since monolithic diffs legitimately carry no headers.
func ParseHeader(r io.Reader) (Header, error) {
	var h Header

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	// Header block.
	inSubject := false
	sawHeader := false
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case !sawHeader && strings.HasPrefix(line, "From "):
			// mbox separator line, no content.

		case strings.HasPrefix(line, "From: "):
			from := strings.TrimPrefix(line, "From: ")
			if m := fromRx.FindStringSubmatch(from); m != nil {
				h.Author.Name = m[1]
				h.Author.Email = m[2]
			} else {
				h.Author.Name = strings.TrimSpace(from)
			}
			inSubject = false

		case strings.HasPrefix(line, "Date: "):
			h.Author.Date = strings.TrimPrefix(line, "Date: ")
			inSubject = false

		case strings.HasPrefix(line, "Subject: "):
			h.Subject = strings.TrimPrefix(line, "Subject: ")
			inSubject = true

		case inSubject && (strings.HasPrefix(line, " ") ||
			strings.HasPrefix(line, "\t")):
			// Folded subject continuation.
			h.Subject += " " + strings.TrimSpace(line)

		case line == "":
			// End of headers.
			h.Subject = stripBrackets(h.Subject)
			h.Body = scanBody(scanner)
			if err := scanner.Err(); err != nil {
				return Header{}, fmt.Errorf("read patch: %w", err)
			}

			return h, nil

		default:
			// Not a header line at all: a bare diff.
			if !sawHeader {
				return Header{}, nil
			}
			inSubject = false
		}

		sawHeader = true
	}
	if err := scanner.Err(); err != nil {
		return Header{}, fmt.Errorf("read patch: %w", err)
	}

	h.Subject = stripBrackets(h.Subject)

	return h, nil
}

// scanBody collects message lines until the --- separator or EOF.
func scanBody(scanner *bufio.Scanner) string {
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "---" {
			break
		}
		lines = append(lines, line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// stripBrackets removes leading bracketed tags from a subject.
func stripBrackets(subject string) string {
	for {
		stripped := bracketRx.ReplaceAllString(subject, "")
		if stripped == subject {
			return strings.TrimSpace(subject)
		}
		subject = stripped
	}
}
