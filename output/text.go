package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/roasbeef/patchq/queue"
	"github.com/roasbeef/patchq/series"
	godiff "github.com/sourcegraph/go-diff/diff"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// TextOptions configures text output formatting.
type TextOptions struct {
	// Color enables ANSI color codes.
	Color bool

	// Stats shows per-patch +/- line counts.
	Stats bool
}

// DefaultTextOptions returns default text formatting options.
func DefaultTextOptions() TextOptions {
	return TextOptions{
		Color: true,
		Stats: true,
	}
}

// FormatExport writes an export result: the patch listing, the
// rewritten metadata file, and the resulting working-copy status.
func FormatExport(
	w io.Writer, o *queue.ExportOutcome, opts TextOptions,
) error {
	fmt.Fprintf(w, "exported %d patch(es) from %s\n",
		len(o.Series), o.Queue)

	if len(o.Series) > 0 {
		fmt.Fprintln(w)
	}

	for _, p := range o.Series {
		err := formatPatch(w, p, o.Directives[p.Base()], opts)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nspec: %s\n", o.Spec)

	if o.Status != "" {
		formatStatusLines(w, o.Status, opts)
	}

	return nil
}

func formatPatch(
	w io.Writer, p *series.Patch, directives []series.Directive,
	opts TextOptions,
) error {
	name := p.Base()
	if opts.Color {
		name = colorCyan + name + colorReset
	}

	fmt.Fprintf(w, "  %s", name)

	if opts.Stats {
		added, deleted, err := patchStats(p)
		if err != nil {
			return err
		}

		if opts.Color {
			fmt.Fprintf(w, "  %s+%d%s %s-%d%s",
				colorGreen, added, colorReset,
				colorRed, deleted, colorReset)
		} else {
			fmt.Fprintf(w, "  +%d -%d", added, deleted)
		}
	}

	for _, d := range directives {
		tag := "[" + d.String() + "]"
		if opts.Color {
			tag = colorYellow + tag + colorReset
		}

		fmt.Fprintf(w, "  %s", tag)
	}

	fmt.Fprintln(w)

	return nil
}

func patchStats(p *series.Patch) (added, deleted int, err error) {
	f, err := p.Open()
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	stats, err := Diffstat(f)
	if err != nil {
		return 0, 0, err
	}

	for _, s := range stats {
		added += s.Added
		deleted += s.Deleted
	}

	return added, deleted, nil
}

func formatStatusLines(w io.Writer, status string, opts TextOptions) {
	fmt.Fprintln(w)

	lines := strings.Split(strings.TrimRight(status, "\n"), "\n")
	for _, line := range lines {
		if opts.Color {
			fmt.Fprintf(w, "  %s%s%s\n", colorDim, line, colorReset)
		} else {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}

// FormatImport writes an import result.
func FormatImport(
	w io.Writer, o *queue.ImportOutcome, opts TextOptions,
) error {
	fmt.Fprintf(w, "imported %d patch(es) onto %s\n",
		o.Count, branchLabel(o.Branch, opts))
	fmt.Fprintf(w, "spec: %s\n", o.Spec)

	return nil
}

// FormatRebase writes a rebase result.
func FormatRebase(
	w io.Writer, o *queue.RebaseOutcome, opts TextOptions,
) error {
	fmt.Fprintf(w, "rebased %s onto %s\n",
		branchLabel(o.Branch, opts), o.Baseline)

	return nil
}

// FormatDrop writes a drop result.
func FormatDrop(w io.Writer, o *queue.DropOutcome, opts TextOptions) error {
	if !o.Dropped {
		fmt.Fprintf(w, "no patch queue branch %s\n",
			branchLabel(o.Branch, opts))

		return nil
	}

	fmt.Fprintf(w, "dropped %s\n", branchLabel(o.Branch, opts))

	return nil
}

// FormatSwitch writes a switch result.
func FormatSwitch(
	w io.Writer, o *queue.SwitchOutcome, opts TextOptions,
) error {
	if o.Created {
		fmt.Fprintf(w, "switched to new branch %s\n",
			branchLabel(o.Branch, opts))

		return nil
	}

	fmt.Fprintf(w, "switched to %s\n", branchLabel(o.Branch, opts))

	return nil
}

// FormatApply writes a single-patch apply result.
func FormatApply(w io.Writer, o *queue.ApplyOutcome, opts TextOptions) error {
	fmt.Fprintf(w, "applied %s onto %s\n",
		o.Patch, branchLabel(o.Branch, opts))

	return nil
}

// FormatStatus writes the queue status report.
func FormatStatus(
	w io.Writer, o *queue.StatusOutcome, opts TextOptions,
) error {
	fmt.Fprintf(w, "branch:   %s\n", branchLabel(o.Branch, opts))
	fmt.Fprintf(w, "base:     %s\n", o.Base)

	state := "missing"
	switch {
	case o.OnQueue:
		state = "checked out"
	case o.QueueExists:
		state = "present"
	}

	fmt.Fprintf(w, "queue:    %s (%s)\n", o.Queue, state)

	if o.Baseline != "" {
		fmt.Fprintf(w, "baseline: %s\n", o.Baseline)
	}

	if len(o.Patches) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\n%d recorded patch(es):\n", len(o.Patches))

	for _, name := range o.Patches {
		fmt.Fprintf(w, "  %s\n", name)
	}

	return nil
}

func branchLabel(branch string, opts TextOptions) string {
	if opts.Color {
		return colorCyan + branch + colorReset
	}

	return branch
}

// FileStat summarizes the changes a patch makes to one file.
type FileStat struct {
	// Path is the file's path with any a/ or b/ diff prefix removed.
	Path string

	// Added and Deleted count changed lines across the file's hunks.
	Added   int
	Deleted int

	// Binary marks files the patch cannot describe line by line.
	Binary bool
}

// Diffstat parses patch text and returns per-file change counts. Any
// mail header and commit message before the first diff header is
// skipped, so both mbox patches and bare diffs count the same way.
func Diffstat(r io.Reader) ([]FileStat, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read patch: %w", err)
	}

	body, ok := diffBody(data)
	if !ok {
		return nil, nil
	}

	files, err := godiff.ParseMultiFileDiff(body)
	if err != nil {
		return nil, fmt.Errorf("parse patch: %w", err)
	}

	stats := make([]FileStat, 0, len(files))
	for _, f := range files {
		stats = append(stats, fileStat(f))
	}

	return stats, nil
}

// diffBody slices the patch at its first diff header. The "--- "
// fallback needs its trailing space so the mbox scissor line does not
// match.
func diffBody(data []byte) ([]byte, bool) {
	if i := headerIndex(data, "diff --git "); i >= 0 {
		return data[i:], true
	}

	if i := headerIndex(data, "--- "); i >= 0 {
		return data[i:], true
	}

	return nil, false
}

// headerIndex returns the offset of the first line starting with
// prefix, or -1.
func headerIndex(data []byte, prefix string) int {
	off := 0
	for off < len(data) {
		if bytes.HasPrefix(data[off:], []byte(prefix)) {
			return off
		}

		i := bytes.IndexByte(data[off:], '\n')
		if i < 0 {
			break
		}

		off += i + 1
	}

	return -1
}

func fileStat(f *godiff.FileDiff) FileStat {
	st := FileStat{
		Path: stripPrefix(f.NewName),
	}
	if f.NewName == "/dev/null" {
		st.Path = stripPrefix(f.OrigName)
	}

	for _, ex := range f.Extended {
		if strings.Contains(ex, "Binary files") {
			st.Binary = true

			break
		}
	}

	for _, h := range f.Hunks {
		for _, line := range bytes.Split(h.Body, []byte("\n")) {
			if len(line) == 0 {
				continue
			}

			switch line[0] {
			case '+':
				st.Added++
			case '-':
				st.Deleted++
			}
		}
	}

	return st
}

// stripPrefix drops the a/ or b/ prefix git puts on diff paths.
func stripPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}

	return name
}
