// Package output renders patch queue results as terminal text and as
// machine-readable JSON.
package output

import (
	"encoding/json"
	"io"

	"github.com/roasbeef/patchq/queue"
	"github.com/roasbeef/patchq/series"
)

// ExportJSON is the JSON shape of an export result.
type ExportJSON struct {
	Base    string      `json:"base"`
	Queue   string      `json:"queue"`
	Spec    string      `json:"spec"`
	Patches []PatchJSON `json:"patches"`
	Status  string      `json:"status,omitempty"`
}

// PatchJSON describes one exported patch.
type PatchJSON struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Compression string   `json:"compression,omitempty"`
	Directives  []string `json:"directives,omitempty"`
}

// ImportJSON is the JSON shape of an import result.
type ImportJSON struct {
	Branch string `json:"branch"`
	Base   string `json:"base"`
	Count  int    `json:"count"`
	Spec   string `json:"spec"`
}

// RebaseJSON is the JSON shape of a rebase result.
type RebaseJSON struct {
	Branch   string `json:"branch"`
	Baseline string `json:"baseline"`
}

// DropJSON is the JSON shape of a drop result.
type DropJSON struct {
	Branch  string `json:"branch"`
	Dropped bool   `json:"dropped"`
}

// SwitchJSON is the JSON shape of a switch result.
type SwitchJSON struct {
	Branch  string `json:"branch"`
	Created bool   `json:"created"`
}

// ApplyJSON is the JSON shape of a single-patch apply result.
type ApplyJSON struct {
	Branch string `json:"branch"`
	Patch  string `json:"patch"`
}

// StatusJSON is the JSON shape of a status report.
type StatusJSON struct {
	Branch      string   `json:"branch"`
	Base        string   `json:"base"`
	Queue       string   `json:"queue"`
	OnQueue     bool     `json:"on_queue"`
	QueueExists bool     `json:"queue_exists"`
	Baseline    string   `json:"baseline,omitempty"`
	Patches     []string `json:"patches"`
}

// FormatExportJSON writes an export result as JSON.
func FormatExportJSON(w io.Writer, o *queue.ExportOutcome) error {
	out := ExportJSON{
		Base:    o.Base,
		Queue:   o.Queue,
		Spec:    o.Spec,
		Patches: make([]PatchJSON, 0, len(o.Series)),
		Status:  o.Status,
	}

	for _, p := range o.Series {
		out.Patches = append(out.Patches, patchJSON(
			p, o.Directives[p.Base()],
		))
	}

	return encode(w, out)
}

func patchJSON(p *series.Patch, directives []series.Directive) PatchJSON {
	pj := PatchJSON{
		Name: p.Base(),
		Path: p.Path,
	}

	if p.Compression != series.CompressNone {
		pj.Compression = string(p.Compression)
	}

	for _, d := range directives {
		pj.Directives = append(pj.Directives, d.String())
	}

	return pj
}

// FormatImportJSON writes an import result as JSON.
func FormatImportJSON(w io.Writer, o *queue.ImportOutcome) error {
	return encode(w, ImportJSON{
		Branch: o.Branch,
		Base:   o.Base,
		Count:  o.Count,
		Spec:   o.Spec,
	})
}

// FormatRebaseJSON writes a rebase result as JSON.
func FormatRebaseJSON(w io.Writer, o *queue.RebaseOutcome) error {
	return encode(w, RebaseJSON{
		Branch:   o.Branch,
		Baseline: o.Baseline,
	})
}

// FormatDropJSON writes a drop result as JSON.
func FormatDropJSON(w io.Writer, o *queue.DropOutcome) error {
	return encode(w, DropJSON{
		Branch:  o.Branch,
		Dropped: o.Dropped,
	})
}

// FormatSwitchJSON writes a switch result as JSON.
func FormatSwitchJSON(w io.Writer, o *queue.SwitchOutcome) error {
	return encode(w, SwitchJSON{
		Branch:  o.Branch,
		Created: o.Created,
	})
}

// FormatApplyJSON writes a single-patch apply result as JSON.
func FormatApplyJSON(w io.Writer, o *queue.ApplyOutcome) error {
	return encode(w, ApplyJSON{
		Branch: o.Branch,
		Patch:  o.Patch,
	})
}

// FormatStatusJSON writes a status report as JSON.
func FormatStatusJSON(w io.Writer, o *queue.StatusOutcome) error {
	out := StatusJSON{
		Branch:      o.Branch,
		Base:        o.Base,
		Queue:       o.Queue,
		OnQueue:     o.OnQueue,
		QueueExists: o.QueueExists,
		Baseline:    o.Baseline,
		Patches:     make([]string, 0, len(o.Patches)),
	}
	out.Patches = append(out.Patches, o.Patches...)

	return encode(w, out)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
