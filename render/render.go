// Package render prints presentations, fragments and snapshots for humans
// and scripts.
package render

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/skip2/go-qrcode"
	"github.com/tidwall/gjson"

	"github.com/xeptore/mpdq/dash"
	"github.com/xeptore/mpdq/dash/mpd"
	"github.com/xeptore/mpdq/redact"
	"github.com/xeptore/mpdq/store"
	"github.com/xeptore/mpdq/unit"
)

var ErrNoMatch = errors.New("query matched nothing")

// Presentation is the serializable summary of a manifest.
type Presentation struct {
	URL      string   `json:"url"`
	Type     string   `json:"type"`
	Profiles string   `json:"profiles,omitempty"`
	Duration string   `json:"duration,omitempty"`
	Periods  []Period `json:"periods"`
}

type Period struct {
	Index          int             `json:"index"`
	ID             string          `json:"id,omitempty"`
	Start          string          `json:"start"`
	Duration       string          `json:"duration,omitempty"`
	AdaptationSets []AdaptationSet `json:"adaptation_sets"`
}

type AdaptationSet struct {
	Index           int              `json:"index"`
	ID              uint32           `json:"id"`
	Kind            string           `json:"kind"`
	MimeType        string           `json:"mime_type,omitempty"`
	Lang            string           `json:"lang,omitempty"`
	Representations []Representation `json:"representations"`
}

type Representation struct {
	ID        string `json:"id"`
	Bandwidth uint32 `json:"bandwidth"`
	Codecs    string `json:"codecs,omitempty"`
	Width     uint32 `json:"width,omitempty"`
	Height    uint32 `json:"height,omitempty"`
}

func formatDuration(d time.Duration) string {
	if d == mpd.UnknownDuration {
		return ""
	}

	return d.String()
}

// Describe summarizes every period of c.
func Describe(c *dash.Client) Presentation {
	p := c.Presentation()

	out := Presentation{
		URL:      redact.URL(c.Location()),
		Type:     p.Type.String(),
		Profiles: p.Profiles,
		Duration: formatDuration(c.MediaPresentationDuration()),
		Periods:  make([]Period, 0, len(c.Periods())),
	}

	for i, sp := range c.Periods() {
		period := Period{
			Index:          i,
			ID:             sp.Period.ID,
			Start:          sp.Start.String(),
			Duration:       formatDuration(sp.Duration),
			AdaptationSets: make([]AdaptationSet, 0, len(sp.Period.AdaptationSets)),
		}
		for j := range sp.Period.AdaptationSets {
			period.AdaptationSets = append(period.AdaptationSets, describeAdaptationSet(j, &sp.Period.AdaptationSets[j]))
		}
		out.Periods = append(out.Periods, period)
	}

	return out
}

func describeAdaptationSet(idx int, as *mpd.AdaptationSet) AdaptationSet {
	out := AdaptationSet{
		Index:           idx,
		ID:              as.ID,
		Kind:            mpd.MimeUnknown.String(),
		MimeType:        as.MimeType,
		Lang:            as.Lang,
		Representations: make([]Representation, 0, len(as.Representations)),
	}

	for i := range as.Representations {
		rep := &as.Representations[i]
		if i == 0 {
			out.Kind = mpd.ClassifyMimeType(mpd.MimeType(as, rep)).String()
		}
		out.Representations = append(out.Representations, Representation{
			ID:        rep.ID,
			Bandwidth: rep.Bandwidth,
			Codecs:    firstNonEmpty(rep.Codecs, as.Codecs),
			Width:     firstNonZero(rep.Width, as.Width),
			Height:    firstNonZero(rep.Height, as.Height),
		})
	}

	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}

func firstNonZero(vals ...uint32) uint32 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}

	return 0
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newTable(w io.Writer, styled bool) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if styled {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleLight)
		t.Style().Options.SeparateRows = false
	}

	return t
}

// Table prints one row per representation of p.
func Table(w io.Writer, p Presentation, styled bool) {
	t := newTable(w, styled)
	t.SetTitle(p.Type + " " + p.URL)
	t.AppendHeader(table.Row{"Period", "Set", "Kind", "Lang", "Representation", "Bandwidth", "Codecs", "Resolution"})

	for _, period := range p.Periods {
		periodLabel := strconv.Itoa(period.Index)
		if period.ID != "" {
			periodLabel += " (" + period.ID + ")"
		}

		for _, as := range period.AdaptationSets {
			if len(as.Representations) == 0 {
				t.AppendRow(table.Row{periodLabel, as.Index, as.Kind, as.Lang, "", "", "", ""})
				continue
			}
			for _, rep := range as.Representations {
				t.AppendRow(table.Row{
					periodLabel,
					as.Index,
					as.Kind,
					as.Lang,
					rep.ID,
					unit.FormatBitrate(rep.Bandwidth),
					rep.Codecs,
					resolution(rep.Width, rep.Height),
				})
			}
		}
	}

	t.Render()
}

func resolution(width, height uint32) string {
	if width == 0 || height == 0 {
		return ""
	}

	return strconv.FormatUint(uint64(width), 10) + "x" + strconv.FormatUint(uint64(height), 10)
}

// Fragments prints one row per fragment.
func Fragments(w io.Writer, fragments []dash.Fragment, styled bool) {
	t := newTable(w, styled)
	t.AppendHeader(table.Row{"Number", "Start", "Duration", "URI", "Range"})

	for _, f := range fragments {
		t.AppendRow(table.Row{
			f.Number,
			f.Timestamp.String(),
			f.Duration.String(),
			redact.URL(f.URI),
			byteRange(f),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(fragments)})

	t.Render()
}

func byteRange(f dash.Fragment) string {
	if nil == f.Range {
		return ""
	}
	if f.Range.Last < f.Range.First {
		return strconv.FormatUint(f.Range.First, 10) + "-"
	}

	return strconv.FormatUint(f.Range.First, 10) + "-" + strconv.FormatUint(f.Range.Last, 10)
}

// History prints stored snapshots, newest first.
func History(w io.Writer, snapshots []store.Snapshot, styled bool) {
	t := newTable(w, styled)
	t.AppendHeader(table.Row{"Fetched At", "Type", "Periods", "Size"})

	for _, s := range snapshots {
		t.AppendRow(table.Row{
			s.FetchedAt.UTC().Format(time.RFC3339),
			s.Type,
			s.Periods,
			unit.FormatBytes(int64(len(s.Body))),
		})
	}

	t.Render()
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); nil != err {
		return fmt.Errorf("encode json: %v", err)
	}

	return nil
}

// Query evaluates a gjson path against the JSON form of v.
func Query(v any, path string) (string, error) {
	data, err := json.Marshal(v)
	if nil != err {
		return "", fmt.Errorf("encode json: %v", err)
	}

	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return "", fmt.Errorf("%w: %s", ErrNoMatch, path)
	}

	if res.IsArray() || res.IsObject() {
		return res.Raw, nil
	}

	return res.String(), nil
}

// QR writes content as a terminal QR code made of half-block characters.
func QR(w io.Writer, content string) error {
	qr, err := qrcode.New(content, qrcode.Medium)
	if nil != err {
		return fmt.Errorf("create qr code: %v", err)
	}

	const noInverseColor = false
	if _, err := io.WriteString(w, qr.ToSmallString(noInverseColor)); nil != err {
		return fmt.Errorf("write qr code: %v", err)
	}

	return nil
}
