// Package prompt asks the user to choose between alternatives on a terminal.
package prompt

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"

	"github.com/xeptore/mpdq/dash"
	"github.com/xeptore/mpdq/dash/mpd"
	"github.com/xeptore/mpdq/iterutil"
	"github.com/xeptore/mpdq/unit"
)

// Label describes a representation in one line.
func Label(as *mpd.AdaptationSet, rep *mpd.Representation) string {
	parts := []string{rep.ID, unit.FormatBitrate(rep.Bandwidth)}

	codecs := rep.Codecs
	if codecs == "" {
		codecs = as.Codecs
	}
	if codecs != "" {
		parts = append(parts, codecs)
	}

	width, height := rep.Width, rep.Height
	if width == 0 || height == 0 {
		width, height = as.Width, as.Height
	}
	if width > 0 && height > 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", width, height))
	}

	return strings.Join(parts, " | ")
}

// SelectRepresentation returns the ID of the representation the user picks
// from as. A set with a single representation is answered without asking.
// It fails with syscall.ENOTTY when stdout is not a terminal.
func SelectRepresentation(as *mpd.AdaptationSet) (string, error) {
	switch len(as.Representations) {
	case 0:
		return "", dash.ErrNoRepresentations
	case 1:
		return as.Representations[0].ID, nil
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return "", syscall.ENOTTY
	}

	options := iterutil.Map(as.Representations, func(i int, _ mpd.Representation) string {
		return Label(as, &as.Representations[i])
	})

	var choice int
	q := &survey.Select{ //nolint:exhaustruct
		Message: "Select a representation:",
		Options: options,
		Default: Label(as, as.LowestRepresentation()),
	}
	askOpts := []survey.AskOpt{
		survey.WithStdio(os.Stdin, os.Stdout, os.Stderr),
		survey.WithPageSize(10),
	}
	if err := survey.AskOne(q, &choice, askOpts...); nil != err {
		return "", fmt.Errorf("ask for representation: %v", err)
	}

	return as.Representations[choice].ID, nil
}
