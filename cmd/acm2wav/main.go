// SPDX-License-Identifier: EPL-2.0

// Command acm2wav converts Interplay ACM audio into WAV, AIFF or FLAC files.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	acm "github.com/ik5/go-acm"
	"github.com/ik5/go-acm/convert"
	"github.com/ik5/go-acm/internal/cli"
)

var CLI struct {
	Input  string `arg:"" name:"input" help:"Input ACM file." type:"existingfile"`
	Output string `arg:"" name:"output" help:"Output file; derived from the input name when omitted." optional:""`
	Flac   bool   `help:"Write a FLAC stream instead of a WAV container." xor:"format"`
	Aiff   bool   `help:"Write an AIFF container instead of WAV." xor:"format"`
	Info   bool   `help:"Print stream details without converting."`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("acm2wav"),
		kong.Description("Convert Interplay ACM audio into WAV, AIFF or FLAC."),
		kong.UsageOnError(),
	)

	in, err := os.Open(CLI.Input)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
	defer in.Close()

	d, err := acm.NewDecoder(in)
	if err != nil {
		cli.PrintError(fmt.Sprintf("reading %s: %v", CLI.Input, err))
		os.Exit(1)
	}

	if CLI.Info {
		printStreamInfo(d)
		return
	}

	out := CLI.Output
	if out == "" {
		out = derivedName(CLI.Input)
	}
	if out == CLI.Input {
		cli.PrintError("output would overwrite the input file")
		os.Exit(1)
	}

	dst, err := os.Create(out)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	cerr := runConvert(dst, d)
	if err := dst.Close(); err != nil && cerr == nil {
		cerr = err
	}

	switch {
	case cerr == nil:
	case errors.Is(cerr, io.ErrUnexpectedEOF), errors.Is(cerr, acm.ErrInvalidData):
		cli.PrintWarning(fmt.Sprintf("%s: %v", CLI.Input, cerr))
		cli.PrintWarning("wrote the samples recovered before the error to " + out)
		os.Exit(1)
	default:
		cli.PrintError(cerr.Error())
		os.Exit(1)
	}

	cli.PrintSuccess("wrote " + out)
	if fi, err := os.Stat(out); err == nil {
		cli.PrintInfo("Size", cli.FormatBytes(fi.Size()))
	}
}

func runConvert(dst *os.File, d *acm.Decoder) error {
	switch {
	case CLI.Flac:
		return convert.ToFLAC(dst, d)
	case CLI.Aiff:
		return convert.ToAIFF(dst, d)
	default:
		return convert.ToWAV(dst, d)
	}
}

func derivedName(input string) string {
	ext := ".wav"
	switch {
	case CLI.Flac:
		ext = ".flac"
	case CLI.Aiff:
		ext = ".aiff"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

func printStreamInfo(d *acm.Decoder) {
	cli.PrintSection("ACM stream")
	cli.PrintInfo("File", CLI.Input)
	if fi, err := os.Stat(CLI.Input); err == nil {
		cli.PrintInfo("Size", cli.FormatBytes(fi.Size()))
	}
	cli.PrintInfo("Sample rate", fmt.Sprintf("%d Hz", d.SampleRate()))
	cli.PrintInfo("Channels", strconv.Itoa(d.Channels()))
	cli.PrintInfo("Samples", strconv.Itoa(d.Samples()))

	// The rate field is carried verbatim from the header, so guard the
	// duration math against a zeroed stream.
	if d.SampleRate() > 0 {
		frames := d.Samples()
		if d.Channels() > 1 {
			frames /= d.Channels()
		}
		dur := time.Duration(frames) * time.Second / time.Duration(d.SampleRate())
		cli.PrintInfo("Duration", cli.FormatDuration(dur))
	}
}
