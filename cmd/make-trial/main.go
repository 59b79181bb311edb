// seehuhn.de/go/trial - make trial versions of OpenType fonts
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Make-trial produces a trial version of an OpenType font.
//
// Usage:
//
//	make-trial [options] font_in path_out
//
// All glyphs except for the ones selected by the -keep-* options are
// replaced by the replacer glyph.  Exactly one of the -replacer-* options
// must be given.  The -keep-* options take space separated lists and can
// be given more than once, for example:
//
//	make-trial -replacer-character n -keep-characters "a b c" \
//		-keep-unicodes-base10 "100 101" font_in.otf font_out.otf
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"seehuhn.de/go/trial"
)

// listFlag collects the space separated values of a repeatable flag.
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, " ")
}

func (l *listFlag) Set(s string) error {
	*l = append(*l, strings.Fields(s)...)
	return nil
}

// optionalFlag is a string flag which records whether it was set.
type optionalFlag struct {
	value string
	isSet bool
}

func (o *optionalFlag) String() string {
	return o.value
}

func (o *optionalFlag) Set(s string) error {
	o.value = s
	o.isSet = true
	return nil
}

func main() {
	var keepChars, keepNames, keepCodes listFlag
	var replChar, replName, replCode optionalFlag
	flag.Var(&keepChars, "keep-characters", "space separated `list` of characters to keep")
	flag.Var(&keepNames, "keep-glyph-names", "space separated `list` of glyph names to keep")
	flag.Var(&keepCodes, "keep-unicodes-base10", "space separated `list` of decimal code points to keep")
	flag.Var(&replChar, "replacer-character", "`character` of the replacer glyph")
	flag.Var(&replName, "replacer-glyph-name", "glyph `name` of the replacer glyph")
	flag.Var(&replCode, "replacer-unicode-base10", "decimal code `point` of the replacer glyph")
	suffix := flag.String("suffix", "", "`suffix` to append to the family name")
	familyName := flag.String("family-name", "", "family `name` to search for when renaming (default: read from the font)")
	skip := flag.Bool("skip", false, "ignore glyphs to keep which are not in the font")
	components := flag.Bool("ttf-components", false, "add the replacer as a component in TrueType fonts")
	kerning := flag.Bool("kerning", false, "remove kerning pairs for replaced glyphs")
	skipNames := flag.Bool("skip-unmatched-names", false, "leave name records alone which do not contain the family name")
	verbose := flag.Bool("v", false, "show the changes made to each table")
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "usage: %s [options] font_in path_out\n", os.Args[0])
		flag.PrintDefaults()
	}
	args := parseInterspersed()

	if len(args) != 2 {
		flag.Usage()
		os.Exit(2)
	}
	fontIn, pathOut := args[0], args[1]

	numReplacers := 0
	for _, o := range []*optionalFlag{&replChar, &replName, &replCode} {
		if o.isSet {
			numReplacers++
		}
	}
	if numReplacers != 1 {
		log.Fatal("exactly one of -replacer-character, -replacer-glyph-name and -replacer-unicode-base10 must be given")
	}

	req := &trial.Request{Lenient: *skip}
	if replChar.isSet {
		rr := []rune(replChar.value)
		if len(rr) != 1 {
			log.Fatalf("invalid replacer character %q", replChar.value)
		}
		req.Replacers = append(req.Replacers, trial.Char(rr[0]))
	}
	if replName.isSet {
		req.Replacers = append(req.Replacers, trial.Named(replName.value))
	}
	if replCode.isSet {
		r, err := parseCode(replCode.value)
		if err != nil {
			log.Fatal(err)
		}
		req.Replacers = append(req.Replacers, trial.Char(r))
	}
	for _, word := range keepChars {
		for _, r := range word {
			req.Keep = append(req.Keep, trial.Char(r))
		}
	}
	for _, name := range keepNames {
		req.Keep = append(req.Keep, trial.Named(name))
	}
	for _, code := range keepCodes {
		r, err := parseCode(code)
		if err != nil {
			log.Fatal(err)
		}
		req.Keep = append(req.Keep, trial.Char(r))
	}

	opt := &trial.Options{
		Components:         *components,
		Suffix:             *suffix,
		FamilyName:         *familyName,
		PruneKerning:       *kerning,
		SkipUnmatchedNames: *skipNames,
	}
	report, err := makeTrial(fontIn, pathOut, req, opt)
	if err != nil {
		log.Fatal(err)
	}
	if *verbose {
		log.Printf("kept %d glyphs, %s", report.Keep.Len(), report)
	}
}

func makeTrial(fontIn, pathOut string, req *trial.Request, opt *trial.Options) (*trial.Report, error) {
	font, err := trial.ReadFile(fontIn)
	if err != nil {
		return nil, err
	}
	ks, err := trial.Resolve(font, req)
	if err != nil {
		return nil, err
	}

	m := trial.New(ks, opt)
	report, err := m.Process(font)
	if err != nil {
		return nil, err
	}
	err = m.Save(pathOut)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// parseInterspersed parses the command line flags, allowing flags to
// appear after positional arguments.  The positional arguments are
// returned.
func parseInterspersed() []string {
	var positional []string
	args := os.Args[1:]
	for {
		// The default error handling of flag.CommandLine exits on error.
		_ = flag.CommandLine.Parse(args)
		args = flag.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	return positional
}

func parseCode(s string) (rune, error) {
	x, err := strconv.ParseInt(s, 10, 32)
	if err != nil || x < 0 || x > 0x10FFFF {
		return 0, fmt.Errorf("invalid code point %q", s)
	}
	return rune(x), nil
}
