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

package trial

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"seehuhn.de/go/trial/cff"
	"seehuhn.de/go/trial/gvar"
	"seehuhn.de/go/trial/hmtx"
	"seehuhn.de/go/trial/hvar"
	"seehuhn.de/go/trial/keep"
	"seehuhn.de/go/trial/kern"
	"seehuhn.de/go/trial/name"
	"seehuhn.de/go/trial/outline"
)

// Options control the construction of a trial font.
type Options struct {
	// Components selects the [outline.Components] mode for TrueType
	// outlines.  By default, [outline.Contours] is used.
	Components bool

	// Suffix, if non-empty, is appended to the family name in the "name"
	// table.
	Suffix string

	// FamilyName is the family name to search for when renaming.  If this
	// is empty, the family name is read from the "name" table.
	FamilyName string

	// PruneKerning enables the removal of kerning pairs which involve
	// replaced glyphs, from the GPOS "kern" feature and from the "kern"
	// table.
	PruneKerning bool

	// SkipUnmatchedNames leaves name records alone which do not contain
	// the family name.  Otherwise such records cause a
	// *name.NameNotFoundError.
	SkipUnmatchedNames bool
}

// Capabilities records which of the tables handled by a [Maker] are present
// in a font.
type Capabilities uint16

// These are the table kinds a [Maker] can process.
const (
	HasCFF Capabilities = 1 << iota
	HasCFF2
	HasGvar
	HasGlyf
	HasHmtx
	HasVmtx
	HasHVAR
	HasVVAR
	HasGPOS
	HasKern
	HasName
)

var capabilityTables = []struct {
	c     Capabilities
	table string
}{
	{HasCFF, "CFF "},
	{HasCFF2, "CFF2"},
	{HasGvar, "gvar"},
	{HasGlyf, "glyf"},
	{HasHmtx, "hmtx"},
	{HasVmtx, "vmtx"},
	{HasHVAR, "HVAR"},
	{HasVVAR, "VVAR"},
	{HasGPOS, "GPOS"},
	{HasKern, "kern"},
	{HasName, "name"},
}

// Capabilities determines which of the tables handled by a [Maker] are
// present in f.
func (f *Font) Capabilities() Capabilities {
	var c Capabilities
	for _, ct := range capabilityTables {
		if f.Has(ct.table) {
			c |= ct.c
		}
	}
	return c
}

func (c Capabilities) String() string {
	var parts []string
	for _, ct := range capabilityTables {
		if c&ct.c != 0 {
			parts = append(parts, strings.TrimSpace(ct.table))
		}
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// State describes the progress of a [Maker].
type State int

// These are the states of a [Maker], in the order they are reached.
const (
	Idle State = iota
	Loaded
	Substituted
	Renamed
	Persisted
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loaded:
		return "loaded"
	case Substituted:
		return "substituted"
	case Renamed:
		return "renamed"
	case Persisted:
		return "persisted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Maker turns a font into a trial font.  A Maker processes exactly one
// font: first call [Maker.Process], then [Maker.Save].
type Maker struct {
	keep *keep.Set
	opt  Options

	font  *Font
	state State
}

// New returns a Maker which keeps the glyphs in ks and replaces all other
// glyphs by the replacer of ks.  If opt is nil, default options are used.
func New(ks *keep.Set, opt *Options) *Maker {
	m := &Maker{keep: ks}
	if opt != nil {
		m.opt = *opt
	}
	return m
}

// State returns the current state of the Maker.
func (m *Maker) State() State {
	return m.state
}

// Report summarizes the changes made by [Maker.Process].
type Report struct {
	Capabilities Capabilities

	// Keep is the set of glyphs which were kept.  This includes the
	// components of kept composite glyphs.
	Keep *keep.Set

	// Changes lists, in processing order, the number of changes made to
	// each table: the number of glyphs replaced, the number of kerning
	// pairs removed, or the number of name records renamed.
	Changes []TableChange
}

// TableChange gives the number of changes made to a table.
type TableChange struct {
	Table string
	Count int
}

func (r *Report) String() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "tables %s\n", r.Capabilities)
	for _, c := range r.Changes {
		fmt.Fprintf(b, "  %-4s %d\n", c.Table, c.Count)
	}
	return b.String()
}

// stage is one step of the processing pipeline.  run is only called if
// the font has the table.
type stage struct {
	table string
	need  Capabilities
	run   func(m *Maker) (int, error)
}

var stages = []stage{
	{"CFF ", HasCFF, func(m *Maker) (int, error) { return m.rewriteCFF("CFF ") }},
	{"CFF2", HasCFF2, func(m *Maker) (int, error) { return m.rewriteCFF("CFF2") }},
	{"gvar", HasGvar, (*Maker).rewriteGvar},
	{"glyf", HasGlyf, (*Maker).rewriteGlyf},
	{"hmtx", HasHmtx, func(m *Maker) (int, error) { return m.rewriteMetrics("hhea", "hmtx") }},
	{"vmtx", HasVmtx, func(m *Maker) (int, error) { return m.rewriteMetrics("vhea", "vmtx") }},
	{"HVAR", HasHVAR, func(m *Maker) (int, error) { return m.rewriteVariationMetrics("HVAR") }},
	{"VVAR", HasVVAR, func(m *Maker) (int, error) { return m.rewriteVariationMetrics("VVAR") }},
}

var kernStages = []stage{
	{"GPOS", HasGPOS, (*Maker).pruneGPOS},
	{"kern", HasKern, (*Maker).pruneKern},
}

// Process modifies the tables of f in place.
//
// The tables are processed in a fixed order: CFF, CFF2, gvar, glyf, hmtx,
// vmtx, HVAR and VVAR.  If kerning pruning is enabled, GPOS and kern
// follow.  Finally, if a suffix is set, the family name is changed.
// Tables which are not present in the font are skipped.
//
// If an error occurs, processing stops and f is left in a partially
// modified state.
func (m *Maker) Process(f *Font) (*Report, error) {
	if m.state != Idle {
		return nil, fmt.Errorf("trial: cannot process font in state %s", m.state)
	}
	m.font = f
	m.state = Loaded

	report, err := m.process()
	if err != nil {
		m.state = Failed
		return nil, err
	}
	return report, nil
}

func (m *Maker) process() (*Report, error) {
	numGlyphs, err := m.font.NumGlyphs()
	if err != nil {
		return nil, err
	}
	err = m.keep.Check("maxp", numGlyphs)
	if err != nil {
		return nil, err
	}

	caps := m.font.Capabilities()
	if caps&HasGlyf != 0 {
		err = m.addComponents()
		if err != nil {
			return nil, fmt.Errorf("glyf: %w", err)
		}
	}
	report := &Report{Capabilities: caps, Keep: m.keep}

	todo := stages
	if m.opt.PruneKerning {
		todo = append(todo[:len(todo):len(todo)], kernStages...)
	}
	for _, st := range todo {
		if caps&st.need == 0 {
			continue
		}
		count, err := st.run(m)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", strings.TrimSpace(st.table), err)
		}
		report.Changes = append(report.Changes, TableChange{Table: st.table, Count: count})
	}
	m.state = Substituted

	if m.opt.Suffix != "" && caps&HasName != 0 {
		count, err := m.rename()
		if err != nil {
			return nil, fmt.Errorf("name: %w", err)
		}
		report.Changes = append(report.Changes, TableChange{Table: "name", Count: count})
		m.state = Renamed
	}

	return report, nil
}

// Save writes the processed font to the file fname.  Missing parent
// directories are created.
func (m *Maker) Save(fname string) error {
	if m.state != Substituted && m.state != Renamed {
		return fmt.Errorf("trial: cannot save font in state %s", m.state)
	}

	err := os.MkdirAll(filepath.Dir(fname), 0o755)
	if err != nil {
		return err
	}

	out, err := os.Create(fname)
	if err != nil {
		return err
	}
	_, err = m.font.Write(out)
	err = errors.Join(err, out.Close())
	if err != nil {
		return err
	}

	m.state = Persisted
	return nil
}

// addComponents extends the keep set by all glyphs which are used as
// components of kept TrueType glyphs, so that kept glyphs look the same
// in the trial font.
func (m *Maker) addComponents() error {
	gg, err := outline.Decode(m.outlineTables())
	if err != nil {
		return err
	}
	gids, err := outline.Closure(gg, m.keep.Slice())
	if err != nil {
		return err
	}
	if len(gids) > m.keep.Len() {
		m.keep = keep.New(m.keep.Replacer(), gids...)
	}
	return nil
}

func (m *Maker) rewriteCFF(table string) (int, error) {
	data, count, err := cff.Rewrite(m.font.Tables[table], m.keep)
	if err != nil {
		return 0, err
	}
	m.font.Tables[table] = data
	return count, nil
}

func (m *Maker) rewriteGvar() (int, error) {
	replacerPoints := -1
	if m.opt.Components && m.font.Has("glyf") {
		gg, err := outline.Decode(m.outlineTables())
		if err != nil {
			return 0, err
		}
		err = m.keep.Check("glyf", len(gg))
		if err != nil {
			return 0, err
		}
		// A blank replacer gives blank glyphs, not references.
		if gg[m.keep.Replacer()] != nil {
			stats, err := outline.GlyphStats(gg, m.keep.Replacer())
			if err != nil {
				return 0, err
			}
			replacerPoints = stats.OwnPoints()
		}
	}

	data, count, err := gvar.Rewrite(m.font.Tables["gvar"], m.keep, replacerPoints)
	if err != nil {
		return 0, err
	}
	m.font.Tables["gvar"] = data
	return count, nil
}

func (m *Maker) outlineTables() *outline.Tables {
	return &outline.Tables{
		Glyf: m.font.Tables["glyf"],
		Loca: m.font.Tables["loca"],
		Head: m.font.Tables["head"],
		Maxp: m.font.Tables["maxp"],
	}
}

func (m *Maker) rewriteGlyf() (int, error) {
	mode := outline.Contours
	if m.opt.Components {
		mode = outline.Components
	}

	t := m.outlineTables()
	count, err := outline.Rewrite(t, m.keep, mode)
	if err != nil {
		return 0, err
	}

	m.font.Tables["glyf"] = t.Glyf
	m.font.Tables["loca"] = t.Loca
	m.font.Tables["head"] = t.Head
	if t.Maxp != nil {
		m.font.Tables["maxp"] = t.Maxp
	}
	return count, nil
}

func (m *Maker) rewriteMetrics(headerTable, table string) (int, error) {
	hdr, ok := m.font.Tables[headerTable]
	if !ok {
		return 0, errMissingTable(headerTable)
	}
	numGlyphs, err := m.font.NumGlyphs()
	if err != nil {
		return 0, err
	}

	newHeader, data, count, err := hmtx.Rewrite(table, hdr, m.font.Tables[table], numGlyphs, m.keep)
	if err != nil {
		return 0, err
	}
	m.font.Tables[headerTable] = newHeader
	m.font.Tables[table] = data
	return count, nil
}

func (m *Maker) rewriteVariationMetrics(table string) (int, error) {
	numGlyphs, err := m.font.NumGlyphs()
	if err != nil {
		return 0, err
	}
	data, count, err := hvar.Rewrite(table, m.font.Tables[table], numGlyphs, m.keep)
	if err != nil {
		return 0, err
	}
	m.font.Tables[table] = data
	return count, nil
}

func (m *Maker) pruneGPOS() (int, error) {
	data, count, err := kern.PruneGPOS(m.font.Tables["GPOS"], m.keep)
	if err != nil {
		return 0, err
	}
	m.font.Tables["GPOS"] = data
	return count, nil
}

func (m *Maker) pruneKern() (int, error) {
	data, count, err := kern.PruneKern(m.font.Tables["kern"], m.keep)
	if err != nil {
		return 0, err
	}
	m.font.Tables["kern"] = data
	return count, nil
}

func (m *Maker) rename() (int, error) {
	r := &name.Renamer{
		Suffix:        m.opt.Suffix,
		FamilyName:    m.opt.FamilyName,
		SkipUnmatched: m.opt.SkipUnmatchedNames,
	}
	data, count, err := r.RenameTable(m.font.Tables["name"])
	if err != nil {
		return 0, err
	}
	m.font.Tables["name"] = data
	return count, nil
}
