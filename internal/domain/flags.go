// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"fmt"
	"strings"
)

// Flags records a torrent's content-warning tristate flags as reported by
// MaM's bitfield. Each field is a pointer: nil means "unknown/unset", so a
// search profile can require a flag be explicitly true, explicitly false,
// or not care.
type Flags struct {
	CrudeLanguage *bool
	Violence      *bool
	SomeExplicit  *bool
	Explicit      *bool
	Abridged      *bool
	LGBT          *bool
}

func boolPtr(b bool) *bool { return &b }

// FlagsFromBitfield decodes MaM's flag bitfield. Bit 0 is unused; bits 1-6
// map to CrudeLanguage..LGBT in order.
func FlagsFromBitfield(field uint8) Flags {
	return Flags{
		CrudeLanguage: boolPtr(field&(1<<1) > 0),
		Violence:      boolPtr(field&(1<<2) > 0),
		SomeExplicit:  boolPtr(field&(1<<3) > 0),
		Explicit:      boolPtr(field&(1<<4) > 0),
		Abridged:      boolPtr(field&(1<<5) > 0),
		LGBT:          boolPtr(field&(1<<6) > 0),
	}
}

// fields returns the six flag fields in bit order.
func (f Flags) fields() []*bool {
	return []*bool{f.CrudeLanguage, f.Violence, f.SomeExplicit, f.Explicit, f.Abridged, f.LGBT}
}

// AsBitfield re-encodes the flags into MaM's bitfield, treating unset
// fields as false.
func (f Flags) AsBitfield() uint8 {
	var field uint8
	for i, v := range f.fields() {
		if v != nil && *v {
			field |= 1 << uint(i+1)
		}
	}
	return field
}

// AsSearchBitfield derives a MaM search-filter bitfield from a profile's
// flag preferences. MaM's search API takes a single "show or hide these
// flags" bitfield plus a direction; when a profile mixes both show and
// hide preferences, majority vote decides the direction and the minority
// preferences are dropped (ties favor hiding).
func (f Flags) AsSearchBitfield() (hide bool, field []uint8) {
	var shows, hides int
	for _, v := range f.fields() {
		if v == nil {
			continue
		}
		if *v {
			shows++
		} else {
			hides++
		}
	}
	isHide := hides >= shows

	for i, v := range f.fields() {
		if v != nil && *v != isHide {
			field = append(field, 1<<uint(i+1))
		}
	}
	return isHide, field
}

// Matches reports whether other satisfies every explicitly-set field in f.
// An unset field in f matches anything.
func (f Flags) Matches(other Flags) bool {
	tf := f.fields()
	of := other.fields()
	for i := range tf {
		if tf[i] == nil {
			continue
		}
		if of[i] == nil || *tf[i] != *of[i] {
			return false
		}
	}
	return true
}

// String joins the true flags with ", ", e.g. "violence, lgbt".
func (f Flags) String() string {
	var names []string
	if f.CrudeLanguage != nil && *f.CrudeLanguage {
		names = append(names, "crude language")
	}
	if f.Violence != nil && *f.Violence {
		names = append(names, "violence")
	}
	if f.SomeExplicit != nil && *f.SomeExplicit {
		names = append(names, "some explicit")
	}
	if f.Explicit != nil && *f.Explicit {
		names = append(names, "explicit")
	}
	if f.Abridged != nil && *f.Abridged {
		names = append(names, "abridged")
	}
	if f.LGBT != nil && *f.LGBT {
		names = append(names, "lgbt")
	}
	return strings.Join(names, ", ")
}

// FlagsFromMap builds a Flags from a user-supplied name->bool map, as
// found in a profile's flags config. It accepts the same aliases the
// crude-language flag has historically gone by.
func FlagsFromMap(values map[string]bool) (Flags, error) {
	var f Flags
	for key, value := range values {
		v := value
		switch strings.ToLower(key) {
		case "crude", "language", "crude language":
			f.CrudeLanguage = &v
		case "violence":
			f.Violence = &v
		case "some explicit":
			f.SomeExplicit = &v
		case "explicit":
			f.Explicit = &v
		case "abridged":
			f.Abridged = &v
		case "lgbt":
			f.LGBT = &v
		default:
			return Flags{}, fmt.Errorf("%w: invalid flag %q", ErrParse, key)
		}
	}
	return f, nil
}
