package coefficients

import (
	"fmt"

	"github.com/notargets/amrelliptic/amr"
)

// FaceCoef is the b field of one level. An attached source is its only
// writer and only through Refresh; operators read Field.
type FaceCoef struct {
	field  *amr.FluxData
	dx     float64
	source Interpolator
	time   float64
}

func NewFaceCoef(field *amr.FluxData, dx float64) *FaceCoef {
	return &FaceCoef{field: field, dx: dx}
}

func (fc *FaceCoef) Field() *amr.FluxData { return fc.field }
func (fc *FaceCoef) Source() Interpolator { return fc.source }
func (fc *FaceCoef) Time() float64        { return fc.time }
func (fc *FaceCoef) Dx() float64          { return fc.dx }
func (fc *FaceCoef) HasSource() bool      { return fc.source != nil }

// Attach sets the source; nil detaches it.
func (fc *FaceCoef) Attach(src Interpolator) {
	if src != nil && src.NumComps() != fc.field.NComp() {
		panic(fmt.Errorf("coefficient source has %d components, b has %d",
			src.NumComps(), fc.field.NComp()))
	}
	fc.source = src
}

// Refresh records t and, when a source is attached, re-evaluates b at t.
// It reports whether b was rewritten.
func (fc *FaceCoef) Refresh(t float64) bool {
	fc.time = t
	if fc.source == nil {
		return false
	}
	fc.source.Evaluate(t, fc.field, fc.dx)
	return true
}

// Replace swaps in a new field, keeping the attached source.
func (fc *FaceCoef) Replace(field *amr.FluxData) {
	if fc.source != nil && field.NComp() != fc.source.NumComps() {
		panic(fmt.Errorf("replacement b has %d components, source %d",
			field.NComp(), fc.source.NumComps()))
	}
	fc.field = field
}
