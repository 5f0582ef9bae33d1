package boundary

import (
	"fmt"
	"strings"
)

// Kind is the type of a physical boundary condition on one domain face.
type Kind uint8

const (
	Periodic Kind = iota
	Dirichlet
	Neumann
	Extrapolate
)

func (k Kind) String() string {
	names := map[Kind]string{
		Periodic:    "Periodic",
		Dirichlet:   "Dirichlet",
		Neumann:     "Neumann",
		Extrapolate: "Extrapolate",
	}
	if name, ok := names[k]; ok {
		return name
	}
	return "Unknown"
}

// KindNameMap maps lowercase names used in input files to a Kind.
var KindNameMap = map[string]Kind{
	"periodic":     Periodic,
	"dirichlet":    Dirichlet,
	"fixed":        Dirichlet,
	"neumann":      Neumann,
	"gradient":     Neumann,
	"extrapolate":  Extrapolate,
	"extrapolated": Extrapolate,
	"outflow":      Extrapolate,
}

// ParseKind converts a boundary name to a Kind, ignoring case and
// surrounding whitespace.
func ParseKind(name string) (k Kind, err error) {
	var ok bool
	if k, ok = KindNameMap[strings.ToLower(strings.TrimSpace(name))]; !ok {
		err = fmt.Errorf("unknown boundary condition %q", name)
	}
	return
}
