package domain

import (
	"fmt"
	"sort"
)

// Outcome identifica uno de los dos lados de un mercado binario.
type Outcome int

const (
	OutcomeA Outcome = iota
	OutcomeB
)

// String devuelve "A" o "B".
func (o Outcome) String() string {
	if o == OutcomeB {
		return "B"
	}
	return "A"
}

// ParseOutcome acepta "a"/"A"/"b"/"B".
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "a", "A":
		return OutcomeA, nil
	case "b", "B":
		return OutcomeB, nil
	}
	return OutcomeA, fmt.Errorf("domain.ParseOutcome: unknown outcome %q", s)
}

// LineClass distingue la línea principal de las alternativas; cambia el buffer.
type LineClass string

const (
	LineMain      LineClass = "main"
	LineAlternate LineClass = "alternate"
)

// ParseLineClass devuelve LineMain para cadenas vacías.
func ParseLineClass(s string) (LineClass, error) {
	switch LineClass(s) {
	case "", LineMain:
		return LineMain, nil
	case LineAlternate:
		return LineAlternate, nil
	}
	return LineMain, fmt.Errorf("domain.ParseLineClass: unknown line class %q", s)
}

// Quote es el precio publicado por una fuente para los dos lados de un mercado.
type Quote struct {
	SourceID string
	PriceA   int
	PriceB   int
}

// Price devuelve la cuota del outcome dado.
func (q Quote) Price(o Outcome) int {
	if o == OutcomeB {
		return q.PriceB
	}
	return q.PriceA
}

// Valid indica si ambos precios son convertibles.
func (q Quote) Valid() bool {
	return q.PriceA != 0 && q.PriceB != 0
}

// QuoteSet agrupa las cotizaciones de un mismo mercado por fuente.
type QuoteSet map[string]Quote

// SortedSourceIDs devuelve las fuentes en orden lexicográfico.
// Todo recorrido del núcleo usa este orden para que los desempates sean deterministas.
func (qs QuoteSet) SortedSourceIDs() []string {
	ids := make([]string, 0, len(qs))
	for id := range qs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ValidCount cuenta las cotizaciones con ambos precios convertibles.
func (qs QuoteSet) ValidCount() int {
	n := 0
	for _, q := range qs {
		if q.Valid() {
			n++
		}
	}
	return n
}
