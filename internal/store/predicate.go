// Package store is the tabular datastore facade. Every pipeline stage
// reads and writes the logical tables through the typed accessors here;
// filter predicates are built from a small algebra and compiled to the
// backend's formula language, so no free-form filter strings cross the
// package boundary.
package store

import (
	"fmt"
	"strings"
)

// Predicate is a node in the filter tree. Compile renders the backend
// formula string.
type Predicate interface {
	Compile() string
}

type eqPred struct {
	field string
	value string
}

func (p eqPred) Compile() string {
	return fmt.Sprintf("{%s}=%s", p.field, quote(p.value))
}

type nePred struct {
	field string
	value string
}

func (p nePred) Compile() string {
	return fmt.Sprintf("{%s}!=%s", p.field, quote(p.value))
}

type emptyPred struct{ field string }

func (p emptyPred) Compile() string {
	return fmt.Sprintf("{%s}=BLANK()", p.field)
}

type notEmptyPred struct{ field string }

func (p notEmptyPred) Compile() string {
	return fmt.Sprintf("{%s}!=BLANK()", p.field)
}

type lenLtPred struct {
	field string
	n     int
}

func (p lenLtPred) Compile() string {
	return fmt.Sprintf("LEN({%s})<%d", p.field, p.n)
}

type afterNowPred struct {
	field string
	hours int
}

func (p afterNowPred) Compile() string {
	return fmt.Sprintf("IS_AFTER({%s}, DATEADD(NOW(), -%d, 'hours'))", p.field, p.hours)
}

type truePred struct{ field string }

func (p truePred) Compile() string {
	return fmt.Sprintf("{%s}=TRUE()", p.field)
}

type notTruePred struct{ field string }

func (p notTruePred) Compile() string {
	return fmt.Sprintf("{%s}!=TRUE()", p.field)
}

type inPred struct {
	field  string
	values []string
}

func (p inPred) Compile() string {
	parts := make([]string, len(p.values))
	for i, v := range p.values {
		parts[i] = fmt.Sprintf("{%s}=%s", p.field, quote(v))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "OR(" + strings.Join(parts, ",") + ")"
}

type boolPred struct {
	op   string
	kids []Predicate
}

func (p boolPred) Compile() string {
	parts := make([]string, len(p.kids))
	for i, k := range p.kids {
		parts[i] = k.Compile()
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return p.op + "(" + strings.Join(parts, ",") + ")"
}

// Eq matches rows whose field equals value.
func Eq(field, value string) Predicate { return eqPred{field, value} }

// Ne matches rows whose field differs from value.
func Ne(field, value string) Predicate { return nePred{field, value} }

// Empty matches rows with a blank field.
func Empty(field string) Predicate { return emptyPred{field} }

// NotEmpty matches rows with a populated field.
func NotEmpty(field string) Predicate { return notEmptyPred{field} }

// LenLt matches rows whose field is shorter than n characters.
func LenLt(field string, n int) Predicate { return lenLtPred{field, n} }

// IsAfterNow matches rows whose timestamp field falls inside the last
// hoursBack hours.
func IsAfterNow(field string, hoursBack int) Predicate { return afterNowPred{field, hoursBack} }

// IsTrue matches rows whose checkbox field is set.
func IsTrue(field string) Predicate { return truePred{field} }

// IsNotTrue matches rows whose checkbox field is unset or blank.
func IsNotTrue(field string) Predicate { return notTruePred{field} }

// In matches rows whose field equals any of the values.
func In(field string, values ...string) Predicate {
	return inPred{field: field, values: values}
}

// And combines predicates conjunctively.
func And(preds ...Predicate) Predicate { return boolPred{op: "AND", kids: preds} }

// Or combines predicates disjunctively.
func Or(preds ...Predicate) Predicate { return boolPred{op: "OR", kids: preds} }

// quote renders a value literal. Numbers pass through bare, everything
// else is single-quoted with embedded quotes escaped.
func quote(v string) string {
	if v != "" && isNumeric(v) {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", "\\'") + "'"
}

func isNumeric(s string) bool {
	dot := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '-' && i == 0:
		case r == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return true
}

// SortSpec orders a query's results.
type SortSpec struct {
	Field string
	Desc  bool
}

// Query bundles a compiled filter with paging and ordering options.
type Query struct {
	Filter     Predicate
	Sorts      []SortSpec
	MaxRecords int
	Fields     []string
}
