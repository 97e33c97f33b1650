package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/stratalog/internal/ir"
)

// Source is a program read from CUE: base facts, rules and the queries
// shipped with it.
//
// The CUE layout is:
//
//	facts: {
//		edge: [[1, 2], [2, 3]]
//	}
//	rules: [
//		{head: {path: ["?X", "?Y"]}, body: [{edge: ["?X", "?Y"]}]},
//		{head: {path: ["?X", "?Z"]}, body: [{edge: ["?X", "?Y"]}, {path: ["?Y", "?Z"]}]},
//		{head: {lonely: ["?X"]}, body: [{node: ["?X"]}, {not: {edge: ["?X", "?Y"]}}]},
//	]
//	queries: [
//		[{path: [1, "?Y"]}],
//	]
//
// A literal is a struct with one field naming the predicate; "not" wraps a
// negated literal. Terms are mapped as follows: "?X" is a variable, any other
// string is a string constant, integers are Int, other numbers Double, and
// booleans Bool. {fn: "f", args: [...]} is a constructed term, {iri: "..."}
// an IRI, {float: 1.5} a Float and {string: "?X"} a string that starts with
// a question mark.
type Source struct {
	Facts   ir.Facts
	Rules   []ir.Rule
	Queries []ir.Query
}

// CompileSource parses a CUE value into a Source.
// Uses CUE SDK's Go API directly (not CLI subprocess).
func CompileSource(v cue.Value) (*Source, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	src := &Source{Facts: ir.Facts{}}
	var verrs ValidationErrors

	if factsVal := v.LookupPath(cue.ParsePath("facts")); factsVal.Exists() {
		iter, err := factsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			symbol := iter.Label()
			rows, err := iter.Value().List()
			if err != nil {
				return nil, &CompileError{Field: "facts." + symbol, Message: "facts must be a list of tuples", Pos: iter.Value().Pos()}
			}
			for rows.Next() {
				tuple, err := parseTuple(rows.Value())
				if err != nil {
					return nil, err
				}
				atom := ir.NewAtom(symbol, tuple...)
				field := fmt.Sprintf("facts.%s", symbol)
				if errs := ValidateFact(field, atom); len(errs) > 0 {
					for i := range errs {
						errs[i].Line = rows.Value().Pos().Line()
					}
					verrs = append(verrs, errs...)
					continue
				}
				src.Facts.Add(atom)
			}
		}
	}

	if rulesVal := v.LookupPath(cue.ParsePath("rules")); rulesVal.Exists() {
		iter, err := rulesVal.List()
		if err != nil {
			return nil, &CompileError{Field: "rules", Message: "rules must be a list", Pos: rulesVal.Pos()}
		}
		for iter.Next() {
			r, err := parseRule(iter.Value())
			if err != nil {
				return nil, err
			}
			src.Rules = append(src.Rules, r)
		}
	}

	if queriesVal := v.LookupPath(cue.ParsePath("queries")); queriesVal.Exists() {
		iter, err := queriesVal.List()
		if err != nil {
			return nil, &CompileError{Field: "queries", Message: "queries must be a list", Pos: queriesVal.Pos()}
		}
		for iter.Next() {
			q, err := parseQueryValue(iter.Value())
			if err != nil {
				return nil, err
			}
			src.Queries = append(src.Queries, q)
		}
	}

	if len(verrs) > 0 {
		return nil, verrs
	}
	return src, nil
}

// ParseQuery parses a query written as a CUE expression, either one literal
// struct or a list of them: `{path: [1, "?Y"]}`.
func ParseQuery(expr string) (ir.Query, error) {
	v := cuecontext.New().CompileString(expr)
	if err := v.Err(); err != nil {
		return ir.Query{}, formatCUEError(err)
	}
	return parseQueryValue(v)
}

// ParseTerm parses a single term written as a CUE expression.
func ParseTerm(expr string) (ir.Term, error) {
	v := cuecontext.New().CompileString(expr)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return parseTerm(v)
}

func parseQueryValue(v cue.Value) (ir.Query, error) {
	lits, err := parseLiterals(v)
	if err != nil {
		return ir.Query{}, err
	}
	return ir.NewQuery(lits...), nil
}

func parseRule(v cue.Value) (ir.Rule, error) {
	headVal := v.LookupPath(cue.ParsePath("head"))
	if !headVal.Exists() {
		return ir.Rule{}, &CompileError{Field: "head", Message: "rule head is required", Pos: v.Pos()}
	}
	head, err := parseLiterals(headVal)
	if err != nil {
		return ir.Rule{}, err
	}
	r := ir.Rule{Head: head}

	if bodyVal := v.LookupPath(cue.ParsePath("body")); bodyVal.Exists() {
		body, err := parseLiterals(bodyVal)
		if err != nil {
			return ir.Rule{}, err
		}
		r.Body = body
	}
	return r, nil
}

// parseLiterals accepts one literal struct or a list of them.
func parseLiterals(v cue.Value) ([]ir.Literal, error) {
	if v.IncompleteKind() == cue.StructKind {
		l, err := parseLiteral(v)
		if err != nil {
			return nil, err
		}
		return []ir.Literal{l}, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: "literal", Message: "expected a literal or a list of literals", Pos: v.Pos()}
	}
	var lits []ir.Literal
	for iter.Next() {
		l, err := parseLiteral(iter.Value())
		if err != nil {
			return nil, err
		}
		lits = append(lits, l)
	}
	return lits, nil
}

func parseLiteral(v cue.Value) (ir.Literal, error) {
	iter, err := v.Fields()
	if err != nil {
		return ir.Literal{}, &CompileError{Field: "literal", Message: "literal must be a struct", Pos: v.Pos()}
	}
	var (
		lit   ir.Literal
		count int
	)
	for iter.Next() {
		count++
		label := iter.Label()
		if label == "not" {
			inner, err := parseLiteral(iter.Value())
			if err != nil {
				return ir.Literal{}, err
			}
			if !inner.Positive {
				return ir.Literal{}, &CompileError{Field: "not", Message: "double negation is not supported", Pos: iter.Value().Pos()}
			}
			lit = ir.Neg(inner.Atom)
			continue
		}
		tuple, err := parseTuple(iter.Value())
		if err != nil {
			return ir.Literal{}, err
		}
		lit = ir.Pos(ir.NewAtom(label, tuple...))
	}
	if count != 1 {
		return ir.Literal{}, &CompileError{
			Field:   "literal",
			Message: fmt.Sprintf("literal must have exactly one predicate field, found %d", count),
			Pos:     v.Pos(),
		}
	}
	return lit, nil
}

func parseTuple(v cue.Value) (ir.Tuple, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: "tuple", Message: "arguments must be a list", Pos: v.Pos()}
	}
	tuple := ir.Tuple{}
	for iter.Next() {
		t, err := parseTerm(iter.Value())
		if err != nil {
			return nil, err
		}
		tuple = append(tuple, t)
	}
	return tuple, nil
}

func parseTerm(v cue.Value) (ir.Term, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if name, ok := strings.CutPrefix(s, "?"); ok && name != "" {
			return ir.Var(name), nil
		}
		return ir.NewString(s), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.NewInt(i), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.NewDouble(f), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.NewBool(b), nil
	case cue.StructKind:
		return parseTaggedTerm(v)
	default:
		return nil, &CompileError{Field: "term", Message: fmt.Sprintf("unsupported term kind %s", v.IncompleteKind()), Pos: v.Pos()}
	}
}

func parseTaggedTerm(v cue.Value) (ir.Term, error) {
	if fn := v.LookupPath(cue.ParsePath("fn")); fn.Exists() {
		functor, err := fn.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var args ir.Tuple
		if argsVal := v.LookupPath(cue.ParsePath("args")); argsVal.Exists() {
			args, err = parseTuple(argsVal)
			if err != nil {
				return nil, err
			}
		}
		return ir.Fn(functor, args...), nil
	}
	if iri := v.LookupPath(cue.ParsePath("iri")); iri.Exists() {
		s, err := iri.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.NewIRI(s), nil
	}
	if f := v.LookupPath(cue.ParsePath("float")); f.Exists() {
		x, err := f.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.NewFloat(float32(x)), nil
	}
	if s := v.LookupPath(cue.ParsePath("string")); s.Exists() {
		str, err := s.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.NewString(str), nil
	}
	return nil, &CompileError{Field: "term", Message: "struct term needs one of fn, iri, float or string", Pos: v.Pos()}
}
