package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Canonical term encoding. Every term is a one- or two-key JSON object with
// keys in sorted order, so the bytes are deterministic:
//
//	Variable     {"v":"X"}
//	String       {"s":"abc"}
//	Int          {"i":42}
//	Float        {"f":"1.5"}
//	Double       {"d":"1.5"}
//	Bool         {"b":true}
//	IRI          {"u":"http://example.org"}
//	Constructed  {"args":[...],"fn":"f"}
//
// Floats travel as strings so that canonical JSON never carries a JSON
// number with a fractional part.

func appendTerm(dst []byte, t Term) []byte {
	switch x := t.(type) {
	case Variable:
		dst = append(dst, `{"v":`...)
		dst = appendString(dst, string(x))
		return append(dst, '}')
	case Constant:
		return appendValue(dst, x.Value)
	case Constructed:
		dst = append(dst, `{"args":`...)
		dst = appendTuple(dst, x.Args)
		dst = append(dst, `,"fn":`...)
		dst = appendString(dst, x.Functor)
		return append(dst, '}')
	}
	panic(fmt.Sprintf("canonical: unsupported term %T", t))
}

func appendValue(dst []byte, v Value) []byte {
	switch x := v.(type) {
	case String:
		dst = append(dst, `{"s":`...)
		dst = appendString(dst, string(x))
	case Int:
		dst = append(dst, `{"i":`...)
		dst = strconv.AppendInt(dst, int64(x), 10)
	case Float:
		dst = append(dst, `{"f":`...)
		dst = appendString(dst, strconv.FormatFloat(float64(x), 'g', -1, 32))
	case Double:
		dst = append(dst, `{"d":`...)
		dst = appendString(dst, strconv.FormatFloat(float64(x), 'g', -1, 64))
	case Bool:
		dst = append(dst, `{"b":`...)
		dst = strconv.AppendBool(dst, bool(x))
	case IRI:
		dst = append(dst, `{"u":`...)
		dst = appendString(dst, string(x))
	default:
		panic(fmt.Sprintf("canonical: unsupported value %T", v))
	}
	return append(dst, '}')
}

func appendTuple(dst []byte, t []Term) []byte {
	dst = append(dst, '[')
	for i, term := range t {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendTerm(dst, term)
	}
	return append(dst, ']')
}

func appendAtom(dst []byte, a Atom) []byte {
	dst = append(dst, `{"args":`...)
	dst = appendTuple(dst, a.Tuple)
	dst = append(dst, `,"pred":`...)
	dst = appendString(dst, a.Predicate.Symbol)
	return append(dst, '}')
}

func appendLiteral(dst []byte, l Literal) []byte {
	dst = append(dst, `{"atom":`...)
	dst = appendAtom(dst, l.Atom)
	if !l.Positive {
		dst = append(dst, `,"neg":true`...)
	}
	return append(dst, '}')
}

func appendLiterals(dst []byte, ls []Literal) []byte {
	dst = append(dst, '[')
	for i, l := range ls {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendLiteral(dst, l)
	}
	return append(dst, ']')
}

func appendRule(dst []byte, r Rule) []byte {
	dst = append(dst, `{"body":`...)
	dst = appendLiterals(dst, r.Body)
	dst = append(dst, `,"head":`...)
	dst = appendLiterals(dst, r.Head)
	return append(dst, '}')
}

// appendString writes a JSON string with NFC normalisation and without HTML
// escaping. U+2028 and U+2029 are written literally.
func appendString(dst []byte, s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		panic(fmt.Sprintf("canonical: encode string: %v", err))
	}
	out := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	return append(dst, unescapeLineSeparators(out)...)
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into the raw characters, leaving escaped backslashes alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' {
			out = append(out, data[i])
			continue
		}
		if i+5 < len(data) && data[i+1] == 'u' && string(data[i+2:i+5]) == "202" && (data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		// Any other escape: copy the backslash and the escaped byte together.
		out = append(out, data[i])
		if i+1 < len(data) {
			out = append(out, data[i+1])
			i++
		}
	}
	return out
}

// MarshalTerm returns the canonical encoding of a term.
func MarshalTerm(t Term) []byte { return appendTerm(nil, t) }

// MarshalTuple returns the canonical encoding of a tuple.
func MarshalTuple(t Tuple) []byte { return appendTuple(nil, t) }

// MarshalRule returns the canonical encoding of a rule.
func MarshalRule(r Rule) []byte { return appendRule(nil, r) }

// MarshalQuery returns the canonical encoding of a query.
func MarshalQuery(q Query) []byte { return appendLiterals(nil, q.Literals) }

// MarshalProgram returns the canonical document {"facts":[...],"rules":[...]}.
// Facts are ordered by predicate then tuple; rules keep source order.
func MarshalProgram(facts Facts, rules []Rule) []byte {
	dst := []byte(`{"facts":[`)
	for i, a := range facts.Atoms() {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendAtom(dst, a)
	}
	dst = append(dst, `],"rules":[`...)
	for i, r := range rules {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendRule(dst, r)
	}
	return append(dst, "]}"...)
}

// UnmarshalTerm decodes a canonical term.
func UnmarshalTerm(data []byte) (Term, error) {
	var obj map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("unmarshal term: %w", err)
	}
	if fn, ok := obj["fn"]; ok {
		var functor string
		if err := json.Unmarshal(fn, &functor); err != nil {
			return nil, fmt.Errorf("unmarshal term: functor: %w", err)
		}
		args, err := UnmarshalTuple(obj["args"])
		if err != nil {
			return nil, fmt.Errorf("unmarshal term: %s args: %w", functor, err)
		}
		return Constructed{Functor: functor, Args: args}, nil
	}
	if len(obj) != 1 {
		return nil, fmt.Errorf("unmarshal term: expected one tag, got %d", len(obj))
	}
	for tag, raw := range obj {
		return decodeTagged(tag, raw)
	}
	return nil, fmt.Errorf("unmarshal term: empty object")
}

func decodeTagged(tag string, raw json.RawMessage) (Term, error) {
	switch tag {
	case "i":
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("unmarshal int: %w", err)
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("unmarshal int: %w", err)
		}
		return NewInt(i), nil
	case "b":
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("unmarshal bool: %w", err)
		}
		return NewBool(b), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("unmarshal %q: %w", tag, err)
	}
	switch tag {
	case "v":
		return Var(s), nil
	case "s":
		return NewString(s), nil
	case "u":
		return NewIRI(s), nil
	case "f":
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("unmarshal float: %w", err)
		}
		return NewFloat(float32(f)), nil
	case "d":
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("unmarshal double: %w", err)
		}
		return NewDouble(f), nil
	}
	return nil, fmt.Errorf("unmarshal term: unknown tag %q", tag)
}

// UnmarshalTuple decodes a canonical tuple.
func UnmarshalTuple(data []byte) (Tuple, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("unmarshal tuple: %w", err)
	}
	out := make(Tuple, len(raws))
	for i, raw := range raws {
		t, err := UnmarshalTerm(raw)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

type atomDoc struct {
	Args json.RawMessage `json:"args"`
	Pred string          `json:"pred"`
}

type literalDoc struct {
	Atom atomDoc `json:"atom"`
	Neg  bool    `json:"neg"`
}

type ruleDoc struct {
	Body []literalDoc `json:"body"`
	Head []literalDoc `json:"head"`
}

type programDoc struct {
	Facts []atomDoc `json:"facts"`
	Rules []ruleDoc `json:"rules"`
}

func (d atomDoc) decode() (Atom, error) {
	args, err := UnmarshalTuple(d.Args)
	if err != nil {
		return Atom{}, fmt.Errorf("atom %s: %w", d.Pred, err)
	}
	return NewAtom(d.Pred, args...), nil
}

func decodeLiterals(docs []literalDoc) ([]Literal, error) {
	out := make([]Literal, len(docs))
	for i, d := range docs {
		a, err := d.Atom.decode()
		if err != nil {
			return nil, err
		}
		out[i] = Literal{Atom: a, Positive: !d.Neg}
	}
	return out, nil
}

func (d ruleDoc) decode() (Rule, error) {
	head, err := decodeLiterals(d.Head)
	if err != nil {
		return Rule{}, fmt.Errorf("head: %w", err)
	}
	body, err := decodeLiterals(d.Body)
	if err != nil {
		return Rule{}, fmt.Errorf("body: %w", err)
	}
	return Rule{Head: head, Body: body}, nil
}

// UnmarshalQuery decodes the output of MarshalQuery.
func UnmarshalQuery(data []byte) (Query, error) {
	var docs []literalDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return Query{}, fmt.Errorf("unmarshal query: %w", err)
	}
	lits, err := decodeLiterals(docs)
	if err != nil {
		return Query{}, fmt.Errorf("unmarshal query: %w", err)
	}
	return Query{Literals: lits}, nil
}

// UnmarshalProgram decodes the output of MarshalProgram.
func UnmarshalProgram(data []byte) (Facts, []Rule, error) {
	var doc programDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("unmarshal program: %w", err)
	}
	facts := make(Facts)
	for i, d := range doc.Facts {
		a, err := d.decode()
		if err != nil {
			return nil, nil, fmt.Errorf("unmarshal program: facts[%d]: %w", i, err)
		}
		if !a.IsGround() {
			return nil, nil, fmt.Errorf("unmarshal program: facts[%d]: %s is not ground", i, a)
		}
		facts.Add(a)
	}
	rules := make([]Rule, len(doc.Rules))
	for i, d := range doc.Rules {
		r, err := d.decode()
		if err != nil {
			return nil, nil, fmt.Errorf("unmarshal program: rules[%d]: %w", i, err)
		}
		rules[i] = r
	}
	return facts, rules, nil
}
