package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainProgram = "stratalog/program/v1"
	DomainAnswer  = "stratalog/answer/v1"
	DomainQuery   = "stratalog/query/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramHash identifies a program by its canonical facts and rules.
// Rule order is significant; fact order is not.
func ProgramHash(facts Facts, rules []Rule) string {
	return hashWithDomain(DomainProgram, MarshalProgram(facts, rules))
}

// RulesHash identifies a rule set independent of its facts.
func RulesHash(rules []Rule) string {
	return ProgramHash(nil, rules)
}

// AnswerHash identifies the set of tuples in a relation, independent of
// insertion order.
func AnswerHash(r *Relation) string {
	dst := []byte{'['}
	for i, t := range r.Sorted() {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendTuple(dst, t)
	}
	dst = append(dst, ']')
	return hashWithDomain(DomainAnswer, dst)
}

// QueryHash identifies a query up to consistent renaming of its variables.
func QueryHash(q Query) string {
	return hashWithDomain(DomainQuery, []byte(QueryVariantKey(q)))
}
