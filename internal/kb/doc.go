// Package kb wraps the evaluator in a long-lived knowledge base.
//
// A KnowledgeBase compiles its rules once and accepts facts from any number
// of goroutines. Facts are buffered and applied by whichever goroutine holds
// the knowledge base lock, so writers never wait on an evaluation in
// progress. Queries read the latest full evaluation when one is current;
// otherwise bound queries go through a cached magic-sets program and the
// rest trigger a full evaluation.
//
// Predicates listed in kb.windows keep facts for a fixed time. Clean drops
// facts older than their window and re-evaluates.
//
// Listeners registered with Register receive the answer to their query after
// every evaluation.
package kb
