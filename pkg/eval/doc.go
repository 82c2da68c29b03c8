// Package eval provides an evaluation framework for scoring rlmcore
// session outputs. It includes built-in evaluators for exact match,
// substring containment, cost budgets, action usage, and LLM-as-judge,
// plus a Suite for running multiple evaluators against a single result.
//
// Built-in evaluators:
//
//   - ExactMatch — answer must equal an expected string
//   - Contains — answer must include specified substrings
//   - CostWithin — session usage must stay within a USD budget
//   - ActionUse — turn history must include expected nav facade calls
//   - LLMJudge — an LLM scores the answer against a rubric (0-10)
//   - CompletedWithin — standalone function for duration checks
//
// Use Func to wrap any function as an Evaluator, and Suite to run
// multiple evaluators against a single session.Result.
package eval
