package search

import (
	"github.com/poiesic/docstage/core"
	"github.com/poiesic/docstage/jsonl"
)

// DefaultAnswersPath is where answers are written when no path is given.
const DefaultAnswersPath = "data/answers/answers.jsonl"

// WriteAnswers persists answers as JSON Lines in generation order. With
// overwrite false an existing file is core.ErrSinkConflict and is left as is.
func WriteAnswers(path string, answers []core.AnswerResult, overwrite bool) error {
	return jsonl.WriteFile(path, answers, overwrite)
}

// ReadAnswers loads answers written by WriteAnswers.
func ReadAnswers(path string) ([]core.AnswerResult, error) {
	return jsonl.ReadFile[core.AnswerResult](path)
}
