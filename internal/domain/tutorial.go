package domain

import "maps"

// Tutorial is one entry of the learning catalog.
type Tutorial struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Tags        []string `json:"tags" yaml:"tags"`
	Duration    string   `json:"duration" yaml:"duration"`
	Difficulty  string   `json:"difficulty" yaml:"difficulty"`
	Content     string   `json:"content" yaml:"content"`
	StarterCode string   `json:"starterCode" yaml:"starterCode"`
	AnswerHint  string   `json:"answerHint" yaml:"answerHint"`
}

// Progress holds the learner's free-form per-tutorial fields, e.g. "notes".
type Progress map[string]any

// ProgressNotesField is the field written by the notes panel.
const ProgressNotesField = "notes"

// Merge overwrites only the fields present in partial and returns the result.
// The receiver is left untouched.
func (p Progress) Merge(partial Progress) Progress {
	out := make(Progress, len(p)+len(partial))
	maps.Copy(out, p)
	maps.Copy(out, partial)
	return out
}
