package models

import (
	"time"

	pkgauth "github.com/BradenHooton/pitwall/pkg/auth"
)

// SecurityQuestionCatalog is the fixed list users pick their two questions from
var SecurityQuestionCatalog = []string{
	"What was the name of your first pet?",
	"In what city were you born?",
	"What was your childhood nickname?",
	"What is the name of your favorite childhood friend?",
	"What street did you live on in third grade?",
	"What was the make of your first car?",
	"What was the name of the company where you had your first job?",
	"What was your favorite food as a child?",
	"What is your father's middle name?",
	"What high school did you attend?",
	"What was the name of your elementary school?",
	"In what town was your first job?",
	"What is the middle name of your youngest child?",
	"What school did you attend for sixth grade?",
	"What was your childhood phone number including area code?",
}

// IsCatalogQuestion reports whether q is one of the catalog entries
func IsCatalogQuestion(q string) bool {
	for _, c := range SecurityQuestionCatalog {
		if c == q {
			return true
		}
	}
	return false
}

// ValidateQuestions checks a setup submission: two distinct catalog questions
// and answers at least three characters long after normalization.
func ValidateQuestions(q1, a1, q2, a2 string) error {
	if q1 == q2 {
		return ErrQuestionsNotDistinct
	}
	if !IsCatalogQuestion(q1) || !IsCatalogQuestion(q2) {
		return ErrUnknownQuestion
	}
	if !pkgauth.AnswerLongEnough(a1) || !pkgauth.AnswerLongEnough(a2) {
		return ErrAnswerTooShort
	}
	return nil
}

// SecurityQuestionSet holds a user's two questions and the salted hashes of the answers
type SecurityQuestionSet struct {
	UserID      string
	Question1   string
	Answer1Hash string // argon2id encoded, never plaintext
	Question2   string
	Answer2Hash string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SecurityChallenge is what gets rendered to the user: question text only
type SecurityChallenge struct {
	Question1 string `json:"question_1"`
	Question2 string `json:"question_2"`
}

// Challenge strips the hashes from the set
func (s *SecurityQuestionSet) Challenge() *SecurityChallenge {
	return &SecurityChallenge{
		Question1: s.Question1,
		Question2: s.Question2,
	}
}
