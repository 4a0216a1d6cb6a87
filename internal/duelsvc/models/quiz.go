package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Quiz is a reusable question bank, authored elsewhere. Matches never read it
// after creation; they carry their own frozen copy of the sampled questions.
type Quiz struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Questions []Question         `bson:"questions" json:"questions"`
}

type Question struct {
	Text    string         `bson:"text" json:"text"`
	Answers []AnswerOption `bson:"answers" json:"answers"`
}

type AnswerOption struct {
	Text      string `bson:"text" json:"text"`
	IsCorrect bool   `bson:"is_correct" json:"is_correct"`
}

// CorrectIndex returns the index of the first option flagged correct, or -1.
func (q Question) CorrectIndex() int {
	for i, a := range q.Answers {
		if a.IsCorrect {
			return i
		}
	}
	return -1
}
