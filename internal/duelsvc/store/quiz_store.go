package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/quizwire/duel-services/internal/duelsvc/models"
)

// QuizStore reads quiz banks from mongo. Quizzes are authored elsewhere; this
// service only ever reads them.
type QuizStore struct {
	col *mongo.Collection
}

func NewQuizStore(db *mongo.Database) *QuizStore {
	return &QuizStore{col: db.Collection("quizzes")}
}

func (s *QuizStore) GetQuizByID(ctx context.Context, quizID string) (*models.Quiz, error) {
	oid, err := primitive.ObjectIDFromHex(quizID)
	if err != nil {
		return nil, nil // malformed id can never match a quiz
	}

	quiz := &models.Quiz{}
	err = s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(quiz)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quiz %s: %w", quizID, err)
	}

	return quiz, nil
}

func (s *QuizStore) ListQuizzes(ctx context.Context) ([]*models.Quiz, error) {
	cur, err := s.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	defer cur.Close(ctx)

	var quizzes []*models.Quiz
	for cur.Next(ctx) {
		quiz := &models.Quiz{}
		if err := cur.Decode(quiz); err != nil {
			return nil, fmt.Errorf("failed to decode quiz: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	return quizzes, nil
}
