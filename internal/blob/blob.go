// Package blob stores immutable JSON documents by deterministic path.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no blob exists at the key.
	ErrNotFound = errors.New("blob not found")
	// ErrExists is returned when writing to a key that already holds a blob.
	ErrExists = errors.New("blob already exists")
	// ErrInvalidKey is returned for keys that are empty or escape the store root.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store puts and gets blobs by key. Blobs are write-once.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ExamContentKey is the path of an exam's private question list.
func ExamContentKey(courseID string, examID uuid.UUID) string {
	return fmt.Sprintf("exams/%s/%s/questions.json", courseID, examID)
}

// PutJSON marshals v and stores it under key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal blob %s: %w", key, err)
	}
	return s.Put(ctx, key, data)
}

// GetJSON loads the blob at key and unmarshals it into v.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal blob %s: %w", key, err)
	}
	return nil
}
