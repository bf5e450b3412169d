package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examinator/internal/config"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/repository"
	"github.com/stemsi/examinator/internal/response"
	"github.com/stemsi/examinator/internal/websocket"
)

// MonitorService fans exam lifecycle events out over Redis Pub/Sub and builds
// progress snapshots for live monitors.
type MonitorService struct {
	rdb      *redis.Client
	exams    ExamStore
	sessions SessionStore
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(rdb *redis.Client, exams ExamStore, sessions SessionStore) *MonitorService {
	return &MonitorService{rdb: rdb, exams: exams, sessions: sessions}
}

// Publish sends ev to every monitor of the exam.
func (s *MonitorService) Publish(ctx context.Context, examID uuid.UUID, ev websocket.MonitorEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal monitor event: %w", err)
	}
	return s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID.String()), payload).Err()
}

// Subscribe opens a subscription to the exam's monitor channel. The caller
// must close it.
func (s *MonitorService) Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
}

// Snapshot reports each candidate's progress without revealing answers.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) (*websocket.SnapshotResponse, error) {
	return BuildSnapshot(ctx, s.exams, s.sessions, examID)
}

// BuildSnapshot assembles a monitor snapshot from the stores.
func BuildSnapshot(ctx context.Context, exams ExamStore, sessions SessionStore, examID uuid.UUID) (*websocket.SnapshotResponse, error) {
	exam, err := exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundErr(response.ErrExamNotFound, "")
		}
		return nil, upstreamErr("get exam", err)
	}
	list, err := sessions.ListByExam(ctx, examID)
	if err != nil {
		return nil, upstreamErr("list sessions", err)
	}

	snap := &websocket.SnapshotResponse{
		Event:      websocket.EventSnapshot,
		ExamID:     examID,
		Status:     string(exam.Status),
		Total:      len(exam.QuestionsMetaData),
		Candidates: make([]websocket.CandidateProgress, 0, len(list)),
	}
	for _, sess := range list {
		snap.Candidates = append(snap.Candidates, websocket.CandidateProgress{
			SubjectID: sess.SubjectID,
			Status:    string(sess.Status),
			Answered:  answeredCount(sess, exam.QuestionsMetaData),
			JoinedAt:  sess.JoinedAt,
		})
	}
	return snap, nil
}

func answeredCount(sess model.ExamSession, meta model.QuestionsMetaData) int {
	n := 0
	for qid := range sess.Answers {
		if _, ok := meta[qid]; ok {
			n++
		}
	}
	return n
}
