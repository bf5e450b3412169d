//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/stemsi/examinator/internal/config"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/service"
)

const (
	defaultBaseURL = "http://localhost:8080/api/v1"
	teacherID      = "e2e-teacher"
	studentID      = "e2e-student"
	outsiderID     = "e2e-outsider"
	courseID       = "cs101"
)

var (
	baseURL       string
	dbURL         string
	teacherToken  string
	studentToken  string
	outsiderToken string
	examID        string
	examToken     string
	questions     []model.CandidateQuestion
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	cfg := config.Load()
	dbURL = cfg.DatabaseURL

	if err := seedProfiles(); err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}

	// The server must share ACCESS_TOKEN_SECRET with this process.
	tokens := service.NewTokenService(cfg)
	var err error
	if teacherToken, err = tokens.IssueIdentity(teacherID, model.RoleTeacher, time.Hour); err == nil {
		if studentToken, err = tokens.IssueIdentity(studentID, model.RoleStudent, time.Hour); err == nil {
			outsiderToken, err = tokens.IssueIdentity(outsiderID, model.RoleStudent, time.Hour)
		}
	}
	if err != nil {
		fmt.Printf("Issue tokens failed: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func seedProfiles() error {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer conn.Close(ctx)

	// Cleanup previous test data.
	if _, err := conn.Exec(ctx, `DELETE FROM exam_sessions WHERE subject_id LIKE 'e2e-%'`); err != nil {
		return fmt.Errorf("cleanup sessions: %w", err)
	}
	if _, err := conn.Exec(ctx, `DELETE FROM exams WHERE created_by = $1`, teacherID); err != nil {
		return fmt.Errorf("cleanup exams: %w", err)
	}

	profiles := []struct {
		id      string
		role    model.Role
		courses []string
	}{
		{teacherID, model.RoleTeacher, []string{courseID}},
		{studentID, model.RoleStudent, []string{courseID}},
		{outsiderID, model.RoleStudent, []string{}},
	}
	for _, p := range profiles {
		_, err := conn.Exec(ctx,
			`INSERT INTO profiles (subject_id, role, email, first_name, last_name, courses)
			 VALUES ($1, $2, $1 || '@e2e.local', 'E2E', $1, $3)
			 ON CONFLICT (subject_id) DO UPDATE
			 SET role = EXCLUDED.role, courses = EXCLUDED.courses, exams = '{}'::jsonb`,
			p.id, p.role, p.courses)
		if err != nil {
			return fmt.Errorf("seed profile %s: %w", p.id, err)
		}
	}
	return nil
}

func TestE2EFlow(t *testing.T) {
	t.Run("CreateExam", func(t *testing.T) {
		req := model.CreateExamRequest{
			Name:                  "E2E Test Exam",
			CourseID:              courseID,
			MinimumPassingScore:   10,
			StartDate:             time.Now().Add(-time.Minute).Unix(),
			Duration:              60,
			IsQuestionsRandomized: true,
			IsOptionsRandomized:   true,
			Questions: []model.QuestionInput{
				{QuestionText: "2 + 2", Points: 10, Options: []model.OptionInput{
					{OptionText: "4", IsCorrect: true}, {OptionText: "5"},
				}},
				{QuestionText: "Capital of France", Points: 5, Options: []model.OptionInput{
					{OptionText: "Paris", IsCorrect: true}, {OptionText: "Rome"}, {OptionText: "Oslo"},
				}},
			},
		}
		resp, err := post("/exams", req, teacherToken, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Data struct {
				Exam model.Exam `json:"exam"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		examID = body.Data.Exam.ID.String()
		if body.Data.Exam.TotalPoints != 15 {
			t.Errorf("total_points = %d, want 15", body.Data.Exam.TotalPoints)
		}
		t.Logf("Exam Created: %s", examID)
	})

	t.Run("StudentCannotCreateExam", func(t *testing.T) {
		resp, err := post("/exams", map[string]string{}, studentToken, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status %d, want 403", resp.StatusCode)
		}
	})

	t.Run("OutsiderCannotJoin", func(t *testing.T) {
		resp, err := post("/exams/"+examID+"/join", nil, outsiderToken, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status %d, want 403: %s", resp.StatusCode, readBody(resp))
		}
	})

	t.Run("Join", func(t *testing.T) {
		resp, err := post("/exams/"+examID+"/join", nil, studentToken, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Data model.JoinResult `json:"data"`
		}
		decodeJSON(t, resp, &body)
		examToken = body.Data.Token
		questions = body.Data.Questions
		if examToken == "" || len(questions) != 2 {
			t.Fatalf("join result: %+v", body.Data)
		}
	})

	t.Run("SubmitAnswer", func(t *testing.T) {
		q := questions[0]
		reqBody := model.SubmitAnswerRequest{QuestionID: q.ID, OptionID: q.Options[0].ID}
		resp, err := post("/exams/"+examID+"/answers", reqBody, studentToken, examToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		// Verify in DB.
		ctx := context.Background()
		conn, err := pgx.Connect(ctx, dbURL)
		if err != nil {
			t.Fatalf("db connect: %v", err)
		}
		defer conn.Close(ctx)

		var stored string
		err = conn.QueryRow(ctx,
			`SELECT answers ->> $3 FROM exam_sessions WHERE exam_id = $1 AND subject_id = $2`,
			examID, studentID, q.ID).Scan(&stored)
		if err != nil {
			t.Fatalf("query answer: %v", err)
		}
		if stored != q.Options[0].ID {
			t.Errorf("stored answer = %q, want %q", stored, q.Options[0].ID)
		}
	})

	t.Run("RejoinReplaysOrder", func(t *testing.T) {
		resp, err := post("/exams/"+examID+"/join", nil, studentToken, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Data model.JoinResult `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if !body.Data.AlreadyJoined {
			t.Error("already_joined = false")
		}
		for i, q := range body.Data.Questions {
			if q.ID != questions[i].ID {
				t.Fatalf("question %d = %s, want %s", i, q.ID, questions[i].ID)
			}
		}
		if got := body.Data.Answers[questions[0].ID]; got != questions[0].Options[0].ID {
			t.Errorf("replayed answer = %q", got)
		}
	})

	t.Run("MyExams", func(t *testing.T) {
		resp, err := get("/me/exams?type=active", studentToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Data struct {
				Exams []model.ProfileExam `json:"exams"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if len(body.Data.Exams) != 1 || body.Data.Exams[0].ExamID.String() != examID {
			t.Errorf("my exams = %+v", body.Data.Exams)
		}
	})

	t.Run("Results", func(t *testing.T) {
		resp, err := get("/exams/"+examID+"/results", teacherToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Data struct {
				Results []model.ExamResult `json:"results"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if len(body.Data.Results) != 1 {
			t.Errorf("results = %d, want 1", len(body.Data.Results))
		}
	})

	t.Run("Cancel", func(t *testing.T) {
		resp, err := post("/exams/"+examID+"/cancel", nil, teacherToken, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		q := questions[1]
		late, err := post("/exams/"+examID+"/answers",
			model.SubmitAnswerRequest{QuestionID: q.ID, OptionID: q.Options[0].ID}, studentToken, examToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer late.Body.Close()
		if late.StatusCode != http.StatusBadRequest {
			t.Errorf("answer after cancel: status %d, want 400", late.StatusCode)
		}
	})
}

// Helpers

func post(path string, body interface{}, token, examToken string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if examToken != "" {
		req.Header.Set("X-Exam-Token", examToken)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func get(path string, token string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("json decode: %v", err)
	}
}
