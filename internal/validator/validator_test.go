package validator

import (
	"testing"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/stemsi/examinator/internal/model"
)

func newValidate(t *testing.T) *govalidator.Validate {
	t.Helper()
	v := govalidator.New()
	v.SetTagName("binding")
	if err := Register(v); err != nil {
		t.Fatalf("register: %v", err)
	}
	return v
}

func validRequest() model.CreateExamRequest {
	return model.CreateExamRequest{
		Name:      "Midterm",
		CourseID:  "cs101",
		StartDate: 1_900_000_000,
		Duration:  60,
		Questions: []model.QuestionInput{{
			QuestionText: "2 + 2?",
			Points:       10,
			Options: []model.OptionInput{
				{OptionText: "3"},
				{OptionText: "4", IsCorrect: true},
			},
		}},
	}
}

func TestOneCorrect(t *testing.T) {
	v := newValidate(t)

	tests := []struct {
		name    string
		mutate  func(*model.CreateExamRequest)
		wantKey string
	}{
		{"valid", func(*model.CreateExamRequest) {}, ""},
		{"no correct option", func(r *model.CreateExamRequest) {
			r.Questions[0].Options[1].IsCorrect = false
		}, "questions[0].options"},
		{"two correct options", func(r *model.CreateExamRequest) {
			r.Questions[0].Options[0].IsCorrect = true
		}, "questions[0].options"},
		{"single option", func(r *model.CreateExamRequest) {
			r.Questions[0].Options = r.Questions[0].Options[1:]
		}, "questions[0].options"},
		{"no questions", func(r *model.CreateExamRequest) {
			r.Questions = nil
		}, "questions"},
		{"negative passing score", func(r *model.CreateExamRequest) {
			r.MinimumPassingScore = -1
		}, "minimum_passing_score"},
		{"passing score above cap", func(r *model.CreateExamRequest) {
			r.MinimumPassingScore = model.MaxPassingScore + 1
		}, "minimum_passing_score"},
		{"points above cap", func(r *model.CreateExamRequest) {
			r.Questions[0].Points = model.MaxQuestionPoints + 1
		}, "questions[0].points"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := v.Struct(req)
			if tt.wantKey == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			fields := TranslateErrors(err)
			if _, ok := fields[tt.wantKey]; !ok {
				t.Errorf("fields = %v, want key %q", fields, tt.wantKey)
			}
		})
	}
}

func TestOneCorrectMessage(t *testing.T) {
	v := newValidate(t)
	req := validRequest()
	req.Questions[0].Options[1].IsCorrect = false

	fields := TranslateErrors(v.Struct(req))
	want := "options must have exactly one correct option"
	if got := fields["questions[0].options"]; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

func TestMyExamsQuery(t *testing.T) {
	v := newValidate(t)
	if err := v.Struct(model.MyExamsQuery{Type: model.MyExamsActive}); err != nil {
		t.Errorf("active rejected: %v", err)
	}
	err := v.Struct(model.MyExamsQuery{Type: "pending"})
	if err == nil {
		t.Fatal("pending accepted")
	}
	if _, ok := TranslateErrors(err)["type"]; !ok {
		t.Errorf("fields = %v, want type", TranslateErrors(err))
	}
}
