package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/examinator/internal/config"
	"github.com/stemsi/examinator/internal/model"
	"github.com/stemsi/examinator/internal/response"
)

const (
	// AudienceExamSession scopes a credential to submissions for one exam.
	AudienceExamSession = "exam-session"
	// AudienceExamFinisher scopes a ticket to one grading run.
	AudienceExamFinisher = "exam-finisher"

	issuer = "examinator"
)

// IdentityClaims are carried by the bearer credential.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Role model.Role `json:"role"`
}

// Identity is a verified caller.
type Identity struct {
	SubjectID string
	Role      model.Role
	ExpiresAt time.Time
}

// ExamClaims are carried by the exam-scoped credential. Subject is the candidate.
type ExamClaims struct {
	jwt.RegisteredClaims
	ExamID   string `json:"exam_id"`
	CourseID string `json:"course_id"`
}

// FinisherClaims are carried by the finisher ticket.
type FinisherClaims struct {
	jwt.RegisteredClaims
	ExamID   string `json:"exam_id"`
	CourseID string `json:"course_id"`
}

// TokenService signs and verifies the three credential kinds. Each kind has
// its own secret so one cannot be replayed as another.
type TokenService struct {
	accessSecret   []byte
	examSecret     []byte
	finisherSecret []byte
	examLeeway     time.Duration
	now            func() time.Time
}

// NewTokenService creates a TokenService from configuration.
func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{
		accessSecret:   []byte(cfg.AccessTokenSecret),
		examSecret:     []byte(cfg.ExamTokenSecret),
		finisherSecret: []byte(cfg.FinisherTokenSecret),
		examLeeway:     cfg.ExamTokenLeeway,
		now:            time.Now,
	}
}

func (s *TokenService) sign(claims jwt.Claims, secret []byte) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) parse(tokenStr string, claims jwt.Claims, secret []byte, opts ...jwt.ParserOption) error {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}

// IssueIdentity signs a bearer credential. Issuance normally belongs to the
// identity provider; this exists for tooling and tests.
func (s *TokenService) IssueIdentity(subjectID string, role model.Role, ttl time.Duration) (string, error) {
	now := s.now()
	return s.sign(IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}, s.accessSecret)
}

// VerifyIdentity validates a bearer credential.
func (s *TokenService) VerifyIdentity(tokenStr string) (*Identity, error) {
	claims := &IdentityClaims{}
	if err := s.parse(tokenStr, claims, s.accessSecret); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, authErr(response.ErrTokenExpired, "")
		}
		return nil, authErr(response.ErrTokenInvalid, "")
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, authErr(response.ErrTokenInvalid, "")
	}
	return &Identity{
		SubjectID: claims.Subject,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IssueExamToken signs the exam credential handed out at join time.
func (s *TokenService) IssueExamToken(examID uuid.UUID, courseID, subjectID string, expiresAt time.Time) (string, error) {
	return s.sign(ExamClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   subjectID,
			Audience:  jwt.ClaimStrings{AudienceExamSession},
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		ExamID:   examID.String(),
		CourseID: courseID,
	}, s.examSecret)
}

// VerifyExamToken validates an exam credential, tolerating the configured leeway.
func (s *TokenService) VerifyExamToken(tokenStr string) (*ExamClaims, error) {
	claims := &ExamClaims{}
	err := s.parse(tokenStr, claims, s.examSecret,
		jwt.WithAudience(AudienceExamSession),
		jwt.WithLeeway(s.examLeeway),
	)
	if err != nil || claims.Subject == "" || claims.ExamID == "" {
		return nil, authErr(response.ErrExamTokenInvalid, "")
	}
	return claims, nil
}

// IssueFinisherTicket signs the ticket armed with the scheduler.
func (s *TokenService) IssueFinisherTicket(examID uuid.UUID, courseID string, expiresAt time.Time) (string, error) {
	return s.sign(FinisherClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{AudienceExamFinisher},
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		ExamID:   examID.String(),
		CourseID: courseID,
	}, s.finisherSecret)
}

// VerifyFinisherTicket validates a finisher ticket. An expired ticket yields
// a message stating how long ago the grace period ended.
func (s *TokenService) VerifyFinisherTicket(tokenStr string) (*FinisherClaims, error) {
	claims := &FinisherClaims{}
	err := s.parse(tokenStr, claims, s.finisherSecret, jwt.WithAudience(AudienceExamFinisher))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && claims.ExpiresAt != nil {
			ago := s.now().Sub(claims.ExpiresAt.Time).Truncate(time.Second)
			return nil, authErr(response.ErrFinisherTicketExpired,
				fmt.Sprintf("Finisher ticket expired %s ago.", ago))
		}
		return nil, authErr(response.ErrFinisherTicketInvalid, "")
	}
	if claims.ExamID == "" {
		return nil, authErr(response.ErrFinisherTicketInvalid, "")
	}
	return claims, nil
}
