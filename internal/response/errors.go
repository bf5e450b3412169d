package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	ErrExamTokenRequired ErrCode = "EXAM_TOKEN_REQUIRED"
	ErrExamTokenInvalid  ErrCode = "EXAM_TOKEN_INVALID"
	ErrExamTokenMismatch ErrCode = "EXAM_TOKEN_MISMATCH"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden      ErrCode = "FORBIDDEN"
	ErrStaffOnly      ErrCode = "STAFF_ACCESS_ONLY"
	ErrNotInCourse    ErrCode = "NOT_IN_COURSE"
	ErrProfileMissing ErrCode = "PROFILE_NOT_FOUND"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation        ErrCode = "VALIDATION_ERROR"
	ErrInvalidID         ErrCode = "INVALID_ID"
	ErrInvalidPayload    ErrCode = "INVALID_PAYLOAD"
	ErrUnknownCourse     ErrCode = "UNKNOWN_COURSE"
	ErrExamEndInPast     ErrCode = "EXAM_END_IN_PAST"
	ErrPassingScore      ErrCode = "PASSING_SCORE_UNREACHABLE"
	ErrInvalidAnswerPair ErrCode = "INVALID_ANSWER"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrExamNotFound    ErrCode = "EXAM_NOT_FOUND"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"
	ErrNoSessions      ErrCode = "NO_SESSIONS"

	// ─── Exam lifecycle ────────────────────────────────────────────────
	ErrExamNotStarted ErrCode = "EXAM_NOT_STARTED"
	ErrExamEnded      ErrCode = "EXAM_ENDED"
	ErrExamCanceled   ErrCode = "EXAM_CANCELED"
	ErrExamFinished   ErrCode = "EXAM_FINISHED"

	// ─── Finisher ──────────────────────────────────────────────────────
	ErrFinisherTicketInvalid ErrCode = "FINISHER_TICKET_INVALID"
	ErrFinisherTicketExpired ErrCode = "FINISHER_TICKET_EXPIRED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."
	case ErrExamTokenRequired:
		return "Exam token is required."
	case ErrExamTokenInvalid:
		return "Exam token is invalid or has expired."
	case ErrExamTokenMismatch:
		return "Exam token does not belong to this user or exam."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStaffOnly:
		return "This resource is restricted to teachers and administrators."
	case ErrNotInCourse:
		return "You are not enrolled in this course."
	case ErrProfileMissing:
		return "User profile not found."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrUnknownCourse:
		return "Course does not exist."
	case ErrExamEndInPast:
		return "The exam would end in the past."
	case ErrPassingScore:
		return "Minimum passing score exceeds the total points of the exam."
	case ErrInvalidAnswerPair:
		return "Question or option does not belong to this exam."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrExamNotFound:
		return "Exam not found."
	case ErrSessionNotFound:
		return "You have not joined this exam."
	case ErrNoSessions:
		return "No one has joined this exam."

	// ─── Exam lifecycle ────────────────────────────────────────────────
	case ErrExamNotStarted:
		return "The exam has not started yet."
	case ErrExamEnded:
		return "The exam has already ended."
	case ErrExamCanceled:
		return "The exam has been canceled."
	case ErrExamFinished:
		return "The exam has been finished and graded."

	// ─── Finisher ──────────────────────────────────────────────────────
	case ErrFinisherTicketInvalid:
		return "Finisher ticket is invalid."
	case ErrFinisherTicketExpired:
		return "Finisher ticket has expired."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
