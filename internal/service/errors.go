package service

import "errors"

// Validation errors: the request itself is malformed.
var (
	// ErrInvalidDuration indicates an exam duration of zero or less.
	ErrInvalidDuration = errors.New("exam duration must be greater than zero")
	// ErrInvalidRecordingRef indicates the video reference does not match the accepted URL pattern.
	ErrInvalidRecordingRef = errors.New("invalid video recording reference")
	// ErrInvalidQuestionShape indicates options/answer/test cases do not fit the question's section.
	ErrInvalidQuestionShape = errors.New("question shape does not match its section")
	// ErrUnknownSection indicates an unrecognised section name.
	ErrUnknownSection = errors.New("unknown question section")
)

// Authorization errors: the caller may not act on the resource.
var (
	// ErrExamForbidden indicates the caller does not own the exam.
	ErrExamForbidden = errors.New("not authorized for this exam")
	// ErrUserHasExams blocks deleting a user that still has exam records.
	ErrUserHasExams = errors.New("cannot delete user with existing exams")
)

// State errors: the operation is not allowed in the exam's current state.
var (
	// ErrExamNotInProgress indicates the exam already ended.
	ErrExamNotInProgress = errors.New("exam is not in progress")
)

// Not-found errors.
var (
	// ErrExamNotFound indicates the exam cannot be located.
	ErrExamNotFound = errors.New("exam not found")
	// ErrQuestionNotFound indicates the question cannot be resolved.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrUserNotFound indicates the account cannot be located.
	ErrUserNotFound = errors.New("user not found")
)

// Auth errors.
var (
	// ErrInvalidCredentials indicates email/password did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrAccountBlocked indicates the account is blocked from logging in.
	ErrAccountBlocked = errors.New("account is blocked")
	// ErrSessionActive indicates the account already has an active session.
	ErrSessionActive = errors.New("account already has an active session")
)

// ErrReviewerUnavailable indicates the AI reviewer is not configured.
var ErrReviewerUnavailable = errors.New("reviewer unavailable")
