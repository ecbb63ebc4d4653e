package service

import "errors"

var (
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrPlanExpired          = errors.New("plan expired")
	ErrNoImageReturned      = errors.New("no image returned by the generator")
	ErrGeneratorAuth        = errors.New("generator authentication failed")
	ErrGeneratorTransport   = errors.New("generator request failed")
	ErrTimeout              = errors.New("generation timed out")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAlreadyPending       = errors.New("purchase request already pending")
	ErrNotPending           = errors.New("no pending purchase request")
	ErrGenerationInProgress = errors.New("a generation is already in progress")
	ErrInvalidPackage       = errors.New("package cannot be purchased")
	ErrInvalidInput         = errors.New("invalid input")
)
