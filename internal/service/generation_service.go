package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/digkill/productgenius/internal/gemini"
	"github.com/digkill/productgenius/internal/metrics"
	"github.com/digkill/productgenius/internal/models"
	"github.com/digkill/productgenius/internal/repository"
)

// ImageGenerator is the external image model.
type ImageGenerator interface {
	Generate(ctx context.Context, req gemini.Request) (*gemini.Image, error)
}

// Archiver stores a result image and returns where it can be fetched.
type Archiver interface {
	Archive(ctx context.Context, userID, resultID string, data []byte, contentType string) (string, error)
}

type GenerationAuditLog interface {
	Log(ctx context.Context, entry models.GenerationLog) error
}

// ResultLog receives successful results, newest first.
type ResultLog interface {
	Prepend(result models.GenerationResult)
}

type GenerationRequest struct {
	SourceImage  []byte
	BusinessType models.BusinessType
	SceneStyle   models.SceneStyle
	Quality      models.Quality
	Prompt       string
}

type GenerationService struct {
	log       *slog.Logger
	users     repository.UserStore
	generator ImageGenerator
	audit     GenerationAuditLog
	archive   Archiver
	metrics   *metrics.Collector
	timeout   time.Duration
	inflight  *keyedGuard
	now       func() time.Time
}

// NewGenerationService wires the pipeline. audit, archive and collector may be nil.
func NewGenerationService(log *slog.Logger, users repository.UserStore, generator ImageGenerator, audit GenerationAuditLog, archive Archiver, collector *metrics.Collector, timeout time.Duration) *GenerationService {
	if log == nil {
		log = slog.Default()
	}
	return &GenerationService{
		log:       log,
		users:     users,
		generator: generator,
		audit:     audit,
		archive:   archive,
		metrics:   collector,
		timeout:   timeout,
		inflight:  newKeyedGuard(),
		now:       time.Now,
	}
}

// Generate runs one generation request for the principal. Credit is only
// deducted after the generator returned an image; on any failure the
// entitlement and results are left untouched.
func (s *GenerationService) Generate(ctx context.Context, principal models.Principal, results ResultLog, req GenerationRequest) (*models.GenerationResult, error) {
	result, err := s.generate(ctx, principal, results, req)
	s.metrics.RecordGeneration(outcomeLabel(err))
	return result, err
}

func (s *GenerationService) generate(ctx context.Context, principal models.Principal, results ResultLog, req GenerationRequest) (*models.GenerationResult, error) {
	mime, err := validateGeneration(&req)
	if err != nil {
		return nil, err
	}

	var userID, guardKey string
	switch p := principal.(type) {
	case models.AdminPrincipal:
		guardKey = "admin:" + strings.ToLower(p.Email)
	case models.BusinessPrincipal:
		userID = p.User.ID
		guardKey = "user:" + userID
	default:
		return nil, fmt.Errorf("%w: unknown principal", ErrInvalidInput)
	}

	if !s.inflight.acquire(guardKey) {
		return nil, ErrGenerationInProgress
	}
	defer s.inflight.release(guardKey)

	if userID != "" {
		current, err := getUser(ctx, s.users, userID)
		if err != nil {
			return nil, err
		}
		if err := checkEligibility(current, s.now()); err != nil {
			return nil, err
		}
	}

	image, err := s.callGenerator(ctx, mime, req)
	if err != nil {
		s.log.Warn("generation failed", "user_id", userID, "err", err)
		return nil, err
	}

	if userID != "" {
		updated, err := updateUser(ctx, s.users, userID, func(u *models.User) error {
			if u.Credits > 0 {
				u.Credits--
			} else {
				s.log.Warn("credits exhausted while generating, clamping at zero", "user_id", u.ID)
			}
			return nil
		})
		if err != nil {
			s.log.Warn("deduct credit failed", "user_id", userID, "err", err)
			return nil, err
		}
		s.log.Info("credit deducted", "user_id", userID, "credits", updated.Credits)
	}

	result := models.GenerationResult{
		ID:           uuid.NewString(),
		UserID:       userID,
		SourceImage:  req.SourceImage,
		ResultImage:  image.Bytes,
		ResultMime:   image.Mime,
		Prompt:       promptLabel(req.BusinessType, req.SceneStyle, req.Prompt),
		BusinessType: req.BusinessType,
		SceneStyle:   req.SceneStyle,
		Quality:      req.Quality,
		CreatedAt:    s.now().UTC(),
	}

	if s.archive != nil {
		url, err := s.archive.Archive(ctx, userID, result.ID, result.ResultImage, result.ResultMime)
		if err != nil {
			s.log.Error("failed to archive result", "result_id", result.ID, "err", err)
		} else {
			result.ResultURL = url
		}
	}

	if s.audit != nil && userID != "" {
		entry := models.GenerationLog{
			UserID:       userID,
			ResultID:     result.ID,
			BusinessType: result.BusinessType,
			SceneStyle:   result.SceneStyle,
			Quality:      result.Quality,
			Prompt:       result.Prompt,
			CreatedAt:    result.CreatedAt,
		}
		if err := s.audit.Log(ctx, entry); err != nil {
			s.log.Error("failed to log generation", "result_id", result.ID, "err", err)
		}
	}

	if results != nil {
		results.Prepend(result)
	}
	return &result, nil
}

func (s *GenerationService) callGenerator(ctx context.Context, mime string, req GenerationRequest) (*gemini.Image, error) {
	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := s.now()
	image, err := s.generator.Generate(callCtx, gemini.Request{
		Image:       req.SourceImage,
		MimeType:    mime,
		Instruction: BuildInstruction(req.BusinessType, req.SceneStyle, req.Prompt),
		AspectRatio: "1:1",
		ImageSize:   string(req.Quality),
	})
	s.metrics.ObserveGenerator(string(req.Quality), s.now().Sub(started))
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, err
		}
		if callCtx.Err() != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, classifyGeneratorError(err)
	}
	if image == nil || len(image.Bytes) == 0 {
		return nil, ErrNoImageReturned
	}
	return image, nil
}

func classifyGeneratorError(err error) error {
	var apiErr *gemini.APIError
	switch {
	case errors.Is(err, gemini.ErrUnauthorized):
		return fmt.Errorf("%w: %v", ErrGeneratorAuth, err)
	case errors.Is(err, gemini.ErrNoImageReturned):
		return ErrNoImageReturned
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.As(err, &apiErr):
		return fmt.Errorf("%w: %s", ErrGeneratorTransport, apiErr.Message)
	default:
		return fmt.Errorf("%w: %v", ErrGeneratorTransport, err)
	}
}

// checkEligibility applies the gating rules in order: credits first, then expiry.
// An expired record with no credits left reports ErrInsufficientCredits.
func checkEligibility(u *models.User, now time.Time) error {
	if u.Credits <= 0 {
		return ErrInsufficientCredits
	}
	if u.Expired(now) {
		return ErrPlanExpired
	}
	return nil
}

func validateGeneration(req *GenerationRequest) (string, error) {
	if len(req.SourceImage) == 0 {
		return "", fmt.Errorf("%w: product image is required", ErrInvalidInput)
	}
	if !validBusiness(req.BusinessType) {
		return "", fmt.Errorf("%w: unknown business type %q", ErrInvalidInput, req.BusinessType)
	}
	if !validStyle(req.SceneStyle) {
		return "", fmt.Errorf("%w: unknown scene style %q", ErrInvalidInput, req.SceneStyle)
	}
	if req.Quality == "" {
		req.Quality = models.Quality1K
	}
	if !validQuality(req.Quality) {
		return "", fmt.Errorf("%w: unknown quality %q", ErrInvalidInput, req.Quality)
	}
	req.Prompt = strings.TrimSpace(req.Prompt)

	mime := http.DetectContentType(req.SourceImage)
	switch mime {
	case "image/jpeg", "image/png", "image/webp":
		return mime, nil
	default:
		return "", fmt.Errorf("%w: unsupported image type %s", ErrInvalidInput, mime)
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, ErrPlanExpired):
		return "plan_expired"
	case errors.Is(err, ErrGenerationInProgress):
		return "in_progress"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrGeneratorAuth):
		return "generator_auth"
	case errors.Is(err, ErrGeneratorTransport):
		return "generator_transport"
	case errors.Is(err, ErrNoImageReturned):
		return "no_image"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	default:
		return "error"
	}
}
