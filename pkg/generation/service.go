package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/menta2k/arch-designer/pkg/client"
	"github.com/menta2k/arch-designer/pkg/types"
)

// PromptPrefix is prepended to the user's description
const PromptPrefix = "Based on the following architectural drawings and references, "

// User-visible messages
const (
	ValidationMessage  = "Please upload at least one image and enter a detailed description."
	NoImageMessage     = "Could not create an image. The AI response contained no image data."
	ErrorMessagePrefix = "An error occurred: "
)

var (
	// ErrBusy is returned when a request is already in flight
	ErrBusy = errors.New("a generation request is already in progress")
	// ErrInvalidInput is reported when there are no images or no prompt
	ErrInvalidInput = errors.New(ValidationMessage)
	// ErrNoImage is reported when the model answered without image data
	ErrNoImage = errors.New(NoImageMessage)
)

// Outcome classifies a finished generation attempt
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeInvalid
	OutcomeNoImage
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeNoImage:
		return "no-image"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is the outcome of one Generate call. Message is empty on success.
type Result struct {
	Outcome Outcome
	Image   *types.GeneratedImage
	Message string
	Err     error
}

// Service submits generation requests one at a time
type Service struct {
	generator client.ImageGenerator
	limiter   *rate.Limiter
	logger    *slog.Logger
	inFlight  atomic.Bool
}

// Option configures a Service
type Option func(*Service)

// WithMinInterval spaces consecutive requests at least interval apart
func WithMinInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// WithLogger sets the service logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new generation service
func NewService(generator client.ImageGenerator, opts ...Option) *Service {
	s := &Service{generator: generator, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildPrompt returns the instruction text sent with the images
func BuildPrompt(prompt string) string {
	return PromptPrefix + prompt
}

// Validate checks that there is at least one image and a prompt
func Validate(images []types.EditedImage, prompt string) error {
	if len(images) == 0 || prompt == "" {
		return ErrInvalidInput
	}
	return nil
}

// Busy reports whether a request is in flight
func (s *Service) Busy() bool {
	return s.inFlight.Load()
}

// Generate validates the input and sends a single request. ErrBusy is the
// only error returned; every other outcome is reported in the Result.
func (s *Service) Generate(ctx context.Context, images []types.EditedImage, prompt string) (Result, error) {
	if err := Validate(images, prompt); err != nil {
		return Result{Outcome: OutcomeInvalid, Message: ValidationMessage, Err: err}, nil
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer s.inFlight.Store(false)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return s.failed(err), nil
		}
	}

	start := time.Now()
	img, err := s.generator.Generate(ctx, images, BuildPrompt(prompt))
	if err != nil {
		return s.failed(err), nil
	}
	if img == nil || len(img.Data) == 0 {
		s.logger.Warn("Response contained no image data", "images", len(images), "duration", time.Since(start))
		return Result{Outcome: OutcomeNoImage, Message: NoImageMessage, Err: ErrNoImage}, nil
	}

	s.logger.Info("Generated image", "images", len(images), "mime", img.MimeType, "bytes", len(img.Data), "duration", time.Since(start))
	return Result{Outcome: OutcomeSuccess, Image: img}, nil
}

func (s *Service) failed(err error) Result {
	s.logger.Error("Error generating image", "error", err)
	return Result{Outcome: OutcomeFailed, Message: ErrorMessagePrefix + err.Error(), Err: err}
}
