// Package archdesigner turns architectural drawings into AI-rendered designs.
//
// A Workspace holds three upload slots (floor plan, elevation and style
// reference), a free-text prompt and the last generated image. Each slot
// is cropped, rotated and scaled in its own editing session before the
// confirmed crops are sent to an image generation backend together with
// the prompt.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"os"
//
//		archdesigner "github.com/menta2k/arch-designer"
//		"github.com/menta2k/arch-designer/pkg/gemini"
//		"github.com/menta2k/arch-designer/pkg/types"
//	)
//
//	func main() {
//		ctx := context.Background()
//		backend, err := gemini.NewClient(ctx, gemini.Config{APIKey: os.Getenv("GEMINI_API_KEY")})
//		if err != nil {
//			log.Fatal(err)
//		}
//		ws := archdesigner.New(backend)
//
//		data, _ := os.ReadFile("plan.png")
//		slot := ws.Slot(types.RoleFloorPlan)
//		if err := slot.SelectFile("plan.png", data, types.MimePNG); err != nil {
//			log.Fatal(err)
//		}
//		src, _ := slot.Source()
//		natural := src.NaturalSize()
//		slot.UpdateCrop(types.CropRegion{Width: natural.Width, Height: natural.Height})
//		if _, err := slot.Confirm(); err != nil {
//			log.Fatal(err)
//		}
//
//		ws.SetPrompt("a Scandinavian interior with natural light")
//		res, err := ws.Generate(ctx)
//		if err != nil {
//			log.Fatal(err)
//		}
//		if res.Image != nil {
//			os.WriteFile(ws.DownloadFilename(), res.Image.Data, 0644)
//		}
//	}
//
// The package consists of these components:
//
// 1. Processing (pkg/processing): decoding, encoding and data URIs
// 2. Cropper (pkg/cropper): the crop and affine transform engine
// 3. Session (pkg/session): the per-slot upload and edit lifecycle
// 4. Generation (pkg/generation, pkg/gemini): request building and the Gemini backend
package archdesigner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/menta2k/arch-designer/pkg/client"
	"github.com/menta2k/arch-designer/pkg/cropper"
	"github.com/menta2k/arch-designer/pkg/generation"
	"github.com/menta2k/arch-designer/pkg/processing"
	"github.com/menta2k/arch-designer/pkg/session"
	"github.com/menta2k/arch-designer/pkg/types"
)

// Version of the arch-designer library
const Version = "1.0.0"

// Workspace is one user's set of slots, prompt and generation result
type Workspace struct {
	mu sync.Mutex

	slots   []*session.Slot
	service *generation.Service
	logger  *slog.Logger
	now     func() time.Time

	prompt    string
	generated *types.GeneratedImage
	message   string
	loading   bool
}

type options struct {
	logger      *slog.Logger
	now         func() time.Time
	renderer    session.Renderer
	minInterval time.Duration
}

// Option configures a Workspace
type Option func(*options)

// WithLogger sets the logger shared by the slots and the generation service
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the clock used for success signals and filenames
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithRenderer replaces the crop engine
func WithRenderer(r session.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithMinInterval spaces generation requests at least d apart
func WithMinInterval(d time.Duration) Option {
	return func(o *options) { o.minInterval = d }
}

// New creates a Workspace that sends requests to generator
func New(generator client.ImageGenerator, opts ...Option) *Workspace {
	o := options{
		logger:   slog.Default(),
		now:      time.Now,
		renderer: cropper.New(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	w := &Workspace{
		service: generation.NewService(generator,
			generation.WithLogger(o.logger),
			generation.WithMinInterval(o.minInterval),
		),
		logger: o.logger,
		now:    o.now,
	}
	for _, role := range types.Roles() {
		w.slots = append(w.slots, session.NewSlot(role, o.renderer,
			session.WithLogger(o.logger.With("slot", string(role))),
			session.WithClock(o.now),
		))
	}
	return w
}

// Slot returns the slot for a role, or nil for an unknown role
func (w *Workspace) Slot(role types.Role) *session.Slot {
	for _, s := range w.slots {
		if s.Role() == role {
			return s
		}
	}
	return nil
}

// SetPrompt replaces the prompt text
func (w *Workspace) SetPrompt(prompt string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prompt = prompt
}

// Prompt returns the prompt text
func (w *Workspace) Prompt() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.prompt
}

// Images returns the confirmed images in slot order
func (w *Workspace) Images() []types.EditedImage {
	var images []types.EditedImage
	for _, s := range w.slots {
		if img, ok := s.Edited(); ok {
			images = append(images, img)
		}
	}
	return images
}

// CanGenerate reports whether the generate action should be enabled
func (w *Workspace) CanGenerate() bool {
	images := w.Images()
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.loading && generation.Validate(images, w.prompt) == nil
}

// IsInputEmpty reports whether there is nothing to clear
func (w *Workspace) IsInputEmpty() bool {
	images := w.Images()
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(images) == 0 && w.prompt == ""
}

// Generate submits the confirmed images and the prompt. Validation, no
// image and API failures are reported in the Result and in the workspace
// message; the returned error is generation.ErrBusy when a request is
// already in flight.
func (w *Workspace) Generate(ctx context.Context) (generation.Result, error) {
	images := w.Images()

	w.mu.Lock()
	if w.loading {
		w.mu.Unlock()
		return generation.Result{}, generation.ErrBusy
	}
	prompt := w.prompt
	if err := generation.Validate(images, prompt); err != nil {
		w.message = generation.ValidationMessage
		w.mu.Unlock()
		return generation.Result{Outcome: generation.OutcomeInvalid, Message: generation.ValidationMessage, Err: err}, nil
	}
	w.loading = true
	w.message = ""
	w.generated = nil
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.loading = false
		w.mu.Unlock()
	}()

	res, err := w.service.Generate(ctx, images, prompt)
	if err != nil {
		return res, err
	}

	w.mu.Lock()
	if res.Outcome == generation.OutcomeSuccess {
		w.generated = res.Image
	} else {
		w.message = res.Message
	}
	w.mu.Unlock()
	return res, nil
}

// Loading reports whether a generation request is in flight
func (w *Workspace) Loading() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loading
}

// Message returns the user-visible error message, if any
func (w *Workspace) Message() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.message
}

// Generated returns the last generated image
func (w *Workspace) Generated() (*types.GeneratedImage, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.generated, w.generated != nil
}

// ClearAll empties every slot, the prompt and the message. The last
// generated image is kept.
func (w *Workspace) ClearAll() {
	for _, s := range w.slots {
		s.Reset()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prompt = ""
	w.message = ""
	w.logger.Info("Cleared workspace inputs")
}

// DownloadFilename returns the filename for saving the generated image
func (w *Workspace) DownloadFilename() string {
	return processing.DownloadFilename(w.now())
}

// Snapshot is a read-only view of the workspace for presentation
type Snapshot struct {
	Slots       []session.Snapshot `json:"slots"`
	Prompt      string             `json:"prompt"`
	HasResult   bool               `json:"hasResult"`
	ResultType  string             `json:"resultType,omitempty"`
	Message     string             `json:"message,omitempty"`
	Loading     bool               `json:"loading"`
	CanGenerate bool               `json:"canGenerate"`
	InputEmpty  bool               `json:"inputEmpty"`
}

// Snapshot returns the workspace's presentation state
func (w *Workspace) Snapshot() Snapshot {
	snap := Snapshot{
		CanGenerate: w.CanGenerate(),
		InputEmpty:  w.IsInputEmpty(),
	}
	for _, s := range w.slots {
		snap.Slots = append(snap.Slots, s.Snapshot())
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	snap.Prompt = w.prompt
	snap.Message = w.message
	snap.Loading = w.loading
	if w.generated != nil {
		snap.HasResult = true
		snap.ResultType = w.generated.MimeType
	}
	return snap
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
