// Package session implements the upload/edit lifecycle of a single image slot.
//
// A slot moves between three states:
//
//	Empty ──SelectFile──▶ Editing ──Confirm──▶ HasImage
//	  ▲                    │  ▲                  │
//	  └──────Cancel────────┘  └────SelectFile────┘
//	  ▲                                          │
//	  └──────────────────Remove──────────────────┘
//
// Cancel returns to whichever state preceded the edit.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/menta2k/arch-designer/pkg/cropper"
	"github.com/menta2k/arch-designer/pkg/processing"
	"github.com/menta2k/arch-designer/pkg/types"
)

// SuccessDuration is how long the confirmation signal stays visible
const SuccessDuration = 2 * time.Second

var (
	// ErrInvalidTransition is returned when an action is not allowed in the current state
	ErrInvalidTransition = errors.New("action not allowed in current state")
	// ErrCropRequired is returned when confirming without a crop that has area
	ErrCropRequired = errors.New("a crop region with non-zero area is required")
	// ErrTransformFailed is returned when the engine could not produce an image
	ErrTransformFailed = errors.New("image transform failed")
)

// State is the lifecycle state of a slot
type State int

const (
	StateEmpty State = iota
	StateEditing
	StateHasImage
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateEditing:
		return "editing"
	case StateHasImage:
		return "has-image"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Renderer turns a crop selection into an edited image
type Renderer interface {
	Render(src *types.SourceImage, crop types.CropRegion, t types.Transform) (types.EditedImage, error)
}

// Decoder turns uploaded bytes into a source image
type Decoder interface {
	NewSourceImage(name string, data []byte, mimeType string) (*types.SourceImage, error)
}

// Slot owns the state of one upload role
type Slot struct {
	mu sync.Mutex

	role     types.Role
	renderer Renderer
	decoder  Decoder
	logger   *slog.Logger
	now      func() time.Time

	state    State
	previous State

	source    *types.SourceImage
	crop      *types.CropRegion
	transform types.Transform

	edited      types.EditedImage
	confirmedAt time.Time
}

// Option configures a Slot
type Option func(*Slot)

// WithLogger sets the logger used for transform failures
func WithLogger(l *slog.Logger) Option {
	return func(s *Slot) { s.logger = l }
}

// WithClock overrides the clock used for the success signal
func WithClock(now func() time.Time) Option {
	return func(s *Slot) { s.now = now }
}

// WithDecoder overrides how uploaded bytes are decoded
func WithDecoder(d Decoder) Option {
	return func(s *Slot) { s.decoder = d }
}

// NewSlot creates an empty slot for a role
func NewSlot(role types.Role, renderer Renderer, opts ...Option) *Slot {
	s := &Slot{
		role:      role,
		renderer:  renderer,
		decoder:   processing.NewProcessor(),
		logger:    slog.Default(),
		now:       time.Now,
		transform: types.DefaultTransform(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Role returns the slot's role
func (s *Slot) Role() types.Role {
	return s.role
}

// State returns the current lifecycle state
func (s *Slot) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SelectFile loads a file for editing. Allowed from Empty and HasImage.
func (s *Slot) SelectFile(name string, data []byte, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEditing {
		return fmt.Errorf("select file while %s: %w", s.state, ErrInvalidTransition)
	}

	src, err := s.decoder.NewSourceImage(name, data, mimeType)
	if err != nil {
		return fmt.Errorf("loading %s: %w", name, err)
	}

	s.previous = s.state
	s.state = StateEditing
	s.source = src
	s.crop = nil
	s.transform = types.DefaultTransform()
	return nil
}

// SetDisplaySize records the size the source is shown at in the editor
func (s *Slot) SetDisplaySize(size types.Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditing {
		return fmt.Errorf("set display size while %s: %w", s.state, ErrInvalidTransition)
	}
	if !size.Valid() {
		return fmt.Errorf("invalid display size %vx%v", size.Width, size.Height)
	}
	s.source.Display = size
	return nil
}

// UpdateCrop replaces the crop selection
func (s *Slot) UpdateCrop(region types.CropRegion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditing {
		return fmt.Errorf("update crop while %s: %w", s.state, ErrInvalidTransition)
	}
	s.crop = &region
	return nil
}

// UpdateTransform replaces the zoom and rotation
func (s *Slot) UpdateTransform(t types.Transform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditing {
		return fmt.Errorf("update transform while %s: %w", s.state, ErrInvalidTransition)
	}
	s.transform = t
	return nil
}

// Cancel abandons the edit and returns to the state it started from
func (s *Slot) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditing {
		return fmt.Errorf("cancel while %s: %w", s.state, ErrInvalidTransition)
	}
	s.closeEdit()
	return nil
}

// CanConfirm reports whether Confirm would invoke the engine
func (s *Slot) CanConfirm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateEditing && s.crop != nil && s.crop.HasArea()
}

// Confirm renders the crop and stores it as the slot's image. Without a
// crop that has area it is a no-op. A rendering failure closes the edit
// and leaves the slot as it was before the edit started.
func (s *Slot) Confirm() (types.EditedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditing {
		return types.EditedImage{}, fmt.Errorf("confirm while %s: %w", s.state, ErrInvalidTransition)
	}
	if s.crop == nil || !s.crop.HasArea() {
		return types.EditedImage{}, ErrCropRequired
	}

	edited, err := s.renderer.Render(s.source, *s.crop, s.transform.Clamp())
	if err != nil {
		s.logger.Error("Error cropping image", "role", s.role, "file", s.source.Name, "error", err)
		s.closeEdit()
		return types.EditedImage{}, fmt.Errorf("%w: %w", ErrTransformFailed, err)
	}

	s.edited = edited
	s.closeEdit()
	s.state = StateHasImage
	s.confirmedAt = s.now()
	return edited, nil
}

// Remove clears the confirmed image
func (s *Slot) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateHasImage {
		return fmt.Errorf("remove while %s: %w", s.state, ErrInvalidTransition)
	}
	s.edited = types.EditedImage{}
	s.confirmedAt = time.Time{}
	s.state = StateEmpty
	return nil
}

// Reset discards everything and returns to Empty
func (s *Slot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.source = nil
	s.crop = nil
	s.transform = types.DefaultTransform()
	s.edited = types.EditedImage{}
	s.confirmedAt = time.Time{}
	s.state = StateEmpty
	s.previous = StateEmpty
}

// Edited returns the confirmed image, if any
func (s *Slot) Edited() (types.EditedImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edited, !s.edited.IsZero()
}

// Source returns a copy of the image being edited, if any. The decoded
// image is shared and must not be modified.
func (s *Slot) Source() (*types.SourceImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return nil, false
	}
	src := *s.source
	return &src, true
}

// SuggestCrop replaces the crop selection with a proposal of the given
// aspect ratio in the current display space
func (s *Slot) SuggestCrop(ratioW, ratioH int) (types.CropRegion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEditing {
		return types.CropRegion{}, fmt.Errorf("suggest crop while %s: %w", s.state, ErrInvalidTransition)
	}
	region, err := cropper.SuggestCrop(s.source, ratioW, ratioH)
	if err != nil {
		return types.CropRegion{}, err
	}
	s.crop = &region
	return region, nil
}

// SuccessVisible reports whether the confirmation signal should be shown
func (s *Slot) SuccessVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmedAt.IsZero() {
		return false
	}
	return s.now().Sub(s.confirmedAt) < SuccessDuration
}

// Snapshot is a read-only view of a slot for presentation
type Snapshot struct {
	Role        types.Role        `json:"role"`
	State       State             `json:"state"`
	Crop        *types.CropRegion `json:"crop,omitempty"`
	Transform   *types.Transform  `json:"transform,omitempty"`
	Display     *types.Size       `json:"display,omitempty"`
	Natural     *types.Size       `json:"natural,omitempty"`
	HasImage    bool              `json:"hasImage"`
	MimeType    string            `json:"mimeType,omitempty"`
	CanConfirm  bool              `json:"canConfirm"`
	ShowSuccess bool              `json:"showSuccess"`
}

// Snapshot returns the slot's presentation state
func (s *Slot) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Role:     s.role,
		State:    s.state,
		HasImage: !s.edited.IsZero(),
		MimeType: s.edited.MimeType,
	}
	if s.state == StateEditing {
		t := s.transform
		snap.Transform = &t
		display, natural := s.source.DisplaySize(), s.source.NaturalSize()
		snap.Display = &display
		snap.Natural = &natural
		if s.crop != nil {
			c := *s.crop
			snap.Crop = &c
			snap.CanConfirm = c.HasArea()
		}
	}
	snap.ShowSuccess = !s.confirmedAt.IsZero() && s.now().Sub(s.confirmedAt) < SuccessDuration
	return snap
}

// closeEdit must be called with mu held
func (s *Slot) closeEdit() {
	s.source = nil
	s.crop = nil
	s.transform = types.DefaultTransform()
	s.state = s.previous
}
