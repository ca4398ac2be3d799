package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/arch-designer/pkg/types"
)

type fakeGenerator struct {
	calls  int
	images []types.EditedImage
	text   string

	img     *types.GeneratedImage
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeGenerator) Generate(ctx context.Context, images []types.EditedImage, text string) (*types.GeneratedImage, error) {
	f.calls++
	f.images = images
	f.text = text
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	return f.img, f.err
}

func newTestService(gen *fakeGenerator, opts ...Option) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(gen, append([]Option{WithLogger(logger)}, opts...)...)
}

var oneImage = []types.EditedImage{{Data: "aW1n", MimeType: types.MimePNG}}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t,
		"Based on the following architectural drawings and references, a two-storey villa",
		BuildPrompt("a two-storey villa"))
}

func TestGenerateValidation(t *testing.T) {
	tests := []struct {
		name   string
		images []types.EditedImage
		prompt string
	}{
		{"nothing", nil, ""},
		{"no images", nil, "a house"},
		{"no prompt", oneImage, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			res, err := newTestService(gen).Generate(context.Background(), tt.images, tt.prompt)
			require.NoError(t, err)
			assert.Equal(t, OutcomeInvalid, res.Outcome)
			assert.Equal(t, ValidationMessage, res.Message)
			assert.ErrorIs(t, res.Err, ErrInvalidInput)
			assert.Nil(t, res.Image)
			assert.Zero(t, gen.calls, "no request may be sent")
		})
	}
}

func TestGenerateSuccess(t *testing.T) {
	gen := &fakeGenerator{img: &types.GeneratedImage{Data: []byte("png"), MimeType: types.MimePNG}}
	svc := newTestService(gen)

	images := []types.EditedImage{
		{Data: "MQ==", MimeType: types.MimePNG},
		{Data: "Mg==", MimeType: types.MimeJPEG},
	}
	res, err := svc.Generate(context.Background(), images, "modern facade")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Empty(t, res.Message)
	assert.Equal(t, gen.img, res.Image)
	assert.Equal(t, images, gen.images)
	assert.Equal(t, PromptPrefix+"modern facade", gen.text)
	assert.False(t, svc.Busy())
}

func TestGenerateNoImage(t *testing.T) {
	for _, img := range []*types.GeneratedImage{nil, {MimeType: types.MimePNG}} {
		svc := newTestService(&fakeGenerator{img: img})
		res, err := svc.Generate(context.Background(), oneImage, "x")
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoImage, res.Outcome)
		assert.Equal(t, NoImageMessage, res.Message)
		assert.Nil(t, res.Image)
		assert.False(t, svc.Busy())
	}
}

func TestGenerateFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("Gemini API Error: quota exceeded")}
	svc := newTestService(gen)

	res, err := svc.Generate(context.Background(), oneImage, "x")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "An error occurred: Gemini API Error: quota exceeded", res.Message)
	assert.Equal(t, gen.err, res.Err)
	assert.Equal(t, 1, gen.calls, "no retry")
	assert.False(t, svc.Busy())
}

func TestGenerateBusy(t *testing.T) {
	gen := &fakeGenerator{
		img:     &types.GeneratedImage{Data: []byte("png"), MimeType: types.MimePNG},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := newTestService(gen)

	done := make(chan Result)
	go func() {
		res, _ := svc.Generate(context.Background(), oneImage, "first")
		done <- res
	}()
	<-gen.started

	assert.True(t, svc.Busy())
	_, err := svc.Generate(context.Background(), oneImage, "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(gen.release)
	res := <-done
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.False(t, svc.Busy())
	assert.Equal(t, 1, gen.calls)
}

func TestGenerateRateLimitHonoursContext(t *testing.T) {
	gen := &fakeGenerator{img: &types.GeneratedImage{Data: []byte("png"), MimeType: types.MimePNG}}
	svc := newTestService(gen, WithMinInterval(time.Hour))

	res, err := svc.Generate(context.Background(), oneImage, "x")
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, res.Outcome)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res, err = svc.Generate(ctx, oneImage, "x")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, gen.calls)
	assert.False(t, svc.Busy())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "invalid", OutcomeInvalid.String())
	assert.Equal(t, "no-image", OutcomeNoImage.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}
