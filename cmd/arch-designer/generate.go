package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	archdesigner "github.com/menta2k/arch-designer"
	"github.com/menta2k/arch-designer/internal/utils"
	"github.com/menta2k/arch-designer/pkg/client"
	"github.com/menta2k/arch-designer/pkg/cropper"
	"github.com/menta2k/arch-designer/pkg/gemini"
	"github.com/menta2k/arch-designer/pkg/generation"
	"github.com/menta2k/arch-designer/pkg/processing"
	"github.com/menta2k/arch-designer/pkg/types"
)

type generateOptions struct {
	inputs    map[types.Role]*string
	autoCrop  string
	prompt    string
	outputDir string
}

var genOpts = generateOptions{inputs: map[types.Role]*string{}}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render a design from up to three drawings and a description",
	Example: `  arch-designer generate --floor-plan plan.png --reference ref.jpg \
    --prompt "a Scandinavian living room with natural light, wood and white"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd.Context(), genOpts)
	},
}

func init() {
	for _, role := range types.Roles() {
		genOpts.inputs[role] = generateCmd.Flags().String(string(role), "", fmt.Sprintf("%s image path or URL", role.Description()))
	}
	generateCmd.Flags().StringVar(&genOpts.autoCrop, "auto-crop", "", "crop each drawing to a suggested W:H region instead of using it whole")
	generateCmd.Flags().StringVarP(&genOpts.prompt, "prompt", "p", "", "detailed description of the design to render")
	generateCmd.Flags().StringVarP(&genOpts.outputDir, "output-dir", "o", ".", "directory for the generated image")
	rootCmd.AddCommand(generateCmd)
}

type loadedFile struct {
	role     types.Role
	name     string
	data     []byte
	mimeType string
}

// loadInputs reads every given file or URL concurrently
func loadInputs(inputs map[types.Role]*string) ([]loadedFile, error) {
	proc := processing.NewProcessor()
	roles := types.Roles()
	files := make([]loadedFile, len(roles))

	var g errgroup.Group
	for i, role := range roles {
		source := ""
		if p := inputs[role]; p != nil {
			source = *p
		}
		if source == "" {
			continue
		}
		g.Go(func() error {
			data, mimeType, err := proc.LoadSmart(source)
			if err != nil {
				return fmt.Errorf("%s: %w", role, err)
			}
			if !processing.IsAccepted(mimeType) {
				return fmt.Errorf("%s: %s: %w", role, source, processing.ErrUnsupportedFormat)
			}
			files[i] = loadedFile{role: role, name: filepath.Base(source), data: data, mimeType: mimeType}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	loaded := files[:0]
	for _, f := range files {
		if f.data != nil {
			loaded = append(loaded, f)
		}
	}
	return loaded, nil
}

func runGenerate(ctx context.Context, o generateOptions) error {
	files, err := loadInputs(o.inputs)
	if err != nil {
		return err
	}

	backend := &lazyGenerator{newBackend: func() (client.ImageGenerator, error) {
		apiKey, err := cfg.ResolveAPIKey()
		if err != nil {
			return nil, err
		}
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:  apiKey,
			Model:   cfg.Generation.Model,
			Timeout: cfg.Timeout(),
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}}

	ws := archdesigner.New(backend,
		archdesigner.WithLogger(logger),
		archdesigner.WithRenderer(cropper.NewWithConfig(cropper.CropConfig{MaxCanvasArea: cfg.Editor.MaxCanvasArea})),
		archdesigner.WithMinInterval(cfg.MinInterval()),
	)

	for _, f := range files {
		if _, err := edit(ws.Slot(f.role), f.name, f.data, f.mimeType, editOptions{autoRatio: o.autoCrop, scale: 1}); err != nil {
			return fmt.Errorf("%s: %w", f.role, err)
		}
		logger.Debug("Prepared drawing", "role", f.role, "file", f.name)
	}
	ws.SetPrompt(o.prompt)

	res, err := withSpinner("Generating design...", func() (generation.Result, error) {
		return ws.Generate(ctx)
	})
	if err != nil {
		return err
	}
	if res.Outcome != generation.OutcomeSuccess {
		return errors.New(res.Message)
	}

	if err := utils.EnsureDir(o.outputDir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(o.outputDir, ws.DownloadFilename())
	if err := os.WriteFile(path, res.Image.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}

	logger.Info("Saved generated design", "path", path, "mime", res.Image.MimeType, "size", utils.FormatFileSize(int64(len(res.Image.Data))))
	fmt.Println(path)
	return nil
}

// lazyGenerator creates the backend on first use, so input validation
// happens before an API key is required
type lazyGenerator struct {
	newBackend func() (client.ImageGenerator, error)

	mu      sync.Mutex
	backend client.ImageGenerator
}

func (l *lazyGenerator) Generate(ctx context.Context, images []types.EditedImage, text string) (*types.GeneratedImage, error) {
	l.mu.Lock()
	if l.backend == nil {
		backend, err := l.newBackend()
		if err != nil {
			l.mu.Unlock()
			return nil, err
		}
		l.backend = backend
	}
	backend := l.backend
	l.mu.Unlock()

	return backend.Generate(ctx, images, text)
}

// withSpinner shows an indeterminate spinner on stderr while fn runs
func withSpinner[T any](description string, fn func() (T, error)) (T, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				bar.Add(1)
			}
		}
	}()

	v, err := fn()
	close(done)
	bar.Finish()
	return v, err
}
