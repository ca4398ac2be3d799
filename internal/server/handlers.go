package server

import (
	"context"
	"errors"
	"io"

	"github.com/gofiber/fiber/v3"

	"github.com/menta2k/arch-designer/internal/prefs"
	"github.com/menta2k/arch-designer/internal/utils"
	"github.com/menta2k/arch-designer/pkg/processing"
	"github.com/menta2k/arch-designer/pkg/session"
	"github.com/menta2k/arch-designer/pkg/types"
)

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type themeRequest struct {
	Theme string `json:"theme"`
}

type uploadRequest struct {
	Name    string `json:"name"`
	DataURI string `json:"dataUri"`
}

type suggestRequest struct {
	RatioWidth  int `json:"ratioWidth"`
	RatioHeight int `json:"ratioHeight"`
}

func (s *Server) createSession(c fiber.Ctx) error {
	id, ws := s.newWorkspace()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "workspace": ws.Snapshot()})
}

func (s *Server) getSession(c fiber.Ctx) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	return c.JSON(ws.Snapshot())
}

func (s *Server) deleteSession(c fiber.Ctx) error {
	if _, err := s.workspace(c); err != nil {
		return err
	}
	s.sessions.Delete(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) putPrompt(c fiber.Ctx) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	var req promptRequest
	if err := c.Bind().JSON(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	ws.SetPrompt(req.Prompt)
	return c.JSON(ws.Snapshot())
}

func (s *Server) generate(c fiber.Ctx) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GenerateTimeout)
	defer cancel()

	res, err := ws.Generate(ctx)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"outcome":   res.Outcome.String(),
		"message":   res.Message,
		"workspace": ws.Snapshot(),
	})
}

func (s *Server) downloadResult(c fiber.Ctx) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	img, ok := ws.Generated()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no generated image")
	}
	c.Attachment(ws.DownloadFilename())
	c.Set(fiber.HeaderContentType, img.MimeType)
	return c.Send(img.Data)
}

func (s *Server) clearAll(c fiber.Ctx) error {
	ws, err := s.workspace(c)
	if err != nil {
		return err
	}
	ws.ClearAll()
	return c.JSON(ws.Snapshot())
}

func (s *Server) getSlot(c fiber.Ctx) error {
	_, slot, err := s.slot(c)
	if err != nil {
		return err
	}
	return c.JSON(slot.Snapshot())
}

func (s *Server) selectFile(c fiber.Ctx) error {
	_, slot, err := s.slot(c)
	if err != nil {
		return err
	}

	name, data, mimeType, err := readUpload(c)
	if err != nil {
		return err
	}
	if !processing.IsAccepted(mimeType) {
		mimeType = utils.MimeTypeForFile(name)
	}
	if mimeType == "" {
		mimeType = processing.DetectMimeType(data)
	}
	if !processing.IsAccepted(mimeType) {
		return processing.ErrUnsupportedFormat
	}

	if err := slot.SelectFile(utils.SanitizeFilename(name), data, mimeType); err != nil {
		if errors.Is(err, session.ErrInvalidTransition) {
			return err
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(slot.Snapshot())
}

// readUpload accepts either a multipart "file" part or a JSON body
// carrying the file as a data URI
func readUpload(c fiber.Ctx) (name string, data []byte, mimeType string, err error) {
	if c.Is("json") {
		var req uploadRequest
		if err := c.Bind().JSON(&req); err != nil {
			return "", nil, "", fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		mimeType, data, err := processing.ParseDataURI(req.DataURI)
		if err != nil {
			return "", nil, "", fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return req.Name, data, mimeType, nil
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, "", fiber.NewError(fiber.StatusBadRequest, "file required in multipart/form-data or as a JSON data URI")
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, "", err
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	if err != nil {
		return "", nil, "", err
	}
	return fh.Filename, data, fh.Header.Get(fiber.HeaderContentType), nil
}

func (s *Server) getSource(c fiber.Ctx) error {
	_, slot, err := s.slot(c)
	if err != nil {
		return err
	}
	src, ok := slot.Source()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "slot is not being edited")
	}
	c.Set(fiber.HeaderContentType, src.MimeType)
	return c.Send(src.Data)
}

func (s *Server) putDisplay(c fiber.Ctx) error {
	_, slot, err := s.slot(c)
	if err != nil {
		return err
	}
	var size types.Size
	if err := c.Bind().JSON(&size); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if !size.Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "display size must be positive")
	}
	if err := slot.SetDisplaySize(size); err != nil {
		return err
	}
	return c.JSON(slot.Snapshot())
}

func (s *Server) putCrop(c fiber.Ctx) error {
	_, slot, err := s.slot(c)
	if err != nil {
		return err
	}
	var region types.CropRegion
	if err := c.Bind().JSON(&region); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := slot.UpdateCrop(region); err != nil {
		return err
	}
	return c.JSON(slot.Snapshot())
}

func (s *Server) suggestCrop(c fiber.Ctx) error {
	_, slot, err := s.slot(c)
	if err != nil {
		return err
	}
	var req suggestRequest
	if err := c.Bind().JSON(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if _, err := slot.SuggestCrop(req.RatioWidth, req.RatioHeight); err != nil {
		return err
	}
	return c.JSON(slot.Snapshot())
}

func (s *Server) putTransform(c fiber.Ctx) error {
	_, slot, err := s.slot(c)
	if err != nil {
		return err
	}
	t := types.DefaultTransform()
	if err := c.Bind().JSON(&t); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := slot.UpdateTransform(t); err != nil {
		return err
	}
	return c.JSON(slot.Snapshot())
}

func (s *Server) confirm(c fiber.Ctx) error {
	_, slot, err := s.slot(c)
	if err != nil {
		return err
	}
	if _, err := slot.Confirm(); err != nil {
		return err
	}
	return c.JSON(slot.Snapshot())
}

func (s *Server) cancel(c fiber.Ctx) error {
	_, slot, err := s.slot(c)
	if err != nil {
		return err
	}
	if err := slot.Cancel(); err != nil {
		return err
	}
	return c.JSON(slot.Snapshot())
}

func (s *Server) getImage(c fiber.Ctx) error {
	_, slot, err := s.slot(c)
	if err != nil {
		return err
	}
	edited, ok := slot.Edited()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "slot has no image")
	}
	data, err := processing.DecodeEdited(edited)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, edited.MimeType)
	return c.Send(data)
}

func (s *Server) removeImage(c fiber.Ctx) error {
	_, slot, err := s.slot(c)
	if err != nil {
		return err
	}
	if err := slot.Remove(); err != nil {
		return err
	}
	return c.JSON(slot.Snapshot())
}

func (s *Server) getTheme(c fiber.Ctx) error {
	theme, err := s.themes.Theme(context.Background())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"theme": theme})
}

func (s *Server) putTheme(c fiber.Ctx) error {
	var req themeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	theme, err := prefs.ParseTheme(req.Theme)
	if err != nil {
		return err
	}
	if err := s.themes.SetTheme(context.Background(), theme); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"theme": theme})
}

func (s *Server) toggleTheme(c fiber.Ctx) error {
	theme, err := s.themes.ToggleTheme(context.Background())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"theme": theme})
}
