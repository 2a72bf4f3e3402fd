package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"codeberg.org/snonux/sahachari/internal"
	"codeberg.org/snonux/sahachari/internal/audio"
	"codeberg.org/snonux/sahachari/internal/fallback"
	"codeberg.org/snonux/sahachari/internal/recipe"
	"codeberg.org/snonux/sahachari/internal/translation"
	"codeberg.org/snonux/sahachari/internal/vision"
)

// multipartOverhead is allowed on top of the image limit for form fields.
const multipartOverhead = 1 << 20

// respond renders a service result.
func respond[T any](c *gin.Context, res fallback.Result[T]) {
	switch {
	case res.OK():
		c.JSON(http.StatusOK, res)
	case res.Kind == fallback.KindInvalidRequest:
		c.JSON(http.StatusBadRequest, gin.H{"error": res.Message(), "result": res})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": res.Message(), "result": res})
	}
}

func (s *Server) badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *Server) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	s.logger.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": internal.Version})
}

func (s *Server) status(c *gin.Context) {
	st, err := s.svc.Status()
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": st})
}

func (s *Server) translate(c *gin.Context) {
	var req translation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	svc, err := s.svc.Translation()
	if err != nil {
		s.internalError(c, err)
		return
	}
	respond(c, svc.Translate(c.Request.Context(), req))
}

func (s *Server) detect(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	svc, err := s.svc.Translation()
	if err != nil {
		s.internalError(c, err)
		return
	}
	respond(c, svc.Detect(c.Request.Context(), req.Text))
}

// speech answers with the audio itself. Provenance travels in headers.
func (s *Server) speech(c *gin.Context) {
	var req audio.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	svc, err := s.svc.Speech()
	if err != nil {
		s.internalError(c, err)
		return
	}

	res := svc.Synthesize(c.Request.Context(), req)
	if !res.OK() {
		respond(c, res)
		return
	}
	c.Header("X-Source-Tier", res.Tier.String())
	c.Header("X-Source-Provider", res.Provider)
	if res.Warning != "" {
		c.Header("X-Warning", res.Warning)
	}
	contentType := "audio/mpeg"
	if res.Payload.Format == audio.FormatWAV {
		contentType = "audio/wav"
	}
	c.Data(http.StatusOK, contentType, res.Payload.Audio)
}

// vision takes a multipart form with an "image" file and an optional
// "caption" field.
func (s *Server) vision(c *gin.Context) {
	svc, err := s.svc.Vision()
	if err != nil {
		s.internalError(c, err)
		return
	}
	limit := s.svc.Config().MaxImageBytes()
	if limit <= 0 {
		limit = vision.DefaultMaxImageBytes
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	fh, err := c.FormFile("image")
	if err != nil {
		s.badRequest(c, err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.badRequest(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.badRequest(c, err)
		return
	}

	respond(c, svc.Recognize(c.Request.Context(), vision.Request{
		Image:    data,
		Filename: fh.Filename,
		Caption:  c.PostForm("caption"),
	}))
}

func (s *Server) recipes(c *gin.Context) {
	var req recipe.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	svc, err := s.svc.Recipes()
	if err != nil {
		s.internalError(c, err)
		return
	}
	respond(c, svc.Generate(c.Request.Context(), req))
}

// suggest accepts ?ingredients=a,b as well as repeated parameters.
func (s *Server) suggest(c *gin.Context) {
	var ingredients []string
	for _, v := range c.QueryArray("ingredients") {
		for item := range strings.SplitSeq(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				ingredients = append(ingredients, item)
			}
		}
	}
	if len(ingredients) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ingredients are required"})
		return
	}
	svc, err := s.svc.Recipes()
	if err != nil {
		s.internalError(c, err)
		return
	}
	suggestions := svc.Suggest(ingredients)
	if suggestions == nil {
		suggestions = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
