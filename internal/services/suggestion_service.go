package services

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/BradenHooton/stylebook/internal/metrics"
	"github.com/BradenHooton/stylebook/internal/models"
)

const maxSuggestions = 3

var dataURLPattern = regexp.MustCompile(`^data:(image/[a-zA-Z0-9+.-]+);base64,(.+)$`)

// HaircutStyle is one recommended cut.
type HaircutStyle struct {
	StyleName   string
	Reason      string
	Maintenance string
}

// HaircutSuggestion is the result of analysing a customer photo.
type HaircutSuggestion struct {
	DetectedDescription string
	Suggestions         []HaircutStyle
}

type styleRule struct {
	keywords []string
	style    HaircutStyle
}

// styleRules are applied in order; every matching rule contributes its style.
var styleRules = []styleRule{
	{
		keywords: []string{"curly", "wavy", "rizado", "ondulado"},
		style: HaircutStyle{
			StyleName:   "Curly Top Fade",
			Reason:      "Aprovecha la textura natural y limpia laterales para definir el rostro",
			Maintenance: "Repaso cada 2-3 semanas",
		},
	},
	{
		keywords: []string{"beard", "barba", "facial hair"},
		style: HaircutStyle{
			StyleName:   "Mid Fade + Barba Degradada",
			Reason:      "Integra corte y barba para una silueta mas prolija y armonica",
			Maintenance: "Perfilado semanal de barba",
		},
	},
	{
		keywords: []string{"long hair", "cabello largo", "long"},
		style: HaircutStyle{
			StyleName:   "Undercut con Largo Superior",
			Reason:      "Mantiene largo arriba y reduce volumen lateral para estilizar",
			Maintenance: "Ajuste cada 3-4 semanas",
		},
	},
	{
		keywords: []string{"short hair", "cabello corto", "short"},
		style: HaircutStyle{
			StyleName:   "French Crop Texturizado",
			Reason:      "Es facil de mantener y aporta estructura sin exigir peinado complejo",
			Maintenance: "Mantenimiento bajo",
		},
	},
}

var defaultStyles = []HaircutStyle{
	{
		StyleName:   "Low Taper Clasico",
		Reason:      "Es versatil y favorece la mayoria de tipos de rostro",
		Maintenance: "Repaso cada 2-3 semanas",
	},
	{
		StyleName:   "Side Part Moderno",
		Reason:      "Da una imagen prolija y funciona bien tanto formal como casual",
		Maintenance: "Peinado rapido con cera ligera",
	},
	{
		StyleName:   "Fade Medio Texturizado",
		Reason:      "Equilibra volumen y limpieza para destacar facciones",
		Maintenance: "Repaso cada 2 semanas",
	},
}

// SuggestionService recommends haircuts from a customer photo.
type SuggestionService struct {
	captioner     Captioner
	maxImageBytes int
	logger        *slog.Logger
}

// NewSuggestionService creates a new SuggestionService. A nil captioner means
// the feature is not configured.
func NewSuggestionService(captioner Captioner, maxImageBytes int, logger *slog.Logger) *SuggestionService {
	return &SuggestionService{
		captioner:     captioner,
		maxImageBytes: maxImageBytes,
		logger:        logger,
	}
}

// Enabled reports whether a captioner is configured.
func (s *SuggestionService) Enabled() bool {
	return s.captioner != nil
}

// Suggest validates the image, captions it and maps the caption to up to three styles.
func (s *SuggestionService) Suggest(ctx context.Context, imageDataURL string) (*HaircutSuggestion, error) {
	if s.captioner == nil {
		return nil, models.ErrAIUnavailable
	}

	imageDataURL = strings.TrimSpace(imageDataURL)
	if err := s.validateImage(imageDataURL); err != nil {
		metrics.RecordAISuggestion("rejected")
		return nil, err
	}

	caption, err := s.captioner.Caption(ctx, imageDataURL)
	if err != nil {
		if errors.Is(err, models.ErrTooBusy) {
			metrics.RecordAISuggestion("breaker_open")
			return nil, err
		}
		metrics.RecordAISuggestion("error")
		s.logger.Error("haircut caption failed", slog.Any("error", err))
		return nil, models.ErrAIUnavailable
	}

	metrics.RecordAISuggestion("ok")
	return &HaircutSuggestion{
		DetectedDescription: caption,
		Suggestions:         SuggestStyles(caption),
	}, nil
}

func (s *SuggestionService) validateImage(dataURL string) error {
	m := dataURLPattern.FindStringSubmatch(dataURL)
	if m == nil {
		return models.ErrInvalidImage
	}

	// Reject on the encoded length first so oversized uploads are never decoded.
	if base64.StdEncoding.DecodedLen(len(m[2])) > s.maxImageBytes+2 {
		return models.ErrImageTooLarge
	}
	raw, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil || len(raw) == 0 {
		return models.ErrInvalidImage
	}
	if len(raw) > s.maxImageBytes {
		return models.ErrImageTooLarge
	}
	return nil
}

// SuggestStyles maps a caption to at most three distinct styles, keyword
// matches first and the house defaults after.
func SuggestStyles(caption string) []HaircutStyle {
	text := strings.ToLower(caption)

	out := make([]HaircutStyle, 0, maxSuggestions)
	seen := make(map[string]bool)
	add := func(style HaircutStyle) {
		if len(out) < maxSuggestions && !seen[style.StyleName] {
			seen[style.StyleName] = true
			out = append(out, style)
		}
	}

	for _, rule := range styleRules {
		if containsAny(text, rule.keywords) {
			add(rule.style)
		}
	}
	for _, style := range defaultStyles {
		add(style)
	}
	return out
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
