package services

import (
	"context"
	"strings"

	"crystaltides-web/constants"
	"crystaltides-web/utils"

	"github.com/rs/zerolog"
)

// Translator fills in missing English fields through a LibreTranslate
// instance. It never fails: any problem returns the source text.
type Translator struct {
	URL    string
	APIKey string
	log    zerolog.Logger
}

func NewTranslator(url, apiKey string, log zerolog.Logger) *Translator {
	return &Translator{
		URL:    strings.TrimRight(url, "/"),
		APIKey: apiKey,
		log:    log.With().Str("component", "translator").Logger(),
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

func (t *Translator) Translate(ctx context.Context, text, target string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if t == nil || t.URL == "" {
		return text
	}

	ctx, cancel := context.WithTimeout(ctx, constants.TranslateTimeout)
	defer cancel()

	var out translateResponse
	err := utils.PostJSON(ctx, t.URL+"/translate", nil, translateRequest{
		Q:      text,
		Source: "auto",
		Target: target,
		Format: "text",
		APIKey: t.APIKey,
	}, &out)
	if err != nil || out.TranslatedText == "" {
		t.log.Warn().Err(err).Str("target", target).Msg("translation failed, keeping source text")
		return text
	}
	return out.TranslatedText
}

// fillEnglish returns en when set, otherwise a translation of es.
func (t *Translator) fillEnglish(ctx context.Context, en, es string) string {
	if strings.TrimSpace(en) != "" {
		return en
	}
	return t.Translate(ctx, es, "en")
}
