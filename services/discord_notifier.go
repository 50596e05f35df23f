package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crystaltides-web/constants"
	"crystaltides-web/models"
	"crystaltides-web/utils"

	"github.com/rs/zerolog"
)

const (
	newsEmbedColor   = 0x00aabb
	threadEmbedColor = 0x6da5c0
)

// DiscordNotifier posts announcements to Discord webhooks. News and forum
// threads go to separate channels; an empty URL disables that kind.
type DiscordNotifier struct {
	WebhookURL      string
	ForumWebhookURL string
	RoleID          string
	SiteURL         string
	log             zerolog.Logger
	send       func(ctx context.Context, url string, payload interface{}) error
}

func NewDiscordNotifier(webhookURL, roleID, siteURL string, log zerolog.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		WebhookURL: webhookURL,
		RoleID:     roleID,
		SiteURL:    strings.TrimRight(siteURL, "/"),
		log:        log.With().Str("component", "discord").Logger(),
		send: func(ctx context.Context, url string, payload interface{}) error {
			return utils.PostJSON(ctx, url, nil, payload, nil)
		},
	}
}

type webhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Color       int          `json:"color"`
	Description string       `json:"description"`
	Fields      []embedField `json:"fields,omitempty"`
	Image       *embedImage  `json:"image,omitempty"`
	Author      *embedAuthor `json:"author,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedImage struct {
	URL string `json:"url"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embedAuthor struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func (d *DiscordNotifier) newsPayload(n *models.News, now time.Time) webhookPayload {
	desc := truncate(n.Content, constants.DiscordDescription)
	if d.RoleID != "" {
		desc += fmt.Sprintf("\n\n<@&%s>", d.RoleID)
	}

	embed := discordEmbed{
		Title:       "📢 " + n.Title,
		URL:         fmt.Sprintf("%s/news/%s", d.SiteURL, n.Slug),
		Color:       newsEmbedColor,
		Description: desc,
		Footer:      &embedFooter{Text: "CrystalTides News"},
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
	if n.Category != "" {
		embed.Fields = []embedField{{Name: "Categoría", Value: n.Category, Inline: true}}
	}
	if n.Image != "" {
		img := n.Image
		if !strings.HasPrefix(img, "http://") && !strings.HasPrefix(img, "https://") {
			img = d.SiteURL + "/" + strings.TrimLeft(img, "/")
		}
		embed.Image = &embedImage{URL: img}
	}
	return webhookPayload{Content: "Nuevo anuncio publicado!", Embeds: []discordEmbed{embed}}
}

// AnnounceNews posts the embed in the background. Failures are only logged.
func (d *DiscordNotifier) AnnounceNews(n models.News) {
	if d == nil || d.WebhookURL == "" {
		return
	}
	payload := d.newsPayload(&n, time.Now())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.WebhookTimeout)
		defer cancel()
		if err := d.send(ctx, d.WebhookURL, payload); err != nil {
			d.log.Error().Err(err).Str("slug", n.Slug).Msg("failed to post news to Discord")
			return
		}
		d.log.Info().Str("slug", n.Slug).Msg("news announced on Discord")
	}()
}

func (d *DiscordNotifier) threadPayload(t *models.ForumThread, now time.Time) webhookPayload {
	return webhookPayload{Embeds: []discordEmbed{{
		Title:       "📌 Nuevo Tema: " + t.Title,
		URL:         fmt.Sprintf("%s/forum/thread/topic/%d", d.SiteURL, t.ID),
		Color:       threadEmbedColor,
		Description: truncate(t.Content, constants.DiscordDescription),
		Author:      &embedAuthor{Name: t.AuthorName, IconURL: t.AuthorAvatar},
		Timestamp:   now.UTC().Format(time.RFC3339),
	}}}
}

// AnnounceThread posts a new forum thread in the background.
func (d *DiscordNotifier) AnnounceThread(t models.ForumThread) {
	if d == nil || d.ForumWebhookURL == "" {
		return
	}
	payload := d.threadPayload(&t, time.Now())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.WebhookTimeout)
		defer cancel()
		if err := d.send(ctx, d.ForumWebhookURL, payload); err != nil {
			d.log.Error().Err(err).Uint("thread_id", t.ID).Msg("failed to post thread to Discord")
		}
	}()
}
