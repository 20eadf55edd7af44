package skills

import (
	"context"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"net/url"
	"strings"

	"jarvis/internal/intent"
	"jarvis/internal/skill"
)

const (
	DefaultWeatherURL = "https://wttr.in"
	weatherFormat     = "%C %t %h %w in %l"
)

// Prefs reads learned preferences with a default.
type Prefs interface {
	Preference(ctx context.Context, key, def string) string
}

// Weather answers from wttr.in's one-line format. Without an explicit
// location it uses the learned "city" preference, then the configured city.
type Weather struct {
	client  *http.Client
	baseURL string
	city    string
	prefs   Prefs
}

func NewWeather(client *http.Client, baseURL, city string, prefs Prefs) *Weather {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultWeatherURL
	}
	return &Weather{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		city:    city,
		prefs:   prefs,
	}
}

func (*Weather) Name() string { return "weather" }

func (*Weather) CanHandle(tag intent.Tag, _ intent.Params) bool { return tag == intent.Weather }

func (w *Weather) Handle(ctx context.Context, _ intent.Tag, params intent.Params) (string, error) {
	loc := params.String("location")
	if loc == "" && w.prefs != nil {
		loc = w.prefs.Preference(ctx, "city", "")
	}
	if loc == "" {
		loc = w.city
	}

	report, err := w.fetch(ctx, loc)
	where := loc
	if where == "" {
		where = "your area"
	}
	if err != nil {
		log.Warn("Weather lookup failed", "location", loc, "err", err)
		return "Weather service unavailable for " + where + ".", nil
	}
	if report == "" {
		return "Could not get weather for " + where + ".", nil
	}
	return fmt.Sprintf("Weather in %s: %s", where, report), nil
}

func (w *Weather) fetch(ctx context.Context, loc string) (string, error) {
	u := w.baseURL + "/" + url.PathEscape(loc) + "?" + url.Values{"format": {weatherFormat}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		log.Debug("Weather service refused", "status", resp.StatusCode, "body", string(body))
		return "", nil
	}
	return strings.TrimSpace(string(body)), nil
}

func (*Weather) Tools() []skill.ToolSpec {
	return []skill.ToolSpec{{
		Name:        "get_weather",
		Description: "Get the current weather for a location.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{"type": "string", "description": "City name"},
			},
		},
		Tag: intent.Weather,
	}}
}
