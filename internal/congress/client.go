package congress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/openlegis/billchat/pkg/models"
)

// TextSource returns a bill's full text. Implementations may fail; the
// content cache substitutes a labeled placeholder in that case so the
// pipeline keeps working.
type TextSource interface {
	FullText(ctx context.Context, bill models.BillIdentity) (string, error)
}

const defaultBaseURL = "https://api.congress.gov/v3"

// Client fetches bill text from the Congress.gov v3 API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the client at a different API host, mainly for tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimSuffix(u, "/")
	return c
}

type textVersionsResponse struct {
	TextVersions []struct {
		Date    string `json:"date"`
		Type    string `json:"type"`
		Formats []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"formats"`
	} `json:"textVersions"`
}

// FullText lists the bill's text versions, picks the newest one with a
// formatted-text rendition and downloads it as plain text.
func (c *Client) FullText(ctx context.Context, bill models.BillIdentity) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", errors.New("congress.gov API key is not configured")
	}

	listURL := fmt.Sprintf("%s/bill/%d/%s/%d/text?format=json&api_key=%s",
		c.baseURL, bill.Congress, url.PathEscape(strings.ToLower(bill.Type)), bill.Number,
		url.QueryEscape(c.apiKey))

	var versions textVersionsResponse
	if err := c.getJSON(ctx, listURL, &versions); err != nil {
		return "", fmt.Errorf("list text versions for %s: %w", bill.Key(), err)
	}

	// Versions come newest-first; take the first one offering a
	// formatted text URL.
	var textURL string
	for _, v := range versions.TextVersions {
		for _, f := range v.Formats {
			if strings.EqualFold(f.Type, "Formatted Text") {
				textURL = f.URL
				break
			}
		}
		if textURL != "" {
			break
		}
	}
	if textURL == "" {
		return "", fmt.Errorf("no formatted text available for %s", bill.Key())
	}

	raw, err := c.getBody(ctx, textURL)
	if err != nil {
		return "", fmt.Errorf("download bill text for %s: %w", bill.Key(), err)
	}
	return stripHTML(raw), nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	body, err := c.getBody(ctx, u)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(body), out)
}

func (c *Client) getBody(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.New(resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var (
	tagRe        = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`[ \t]+`)
)

// stripHTML reduces the Formatted Text rendition (mostly one big <pre>
// block) to plain text.
func stripHTML(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
