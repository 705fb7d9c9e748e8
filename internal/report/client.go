package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// Score is what the remote gradebook receives for one learner and exercise.
type Score struct {
	ExerciseID string    `json:"-"`
	UserID     string    `json:"user_id"`
	AttemptID  string    `json:"attempt_id,omitempty"`
	Grade      float64   `json:"grade"`
	Percent    int       `json:"percent"`
	Timestamp  time.Time `json:"timestamp"`
}

type Client struct {
	http    *http.Client
	baseURL string
}

type Config struct {
	BaseURL      string // e.g. https://api.example.com/v1
	TokenURL     string // empty disables OAuth2 (dev)
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

func New(cfg Config) *Client {
	var h *http.Client
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		h = cc.Client(context.Background())
	} else {
		h = &http.Client{}
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return &Client{http: h, baseURL: strings.TrimSuffix(cfg.BaseURL, "/")}
}

// PostScore sends POST {base}/exercises/{id}/grades.
func (c *Client) PostScore(ctx context.Context, s Score) error {
	if s.ExerciseID == "" {
		return fmt.Errorf("post score: exercise id required")
	}
	body, err := json.Marshal(s)
	if err != nil {
		return err
	}
	u := c.baseURL + "/exercises/" + url.PathEscape(s.ExerciseID) + "/grades"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("post score: %s", res.Status)
	}
	return nil
}
