// Package sentimentsvc classifies evaluation comments as positive, neutral or negative.
package sentimentsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/evaluation"
)

var ErrUnknownLabel = errors.New("unknown sentiment label")

// New returns an HTTPClassifier, or a StaticClassifier returning neutral when no endpoint is configured.
func New(conf core.ClassifierConfig) evaluation.Classifier {
	if conf.URL == "" {
		return StaticClassifier{Sentiment: evaluation.Neutral}
	}
	return NewHTTPClassifier(conf)
}

// StaticClassifier assigns the same sentiment to every comment.
type StaticClassifier struct {
	Sentiment evaluation.Sentiment
}

func (c StaticClassifier) Classify(context.Context, string) (evaluation.Sentiment, error) {
	return c.Sentiment, nil
}

// HTTPClassifier asks an external NLP endpoint for the sentiment of a text.
//
//	POST <url> {"texto": "..."} -> {"sentimiento": "positivo"}
type HTTPClassifier struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

var _ evaluation.Classifier = (*HTTPClassifier)(nil)

func NewHTTPClassifier(conf core.ClassifierConfig) *HTTPClassifier {
	limit := rate.Inf
	if conf.RateLimit > 0 {
		limit = rate.Limit(conf.RateLimit)
	}
	burst := conf.Burst
	if burst < 1 {
		burst = 1
	}
	return &HTTPClassifier{
		url:     conf.URL,
		client:  &http.Client{Timeout: conf.Timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

type (
	classifyRequest struct {
		Text string `json:"texto"`
	}
	classifyResponse struct {
		Sentiment string `json:"sentimiento"`
	}
)

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (evaluation.Sentiment, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "waiting for rate limiter")
	}

	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "calling classifier")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", errors.Errorf("classifier responded %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out classifyResponse
	if err = json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decoding classifier response")
	}
	return ParseLabel(out.Sentiment)
}

// ParseLabel maps spanish or english labels, in any case, to a Sentiment.
func ParseLabel(label string) (evaluation.Sentiment, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positivo", "positive", "pos":
		return evaluation.Positive, nil
	case "neutral", "neutro", "neu":
		return evaluation.Neutral, nil
	case "negativo", "negative", "neg":
		return evaluation.Negative, nil
	}
	return "", errors.Wrap(ErrUnknownLabel, fmt.Sprintf("%q", label))
}
