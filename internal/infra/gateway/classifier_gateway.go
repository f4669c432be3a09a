package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel"

	"github.com/cityflow/cityflow/internal/usecase"
)

const (
	defaultTimeout = 3 * time.Second
	userAgent      = "cityflow-classifier/1.0"
)

var tracer = otel.Tracer("gateway")

// ClassifierGateway asks the remote category model for a label. Labels are
// cached by a hash of the text since the model is deterministic.
type ClassifierGateway struct {
	client   *http.Client
	cache    *cache.Cache
	endpoint string
}

func NewClassifierGateway(endpoint string) *ClassifierGateway {
	g := &ClassifierGateway{
		cache:    cache.New(10*time.Minute, 15*time.Minute),
		endpoint: endpoint,
	}
	g.client = &http.Client{
		Timeout:   defaultTimeout,
		Transport: g,
	}
	return g
}

func (g *ClassifierGateway) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label string `json:"label"`
}

func cacheKey(text string) string {
	return strconv.FormatUint(xxh3.HashString(text), 16)
}

func (g *ClassifierGateway) Classify(ctx context.Context, text string) (string, error) {
	ctx, span := tracer.Start(ctx, "Classifier.Gateway.Classify")
	defer span.End()

	key := cacheKey(text)
	if cached, found := g.cache.Get(key); found {
		return cached.(string), nil
	}

	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", errors.Wrap(err, "failed to perform request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		span.RecordError(err)
		return "", err
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.Wrap(err, "failed to decode response")
	}

	g.cache.Set(key, result.Label, cache.DefaultExpiration)
	return result.Label, nil
}

var _ usecase.Classifier = (*ClassifierGateway)(nil)
