package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2beens/gideon/internal/history"
	"github.com/2beens/gideon/internal/telemetry/metrics"
	"github.com/2beens/gideon/internal/telemetry/tracing"
)

//go:generate mockgen -source=$GOFILE -destination=generator_mocks_test.go -package=planner_test

// Generator produces plan text. The text is stored and shown verbatim, never interpreted.
type Generator interface {
	WorkoutPlan(ctx context.Context, req WorkoutRequest) (string, error)
	NutritionPlan(ctx context.Context, req NutritionRequest) (string, error)
}

type WorkoutRequest struct {
	Goal  string `json:"goal"`
	Level string `json:"level"`
	Days  int    `json:"days"`
}

func (r WorkoutRequest) Validate() error {
	return history.ValidateWorkoutParams(r.Goal, r.Level, r.Days)
}

type NutritionRequest struct {
	Diet     string `json:"diet"`
	Calories int    `json:"calories"`
}

func (r NutritionRequest) Validate() error {
	return history.ValidateNutritionParams(r.Diet, r.Calories)
}

// ServiceError is an error reported by the plan generation service itself.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("plan service error [%d]: %s", e.StatusCode, e.Message)
}

type planResponse struct {
	Plan  json.RawMessage `json:"plan"`
	Error string          `json:"error"`
}

type HTTPGeneratorParams struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	CacheTTL       time.Duration
	CacheSizeMB    int
	MetricsManager *metrics.Manager
}

// HTTPGenerator calls the remote plan generation service. Successful answers are
// cached per request parameters for CacheTTL.
type HTTPGenerator struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	cache          *freecache.Cache
	cacheTTL       time.Duration
	metricsManager *metrics.Manager
}

func NewHTTPGenerator(params HTTPGeneratorParams) *HTTPGenerator {
	megabyte := 1024 * 1024
	cacheSize := params.CacheSizeMB * megabyte

	var cache *freecache.Cache
	if params.CacheTTL > 0 && cacheSize > 0 {
		cache = freecache.NewCache(cacheSize)
	}

	return &HTTPGenerator{
		baseURL: strings.TrimSuffix(params.BaseURL, "/"),
		apiKey:  params.APIKey,
		httpClient: &http.Client{
			Timeout:   params.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache:          cache,
		cacheTTL:       params.CacheTTL,
		metricsManager: params.MetricsManager,
	}
}

func (g *HTTPGenerator) WorkoutPlan(ctx context.Context, req WorkoutRequest) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "planner.workout_plan")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cacheKey := fmt.Sprintf("workout::%s::%s::%d", req.Goal, req.Level, req.Days)
	return g.generate(ctx, string(history.KindWorkout), "/api/workout-plan", cacheKey, req)
}

func (g *HTTPGenerator) NutritionPlan(ctx context.Context, req NutritionRequest) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "planner.nutrition_plan")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cacheKey := fmt.Sprintf("nutrition::%s::%d", req.Diet, req.Calories)
	return g.generate(ctx, string(history.KindNutrition), "/api/nutrition-plan", cacheKey, req)
}

func (g *HTTPGenerator) generate(ctx context.Context, kind, path, cacheKey string, payload any) (string, error) {
	if g.cache != nil {
		if cached, err := g.cache.Get([]byte(cacheKey)); err == nil {
			log.Tracef("planner: found %s plan in cache", cacheKey)
			g.metricsManager.PlanGenerated(kind, true)
			return string(cached), nil
		} else if !errors.Is(err, freecache.ErrNotFound) {
			log.Errorf("planner: cache get %s: %s", cacheKey, err)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal plan request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create plan request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call plan service: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read plan service response: %w", err)
	}

	var planResp planResponse
	if err := json.Unmarshal(respBytes, &planResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", &ServiceError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return "", fmt.Errorf("unmarshal plan service response: %w", err)
	}
	if planResp.Error != "" || resp.StatusCode != http.StatusOK {
		msg := planResp.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &ServiceError{StatusCode: resp.StatusCode, Message: msg}
	}

	plan, err := planText(planResp.Plan)
	if err != nil {
		return "", err
	}

	if g.cache != nil {
		if err := g.cache.Set([]byte(cacheKey), []byte(plan), int(g.cacheTTL.Seconds())); err != nil {
			log.Errorf("planner: cache set %s: %s", cacheKey, err)
		}
	}

	g.metricsManager.PlanGenerated(kind, false)
	return plan, nil
}

// planText keeps a JSON string plan as its unquoted contents and any other JSON value as raw text.
func planText(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", errors.New("plan service response has no plan")
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("unmarshal plan string: %w", err)
		}
		return s, nil
	}
	return string(trimmed), nil
}
