// Package nutrition resolves missing macro fields via the USDA FoodData
// Central API and caches the results.
package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/columbiacals/menud/internal/menu"
)

// ClientConfig controls the USDA client.
type ClientConfig struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// overrides pin nutrition for generic prepared foods the USDA search
// matches badly. Listed in match-priority order: a name containing two
// keys resolves to the first.
var overrides = []struct {
	key    string
	macros menu.Macros
}{
	{"taco", menu.Macros{Calories: 210, ProteinG: 9, CarbsG: 13, FatG: 13}},
	{"pizza", menu.Macros{Calories: 285, ProteinG: 12, CarbsG: 36, FatG: 10}},
	{"burger", menu.Macros{Calories: 354, ProteinG: 20, CarbsG: 30, FatG: 16}},
	{"burrito", menu.Macros{Calories: 400, ProteinG: 18, CarbsG: 50, FatG: 14}},
	{"quesadilla", menu.Macros{Calories: 380, ProteinG: 16, CarbsG: 35, FatG: 18}},
}

// Client implements menu.NutritionSource against FoodData Central. All
// outbound calls pass through a token-bucket limiter to respect the
// provider's rate limits.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient builds a Client.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.nal.usda.gov/fdc/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Limit(cfg.RequestsPerSec)
	if cfg.RequestsPerSec <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

// Lookup resolves macros for an item name. ok is false when no realistic
// match exists; only transport-level problems return an error.
func (c *Client) Lookup(ctx context.Context, name string) (menu.Macros, bool, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, ov := range overrides {
		if strings.Contains(lower, ov.key) {
			return ov.macros, true, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return menu.Macros{}, false, fmt.Errorf("rate limit wait: %w", err)
	}

	query := url.Values{}
	query.Set("api_key", c.cfg.APIKey)
	query.Set("query", name)
	query.Set("pageSize", "20")
	for _, dt := range []string{"Survey (FNDDS)", "Foundation", "SR Legacy"} {
		query.Add("dataType", dt)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/foods/search?"+query.Encode(), nil)
	if err != nil {
		return menu.Macros{}, false, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return menu.Macros{}, false, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return menu.Macros{}, false, fmt.Errorf("search request: status %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return menu.Macros{}, false, fmt.Errorf("decode search response: %w", err)
	}

	best, ok := bestMatch(lower, payload.Foods)
	if !ok {
		c.logger.Debug("no realistic nutrition match", zap.String("item", name))
		return menu.Macros{}, false, nil
	}
	return best, true, nil
}

type searchResponse struct {
	Foods []searchFood `json:"foods"`
}

type searchFood struct {
	Description   string         `json:"description"`
	DataType      string         `json:"dataType"`
	FoodNutrients []foodNutrient `json:"foodNutrients"`
}

type foodNutrient struct {
	NutrientName string  `json:"nutrientName"`
	Value        float64 `json:"value"`
}

func (f searchFood) macros() (menu.Macros, bool) {
	var m menu.Macros
	haveCalories := false
	for _, n := range f.FoodNutrients {
		name := strings.ToLower(n.NutrientName)
		switch {
		case strings.Contains(name, "energy") && !strings.Contains(name, "kj"):
			m.Calories = n.Value
			haveCalories = n.Value > 0
		case strings.Contains(name, "protein"):
			m.ProteinG = n.Value
		case strings.Contains(name, "carbohydrate") && strings.Contains(name, "by difference"):
			m.CarbsG = n.Value
		case strings.Contains(name, "total lipid"):
			m.FatG = n.Value
		}
	}
	return m, haveCalories
}

// realistic filters out USDA entries whose macros cannot plausibly add up.
func realistic(m menu.Macros) bool {
	if m.Calories < 5 || m.Calories > 2000 {
		return false
	}
	calculated := m.ProteinG*4 + m.CarbsG*4 + m.FatG*9
	if calculated > 0 {
		ratio := m.Calories / calculated
		if ratio < 0.5 || ratio > 2.0 {
			return false
		}
	}
	total := m.ProteinG + m.CarbsG + m.FatG
	if total > 0 {
		for _, v := range []float64{m.ProteinG, m.CarbsG, m.FatG} {
			if v/total > 0.95 {
				return false
			}
		}
	}
	return true
}

// bestMatch scores the realistic candidates and returns the winner.
func bestMatch(queryLower string, foods []searchFood) (menu.Macros, bool) {
	bestScore := -1
	var best menu.Macros
	for _, food := range foods {
		m, haveCalories := food.macros()
		if !haveCalories || !realistic(m) {
			continue
		}
		desc := strings.ToLower(food.Description)
		score := 0
		if desc == queryLower {
			score += 100
		}
		if strings.Contains(desc, queryLower) || strings.Contains(queryLower, desc) {
			score += 50
		}
		if food.DataType == "Survey (FNDDS)" {
			score += 30
		}
		if m.Calories > 50 && m.Calories < 1000 {
			score += 20
		}
		if m.ProteinG > 0 && m.CarbsG > 0 && m.FatG > 0 {
			score += 10
		}
		if score > bestScore {
			bestScore = score
			best = m
		}
	}
	return best, bestScore >= 0
}
