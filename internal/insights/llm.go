package insights

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/demographics-cli/internal/geo"
	"github.com/sells-group/demographics-cli/internal/radius"
	"github.com/sells-group/demographics-cli/internal/report"
	"github.com/sells-group/demographics-cli/internal/resilience"
	"github.com/sells-group/demographics-cli/pkg/anthropic"
)

const systemPrompt = `You advise real estate developers and retail investors on trade areas.
Use only the numbers provided. Each insight must be under 60 characters, business focused,
and read as market intelligence rather than a restated statistic.
Reply with a single JSON object and nothing else:
{"demographic_strengths":[...4 items],"market_opportunities":[...4 items],"target_demographics":[...4 items]}`

// LLM generates insights with a model and falls back to another Generator
// when the call or the reply fails. Replies are cached by input.
type LLM struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	fallback  Generator
	breaker   *resilience.Breaker

	mu    sync.RWMutex
	cache map[string]*Insights
	group singleflight.Group
}

// NewLLM creates an LLM generator. A nil fallback uses Rules.
func NewLLM(client anthropic.Client, model string, fallback Generator) *LLM {
	if model == "" {
		model = anthropic.DefaultModel
	}
	if fallback == nil {
		fallback = Rules{}
	}
	return &LLM{
		client:    client,
		model:     model,
		maxTokens: 1500,
		fallback:  fallback,
		breaker:   resilience.NewBreaker("anthropic", resilience.Config{FailureThreshold: 3, ResetTimeout: 2 * time.Minute}),
		cache:     map[string]*Insights{},
	}
}

// WithBreaker replaces the circuit breaker guarding model calls.
func (l *LLM) WithBreaker(b *resilience.Breaker) *LLM {
	l.breaker = b
	return l
}

// llmContext is the data sent to the model.
type llmContext struct {
	CurrentYear        string                               `json:"current_year"`
	HistoricalYear     string                               `json:"historical_year"`
	Current            map[string]map[string]float64        `json:"current_demographics"`
	Historical         map[string]map[string]float64        `json:"historical_demographics"`
	Growth             radius.Growth                        `json:"growth_metrics"`
	IncomeDistribution map[string]report.IncomeDistribution `json:"income_distribution"`
}

// Generate implements Generator. It returns an error only when the fallback does.
func (l *LLM) Generate(ctx context.Context, r *radius.Report, card report.Card) (*Insights, error) {
	payload, err := buildContext(r, card)
	if err != nil {
		return l.fallBack(ctx, r, card, err)
	}
	key := cacheKey(payload)

	l.mu.RLock()
	cached, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		zap.L().Debug("insights: cache hit")
		return cached, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		ins, err := resilience.Call(ctx, l.breaker, func(ctx context.Context) (*Insights, error) {
			return l.ask(ctx, payload)
		})
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cache[key] = ins
		l.mu.Unlock()
		return ins, nil
	})
	if err != nil {
		return l.fallBack(ctx, r, card, err)
	}
	return v.(*Insights), nil
}

func (l *LLM) fallBack(ctx context.Context, r *radius.Report, card report.Card, cause error) (*Insights, error) {
	zap.L().Warn("insights: llm failed, using fallback", zap.Error(cause))
	ins, err := l.fallback.Generate(ctx, r, card)
	if err != nil {
		return nil, eris.Wrap(err, "insights: fallback")
	}
	ins.Metadata.Fallback = true
	ins.Metadata.Error = cause.Error()
	return ins, nil
}

func (l *LLM) ask(ctx context.Context, payload []byte) (*Insights, error) {
	temperature := 0.2
	resp, err := l.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     l.model,
		MaxTokens: l.maxTokens,
		System:    systemPrompt,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: "Demographic data:\n" + string(payload),
		}},
		Temperature: &temperature,
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(l.model, "insights")

	ins, err := parseReply(resp.Text())
	if err != nil {
		return nil, err
	}
	ins.Metadata = Metadata{Generated: true, Engine: EngineLLM, Model: l.model}
	return ins, nil
}

func buildContext(r *radius.Report, card report.Card) ([]byte, error) {
	c := llmContext{
		CurrentYear:        r.CurrentYear,
		HistoricalYear:     r.HistoricalYear,
		Current:            map[string]map[string]float64{},
		Historical:         map[string]map[string]float64{},
		Growth:             r.Growth,
		IncomeDistribution: card.IncomeDistribution,
	}
	for _, rad := range r.Radii {
		label := geo.RadiusLabel(rad)
		res, ok := r.RadiusData[label]
		if !ok || res.Status == radius.OutcomeFailed {
			continue
		}
		c.Current[label] = res.Current.Data
		c.Historical[label] = res.Historical.Data
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, eris.Wrap(err, "insights: marshal context")
	}
	return b, nil
}

func cacheKey(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

// parseReply extracts the JSON object from a model reply, tolerating code
// fences and surrounding prose. Every category must be non-empty.
func parseReply(text string) (*Insights, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.New("insights: no json object in reply")
	}
	var ins Insights
	if err := json.Unmarshal([]byte(text[start:end+1]), &ins); err != nil {
		return nil, eris.Wrap(err, "insights: parse reply")
	}
	for name, list := range map[string][]string{
		"demographic_strengths": ins.Strengths,
		"market_opportunities":  ins.Opportunities,
		"target_demographics":   ins.TargetDemographics,
	} {
		if len(list) == 0 {
			return nil, eris.Errorf("insights: reply missing %s", name)
		}
	}
	ins.Strengths = limit(ins.Strengths)
	ins.Opportunities = limit(ins.Opportunities)
	ins.TargetDemographics = limit(ins.TargetDemographics)
	return &ins, nil
}
