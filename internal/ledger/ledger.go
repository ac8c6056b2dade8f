package ledger

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// ErrUnknownFormat is returned when a webhook body matches neither the
// span-batch shape nor the tagged-event shape.
var ErrUnknownFormat = errors.New("unknown webhook format")

// Service applies webhook payloads to the ledger store.
type Service struct {
	store *Store
	now   func() time.Time
}

// NewService creates a ledger service backed by store.
func NewService(store *Store) *Service {
	return &Service{store: store, now: time.Now}
}

// IsSpanBatch reports whether body has the OpenTelemetry trace shape.
func IsSpanBatch(body []byte) bool {
	return gjson.GetBytes(body, "resourceSpans").Exists()
}

// IsEvent reports whether body has the tagged-event shape.
func IsEvent(body []byte) bool {
	return gjson.GetBytes(body, "type").Exists() && gjson.GetBytes(body, "data").Exists()
}

// Snapshot returns the current ledger state. Read-only.
func (s *Service) Snapshot() *Ledger {
	return s.store.Load()
}

// Ping verifies the backing store is writable.
func (s *Service) Ping() error {
	return s.store.Ping()
}

// RecordSpanBatch walks an OTEL trace export and accumulates one request
// per span. Token counts come from gen_ai.* attributes; cost comes from
// the static pricing table. The ledger is flushed once per batch.
func (s *Service) RecordSpanBatch(body []byte) (*BatchResult, error) {
	if !IsSpanBatch(body) {
		return nil, ErrUnknownFormat
	}

	now := s.now()
	processed := 0

	l, err := s.store.Update(func(l *Ledger) error {
		gjson.GetBytes(body, "resourceSpans").ForEach(func(_, resourceSpan gjson.Result) bool {
			resourceSpan.Get("scopeSpans").ForEach(func(_, scopeSpan gjson.Result) bool {
				scopeSpan.Get("spans").ForEach(func(_, span gjson.Result) bool {
					applySpan(l, span, now)
					processed++
					return true
				})
				return true
			})
			return true
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Int("spans", processed).Float64("total_cost", l.TotalCost).Msg("ledger: span batch recorded")
	return &BatchResult{SpansProcessed: processed, TotalCost: l.TotalCost}, nil
}

// applySpan accumulates a single span's usage into the ledger.
func applySpan(l *Ledger, span gjson.Result, now time.Time) {
	attrs := flattenAttributes(span.Get("attributes"))

	model := attrs["gen_ai.request.model"].String()
	if model == "" {
		model = UnknownModel
	}
	promptTokens := int(attrs["gen_ai.usage.prompt_tokens"].Int())
	completionTokens := int(attrs["gen_ai.usage.completion_tokens"].Int())
	cost := CalculateCost(model, promptTokens, completionTokens)

	m := l.model(model)
	m.Requests++
	m.TokensUsed += promptTokens + completionTokens
	m.CostUSD += cost
	l.TotalCost += cost
	l.LastUpdate = &now
}

// flattenAttributes collapses the OTEL key/value list into a flat map.
// Each value carries exactly one of the typed fields.
func flattenAttributes(attributes gjson.Result) map[string]gjson.Result {
	attrs := make(map[string]gjson.Result)
	attributes.ForEach(func(_, attr gjson.Result) bool {
		key := attr.Get("key").String()
		if key == "" {
			return true
		}
		for _, field := range []string{"stringValue", "intValue", "doubleValue", "boolValue"} {
			if v := attr.Get("value." + field); v.Exists() {
				attrs[key] = v
				break
			}
		}
		return true
	})
	return attrs
}

// RecordEvent applies a tagged webhook event.
//
//	usage / inference_request: accumulate with the caller-supplied cost.
//	billing_summary:           authoritative overwrite, not accumulation.
//	anything else:             acknowledged but ignored.
func (s *Service) RecordEvent(body []byte) (*EventResult, error) {
	if !IsEvent(body) {
		return nil, ErrUnknownFormat
	}

	eventType := gjson.GetBytes(body, "type").String()
	data := gjson.GetBytes(body, "data")
	now := s.now()

	switch eventType {
	case "usage", "inference_request":
		model := data.Get("model").String()
		if model == "" {
			model = UnknownModel
		}
		cost := data.Get("cost").Float()
		if cost == 0 {
			cost = data.Get("total_cost").Float()
		}
		tokens := int(data.Get("tokens_used").Int())

		l, err := s.store.Update(func(l *Ledger) error {
			m := l.model(model)
			m.CostUSD += cost
			m.Requests++
			m.TokensUsed += tokens
			l.TotalCost += cost
			l.LastUpdate = &now
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &EventResult{Status: StatusRecorded, Type: eventType, Model: model, Cost: cost, TotalCost: l.TotalCost}, nil

	case "billing_summary":
		l, err := s.store.Update(func(l *Ledger) error {
			l.TotalCost = data.Get("total_cost").Float()
			if period := data.Get("period"); period.Exists() {
				l.Period = &Period{
					Start: period.Get("start").String(),
					End:   period.Get("end").String(),
				}
			}
			if models := data.Get("models"); models.Exists() {
				replacement := make(map[string]*ModelUsage)
				models.ForEach(func(key, value gjson.Result) bool {
					name := value.Get("name").String()
					if name == "" {
						name = key.String()
					}
					replacement[key.String()] = &ModelUsage{
						Name:       name,
						CostUSD:    value.Get("costUSD").Float(),
						Requests:   int(value.Get("requests").Int()),
						TokensUsed: int(value.Get("tokensUsed").Int()),
					}
					return true
				})
				l.Models = replacement
			}
			l.LastUpdate = &now
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &EventResult{Status: StatusUpdated, Type: eventType, TotalCost: l.TotalCost}, nil

	default:
		return &EventResult{Status: StatusIgnored, Type: eventType}, nil
	}
}
