package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfold/algotrader/internal/domain"
)

// writeTimeout bounds each journal write; the engine treats the journal as
// fire-and-forget so a slow database must not stall the tick loop for long.
const writeTimeout = 5 * time.Second

// Journal persists decision, override, and fill events as JSONB rows scoped
// to a run. Write failures are logged, not returned: per the engine
// contract, journaling is fire-and-forget and collaborator failures are the
// collaborator's to report.
type Journal struct {
	pool   *pgxpool.Pool
	runID  string
	logger *slog.Logger
}

// NewJournal creates a Journal for the given run.
func NewJournal(pool *pgxpool.Pool, runID string, logger *slog.Logger) *Journal {
	return &Journal{
		pool:   pool,
		runID:  runID,
		logger: logger.With(slog.String("component", "journal")),
	}
}

type intentRecord struct {
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Qty            string `json:"qty"`
	Reason         string `json:"reason"`
	ReferencePrice string `json:"reference_price,omitempty"`
}

func toIntentRecords(intents []domain.OrderIntent) []intentRecord {
	out := make([]intentRecord, 0, len(intents))
	for _, i := range intents {
		rec := intentRecord{
			Symbol: i.Symbol,
			Side:   string(i.Side),
			Qty:    i.Qty.String(),
			Reason: i.Reason,
		}
		if i.ReferencePrice != nil {
			rec.ReferencePrice = i.ReferencePrice.String()
		}
		out = append(out, rec)
	}
	return out
}

func auditPayload(a domain.Audit) map[string]any {
	payload := make(map[string]any)
	if len(a.Vetoed) > 0 {
		vetoed := make([]map[string]string, 0, len(a.Vetoed))
		for _, v := range a.Vetoed {
			vetoed = append(vetoed, map[string]string{"symbol": v.Symbol, "reason": v.Reason})
		}
		payload["vetoed"] = vetoed
	}
	if len(a.Resized) > 0 {
		resized := make([]map[string]string, 0, len(a.Resized))
		for _, r := range a.Resized {
			resized = append(resized, map[string]string{
				"symbol":   r.Symbol,
				"reason":   r.Reason,
				"from_qty": r.FromQty.String(),
				"to_qty":   r.ToQty.String(),
			})
		}
		payload["resized"] = resized
	}
	if len(a.RiskEvents) > 0 {
		events := make([]map[string]any, 0, len(a.RiskEvents))
		for _, e := range a.RiskEvents {
			events = append(events, map[string]any{"type": e.Type, "fields": e.Fields})
		}
		payload["risk_events"] = events
	}
	return payload
}

// RecordDecision writes one decision event.
func (j *Journal) RecordDecision(event domain.DecisionEvent) {
	payload, err := json.Marshal(map[string]any{
		"final_intents":    toIntentRecords(event.OrderIntents),
		"proposed_intents": toIntentRecords(event.ProposedIntents),
		"audit":            auditPayload(event.Audit),
	})
	if err != nil {
		j.logger.Error("marshal decision payload", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	const query = `INSERT INTO decision_event (ts, run_id, payload) VALUES ($1, $2, $3)`
	if _, err := j.pool.Exec(ctx, query, event.TS, j.runID, payload); err != nil {
		j.logger.Error("record decision", slog.String("error", err.Error()))
	}
}

// RecordOverride writes one override event.
func (j *Journal) RecordOverride(event domain.OverrideEvent) {
	args, err := json.Marshal(event.Args)
	if err != nil {
		j.logger.Error("marshal override args", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	const query = `INSERT INTO override_event (ts, run_id, command, args) VALUES ($1, $2, $3, $4)`
	if _, err := j.pool.Exec(ctx, query, event.TS, j.runID, event.Command, args); err != nil {
		j.logger.Error("record override", slog.String("error", err.Error()))
	}
}

// RecordFill writes one fill event. This implements the engine's optional
// fill-recording journal extension.
func (j *Journal) RecordFill(fill domain.Fill) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	const query = `INSERT INTO fill_event (ts, run_id, symbol, side, qty, price)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := j.pool.Exec(ctx, query,
		fill.TS, j.runID, fill.Symbol, string(fill.Side), fill.Qty, fill.Price)
	if err != nil {
		j.logger.Error("record fill", slog.String("error", err.Error()))
	}
}
