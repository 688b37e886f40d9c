// Package worker consumes ledger events outside the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/messbook/internal/amqp"
	"github.com/mmynk/messbook/internal/ledger"
	"github.com/mmynk/messbook/internal/models"
)

// SummaryWorker re-derives a group's monthly summary whenever its ledger
// changes, logging the result and exporting it as metrics.
type SummaryWorker struct {
	ledger *ledger.Ledger

	events      *prometheus.CounterVec
	costPerMeal *prometheus.GaugeVec
	mealUnits   *prometheus.GaugeVec
}

// NewSummaryWorker creates a worker reading summaries from l and registers
// its metrics with reg.
func NewSummaryWorker(l *ledger.Ledger, reg prometheus.Registerer) *SummaryWorker {
	w := &SummaryWorker{
		ledger: l,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "messbook",
			Name:      "ledger_events_total",
			Help:      "Ledger events consumed by type.",
		}, []string{"type"}),
		costPerMeal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "messbook",
			Name:      "group_cost_per_meal",
			Help:      "Latest derived cost per meal of a group for a period.",
		}, []string{"group_id", "period"}),
		mealUnits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "messbook",
			Name:      "group_meal_units",
			Help:      "Latest total meal units of a group for a period.",
		}, []string{"group_id", "period"}),
	}
	reg.MustRegister(w.events, w.costPerMeal, w.mealUnits)
	return w
}

// HandleEvent processes a single ledger event from AMQP.
func (w *SummaryWorker) HandleEvent(ctx context.Context, event *amqp.Event) error {
	w.events.WithLabelValues(string(event.Type)).Inc()

	slog.InfoContext(ctx, "Processing ledger event",
		"type", event.Type,
		"group_id", event.GroupID,
		"user_id", event.UserID)

	if event.GroupID == "" {
		return nil
	}
	if event.Type == amqp.EventGroupDeleted {
		w.forgetGroup(event.GroupID)
		return nil
	}

	period, err := eventPeriod(event)
	if err != nil {
		// Redelivery would fail the same way.
		slog.WarnContext(ctx, "Skipping event with unusable date", "type", event.Type, "error", err)
		return nil
	}

	summary, err := w.ledger.GroupSummary(ctx, event.GroupID, period)
	var notFound *ledger.NotFoundError
	if errors.As(err, &notFound) {
		slog.InfoContext(ctx, "Group no longer exists", "group_id", event.GroupID)
		w.forgetGroup(event.GroupID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("derive group summary: %w", err)
	}

	cost, _ := summary.CostPerMeal.Float64()
	w.costPerMeal.WithLabelValues(summary.GroupID, period.String()).Set(cost)
	w.mealUnits.WithLabelValues(summary.GroupID, period.String()).Set(float64(summary.TotalMealUnits))

	slog.InfoContext(ctx, "Group summary refreshed",
		"group_id", summary.GroupID,
		"period", period.String(),
		"meal_units", summary.TotalMealUnits,
		"grocery_spend", summary.TotalGrocerySpend.StringFixed(2),
		"cost_per_meal", summary.CostPerMeal.StringFixed(2))
	return nil
}

func (w *SummaryWorker) forgetGroup(groupID string) {
	w.costPerMeal.DeletePartialMatch(prometheus.Labels{"group_id": groupID})
	w.mealUnits.DeletePartialMatch(prometheus.Labels{"group_id": groupID})
}

// eventPeriod is the month of the event's "date" attribute, or of the event
// itself when it carries none (membership changes).
func eventPeriod(event *amqp.Event) (models.Period, error) {
	if date, ok := event.Attributes["date"].(string); ok && date != "" {
		d, err := models.ParseDate(date)
		if err != nil {
			return models.Period{}, err
		}
		return d.Period(), nil
	}
	return models.PeriodOf(event.OccurredAt.UTC()), nil
}
