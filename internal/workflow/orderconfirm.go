package workflow

import (
	"context"
	"fmt"
	"log/slog"
)

type orderConfirmState int

const (
	orderNavigate orderConfirmState = iota
	orderSelectRows
	orderOpenConfirm
	orderFillForm
	orderSubmit
	orderDone
)

// OrderConfirmResult reports how many payment-complete rows were confirmed.
type OrderConfirmResult struct {
	Confirmed int    `json:"confirmed"`
	Message   string `json:"message,omitempty"`
}

// OrderConfirm moves every payment-complete order to the confirmed state
// through the order manager dialog.
type OrderConfirm struct {
	console OrderConsole
	courier string
	note    string
	logger  *slog.Logger

	state    orderConfirmState
	selected int
}

func NewOrderConfirm(console OrderConsole, courier, note string, logger *slog.Logger) *OrderConfirm {
	return &OrderConfirm{
		console: console,
		courier: courier,
		note:    note,
		logger:  logger,
		state:   orderNavigate,
	}
}

// Run drives the machine to completion. Any step error aborts the run and is
// returned as-is; the caller owns session cleanup.
func (w *OrderConfirm) Run(ctx context.Context) (*OrderConfirmResult, error) {
	for w.state != orderDone {
		next, err := w.step(ctx)
		if err != nil {
			return nil, err
		}
		w.state = next
	}
	result := &OrderConfirmResult{Confirmed: w.selected}
	if w.selected == 0 {
		result.Message = "nothing to confirm"
	}
	return result, nil
}

func (w *OrderConfirm) step(ctx context.Context) (orderConfirmState, error) {
	switch w.state {
	case orderNavigate:
		if err := w.console.OpenOrderManager(ctx); err != nil {
			return w.state, fmt.Errorf("open order manager: %w", err)
		}
		return orderSelectRows, nil

	case orderSelectRows:
		count, err := w.console.SelectPaymentCompleteRows(ctx)
		if err != nil {
			return w.state, fmt.Errorf("select rows: %w", err)
		}
		w.selected = count
		if count == 0 {
			w.logger.Info("no payment-complete orders to confirm")
			return orderDone, nil
		}
		return orderOpenConfirm, nil

	case orderOpenConfirm:
		if err := w.console.OpenConfirmDialog(ctx); err != nil {
			return w.state, fmt.Errorf("open confirm dialog: %w", err)
		}
		return orderFillForm, nil

	case orderFillForm:
		if err := w.console.ChooseCourier(ctx, w.courier); err != nil {
			return w.state, fmt.Errorf("choose courier: %w", err)
		}
		if err := w.console.FillConfirmNote(ctx, w.note); err != nil {
			return w.state, fmt.Errorf("fill note: %w", err)
		}
		return orderSubmit, nil

	case orderSubmit:
		if err := w.console.SubmitConfirmDialog(ctx); err != nil {
			return w.state, fmt.Errorf("submit confirm dialog: %w", err)
		}
		w.logger.Info("orders confirmed", "count", w.selected)
		return orderDone, nil

	default:
		return w.state, fmt.Errorf("invalid state %d", w.state)
	}
}
