package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOrderConsole struct {
	rows       int
	selectErr  error
	submitErr  error
	calls      []string
	gotCourier string
	gotNote    string
}

func (f *fakeOrderConsole) OpenOrderManager(ctx context.Context) error {
	f.calls = append(f.calls, "open")
	return nil
}

func (f *fakeOrderConsole) SelectPaymentCompleteRows(ctx context.Context) (int, error) {
	f.calls = append(f.calls, "select")
	return f.rows, f.selectErr
}

func (f *fakeOrderConsole) OpenConfirmDialog(ctx context.Context) error {
	f.calls = append(f.calls, "dialog")
	return nil
}

func (f *fakeOrderConsole) ChooseCourier(ctx context.Context, courier string) error {
	f.calls = append(f.calls, "courier")
	f.gotCourier = courier
	return nil
}

func (f *fakeOrderConsole) FillConfirmNote(ctx context.Context, note string) error {
	f.calls = append(f.calls, "note")
	f.gotNote = note
	return nil
}

func (f *fakeOrderConsole) SubmitConfirmDialog(ctx context.Context) error {
	f.calls = append(f.calls, "submit")
	return f.submitErr
}

func TestOrderConfirmHappyPath(t *testing.T) {
	console := &fakeOrderConsole{rows: 3}
	w := NewOrderConfirm(console, "CJGLS", "fast please", discardLogger())

	result, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Confirmed)
	assert.Empty(t, result.Message)
	assert.Equal(t, []string{"open", "select", "dialog", "courier", "note", "submit"}, console.calls)
	assert.Equal(t, "CJGLS", console.gotCourier)
	assert.Equal(t, "fast please", console.gotNote)
}

func TestOrderConfirmNothingToConfirm(t *testing.T) {
	console := &fakeOrderConsole{rows: 0}
	w := NewOrderConfirm(console, "CJGLS", "", discardLogger())

	result, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Confirmed)
	assert.Equal(t, "nothing to confirm", result.Message)
	// the dialog is never opened when no rows are selected
	assert.Equal(t, []string{"open", "select"}, console.calls)
}

func TestOrderConfirmStepErrorAborts(t *testing.T) {
	wantErr := errors.New("rows gone stale")
	console := &fakeOrderConsole{rows: 2, submitErr: wantErr}
	w := NewOrderConfirm(console, "CJGLS", "", discardLogger())

	result, err := w.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	assert.Nil(t, result)
}
