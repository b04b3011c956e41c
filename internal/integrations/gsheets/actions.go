package gsheets

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/cognitive/internal/action"
)

const Integration = "gsheets"

const (
	Rows    = "ROWS"
	Columns = "COLUMNS"
)

type actionMeta struct {
	ActionName             string
	ErrorMessageWhenFailed string
}

type valuesReader interface {
	GetValues(ctx context.Context, rng, majorDimension string) (*ValueRange, error)
}

// wrapAction turns fn into an action handler that logs the call and prefixes
// failures with the action's error message.
func wrapAction[In, Out any](meta actionMeta, client valuesReader, fn func(ctx context.Context, client valuesReader, in In) (Out, error)) action.Handler {
	return action.Typed(func(ctx context.Context, in In) (Out, error) {
		slog.Debug("running action", "integration", Integration, "action", meta.ActionName)
		out, err := fn(ctx, client, in)
		if err != nil {
			slog.Error("action failed", "integration", Integration, "action", meta.ActionName, "error", err)
			var zero Out
			return zero, fmt.Errorf("%s: %w", meta.ErrorMessageWhenFailed, err)
		}
		return out, nil
	})
}

type GetValuesInput struct {
	Range          string `json:"range"`
	MajorDimension string `json:"majorDimension,omitempty"`
}

func getValues(ctx context.Context, client valuesReader, in GetValuesInput) (*ValueRange, error) {
	if in.Range == "" {
		return nil, fmt.Errorf("range is required")
	}
	resp, err := client.GetValues(ctx, in.Range, in.MajorDimension)
	if err != nil {
		return nil, err
	}
	out := *resp
	if out.MajorDimension != Columns {
		out.MajorDimension = Rows
	}
	return &out, nil
}

// Register adds the spreadsheet actions to reg.
func Register(reg *action.Registry, client *Client) {
	reg.Register(Integration+":getValues", wrapAction(actionMeta{
		ActionName:             "getValues",
		ErrorMessageWhenFailed: "Failed to get values from the specified range",
	}, client, getValues))
}
