package transform

import (
	"context"

	"api-chain/internal/jq"
)

// jqEngine runs the expression as a jq program with data as its input.
type jqEngine struct{}

func (jqEngine) Eval(ctx context.Context, expression string, data any) (any, error) {
	out, err := jq.RunFilter(ctx, data, expression)
	if err != nil {
		return nil, err
	}
	return normalize(out)
}
