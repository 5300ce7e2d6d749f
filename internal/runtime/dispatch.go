package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/tabula/internal/chart"
	"github.com/aretw0/tabula/internal/ops"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/tabular"
)

// Outcome is what one dispatched command produced: a raw value and, when the
// operation drew something, the captured chart.
type Outcome struct {
	Raw   any
	Chart *chart.Image
}

// Dispatcher executes commands against a store.
type Dispatcher struct {
	catalog   *ops.Catalog
	chartOpts []chart.Option
}

// NewDispatcher returns a dispatcher resolving operations from catalog.
func NewDispatcher(catalog *ops.Catalog, chartOpts ...chart.Option) *Dispatcher {
	return &Dispatcher{catalog: catalog, chartOpts: chartOpts}
}

// Catalog returns the operations the dispatcher resolves.
func (d *Dispatcher) Catalog() *ops.Catalog { return d.catalog }

// Dispatch executes cmd against store. A failed command leaves the store unchanged.
// Table and series operations fail with *domain.OperationError.
func (d *Dispatcher) Dispatch(ctx context.Context, store *tabular.Store, cmd domain.Command) (Outcome, error) {
	switch c := cmd.(type) {
	case domain.TableOp:
		return d.tableOp(ctx, store, c)
	case domain.SeriesOp:
		return d.seriesOp(ctx, store, c)
	case domain.Pop:
		t, err := store.Pop()
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Raw: t.String()}, nil
	case domain.AssignSeriesToTable:
		return Outcome{}, assign(store, c)
	}
	return Outcome{}, fmt.Errorf("%w: unsupported command %T", domain.ErrMalformedCommand, cmd)
}

func (d *Dispatcher) tableOp(ctx context.Context, store *tabular.Store, c domain.TableOp) (Outcome, error) {
	target, err := store.Get(c.TargetIndex)
	if err != nil {
		return Outcome{}, err
	}
	raw, img, err := d.capture(ctx, func(ctx context.Context) (any, error) {
		return d.catalog.Tables.Execute(ctx, c.FunctionName, target, c.Kwargs)
	})
	if err != nil {
		return Outcome{}, &domain.OperationError{Target: "table", Name: c.FunctionName, Err: err}
	}
	if in, ok := raw.(tabular.InPlace); ok {
		if in.Table == nil {
			return Outcome{}, &domain.OperationError{Target: "table", Name: c.FunctionName, Err: errors.New("in-place result is not a table")}
		}
		if err := store.Replace(c.TargetIndex, in.Table); err != nil {
			return Outcome{}, err
		}
		raw = nil
	}
	return Outcome{Raw: raw, Chart: img}, nil
}

func (d *Dispatcher) seriesOp(ctx context.Context, store *tabular.Store, c domain.SeriesOp) (Outcome, error) {
	target, err := store.Register()
	if err != nil {
		return Outcome{}, err
	}
	raw, img, err := d.capture(ctx, func(ctx context.Context) (any, error) {
		return d.catalog.Series.Execute(ctx, c.FunctionName, target, c.Kwargs)
	})
	if err != nil {
		return Outcome{}, &domain.OperationError{Target: "series", Name: c.FunctionName, Err: err}
	}
	if in, ok := raw.(tabular.InPlace); ok {
		if in.Series == nil {
			return Outcome{}, &domain.OperationError{Target: "series", Name: c.FunctionName, Err: errors.New("in-place result is not a series")}
		}
		store.SetRegister(in.Series)
		raw = nil
	}
	return Outcome{Raw: raw, Chart: img}, nil
}

// capture runs fn inside a chart scope. The scope is torn down on every path,
// including a panic inside the operation.
func (d *Dispatcher) capture(ctx context.Context, fn func(context.Context) (any, error)) (raw any, img *chart.Image, err error) {
	surface := chart.Open(d.chartOpts...)
	defer surface.Discard()
	defer func() {
		if r := recover(); r != nil {
			raw, img, err = nil, nil, fmt.Errorf("operation panicked: %v", r)
		}
	}()

	raw, err = fn(chart.WithSurface(ctx, surface))
	if err != nil {
		return nil, nil, err
	}
	img, err = surface.Close()
	if err != nil {
		return nil, nil, err
	}
	return raw, img, nil
}

// assign writes the register into the top table, or into a pushed copy of it when
// InPlace is explicitly false. The register stays populated.
func assign(store *tabular.Store, c domain.AssignSeriesToTable) error {
	series, err := store.Register()
	if err != nil {
		return err
	}
	top, err := store.Top()
	if err != nil {
		return err
	}
	name := c.ColumnName
	if name == "" {
		name = series.Name
	}
	if name == "" {
		return fmt.Errorf("%w: column_name is required when the series has no name", domain.ErrMalformedCommand)
	}

	next := top.Copy()
	if err := next.SetSeries(name, series); err != nil {
		return err
	}
	if c.InPlace != nil && !*c.InPlace {
		store.Push(next)
		return nil
	}
	return store.Replace(store.Len()-1, next)
}
