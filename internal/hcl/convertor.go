package hcl

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/stacgridgo/internal/ctxlog"
)

// evaluate returns the value of an optional attribute and whether it was
// set to something other than null.
func evaluate(expr hcl.Expression) (cty.Value, bool, error) {
	if expr == nil {
		return cty.NilVal, false, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, false, diags
	}
	if val.IsNull() {
		return val, false, nil
	}
	if !val.IsWhollyKnown() {
		return cty.NilVal, false, fmt.Errorf("value must be known")
	}
	return val, true, nil
}

// decode converts val to the type implied by the Go pointer target and
// stores it there.
func decode(ctx context.Context, val cty.Value, target any) error {
	logger := ctxlog.FromContext(ctx)
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Ptr {
		return fmt.Errorf("target for decoding must be a pointer, got %T", target)
	}

	implied, err := gocty.ImpliedType(ptr.Elem().Interface())
	if err != nil {
		return fmt.Errorf("unsupported target type %s: %w", ptr.Elem().Type(), err)
	}
	converted, err := convert.Convert(val, implied)
	if err != nil {
		return fmt.Errorf("cannot convert %s to %s: %w", val.Type().FriendlyName(), implied.FriendlyName(), err)
	}
	if !val.Type().Equals(converted.Type()) {
		logger.Debug("Implicitly converted value type.",
			"from", val.Type().FriendlyName(),
			"to", converted.Type().FriendlyName(),
		)
	}
	return gocty.FromCtyValue(converted, target)
}

// resolution accepts a number or a one or two element list.
func resolution(ctx context.Context, expr hcl.Expression) ([]float64, error) {
	val, ok, err := evaluate(expr)
	if err != nil || !ok {
		return nil, err
	}
	if val.Type() == cty.Number {
		var r float64
		if err := decode(ctx, val, &r); err != nil {
			return nil, err
		}
		return []float64{r}, nil
	}
	var out []float64
	if err := decode(ctx, val, &out); err != nil {
		return nil, fmt.Errorf("resolution must be a number or [x, y]: %w", err)
	}
	if len(out) == 0 || len(out) > 2 {
		return nil, fmt.Errorf("resolution must have one or two values, got %d", len(out))
	}
	return out, nil
}

// resampling accepts a method name applied to every band, or a map of band
// name to method.
func resampling(ctx context.Context, expr hcl.Expression) (map[string]string, error) {
	val, ok, err := evaluate(expr)
	if err != nil || !ok {
		return nil, err
	}
	if val.Type() == cty.String {
		var m string
		if err := decode(ctx, val, &m); err != nil {
			return nil, err
		}
		return map[string]string{"*": m}, nil
	}
	var out map[string]string
	if err := decode(ctx, val, &out); err != nil {
		return nil, fmt.Errorf("resampling must be a string or a map of strings: %w", err)
	}
	return out, nil
}

// aliases accepts a map whose values are a band name or a list of them.
func aliases(ctx context.Context, expr hcl.Expression) (map[string][]string, error) {
	val, ok, err := evaluate(expr)
	if err != nil || !ok {
		return nil, err
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("aliases must be a map, got %s", ty.FriendlyName())
	}
	out := make(map[string][]string)
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		name := k.AsString()
		if v.Type() == cty.String {
			out[name] = []string{v.AsString()}
			continue
		}
		var list []string
		if err := decode(ctx, v, &list); err != nil {
			return nil, fmt.Errorf("alias %q: %w", name, err)
		}
		out[name] = list
	}
	return out, nil
}

// float accepts a number or a string parsed as a float, so nan and inf
// can be spelled out.
func float(ctx context.Context, expr hcl.Expression) (*float64, error) {
	val, ok, err := evaluate(expr)
	if err != nil || !ok {
		return nil, err
	}
	if val.Type() == cty.String {
		f, err := strconv.ParseFloat(strings.TrimSpace(val.AsString()), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", val.AsString())
		}
		return &f, nil
	}
	var f float64
	if err := decode(ctx, val, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
