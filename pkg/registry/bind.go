package registry

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ArgumentError reports keyword arguments that do not fit an operation's signature.
type ArgumentError struct {
	Err error
}

func (e *ArgumentError) Error() string { return fmt.Sprintf("invalid arguments: %v", e.Err) }

func (e *ArgumentError) Unwrap() error { return e.Err }

// Bind adapts a typed operation into a Func by decoding the keyword arguments into A.
// Unknown argument names are rejected; numbers and strings convert weakly.
func Bind[T, A any](fn func(ctx context.Context, target T, args A) (any, error)) Func[T] {
	return func(ctx context.Context, target T, raw map[string]any) (any, error) {
		var args A
		if err := Decode(raw, &args); err != nil {
			return nil, &ArgumentError{Err: err}
		}
		return fn(ctx, target, args)
	}
}

// NoArgs adapts an operation that takes no keyword arguments.
func NoArgs[T any](fn func(ctx context.Context, target T) (any, error)) Func[T] {
	return func(ctx context.Context, target T, raw map[string]any) (any, error) {
		if len(raw) > 0 {
			keys := make([]string, 0, len(raw))
			for k := range raw {
				keys = append(keys, k)
			}
			return nil, &ArgumentError{Err: fmt.Errorf("operation takes no arguments, got %v", keys)}
		}
		return fn(ctx, target)
	}
}

// Decode decodes raw keyword arguments into out using "arg" struct tags.
func Decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "arg",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
