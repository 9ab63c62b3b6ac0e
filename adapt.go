package framez

import (
	"context"
	"reflect"
)

// funcUnit adapts a HandlerFunc to the Unit contract. The function's
// response is checked at this boundary: returning neither a response nor
// an error fails with ErrInvalidResponse, as does a response holding a nil
// pointer.
type funcUnit struct {
	fn   HandlerFunc
	name Name
}

// Adapt wraps fn as a Unit.
func Adapt(name Name, fn HandlerFunc) Unit {
	return &funcUnit{name: name, fn: fn}
}

// Process implements Unit.
func (u *funcUnit) Process(ctx context.Context, req Request, next Continuation) (Response, error) {
	res, err := u.fn(ctx, req, next)
	if err != nil {
		return res, err
	}
	if isNilResponse(res) {
		return nil, ErrInvalidResponse
	}
	return res, nil
}

func isNilResponse(res Response) bool {
	if res == nil {
		return true
	}
	v := reflect.ValueOf(res)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

// Name returns the unit name.
func (u *funcUnit) Name() Name {
	return u.name
}

// asUnit converts a looked-up value into a Unit, accepting the same
// shapes Parse accepts for a terminal.
func asUnit(name Name, v any) (Unit, bool) {
	switch u := v.(type) {
	case Unit:
		return u, true
	case HandlerFunc:
		return Adapt(name, u), true
	case func(context.Context, Request, Continuation) (Response, error):
		return Adapt(name, u), true
	default:
		return nil, false
	}
}
