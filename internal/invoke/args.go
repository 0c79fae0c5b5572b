package invoke

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Args holds tool arguments bound by parameter name.
type Args struct {
	values map[string]any
	req    *Request
}

// NewArgs builds Args from already-typed values (tests and direct calls).
func NewArgs(values map[string]any) Args {
	return Args{values: values}
}

// Has reports whether the argument was present in the call.
func (a Args) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// String returns a string argument, or "" when absent.
func (a Args) String(name string) string {
	v, _ := a.values[name].(string)
	return v
}

// Int returns an integer argument, or 0 when absent.
func (a Args) Int(name string) int64 {
	v, _ := a.values[name].(int64)
	return v
}

// Float returns a floating-point argument, or 0 when absent.
func (a Args) Float(name string) float64 {
	v, _ := a.values[name].(float64)
	return v
}

// Bool returns a boolean argument, or false when absent.
func (a Args) Bool(name string) bool {
	v, _ := a.values[name].(bool)
	return v
}

// Raw returns the webhook body bound to a RawRequest parameter.
func (a Args) Raw(name string) []byte {
	v, _ := a.values[name].([]byte)
	return v
}

// Request returns the webhook invocation the call belongs to. May be nil.
func (a Args) Request() *Request {
	return a.req
}

// Bind converts a JSON argument object into Args according to the declared
// parameters. Fields are matched purely by name; their order in the payload is
// irrelevant. The object may also arrive as a JSON string holding the object.
// Parameters missing from the payload (or null) are left unset.
func Bind(params []Param, raw []byte, req *Request) (Args, error) {
	fields, err := argumentFields(raw)
	if err != nil {
		return Args{}, err
	}

	values := make(map[string]any, len(params))
	for _, p := range params {
		if p.Type == RawRequest {
			if req != nil {
				values[p.Name] = req.Body
			}
			continue
		}
		if !p.Type.supported() {
			return Args{}, fmt.Errorf("%w: %s for parameter %q", ErrUnsupportedParameterType, p.Type, p.Name)
		}

		v, ok := fields[p.Name]
		if !ok || v.Type == gjson.Null {
			continue
		}
		converted, err := convert(p, v)
		if err != nil {
			return Args{}, err
		}
		values[p.Name] = converted
	}

	return Args{values: values, req: req}, nil
}

func argumentFields(raw []byte) (map[string]gjson.Result, error) {
	fields := make(map[string]gjson.Result)
	if len(strings.TrimSpace(string(raw))) == 0 {
		return fields, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: arguments are not valid JSON", ErrInvalidArgument)
	}

	obj := gjson.ParseBytes(raw)
	if obj.Type == gjson.String && gjson.Valid(obj.Str) {
		obj = gjson.Parse(obj.Str)
	}
	if obj.Type == gjson.Null {
		return fields, nil
	}
	if !obj.IsObject() {
		return nil, fmt.Errorf("%w: arguments must be a JSON object", ErrInvalidArgument)
	}

	obj.ForEach(func(key, value gjson.Result) bool {
		fields[key.String()] = value
		return true
	})
	return fields, nil
}

func convert(p Param, v gjson.Result) (any, error) {
	switch p.Type {
	case String:
		return v.String(), nil

	case Int:
		switch v.Type {
		case gjson.Number:
			if v.Num != math.Trunc(v.Num) {
				return nil, mismatch(p, v)
			}
			return v.Int(), nil
		case gjson.String:
			n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
			if err != nil {
				return nil, mismatch(p, v)
			}
			return n, nil
		}

	case Float:
		switch v.Type {
		case gjson.Number:
			return v.Num, nil
		case gjson.String:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
			if err != nil {
				return nil, mismatch(p, v)
			}
			return f, nil
		}

	case Bool:
		switch v.Type {
		case gjson.True, gjson.False:
			return v.Bool(), nil
		case gjson.String:
			b, err := strconv.ParseBool(strings.TrimSpace(v.Str))
			if err != nil {
				return nil, mismatch(p, v)
			}
			return b, nil
		}
	}
	return nil, mismatch(p, v)
}

func mismatch(p Param, v gjson.Result) error {
	return fmt.Errorf("%w: parameter %q expects %s, got %s", ErrInvalidArgument, p.Name, p.Type, v.Raw)
}
