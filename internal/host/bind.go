package host

import (
	"fmt"
	"reflect"

	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/value"
	"j5.nz/gml/internal/vm"
)

var (
	typeFloat64 = reflect.TypeOf(float64(0))
	typeBool    = reflect.TypeOf(false)
	typeSymbol  = reflect.TypeOf(symbol.Symbol{})
	typeArray   = reflect.TypeOf(value.Array{})
	typeValue   = reflect.TypeOf(value.Value(0))
	typeError   = reflect.TypeOf((*error)(nil)).Elem()
)

type argConverter func(v value.Value) reflect.Value

// converterFor returns the Value-to-reflect.Value conversion for one
// declared parameter type. internal/value's own accessors already apply
// the default-on-mismatch rule (a failed Real()/Symbol()/Array() returns
// the type's zero value), so the converter just has to call the right one.
func converterFor(t reflect.Type) (argConverter, error) {
	switch t {
	case typeFloat64:
		return func(v value.Value) reflect.Value {
			r, _ := v.Real()
			return reflect.ValueOf(r)
		}, nil
	case typeSymbol:
		return func(v value.Value) reflect.Value {
			s, _ := v.Symbol()
			return reflect.ValueOf(s)
		}, nil
	case typeArray:
		return func(v value.Value) reflect.Value {
			a, _ := v.Array()
			return reflect.ValueOf(a)
		}, nil
	case typeValue:
		return func(v value.Value) reflect.Value {
			return reflect.ValueOf(v)
		}, nil
	}
	return nil, fmt.Errorf("unsupported native parameter type %s", t)
}

type resultConverter func([]reflect.Value) (value.Value, error)

// resultConverterFor accepts a native returning a bare result, or a result
// plus a trailing error — IntoResult's two impls in bind.rs, collapsed to
// the four concrete result types internal/stdlib's natives actually use.
func resultConverterFor(ft reflect.Type) (resultConverter, error) {
	numOut := ft.NumOut()
	if numOut == 0 || numOut > 2 {
		return nil, fmt.Errorf("native must return 1 or 2 values, got %d", numOut)
	}
	hasErr := numOut == 2
	if hasErr && ft.Out(1) != typeError {
		return nil, fmt.Errorf("native's second return value must be error, got %s", ft.Out(1))
	}

	var toValue func(reflect.Value) value.Value
	switch ft.Out(0) {
	case typeValue:
		toValue = func(v reflect.Value) value.Value { return v.Interface().(value.Value) }
	case typeFloat64:
		toValue = func(v reflect.Value) value.Value { return value.FromFloat64(v.Float()) }
	case typeBool:
		toValue = func(v reflect.Value) value.Value { return value.FromBool(v.Bool()) }
	case typeSymbol:
		toValue = func(v reflect.Value) value.Value { return value.FromSymbol(v.Interface().(symbol.Symbol)) }
	default:
		return nil, fmt.Errorf("unsupported native return type %s", ft.Out(0))
	}

	return func(out []reflect.Value) (value.Value, error) {
		if hasErr {
			if err, _ := out[1].Interface().(error); err != nil {
				return 0, err
			}
		}
		return toValue(out[0]), nil
	}, nil
}

// bindNative inspects fn's signature once and returns a vm.NativeFunc
// closing over the conversions it found, plus the arity and variadic-ness
// internal/lower needs to validate call sites at compile time. fn's
// parameters must each be float64 (real), symbol.Symbol, value.Array, or
// value.Value, optionally followed by a trailing ...value.Value variadic
// tail; its first result must be a float64, bool, symbol.Symbol or
// value.Value (a value.Array result is not accepted), optionally followed
// by a trailing error.
func bindNative(fn any) (nativeBinding, error) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nativeBinding{}, fmt.Errorf("not a function: %T", fn)
	}

	variadic := ft.IsVariadic()
	arity := ft.NumIn()
	if variadic {
		arity--
		if tail := ft.In(arity).Elem(); tail != typeValue {
			return nativeBinding{}, fmt.Errorf("variadic tail must be ...value.Value, got ...%s", tail)
		}
	}

	converters := make([]argConverter, arity)
	for i := 0; i < arity; i++ {
		c, err := converterFor(ft.In(i))
		if err != nil {
			return nativeBinding{}, err
		}
		converters[i] = c
	}

	toResult, err := resultConverterFor(ft)
	if err != nil {
		return nativeBinding{}, err
	}

	call := func(t *vm.Thread, resources vm.Resources, world *vm.World, args []value.Value) (value.Value, error) {
		in := make([]reflect.Value, 0, ft.NumIn())
		for i, conv := range converters {
			in = append(in, conv(args[i]))
		}
		if variadic {
			tail := append([]value.Value(nil), args[arity:]...)
			in = append(in, reflect.ValueOf(tail))
		}
		return toResult(fv.Call(in))
	}

	return nativeBinding{call: call, arity: arity, variadic: variadic}, nil
}
