// Package failfast panics on invariant violations that should only ever
// arise from a programming bug (spec's "internal" error kind), carrying a
// stack trace to make them diagnosable. Adapted from
// fluxor's pkg/core/failfast.
package failfast

import (
	"fmt"
	"reflect"
	"runtime/debug"
)

// Err panics if err is non-nil.
func Err(err error) {
	if err != nil {
		panic(fmt.Errorf("fail-fast: %w\n%s", err, debug.Stack()))
	}
}

// If panics with a formatted message if condition is false.
func If(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Errorf("fail-fast: "+format, args...))
	}
}

// NotNil panics if ptr is nil (including typed-nil pointers/interfaces/funcs).
func NotNil(ptr interface{}, name string) {
	if ptr == nil {
		panic(fmt.Errorf("fail-fast: %s is nil", name))
	}
	v := reflect.ValueOf(ptr)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		if v.IsNil() {
			panic(fmt.Errorf("fail-fast: %s is nil", name))
		}
	}
}
