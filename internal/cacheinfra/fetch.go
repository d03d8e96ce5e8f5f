package cacheinfra

import (
	"context"
	"reflect"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// ValidateFetchFn checks that fetchFn has the signature func(context.Context) (T, error).
func ValidateFetchFn(fetchFn any) error {
	if fetchFn == nil {
		return &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}

	fnType := reflect.TypeOf(fetchFn)
	if fnType.Kind() != reflect.Func {
		return &ConfigError{Field: "fetchFn", Message: "must be a function"}
	}

	if reflect.ValueOf(fetchFn).IsNil() {
		return &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}

	if fnType.NumIn() != 1 || fnType.NumOut() != 2 {
		return &ConfigError{Field: "fetchFn", Message: "must have signature func(context.Context) (T, error)"}
	}

	if !fnType.In(0).Implements(contextType) {
		return &ConfigError{Field: "fetchFn", Message: "first parameter must be context.Context"}
	}

	if !fnType.Out(1).Implements(errorType) {
		return &ConfigError{Field: "fetchFn", Message: "second return value must be error"}
	}

	return nil
}

// CallFetchFn validates and invokes fetchFn, returning its result boxed in any.
func CallFetchFn(ctx context.Context, fetchFn any) (any, error) {
	if err := ValidateFetchFn(fetchFn); err != nil {
		return nil, err
	}
	return callFetchFunctionWithReflection(ctx, fetchFn)
}

// fetchResultType reports the T of a func(context.Context) (T, error).
// fetchFn must already be validated.
func fetchResultType(fetchFn any) reflect.Type {
	return reflect.TypeOf(fetchFn).Out(0)
}

// callFetchFunctionWithReflection calls a pre-validated FetchFn[T].
func callFetchFunctionWithReflection(ctx context.Context, fetchFn any) (any, error) {
	if fn, ok := fetchFn.(func(context.Context) (any, error)); ok {
		return fn(ctx)
	}

	results := reflect.ValueOf(fetchFn).Call([]reflect.Value{reflect.ValueOf(ctx)})

	var result any
	if v := results[0]; v.IsValid() && v.CanInterface() {
		result = v.Interface()
	}

	var err error
	if e := results[1]; e.IsValid() && !e.IsNil() {
		err = e.Interface().(error)
	}

	return result, err
}

// nopService calls fetchFn on every read and stores nothing.
type nopService struct{}

// NewNopService returns a cache service that never caches.
func NewNopService() *nopService {
	return &nopService{}
}

func (s *nopService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	return CallFetchFn(ctx, fetchFn)
}

func (s *nopService) Delete(ctx context.Context, key string) error { return nil }

func (s *nopService) DeleteByPrefix(ctx context.Context, prefix string) error { return nil }

func (s *nopService) InvalidateKeys(ctx context.Context, keys []string) error { return nil }
