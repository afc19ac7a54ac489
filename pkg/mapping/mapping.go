// Package mapping converts between entities, DTOs and read models.
package mapping

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-json"

	"github.com/aretw0/furrow/internal/fields"
	"github.com/aretw0/furrow/pkg/core"
)

// Mapper converts src into dst, a non-nil pointer.
type Mapper interface {
	Convert(src, dst any) error
}

type pair struct {
	src, dst reflect.Type
}

// Default maps through JSON tags, with registered conversions taking precedence.
// map[string]any sources are decoded with mapstructure (weakly typed, json tags).
type Default struct {
	mu    sync.RWMutex
	funcs map[pair]func(any) (any, error)
}

// New returns the default mapper.
func New() *Default {
	return &Default{funcs: make(map[pair]func(any) (any, error))}
}

// Register installs a conversion from S to D on m.
func Register[S, D any](m *Default, fn func(S) (D, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs[pair{reflect.TypeFor[S](), reflect.TypeFor[D]()}] = func(v any) (any, error) {
		return fn(v.(S))
	}
}

// Convert implements Mapper.
func (m *Default) Convert(src, dst any) error {
	if fields.IsNil(src) {
		return fmt.Errorf("mapping source: %w", core.ErrArgumentNull)
	}
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("mapping destination must be a non-nil pointer, got %T", dst)
	}

	m.mu.RLock()
	fn, ok := m.funcs[pair{reflect.TypeOf(src), dv.Type().Elem()}]
	m.mu.RUnlock()
	if ok {
		out, err := fn(src)
		if err != nil {
			return fmt.Errorf("mapping %T to %s: %w", src, dv.Type().Elem(), err)
		}
		dv.Elem().Set(reflect.ValueOf(out))
		return nil
	}

	if raw, isMap := src.(map[string]any); isMap {
		return decodeMap(raw, dst)
	}

	// Round-trip through JSON so the destination's tags drive the mapping.
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("failed to marshal %T: %w", src, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal into %s: %w", dv.Type().Elem(), err)
	}
	return nil
}

func decodeMap(raw map[string]any, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           dst,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode map into %T: %w", dst, err)
	}
	return nil
}

// Map converts src into a new TOut.
func Map[TOut any](m Mapper, src any) (TOut, error) {
	var out TOut
	if err := m.Convert(src, &out); err != nil {
		return out, err
	}
	return out, nil
}

// MapSlice converts every element of src, preserving order. A nil src maps to an
// empty slice.
func MapSlice[TOut, S any](m Mapper, src []S) ([]TOut, error) {
	out := make([]TOut, 0, len(src))
	for i, s := range src {
		v, err := Map[TOut](m, s)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
