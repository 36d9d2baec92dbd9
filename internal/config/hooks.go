package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

var (
	decimalType    = reflect.TypeOf(decimal.Decimal{})
	transitionType = reflect.TypeOf(Transition{})
)

// DecodeHook returns the mapstructure hooks used to decode configuration.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToTransitionHook(),
		toDecimalHook(),
	)
}

// UnmarshalConf returns the koanf unmarshal settings that decode into out.
func UnmarshalConf(out any) koanf.UnmarshalConf {
	return koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       DecodeHook(),
			Metadata:         nil,
			Result:           out,
			WeaklyTypedInput: true,
			TagName:          "koanf",
		},
	}
}

// toDecimalHook decodes strings and numbers into decimal.Decimal.
func toDecimalHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, t reflect.Type, data any) (any, error) {
		if t != decimalType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return decimal.Zero, nil
			}
			return decimal.NewFromString(strings.TrimSpace(v))
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case decimal.Decimal:
			return v, nil
		}
		return data, nil
	}
}

// stringToTransitionHook decodes "0->1" (or a two-element list) into a Transition.
func stringToTransitionHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, t reflect.Type, data any) (any, error) {
		if t != transitionType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return ParseTransition(v)
		case []any:
			if len(v) != 2 {
				return nil, fmt.Errorf("transition %v: want two states", v)
			}
			from, err := toInt(v[0])
			if err != nil {
				return nil, err
			}
			to, err := toInt(v[1])
			if err != nil {
				return nil, err
			}
			return Transition{From: from, To: to}, nil
		}
		return data, nil
	}
}

// ParseTransition parses "0->1", "0>1" or "0,1".
func ParseTransition(s string) (Transition, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '>' || r == ',' || r == ' '
	})
	if len(parts) != 2 {
		return Transition{}, fmt.Errorf("invalid transition %q: want FROM->TO", s)
	}
	from, err := strconv.Atoi(parts[0])
	if err != nil {
		return Transition{}, fmt.Errorf("invalid transition %q: %w", s, err)
	}
	to, err := strconv.Atoi(parts[1])
	if err != nil {
		return Transition{}, fmt.Errorf("invalid transition %q: %w", s, err)
	}
	return Transition{From: from, To: to}, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	}
	return 0, fmt.Errorf("not a flow state: %v", v)
}
