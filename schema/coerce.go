package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

func coerceValue(t string, v any) (any, error) {

	if v == nil {
		return nil, nil
	}

	switch t {
	case TypeString:
		switch value := v.(type) {
		case string:
			return value, nil
		case []byte:
			return string(value), nil
		case json.Number:
			return value.String(), nil
		}
	case TypeInt:
		return toInt(v)
	case TypeFloat:
		return toFloat(v)
	case TypeBool:
		switch value := v.(type) {
		case bool:
			return value, nil
		case string:
			return strconv.ParseBool(value)
		}
		n, err := toInt(v)
		if err != nil {
			break
		}
		return n != 0, nil
	case TypeAny, "":
		return v, nil
	}

	return nil, fmt.Errorf("cannot use %T as %s", v, t)
}

func toInt(v any) (int64, error) {
	switch value := v.(type) {
	case int:
		return int64(value), nil
	case int8:
		return int64(value), nil
	case int16:
		return int64(value), nil
	case int32:
		return int64(value), nil
	case int64:
		return value, nil
	case uint:
		return int64(value), nil
	case uint8:
		return int64(value), nil
	case uint16:
		return int64(value), nil
	case uint32:
		return int64(value), nil
	case uint64:
		return int64(value), nil
	case float32:
		return toInt(float64(value))
	case float64:
		if value != math.Trunc(value) {
			return 0, fmt.Errorf("%v is not an integer", value)
		}
		return int64(value), nil
	case json.Number:
		return value.Int64()
	case string:
		return strconv.ParseInt(value, 10, 64)
	}
	return 0, fmt.Errorf("cannot use %T as %s", v, TypeInt)
}

func toFloat(v any) (float64, error) {
	switch value := v.(type) {
	case float32:
		return float64(value), nil
	case float64:
		return value, nil
	case json.Number:
		return value.Float64()
	case string:
		return strconv.ParseFloat(value, 64)
	}
	n, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("cannot use %T as %s", v, TypeFloat)
	}
	return float64(n), nil
}
