package log

import (
	"strconv"

	"go.uber.org/zap"
)

// toFields turns logr-style key/value pairs into zap fields. A zap.Field or a
// bare error may stand in place of a pair. A dangling value or a non-string
// key is kept under a synthetic key instead of being dropped.
func toFields(args ...any) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2+1)
	for i := 0; i < len(args); {
		switch v := args[i].(type) {
		case zap.Field:
			fields = append(fields, v)
			i++
			continue
		case error:
			fields = append(fields, zap.Error(v))
			i++
			continue
		}

		if i == len(args)-1 {
			fields = append(fields, zap.Any("arg#"+strconv.Itoa(i), args[i]))
			break
		}

		key, val := args[i], args[i+1]
		i += 2

		name, ok := key.(string)
		if !ok {
			fields = append(fields, zap.Any("invalid_key_"+strconv.Itoa(i/2), map[string]any{
				"key":   key,
				"value": val,
			}))
			continue
		}
		// zap.Any picks the typed constructor for numbers, durations,
		// times, errors, Stringers and byte slices.
		fields = append(fields, zap.Any(name, val))
	}

	return fields
}
