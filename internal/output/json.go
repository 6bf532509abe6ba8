package output

import (
	"encoding/json"
)

// JSON renders any value as indented JSON.
func JSON(value any) (string, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
