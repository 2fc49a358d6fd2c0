package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Request body limits.
const (
	DefaultMaxBodySize  = 1 << 20
	DefaultMaxJSONDepth = 16
)

// Validation errors.
var (
	ErrBodyTooLarge = errors.New("security: request body too large")
	ErrJSONTooDeep  = errors.New("security: JSON nesting too deep")
	ErrInvalidJSON  = errors.New("security: invalid JSON")
)

// ReadBody reads at most limit bytes from r. A body longer than limit
// yields ErrBodyTooLarge. A non-positive limit selects DefaultMaxBodySize.
func ReadBody(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: max %d bytes", ErrBodyTooLarge, limit)
	}
	return data, nil
}

// ValidateJSONDepth rejects JSON nesting deeper than limit. A non-positive
// limit selects DefaultMaxJSONDepth. Empty input is accepted.
func ValidateJSONDepth(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			if depth++; depth > limit {
				return fmt.Errorf("%w: max %d", ErrJSONTooDeep, limit)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}

// DecodeJSON validates the nesting of data and unmarshals it into v.
func DecodeJSON(data []byte, v any) error {
	if err := ValidateJSONDepth(data, 0); err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return nil
}
