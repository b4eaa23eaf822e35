package transport

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Skotchmaster/todo_service/internal/service"
)

var ErrInvalidJSON = errors.New("invalid json")

const maxBodyBytes = 1 << 20

// DecodeStrict decodes exactly one JSON object from r into v. Unknown keys
// and wrongly typed values become field errors; anything unparsable is
// ErrInvalidJSON, as is any top-level value other than an object.
func DecodeStrict(r io.Reader, v any) error {
	br := bufio.NewReader(io.LimitReader(r, maxBodyBytes))
	if err := expectObject(br); err != nil {
		return err
	}

	dec := json.NewDecoder(br)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return service.FieldError(typeErr.Field, fmt.Sprintf("Expected %s.", typeErr.Type.Kind()))
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return service.FieldError(field, "Unknown field.")
		}
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", ErrInvalidJSON)
	}
	return nil
}

func expectObject(br *bufio.Reader) error {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: empty body", ErrInvalidJSON)
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return br.UnreadByte()
		}
		return fmt.Errorf("%w: expected an object", ErrInvalidJSON)
	}
}
