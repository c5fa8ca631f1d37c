package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxPayloadSize = 1 << 20

// DecodePayload decodes the JSON request body into dest.
// Unknown fields are rejected. An empty body is an error unless allowEmpty is set.
func DecodePayload(r *http.Request, dest any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxPayloadSize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}
