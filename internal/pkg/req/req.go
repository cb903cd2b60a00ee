/*
Package req provides strict JSON decoding for inbound WebSocket command payloads.

Payloads that carry unknown fields, trailing data or the wrong shape are rejected so that
command handlers only ever see well-formed, explicitly typed requests.
*/
package req

import (
	"bytes"
	"encoding/json"
	"io"

	"planpoker/internal/pkg/errs"
)

// DecodeStrict decodes data into dst, rejecting unknown fields and trailing content.
// An empty payload is treated as an empty JSON object.
func DecodeStrict(data []byte, dst any) *errs.CustomError {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if _, err := decoder.Token(); err != io.EOF {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
