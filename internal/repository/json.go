package repository

import "encoding/json"

// Nested documents (addresses, coverage, locations, payment details, ...)
// are stored as JSON text columns.  These helpers keep the scan/exec code
// in the repositories terse: a nil or empty column unmarshals to the zero
// value, and zero values marshal to a compact object.

func marshalJSON(v any) ([]byte, error) {
    return json.Marshal(v)
}

func unmarshalJSON(data []byte, v any) error {
    if len(data) == 0 {
        return nil
    }
    return json.Unmarshal(data, v)
}
