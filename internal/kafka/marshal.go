package kafka

import "encoding/json"

// MustMarshal marshals v or panics. Only used for values built from our own
// types, where a marshal failure is a programming error.
func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
