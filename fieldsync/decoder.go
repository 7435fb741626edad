package fieldsync

import (
	"encoding/json"
	"strings"
)

// The upstream API does not wrap its payload consistently. decodeRecords
// tries each known shape in order and stops at the first attempt that
// yields a non-empty record list:
//
//  1. the payload is itself a JSON array of parent records,
//  2. the payload is an envelope object with the array under "data"
//     (success/message/errors siblings are ignored here),
//  3. the payload is a generic object; its top level is searched for a
//     "data" property (case-insensitive), falling back to the root value
//     when that is structurally an array.
//
// A parse failure in one attempt only skips to the next. recognized
// reports whether any attempt found a structurally valid array at all, so
// callers can tell "valid but empty" apart from "unrecognized payload".
func decodeRecords(raw []byte) (records []json.RawMessage, recognized bool) {
	attempts := []func([]byte) ([]json.RawMessage, bool){
		decodeBareArray,
		decodeDataEnvelope,
		decodeGenericObject,
	}
	for _, attempt := range attempts {
		recs, ok := attempt(raw)
		if !ok {
			continue
		}
		recognized = true
		if len(recs) > 0 {
			return recs, true
		}
	}
	return nil, recognized
}

func decodeBareArray(raw []byte) ([]json.RawMessage, bool) {
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, false
	}
	return records, true
}

func decodeDataEnvelope(raw []byte) ([]json.RawMessage, bool) {
	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, false
	}
	if envelope.Data == nil {
		return nil, false
	}
	return envelope.Data, true
}

func decodeGenericObject(raw []byte) ([]json.RawMessage, bool) {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(raw, &object); err != nil {
		// Not an object; the root value may still be an array.
		return decodeBareArray(raw)
	}
	for key, value := range object {
		if strings.EqualFold(key, "data") {
			return decodeBareArray(value)
		}
	}
	return nil, false
}
