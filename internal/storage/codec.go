package storage

import (
	"encoding/json"
	"fmt"
	"slices"
)

// GetStringSet decodes a field holding a JSON string array. A missing field
// is an empty set.
func GetStringSet(tx Tx, field string) (map[string]struct{}, error) {
	b, ok, err := tx.Get(field)
	if err != nil || !ok {
		return map[string]struct{}{}, err
	}
	set, err := DecodeStringSet(b)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", field, err)
	}
	return set, nil
}

func DecodeStringSet(b []byte) (map[string]struct{}, error) {
	var keys []string
	if err := json.Unmarshal(b, &keys); err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

// PutStringSet stores set as a sorted JSON string array.
func PutStringSet(tx Tx, field string, set map[string]struct{}) error {
	b, err := json.Marshal(SortedKeys(set))
	if err != nil {
		return err
	}
	return tx.Put(field, b)
}

func SortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// GetBool reads a JSON boolean field; missing or malformed reads as false.
func GetBool(tx Tx, field string) (bool, error) {
	b, ok, err := tx.Get(field)
	if err != nil || !ok {
		return false, err
	}
	var v bool
	if json.Unmarshal(b, &v) != nil {
		return false, nil
	}
	return v, nil
}

func PutBool(tx Tx, field string, v bool) error {
	b, _ := json.Marshal(v)
	return tx.Put(field, b)
}
