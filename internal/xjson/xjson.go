package xjson

import (
	gjson "github.com/goccy/go-json"
)

// Marshal/Unmarshal wrappers keep a single import site for the JSON codec.

func Marshal(v interface{}) ([]byte, error) {
	return gjson.Marshal(v)
}

func Unmarshal(data []byte, v interface{}) error {
	return gjson.Unmarshal(data, v)
}
