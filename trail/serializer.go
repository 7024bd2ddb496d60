package trail

import "encoding/json"

// Serializer turns snapshot parts into storable documents.
type Serializer interface {
	Serialize(v any) ([]byte, error)
}

// SerializerFunc adapts a function to Serializer.
type SerializerFunc func(v any) ([]byte, error)

func (f SerializerFunc) Serialize(v any) ([]byte, error) { return f(v) }

// JSONSerializer encodes with encoding/json. Map keys come out sorted.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(v any) ([]byte, error) { return json.Marshal(v) }
