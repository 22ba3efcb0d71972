package namespace

import "encoding/json"

// jsonCodec is the default Codec, matching the JSON-everywhere
// serialization convention used throughout the reference codebase.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
