package resultcache

import "encoding/json"

// Codec converts results to and from the persisted payload bytes. The
// controller never inspects result structure; a row-set and a scalar count
// travel through the same hooks.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

// JSONCodec is the default codec. Decoded payloads come back as generic JSON
// values (maps, slices, float64 numbers); callers that need typed results
// supply their own Codec.
type JSONCodec struct{}

// Marshal encodes the result as JSON.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes a JSON payload.
func (JSONCodec) Unmarshal(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Ensure JSONCodec implements Codec interface
var _ Codec = JSONCodec{}
