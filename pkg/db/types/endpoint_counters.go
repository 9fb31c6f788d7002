package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// EndpointCounter tracks calls and errors for one metered endpoint.
type EndpointCounter struct {
	Calls  int64 `json:"calls"`
	Errors int64 `json:"errors"`
}

// EndpointCounters is the per-endpoint breakdown stored on usage rollups.
// Serialized as JSON so the same column works on postgres (jsonb) and the
// sqlite test databases.
type EndpointCounters map[string]EndpointCounter

func (c *EndpointCounters) Scan(src any) error {
	if src == nil {
		*c = EndpointCounters{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("EndpointCounters: unsupported Scan type %T", src)
	}
	if len(raw) == 0 {
		*c = EndpointCounters{}
		return nil
	}
	return json.Unmarshal(raw, c)
}

func (c EndpointCounters) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Bump increments the named endpoint's counters in place.
func (c EndpointCounters) Bump(endpoint string, success bool) {
	counter := c[endpoint]
	counter.Calls++
	if !success {
		counter.Errors++
	}
	c[endpoint] = counter
}
