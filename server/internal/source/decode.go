package source

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/facultyload/facultyload/pkg/types"
)

// acceptEncoding is advertised on every upstream request.
const acceptEncoding = "br, gzip"

// decodedReader wraps r according to a Content-Encoding header value.
func decodedReader(encoding string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return r, nil
	case "br":
		return brotli.NewReader(r), nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return zr, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// envelope is the object form of an upstream reply.
type envelope struct {
	Error string         `json:"error"`
	Data  []types.RawRow `json:"data"`
}

// decodeRows accepts either a JSON array of row objects or an object with a
// "data" array. An object carrying "error" is reported as a failure.
func decodeRows(body []byte) ([]types.RawRow, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrUpstream)
	}

	switch trimmed[0] {
	case '[':
		var rows []types.RawRow
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %v: %s", ErrUpstream, err, snippet(trimmed, 100))
		}
		return rows, nil
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %v: %s", ErrUpstream, err, snippet(trimmed, 100))
		}
		if env.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrUpstream, env.Error)
		}
		return env.Data, nil
	default:
		return nil, fmt.Errorf("%w: invalid JSON response: %s", ErrUpstream, snippet(trimmed, 100))
	}
}

// insightsReply mirrors the upstream insights object, including its error form.
type insightsReply struct {
	Error           string   `json:"error"`
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

func decodeInsights(body []byte) (types.Insights, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return types.Insights{}, fmt.Errorf("%w: empty response", ErrUpstream)
	}
	var r insightsReply
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return types.Insights{}, fmt.Errorf("%w: invalid JSON: %v: %s", ErrUpstream, err, snippet(trimmed, 100))
	}
	if r.Error != "" {
		return types.Insights{}, fmt.Errorf("%w: %s", ErrUpstream, r.Error)
	}
	if r.Summary == "" && len(r.Recommendations) == 0 {
		return types.Insights{}, fmt.Errorf("%w: insights reply has no summary", ErrUpstream)
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
	return types.Insights{Summary: r.Summary, Recommendations: r.Recommendations}, nil
}
