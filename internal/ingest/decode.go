package ingest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// maxDecompressed bounds the inflated size of a compressed body.
const maxDecompressed = 8 << 20

var errTooLarge = errors.New("decompressed body exceeds limit")

// Decode turns a request body into a loosely typed mapping. It tries a JSON
// object, then URL-encoded form data, and falls back to query when neither
// yields any keys. It never fails; the result may be empty.
func Decode(body []byte, contentEncoding string, query url.Values) map[string]any {
	data, _ := Decompress(body, contentEncoding)
	out, ok := decodeJSONObject(data)
	if !ok {
		out, ok = decodeForm(data)
	}
	if !ok {
		out = map[string]any{}
	}
	if len(out) == 0 && len(query) > 0 {
		out = fromValues(query)
	}
	return out
}

// Decompress applies the listed content codings in reverse order. On any
// failure the original bytes are returned together with the error.
func Decompress(body []byte, contentEncoding string) ([]byte, error) {
	codings := strings.Split(strings.ToLower(contentEncoding), ",")
	data := body
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.TrimSpace(codings[i])
		var err error
		switch coding {
		case "", "identity":
			continue
		case "gzip", "x-gzip":
			data, err = gunzip(data)
		case "deflate":
			data, err = inflate(data)
		case "zstd":
			data, err = unzstd(data)
		default:
			err = errors.New("unsupported content-encoding " + coding)
		}
		if err != nil {
			return body, err
		}
	}
	return data, nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readLimited(r)
}

// inflate accepts zlib-wrapped data as the RFC says, and raw deflate as
// some clients send it.
func inflate(data []byte) ([]byte, error) {
	if r, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
		defer r.Close()
		if out, err := readLimited(r); err == nil {
			return out, nil
		}
	}
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return readLimited(r)
}

func unzstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderMaxMemory(maxDecompressed))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return readLimited(dec)
}

func readLimited(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, maxDecompressed+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxDecompressed {
		return nil, errTooLarge
	}
	return out, nil
}

func decodeJSONObject(data []byte) (map[string]any, bool) {
	trim := bytes.TrimSpace(data)
	if len(trim) == 0 || trim[0] != '{' || !utf8.Valid(trim) {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(trim))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, true
}

// decodeForm drops keys whose values are all blank, so a body of plain text
// does not produce a mapping.
func decodeForm(data []byte) (map[string]any, bool) {
	trim := strings.TrimSpace(string(data))
	if trim == "" || !utf8.ValidString(trim) {
		return nil, false
	}
	values, _ := url.ParseQuery(trim)
	out := fromValues(values)
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func fromValues(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for key, list := range values {
		if key == "" {
			continue
		}
		for _, v := range list {
			if strings.TrimSpace(v) != "" {
				out[key] = v
				break
			}
		}
	}
	return out
}

// Preview renders a body for operator logs: text when it is valid UTF-8,
// base64 otherwise. Output is cut at limit bytes of input.
func Preview(body []byte, limit int) string {
	truncated := false
	if limit > 0 && len(body) > limit {
		body = body[:limit]
		truncated = true
	}
	var s string
	if utf8.Valid(body) {
		s = string(body)
	} else {
		s = "base64:" + base64.StdEncoding.EncodeToString(body)
	}
	if truncated {
		s += "...(truncated)"
	}
	return s
}
