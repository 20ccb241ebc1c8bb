package ingest

import (
	"bytes"
	"encoding/json"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

const sampleJSON = `{"ip":"10.0.0.5","reason":"abuse","durationMinutes":60}`

func gz(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeJSON(t *testing.T) {
	got := Decode([]byte(sampleJSON), "", nil)
	if got["ip"] != "10.0.0.5" || got["durationMinutes"] != json.Number("60") {
		t.Fatalf("unexpected mapping: %#v", got)
	}
}

func TestDecodeGzipMatchesPlain(t *testing.T) {
	plain := Decode([]byte(sampleJSON), "", nil)
	for _, enc := range []string{"gzip", "GZIP", "x-gzip"} {
		compressed := Decode(gz(t, []byte(sampleJSON)), enc, nil)
		if !reflect.DeepEqual(plain, compressed) {
			t.Fatalf("%s: gzip decode differs:\n%#v\n%#v", enc, plain, compressed)
		}
	}
}

func TestDecodeDeflateAndZstd(t *testing.T) {
	plain := Decode([]byte(sampleJSON), "", nil)

	var zbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	_, _ = zw.Write([]byte(sampleJSON))
	_ = zw.Close()
	if got := Decode(zbuf.Bytes(), "deflate", nil); !reflect.DeepEqual(plain, got) {
		t.Fatalf("deflate decode differs: %#v", got)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	compressed := enc.EncodeAll([]byte(sampleJSON), nil)
	_ = enc.Close()
	if got := Decode(compressed, "zstd", nil); !reflect.DeepEqual(plain, got) {
		t.Fatalf("zstd decode differs: %#v", got)
	}
}

func TestDecodeBadGzipFallsBackToRaw(t *testing.T) {
	got := Decode([]byte(sampleJSON), "gzip", nil)
	if got["ip"] != "10.0.0.5" {
		t.Fatalf("expected raw fallback, got %#v", got)
	}
}

func TestDecodeForm(t *testing.T) {
	got := Decode([]byte("ip=10.0.0.5&reason=too+many+requests&banType="), "", nil)
	if got["ip"] != "10.0.0.5" || got["reason"] != "too many requests" {
		t.Fatalf("form decode: %#v", got)
	}
	if _, ok := got["banType"]; ok {
		t.Fatalf("blank form value should be dropped")
	}
}

func TestDecodeFallsBackToQuery(t *testing.T) {
	q := url.Values{"ip": {"192.0.2.1"}}
	for _, body := range []string{"", "   ", "{}", "garbage"} {
		got := Decode([]byte(body), "", q)
		if got["ip"] != "192.0.2.1" {
			t.Fatalf("body %q: expected query fallback, got %#v", body, got)
		}
	}
}

func TestDecodeEmpty(t *testing.T) {
	for _, body := range [][]byte{nil, []byte("not json"), {0xff, 0xfe, 0x00}, []byte(`[1,2]`)} {
		if got := Decode(body, "", nil); len(got) != 0 {
			t.Fatalf("body %q: expected empty mapping, got %#v", body, got)
		}
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	got := Decode([]byte(`{"ip":"1.1.1.1"} {"ip":"2.2.2.2"}`), "", nil)
	if got["ip"] == "1.1.1.1" {
		t.Fatalf("concatenated objects must not decode as the first one")
	}
}

func TestPreview(t *testing.T) {
	if got := Preview([]byte("hello"), 10); got != "hello" {
		t.Fatalf("text preview: %q", got)
	}
	if got := Preview([]byte{0xff, 0x00}, 10); !strings.HasPrefix(got, "base64:") {
		t.Fatalf("binary preview: %q", got)
	}
	if got := Preview([]byte("abcdef"), 3); got != "abc...(truncated)" {
		t.Fatalf("truncated preview: %q", got)
	}
}
