package cachestore

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"go.trai.ch/shellcache/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	encodingIdentity = ""
	encodingZstd     = "zstd"
)

// entryMeta is the header line of an entry file. The body follows after a newline.
type entryMeta struct {
	URL      string              `json:"url"`
	Vary     map[string]string   `json:"vary,omitempty"`
	Status   int                 `json:"status"`
	Header   http.Header         `json:"header"`
	Type     domain.ResponseType `json:"type"`
	RespURL  string              `json:"responseUrl,omitempty"`
	Encoding string              `json:"encoding,omitempty"`
	StoredAt time.Time           `json:"storedAt"`
}

// entryKey maps a request identity to a file name.
func entryKey(identity string) string {
	return strconv.FormatUint(xxhash.Sum64String(identity), 16)
}

// varyHeaders returns the request header names listed in the response's Vary
// header. ok is false when the response varies on everything.
func varyHeaders(h http.Header) (names []string, ok bool) {
	for _, line := range h.Values("Vary") {
		for _, field := range strings.Split(line, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			if field == "*" {
				return nil, false
			}
			names = append(names, http.CanonicalHeaderKey(field))
		}
	}
	return names, true
}

// matches reports whether req selects the stored entry.
func (m *entryMeta) matches(req *domain.Request) bool {
	if m.URL != req.Identity() {
		return false
	}
	for name, want := range m.Vary {
		if req.Header.Get(name) != want {
			return false
		}
	}
	return true
}

// codec compresses entry bodies. A nil encoder stores bodies as they are.
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec(compress bool) (*codec, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	c := &codec{dec: dec}
	if compress {
		c.enc, err = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
		if err != nil {
			dec.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *codec) close() {
	c.dec.Close()
	if c.enc != nil {
		_ = c.enc.Close()
	}
}

// encodeEntry serialises meta and body into the on-disk entry format.
func (c *codec) encodeEntry(meta *entryMeta, body []byte) ([]byte, error) {
	if c.enc != nil && len(body) > 0 {
		meta.Encoding = encodingZstd
		body = c.enc.EncodeAll(body, nil)
	} else {
		meta.Encoding = encodingIdentity
	}

	head, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(head)+1+len(body))
	out = append(out, head...)
	out = append(out, '\n')
	out = append(out, body...)
	return out, nil
}

// decodeEntry splits an entry file into its header and decoded body.
func (c *codec) decodeEntry(data []byte) (*entryMeta, []byte, error) {
	head, body, found := bytes.Cut(data, []byte{'\n'})
	if !found {
		return nil, nil, zerr.With(domain.ErrCacheReadFailed, "reason", "truncated entry")
	}

	var meta entryMeta
	if err := json.Unmarshal(head, &meta); err != nil {
		return nil, nil, err
	}

	switch meta.Encoding {
	case encodingIdentity:
		return &meta, bytes.Clone(body), nil
	case encodingZstd:
		decoded, err := c.dec.DecodeAll(body, nil)
		if err != nil {
			return nil, nil, err
		}
		return &meta, decoded, nil
	default:
		return nil, nil, zerr.With(domain.ErrCacheReadFailed, "encoding", meta.Encoding)
	}
}
