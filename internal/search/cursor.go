package search

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
)

const (
	cursorVersion = 1
	macSize       = 16
	keyContext    = "datacube-explorer 2024 search cursor v1"
)

// Reasons a cursor is rejected. Also used as metric labels.
const (
	ReasonMalformed   = "malformed"
	ReasonSignature   = "signature"
	ReasonVersion     = "version"
	ReasonExpired     = "expired"
	ReasonFingerprint = "fingerprint"
	ReasonStale       = "stale_filter"
	ReasonCollection  = "collection"
)

// Cursor is the decoded content of a continuation token.
type Cursor struct {
	Version     uint8          `cbor:"1,keyasint"`
	After       domain.SortKey `cbor:"2,keyasint"`
	Filter      domain.Filter  `cbor:"3,keyasint"`
	Fingerprint uint64         `cbor:"4,keyasint"`
	IssuedAt    int64          `cbor:"5,keyasint"`
}

// CursorCodec signs and verifies continuation tokens.
//
// A token is base64url(cbor(Cursor) || mac) where mac is a truncated keyed
// BLAKE3 of the payload.
type CursorCodec struct {
	key     [32]byte
	ttl     time.Duration
	now     func() time.Time
	encMode cbor.EncMode
	decMode cbor.DecMode
}

// CursorOption configures a CursorCodec.
type CursorOption func(*CursorCodec)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CursorOption {
	return func(c *CursorCodec) { c.now = now }
}

// NewCursorCodec derives the MAC key from secret. An empty secret yields a
// random key, so tokens do not survive a restart. ttl <= 0 disables expiry.
func NewCursorCodec(secret string, ttl time.Duration, opts ...CursorOption) (*CursorCodec, error) {
	c := &CursorCodec{ttl: ttl, now: time.Now}

	if secret == "" {
		if _, err := rand.Read(c.key[:]); err != nil {
			return nil, fmt.Errorf("generating cursor key: %w", err)
		}
	} else {
		blake3.DeriveKey(keyContext, []byte(secret), c.key[:])
	}

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err := encOptions.EncMode()
	if err != nil {
		return nil, fmt.Errorf("cursor encoder: %w", err)
	}
	decMode, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cursor decoder: %w", err)
	}
	c.encMode, c.decMode = encMode, decMode

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encode issues a token resuming after the given key under filter f.
func (c *CursorCodec) Encode(f domain.Filter, after domain.SortKey) (string, error) {
	fp, err := c.Fingerprint(f)
	if err != nil {
		return "", err
	}

	payload, err := c.encMode.Marshal(Cursor{
		Version:     cursorVersion,
		After:       after,
		Filter:      f,
		Fingerprint: fp,
		IssuedAt:    c.now().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding cursor: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(append(payload, c.mac(payload)...)), nil
}

// Decode verifies and decodes a token. Every failure is a *domain.CursorError.
func (c *CursorCodec) Decode(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) <= macSize {
		return nil, &domain.CursorError{Reason: ReasonMalformed}
	}

	payload, sig := raw[:len(raw)-macSize], raw[len(raw)-macSize:]
	if subtle.ConstantTimeCompare(sig, c.mac(payload)) != 1 {
		return nil, &domain.CursorError{Reason: ReasonSignature}
	}

	var cur Cursor
	if err := c.decMode.Unmarshal(payload, &cur); err != nil {
		return nil, &domain.CursorError{Reason: ReasonMalformed, Err: err}
	}
	if cur.Version != cursorVersion {
		return nil, &domain.CursorError{Reason: ReasonVersion}
	}
	if c.ttl > 0 && c.now().Sub(time.Unix(cur.IssuedAt, 0)) > c.ttl {
		return nil, &domain.CursorError{Reason: ReasonExpired}
	}

	fp, err := c.Fingerprint(cur.Filter)
	if err != nil || fp != cur.Fingerprint {
		return nil, &domain.CursorError{Reason: ReasonFingerprint}
	}

	return &cur, nil
}

// Fingerprint hashes the canonical encoding of a filter.
func (c *CursorCodec) Fingerprint(f domain.Filter) (uint64, error) {
	b, err := c.encMode.Marshal(f)
	if err != nil {
		return 0, fmt.Errorf("encoding filter: %w", err)
	}
	return xxhash.Sum64(b), nil
}

// FingerprintString is Fingerprint formatted for logs and cache keys.
func (c *CursorCodec) FingerprintString(f domain.Filter) string {
	fp, err := c.Fingerprint(f)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(fp, 16)
}

func (c *CursorCodec) mac(payload []byte) []byte {
	h, err := blake3.NewKeyed(c.key[:])
	if err != nil {
		panic("search: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = h.Write(payload)
	return h.Sum(nil)[:macSize]
}
