// Package pskuri parses and formats the out-of-band PSK exchange URI:
// algochat-psk://v1?addr=<base32-address>&psk=<base64url-32B>&label=<...>.
package pskuri

import (
	"encoding/base32"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
)

const (
	Scheme         = "algochat-psk"
	CurrentVersion = "v1"
)

var (
	ErrSchemeMismatch   = errors.New("pskuri: scheme mismatch")
	ErrMissingAddress   = errors.New("pskuri: missing addr parameter")
	ErrMissingPSK       = errors.New("pskuri: missing psk parameter")
	ErrInvalidAddress   = errors.New("pskuri: addr does not decode to 32 bytes")
	ErrInvalidPSKLength = errors.New("pskuri: psk does not decode to 32 bytes")
)

var addrEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Exchange is the decoded content of a PSK exchange URI.
type Exchange struct {
	Address [32]byte
	PSK     [32]byte
	Label   string
}

// Parse decodes raw into an Exchange, validating the scheme and both
// required parameters' decoded lengths.
func Parse(raw string) (Exchange, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Exchange{}, err
	}
	if u.Scheme != Scheme {
		return Exchange{}, ErrSchemeMismatch
	}

	q := u.Query()
	addrStr := q.Get("addr")
	if addrStr == "" {
		return Exchange{}, ErrMissingAddress
	}
	pskStr := q.Get("psk")
	if pskStr == "" {
		return Exchange{}, ErrMissingPSK
	}

	addrBytes, err := addrEncoding.DecodeString(strings.ToUpper(addrStr))
	if err != nil || len(addrBytes) != 32 {
		return Exchange{}, ErrInvalidAddress
	}
	pskBytes, err := base64.RawURLEncoding.DecodeString(pskStr)
	if err != nil || len(pskBytes) != 32 {
		return Exchange{}, ErrInvalidPSKLength
	}

	var ex Exchange
	copy(ex.Address[:], addrBytes)
	copy(ex.PSK[:], pskBytes)
	ex.Label = q.Get("label")
	return ex, nil
}

// Format renders ex back into its URI form.
func Format(ex Exchange) string {
	v := url.Values{}
	v.Set("addr", addrEncoding.EncodeToString(ex.Address[:]))
	v.Set("psk", base64.RawURLEncoding.EncodeToString(ex.PSK[:]))
	if ex.Label != "" {
		v.Set("label", ex.Label)
	}
	u := url.URL{Scheme: Scheme, Host: CurrentVersion, RawQuery: v.Encode()}
	return u.String()
}
