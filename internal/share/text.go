package share

import (
	"encoding/base64"
	"errors"
	"strings"
)

var errLineBreak = errors.New("line break in encoded text")

// EncodeText renders data as padded standard base64, the form existing share
// links use. Query escaping of '+', '/' and '=' is left to the URL encoder.
func EncodeText(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeText is the inverse of EncodeText. It also accepts the URL-safe
// alphabet, which some clients substitute when copying links around, and
// spaces left behind by form decoding an unescaped '+'. Line breaks inside
// the text are rejected.
func DecodeText(text string) ([]byte, error) {
	text = strings.ReplaceAll(strings.TrimSpace(text), " ", "+")
	if strings.ContainsAny(text, "\r\n") {
		return nil, &DecodeError{Stage: StageText, Err: errLineBreak}
	}

	data, err := base64.StdEncoding.DecodeString(text)
	if err == nil {
		return data, nil
	}
	if alt, altErr := base64.URLEncoding.DecodeString(text); altErr == nil {
		return alt, nil
	}
	return nil, &DecodeError{Stage: StageText, Err: err}
}
