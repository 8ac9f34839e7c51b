package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPageToken is returned when a page token cannot be decoded.
var ErrInvalidPageToken = errors.New("pagination: invalid page token")

// Cursor marks the resource after which the next page resumes.
type Cursor struct {
	After string `json:"after"`
}

// EncodeToken serialises the cursor position into a base64 URL-safe page
// token. An empty position yields an empty token.
func EncodeToken(after string) string {
	if after == "" {
		return ""
	}
	data, err := json.Marshal(Cursor{After: after})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeToken parses a token produced by EncodeToken back into the cursor
// position it carries.
func DecodeToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if cursor.After == "" {
		return "", ErrInvalidPageToken
	}
	return cursor.After, nil
}
