package pagination

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	token := EncodeToken("bkg_01HZX4TQW9")
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if token == "bkg_01HZX4TQW9" {
		t.Fatal("token should be opaque")
	}

	after, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if after != "bkg_01HZX4TQW9" {
		t.Fatalf("unexpected cursor position %q", after)
	}
}

func TestEncodeTokenEmpty(t *testing.T) {
	if token := EncodeToken(""); token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}
	after, err := DecodeToken("")
	if err != nil || after != "" {
		t.Fatalf("expected empty cursor, got %q err %v", after, err)
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	for _, token := range []string{"not-base64!!", "bm90LWpzb24", "e30"} {
		if _, err := DecodeToken(token); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("token %q: expected ErrInvalidPageToken, got %v", token, err)
		}
	}
}

func TestFromRequestDefaults(t *testing.T) {
	req := httptest.NewRequest("GET", "/bookings", nil)
	params, err := FromRequest(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if params.PageSize != DefaultPageSize || params.After != "" {
		t.Fatalf("unexpected params %+v", params)
	}
}

func TestFromRequestClampsPageSize(t *testing.T) {
	req := httptest.NewRequest("GET", "/bookings?page_size=500", nil)
	params, err := FromRequest(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if params.PageSize != MaxPageSize {
		t.Fatalf("expected clamp to %d, got %d", MaxPageSize, params.PageSize)
	}
}

func TestFromRequestRejectsBadPageSize(t *testing.T) {
	for _, raw := range []string{"0", "-5", "abc"} {
		req := httptest.NewRequest("GET", "/bookings?page_size="+raw, nil)
		if _, err := FromRequest(req); !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("page_size %q: expected ErrInvalidPageSize, got %v", raw, err)
		}
	}
}

func TestFromRequestDecodesToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/bookings?page_token="+EncodeToken("lst_42"), nil)
	params, err := FromRequest(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if params.After != "lst_42" {
		t.Fatalf("unexpected cursor %q", params.After)
	}
}
