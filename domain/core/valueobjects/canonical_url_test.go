package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCanonicalURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "lowercases scheme and host",
			input: "HTTPS://WWW.Lazada.SG/products/foo-i123.html",
			want:  "https://lazada.sg/products/foo-i123.html",
		},
		{
			name:  "strips www prefix",
			input: "https://www.lazada.sg/products/foo-i123.html",
			want:  "https://lazada.sg/products/foo-i123.html",
		},
		{
			name:  "strips mobile prefix",
			input: "https://m.lazada.sg/products/foo-i123.html",
			want:  "https://lazada.sg/products/foo-i123.html",
		},
		{
			name:  "drops fragment",
			input: "https://lazada.sg/products/foo-i123.html#reviews",
			want:  "https://lazada.sg/products/foo-i123.html",
		},
		{
			name:  "drops tracking params but keeps the rest",
			input: "https://lazada.sg/products/foo-i123.html?utm_source=fb&spm=a2o42&variant=red&clickTrackInfo=xyz",
			want:  "https://lazada.sg/products/foo-i123.html?variant=red",
		},
		{
			name:  "sorts surviving query params",
			input: "https://lazada.sg/p?b=2&a=1",
			want:  "https://lazada.sg/p?a=1&b=2",
		},
		{
			name:  "trims trailing slash",
			input: "https://lazada.sg/products/foo-i123.html/",
			want:  "https://lazada.sg/products/foo-i123.html",
		},
		{
			name:  "keeps root slash intact",
			input: "https://lazada.sg/",
			want:  "https://lazada.sg/",
		},
		{
			name:    "rejects relative url",
			input:   "/products/foo-i123.html",
			wantErr: true,
		},
		{
			name:    "rejects non http scheme",
			input:   "ftp://lazada.sg/products/foo",
			wantErr: true,
		},
		{
			name:    "rejects empty input",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCanonicalURL(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestCanonicalURLEquivalence(t *testing.T) {
	// All spellings of the same product page collapse to one key.
	variants := []string{
		"https://www.lazada.sg/products/foo-i123.html",
		"https://m.lazada.sg/products/foo-i123.html?utm_campaign=sale",
		"HTTPS://LAZADA.SG/products/foo-i123.html#top",
	}

	first, err := NewCanonicalURL(variants[0])
	require.NoError(t, err)

	for _, raw := range variants[1:] {
		other, err := NewCanonicalURL(raw)
		require.NoError(t, err)
		assert.True(t, first.Equals(other), "expected %q to collapse to %q", raw, first.String())
	}
}

func TestCanonicalURLZero(t *testing.T) {
	var zero CanonicalURL
	assert.True(t, zero.IsZero())

	key, err := NewCanonicalURL("https://lazada.sg/p")
	require.NoError(t, err)
	assert.False(t, key.IsZero())
}
