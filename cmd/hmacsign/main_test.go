package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathOnly_StripsQueryString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no query", "https://gw.example.com/ingest", "/ingest"},
		{"with query", "https://gw.example.com/ingest?scenario=s1", "/ingest"},
		{"root path", "https://gw.example.com", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pathOnly(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathOnly_RejectsUnparseableURL(t *testing.T) {
	_, err := pathOnly("://bad-url")
	assert.Error(t, err)
}
