package negotiate

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiate(t *testing.T) {
	declared := []string{"application/json", "application/xml"}

	tests := []struct {
		name     string
		accept   string
		declared []string
		want     string
		ok       bool
	}{
		{"exact", "application/json", declared, "application/json", true},
		{"second declared", "application/xml", declared, "application/xml", true},
		{"wildcard", "*/*", declared, "application/json", true},
		{"subtype wildcard", "application/*", declared, "application/json", true},
		{"quality ordering", "application/json;q=0.5, application/xml", declared, "application/xml", true},
		{"mismatch", "text/html", declared, "", false},
		{"missing header", "", declared, "application/json", true},
		{"nothing declared", "text/html", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Negotiate(tt.accept, tt.declared)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Add("Accept", "text/html")
	r.Header.Add("Accept", "application/json")

	got, ok := Request(r, []string{"application/json"})
	assert.True(t, ok)
	assert.Equal(t, "application/json", got)
}
