package checker

import (
	"errors"
	"net/url"
	"testing"
)

func TestExtractErrorCause(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "url error last clause",
			err: &url.Error{
				Op:  "Get",
				URL: "http://ip-api.com/json",
				Err: errors.New("proxyconnect tcp: dial tcp 1.2.3.4:80: connect: connection refused"),
			},
			want: "connection refused",
		},
		{
			name: "quoted clause wins",
			err:  errors.New(`proxyconnect tcp: tls: first record does not look like a TLS handshake: "Bad Request"`),
			want: "Bad Request",
		},
		{
			name: "status error",
			err:  errors.New("unexpected status: 503 Service Unavailable"),
			want: "503 Service Unavailable",
		},
		{
			name: "raw text",
			err:  errors.New("EOF"),
			want: "EOF",
		},
		{
			name: "nil",
			err:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractErrorCause(tt.err); got != tt.want {
				t.Fatalf("ExtractErrorCause() = %q, want %q", got, tt.want)
			}
		})
	}
}
