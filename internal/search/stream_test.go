package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStream(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{
			name:   "single event",
			body:   "id:1\nevent:message\ndata:{\"id\":1}\n\n",
			want:   `{"id":1}`,
			wantOK: true,
		},
		{
			name:   "space after marker",
			body:   "event: message\ndata: {\"a\":\"b\"}\n",
			want:   `{"a":"b"}`,
			wantOK: true,
		},
		{
			name:   "first data line wins",
			body:   "data: {\"n\":1}\n\ndata: {\"n\":2}\n",
			want:   `{"n":1}`,
			wantOK: true,
		},
		{
			name:   "crlf line endings",
			body:   "event: message\r\ndata: {\"ok\":true}\r\n\r\n",
			want:   `{"ok":true}`,
			wantOK: true,
		},
		{
			name:   "malformed first data line is absent even if a later line is valid",
			body:   "data: {not json\ndata: {\"n\":2}\n",
			wantOK: false,
		},
		{
			name:   "no data line",
			body:   "event: ping\nid: 4\n",
			wantOK: false,
		},
		{
			name:   "plain JSON body without marker",
			body:   `{"jsonrpc":"2.0","id":1}`,
			wantOK: false,
		},
		{
			name:   "empty",
			body:   "",
			wantOK: false,
		},
		{
			name:   "marker must start the line",
			body:   " data: {\"n\":1}\n",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeStream(tt.body)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.JSONEq(t, tt.want, string(got))
			} else {
				assert.Nil(t, got)
			}
		})
	}
}
