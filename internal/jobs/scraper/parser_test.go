package scraper

import (
	"reflect"
	"testing"

	"proxyfinder/internal/domain"
)

func TestParseProxiesTable(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name: "header skipped",
			content: `<html><body><table>
				<tr><th>IP Address</th><th>Port</th></tr>
				<tr><td> 9.9.9.9 </td><td>8080</td><td>elite</td></tr>
				<tr><td>1.1.1.1</td><td> 3128 </td></tr>
			</table></body></html>`,
			want: []string{"9.9.9.9:8080", "1.1.1.1:3128"},
		},
		{
			name: "short rows skipped",
			content: `<table>
				<thead><tr><th>IP</th><th>Port</th></tr></thead>
				<tbody>
				<tr><td>9.9.9.9</td><td>8080</td></tr>
				<tr><td>colspan row</td></tr>
				</tbody>
			</table>`,
			want: []string{"9.9.9.9:8080"},
		},
		{
			name: "only first table",
			content: `<table><tr><td>h</td><td>h</td></tr><tr><td>2.2.2.2</td><td>80</td></tr></table>
				<table><tr><td>h</td><td>h</td></tr><tr><td>3.3.3.3</td><td>80</td></tr></table>`,
			want: []string{"2.2.2.2:80"},
		},
		{
			name:    "no table",
			content: `<p>nothing here</p>`,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseProxies(tt.content, domain.ParserTable)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseProxies() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseProxiesPlain(t *testing.T) {
	got := ParseProxies("1.2.3.4:80\njunk\n 5.6.7.8:8080 \r\nlocalhost:80\n", domain.ParserPlain)
	want := []string{"1.2.3.4:80", "5.6.7.8:8080"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseProxies() = %#v, want %#v", got, want)
	}
}

func TestParseProxiesUnknownStrategy(t *testing.T) {
	if got := ParseProxies("1.2.3.4:80", "xml"); len(got) != 0 {
		t.Fatalf("ParseProxies() with unknown strategy = %#v, want empty", got)
	}
}
