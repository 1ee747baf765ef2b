package safeurl

import (
	"context"
	"errors"
	"net/netip"
	"testing"
)

type staticResolver map[string][]netip.Addr

func (s staticResolver) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	addrs, ok := s[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	return addrs, nil
}

func TestCheck(t *testing.T) {
	c := Checker{Resolver: staticResolver{
		"example.com": {netip.MustParseAddr("93.184.215.14")},
		"intranet":    {netip.MustParseAddr("10.1.2.3")},
		"localhost":   {netip.MustParseAddr("127.0.0.1"), netip.MustParseAddr("::1")},
	}}
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/shop", false},
		{"http://example.com", false},
		{"http://unknown.test/", false},
		{"ftp://example.com/data", true},
		{"javascript:alert(1)", true},
		{"file:///etc/passwd", true},
		{"http:///nohost", true},
		{"http://127.0.0.1/admin", true},
		{"http://10.0.0.1/internal", true},
		{"http://192.168.1.1/api", true},
		{"http://172.16.0.1/secret", true},
		{"http://169.254.169.254/latest/meta-data", true},
		{"http://[::1]/api", true},
		{"http://[::ffff:127.0.0.1]/", true},
		{"http://0.0.0.0:8080/", true},
		{"http://intranet/", true},
		{"http://localhost:3000/", true},
	}
	for _, tt := range tests {
		err := c.Check(context.Background(), tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("Check(%q): got %v, wantErr %v", tt.url, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrUnsafe) {
			t.Errorf("Check(%q): %v does not wrap ErrUnsafe", tt.url, err)
		}
	}
}

func TestCheck_AllowPrivate(t *testing.T) {
	c := Checker{AllowPrivate: true}
	if err := c.Check(context.Background(), "http://127.0.0.1:8080/"); err != nil {
		t.Fatalf("got %v", err)
	}
	if err := c.Check(context.Background(), "file:///etc/passwd"); !errors.Is(err, ErrUnsafe) {
		t.Fatalf("schemes are checked regardless: got %v", err)
	}
}
