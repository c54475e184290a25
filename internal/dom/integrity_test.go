package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckIntegrity(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		integrity string
		expected  bool
	}{
		{"empty input sha256", "", "sha256-47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=", true},
		{"sha256", "abcdef0123456789", "sha256-9EWAHgy4mSYsm54hmDaIDXPKLRsLnBX7lZyQ6xISNOM=", true},
		{"sha384", "abcdef0123456789", "sha384-gc9l7omltke8C33bedgh15E12M7RrAQa5t63Yb8APlpe7ZhiqV23+oqiulSJl3Kw", true},
		{"sha512", "abcdef0123456789", "sha512-zG5B88cYMqcdiMi9gz0XkOFYw2BpjeYdn5V6+oFrMgSNjRpqL7EF8JEwl17ztZbK3N7I/tTwp3kxQbN1RgFBww==", true},
		{"one of several", "abcdef0123456789", "sha256-badhash sha256-9EWAHgy4mSYsm54hmDaIDXPKLRsLnBX7lZyQ6xISNOM=", true},
		{"with options", "abcdef0123456789", "sha256-9EWAHgy4mSYsm54hmDaIDXPKLRsLnBX7lZyQ6xISNOM=?ct=text/plain", true},
		{"empty hash", "abcdef0123456789", "", false},
		{"empty input empty hash", "", "", false},
		{"bad sha256", "abcdef0123456789", "sha256-badhash", false},
		{"bad sha384", "abcdef0123456789", "sha384-badhash", false},
		{"bad sha512", "abcdef0123456789", "sha512-badhash", false},
		{"unknown algorithm", "abcdef0123456789", "md5-4QrcOUm6Wau+VuBX8g+IPg==", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CheckIntegrity([]byte(tt.data), tt.integrity))
		})
	}
}

func TestIsEventHandler(t *testing.T) {
	for _, name := range []string{
		"onclick", "onClick", "ONLOAD", "onerror", "onmouseover", "onscroll", "ontoggle",
		"onpointerenter", "onanimationiteration", "oncopy", "ononline", "onbegin",
	} {
		assert.True(t, IsEventHandler(name), name)
	}
	for _, name := range []string{"", "on", "click", "online", "href", "data-onclick"} {
		assert.False(t, IsEventHandler(name), name)
	}
}
