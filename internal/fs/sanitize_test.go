package fs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"src/app.py", "src/app.py"},
		{"  app.py  ", "app.py"},
		{"my file (1).py", "myfile1.py"},
		{"../../etc/passwd", "etc/passwd"},
		{"/abs/path.sh", "abs/path.sh"},
		{"a/./b//c.py", "a/b/c.py"},
		{`dir\win.py`, "dirwin.py"},
		{"über/naïve.py", "über/naïve.py"},
		{"$(rm -rf)", "rm-rf"},
		{"..", ""},
		{"", ""},
		{"***", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitizeTruncates(t *testing.T) {
	got := Sanitize(strings.Repeat("é", 250) + ".py")
	assert.Equal(t, MaxFilenameLength, len([]rune(got)))
}

func TestSanitizeInvariants(t *testing.T) {
	inputs := []string{"../x", "/../../y", "a/../../b", "./.././c", "//d", "e/..", "f/../..//g/./h"}
	for _, in := range inputs {
		got := Sanitize(in)
		assert.False(t, strings.HasPrefix(got, "/"), in)
		for _, seg := range strings.Split(got, "/") {
			assert.NotEqual(t, "..", seg, in)
		}
	}
}

func TestIsBareName(t *testing.T) {
	assert.True(t, IsBareName("app.py"))
	assert.False(t, IsBareName("src/app.py"))
	assert.False(t, IsBareName(""))
}
