package dis

import (
	"testing"

	"github.com/patchcorn/patchcorn/go/models"
)

func TestParseAddr(t *testing.T) {
	img := models.Image{Name: "game.exe", Base: 0x140000000, Size: 0x1000}
	tests := []struct {
		in   string
		want uint64
	}{
		{"0x140001000", 0x140001000},
		{"+0x10", 0x140000010},
		{"4096", 4096},
	}
	for _, test := range tests {
		got, err := parseAddr(test.in, img)
		if err != nil || got != test.want {
			t.Errorf("parseAddr(%q) = %#x, %v", test.in, got, err)
		}
	}
	if _, err := parseAddr("+zz", img); err == nil {
		t.Fatal("bad address parsed")
	}
}
