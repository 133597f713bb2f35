package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World!", "hello-world"},
		{"你好世界", "ni-hao-shi-jie"},
		{"你好, world 2", "ni-hao-world-2"},
		{"  ...  ", "speech"},
		{"", "speech"},
		{"Ünïcode café", "n-code-caf"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlug_Truncates(t *testing.T) {
	got := Slug(strings.Repeat("word ", 20))
	if len(got) > maxSlugLen {
		t.Errorf("slug too long: %d", len(got))
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("slug should not end with '-': %q", got)
	}
}

func TestFileName(t *testing.T) {
	got := FileName("Hello World!", "0f8fad5b-d9cb-469f-a165-70867728950e", "mp3")
	if got != "hello-world-0f8fad5b.mp3" {
		t.Errorf("FileName = %q", got)
	}
	if got := FileName("x", "ab", ""); got != "x-ab.mp3" {
		t.Errorf("short id / default format: %q", got)
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	id := "12345678-aaaa"

	tests := []struct {
		name     string
		savePath string
		want     string
	}{
		{"existing dir", dir, filepath.Join(dir, "hi-12345678.mp3")},
		{"trailing slash", dir + "/new/", filepath.Join(dir, "new", "hi-12345678.mp3")},
		{"no extension", filepath.Join(dir, "out"), filepath.Join(dir, "out", "hi-12345678.mp3")},
		{"explicit file", filepath.Join(dir, "greeting.mp3"), filepath.Join(dir, "greeting.mp3")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolvePath(tt.savePath, "hi", id, "mp3"); got != tt.want {
				t.Errorf("ResolvePath = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "a.mp3")
	if err := WriteFile(path, []byte("abc")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "abc" {
		t.Errorf("content = %q", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be gone")
	}
}

func TestFindDevice(t *testing.T) {
	devices := []Device{{Name: "Built-in Output", Default: true}, {Name: "USB Headset"}}

	if d, ok := FindDevice(devices, "usb headset"); !ok || d.Name != "USB Headset" {
		t.Errorf("case-insensitive lookup failed: %+v %v", d, ok)
	}
	if _, ok := FindDevice(devices, "HDMI"); ok {
		t.Error("unexpected match")
	}
	if _, ok := FindDevice(devices, ""); ok {
		t.Error("empty name should not match")
	}
	if !devices[0].Equal(Device{Name: "Built-in Output"}) {
		t.Error("devices with the same name should be equal")
	}
}

func TestDecodeMP3_Empty(t *testing.T) {
	if _, _, err := DecodeMP3(context.Background(), nil); !errors.Is(err, ErrNoAudio) {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
}
