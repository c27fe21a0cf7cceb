package imagesafety

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

type Verdict int

const (
	Safe Verdict = iota
	Unsafe
	Undetermined
)

func (v Verdict) String() string {
	switch v {
	case Safe:
		return "safe"
	case Unsafe:
		return "unsafe"
	default:
		return "undetermined"
	}
}

type Result struct {
	Verdict Verdict
	Reason  string
	Format  string
}

type signature struct {
	prefix []byte
	format string
}

var denylist = []struct {
	prefix []byte
	reason string
}{
	{[]byte{0x4D, 0x5A}, "Windows executable (.exe) disguised as image"},
	{[]byte{0x7F, 0x45, 0x4C, 0x46}, "Linux binary (ELF) disguised as image"},
}

var allowlist = []signature{
	{[]byte{0xFF, 0xD8}, "JPEG"},
	{[]byte{0x89, 0x50, 0x4E, 0x47}, "PNG"},
	{[]byte("RIFF"), "WebP"},
	{[]byte("BM"), "BMP"},
	{[]byte("GIF"), "GIF"},
}

// Verify inspects the magic bytes only. Anything outside the known
// image formats is rejected, not just known executables.
func Verify(data []byte, filename string) Result {
	if len(data) < 4 {
		return Result{Verdict: Unsafe, Reason: "File too small"}
	}

	for _, deny := range denylist {
		if bytes.HasPrefix(data, deny.prefix) {
			return Result{Verdict: Unsafe, Reason: deny.reason}
		}
	}

	for _, allow := range allowlist {
		if bytes.HasPrefix(data, allow.prefix) {
			return Result{Verdict: Safe, Format: allow.format}
		}
	}

	return Result{Verdict: Unsafe, Reason: fmt.Sprintf("Unknown file format (magic: %x)", data[:4])}
}

// DeepVerify attempts a real header decode. Advisory only: a false
// result is logged but never bans on its own.
func DeepVerify(data []byte) bool {
	if len(data) < 100 {
		return false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return false
	}
	return cfg.Width > 0 && cfg.Height > 0
}
