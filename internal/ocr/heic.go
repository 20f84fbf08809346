package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ConvertHEIC converts HEIC/HEIF image bytes to PNG with the chosen converter.
// converter: "heif-convert" | "magick" | "sips"
func ConvertHEIC(ctx context.Context, r Runner, converter string, data []byte) ([]byte, error) {
	if r == nil {
		r = ExecRunner{}
	}
	tmpDir, err := os.MkdirTemp("", "am-heic-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	in := filepath.Join(tmpDir, "image.heic")
	out := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}

	switch converter {
	case "heif-convert":
		if _, errb, err := r.Run(ctx, "heif-convert", in, out); err != nil {
			return nil, fmt.Errorf("heif-convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	case "magick", "":
		if _, errb, err := r.Run(ctx, "magick", in, out); err != nil {
			return nil, fmt.Errorf("magick convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	case "sips":
		if _, errb, err := r.Run(ctx, "sips", "-s", "format", "png", in, "--out", out); err != nil {
			return nil, fmt.Errorf("sips convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	default:
		return nil, fmt.Errorf("HEIC not supported: converter must be one of heif-convert | magick | sips, got %q", converter)
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}
	return png, nil
}
