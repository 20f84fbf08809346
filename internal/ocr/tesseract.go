package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// TesseractConfig configures the tesseract CLI engine.
type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "rus+eng"
	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default
}

// TesseractProvider runs the tesseract CLI on a temporary copy of the image.
type TesseractProvider struct {
	cfg      TesseractConfig
	runner   Runner
	lookPath func(string) (string, error)
}

func NewTesseractProvider(cfg TesseractConfig, runner Runner) *TesseractProvider {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "rus+eng"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &TesseractProvider{cfg: cfg, runner: runner, lookPath: exec.LookPath}
}

func (p *TesseractProvider) Name() string { return "tesseract" }

func (p *TesseractProvider) Available(context.Context) bool {
	_, err := p.lookPath(p.cfg.Binary)
	return err == nil
}

func (p *TesseractProvider) Recognize(ctx context.Context, image []byte) (string, error) {
	tmpDir, err := os.MkdirTemp("", "am-ocr-*")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	path := filepath.Join(tmpDir, "image")
	if err := os.WriteFile(path, image, 0o600); err != nil {
		return "", fmt.Errorf("write temp image: %w", err)
	}
	return p.RecognizeFile(ctx, path)
}

// RecognizeFile runs tesseract <file> stdout -l <lang>.
func (p *TesseractProvider) RecognizeFile(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", p.cfg.Lang}
	if p.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(p.cfg.PSM))
	}
	if p.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(p.cfg.OEM))
	}
	if p.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", p.cfg.TessdataDir)
	}

	out, errb, err := p.runner.Run(ctx, p.cfg.Binary, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}
