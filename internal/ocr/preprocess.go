package ocr

import (
	"fmt"
	"os"

	"github.com/disintegration/imaging"
)

// preprocess writes a grayscale, contrast-boosted and sharpened copy of the
// image to the artifact directory. Images much smaller or larger than the
// target height are resized first. The returned cleanup removes the copy.
func (e *Extractor) preprocess(path string) (string, func(), error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", nil, fmt.Errorf("open image: %w", err)
	}

	target := e.cfg.TargetHeight
	if h := img.Bounds().Dy(); h > 0 && (h < target || h > 2*target) {
		img = imaging.Resize(img, 0, target, imaging.Lanczos)
	}
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 20)
	out = imaging.Sharpen(out, 1.0)

	if err := os.MkdirAll(e.cfg.ArtifactCacheDir, 0o755); err != nil {
		return "", nil, err
	}
	f, err := os.CreateTemp(e.cfg.ArtifactCacheDir, "pre-*.png")
	if err != nil {
		return "", nil, err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", nil, err
	}
	if err := imaging.Save(out, name); err != nil {
		_ = os.Remove(name)
		return "", nil, fmt.Errorf("save preprocessed image: %w", err)
	}
	e.logger.Debug("ocr.preprocess.ok", "path", path, "out", name, "height", out.Bounds().Dy())
	return name, func() { _ = os.Remove(name) }, nil
}
