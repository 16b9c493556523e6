// Package publish compresses the finished database into distributable
// artifacts.
package publish

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/dsnet/compress/bzip2"
	"go.uber.org/zap"
)

// Supported artifact formats.
const (
	FormatGzip  = "gz"
	FormatBzip2 = "bz2"
)

// Write produces one compressed copy of the database per requested format,
// named by appending the format extension to dbPath. It returns the artifact
// paths in the order requested.
func Write(dbPath string, formats []string, log *zap.Logger) ([]string, error) {
	var artifacts []string
	for _, format := range formats {
		dest := dbPath + "." + format
		if err := compressFile(dbPath, dest, format); err != nil {
			return nil, err
		}
		log.Info("wrote artifact", zap.String("path", dest))
		artifacts = append(artifacts, dest)
	}
	return artifacts, nil
}

func compressFile(src, dest, format string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer out.Close()

	var w io.WriteCloser
	switch format {
	case FormatGzip:
		w = gzip.NewWriter(out)
	case FormatBzip2:
		w, err = bzip2.NewWriter(out, &bzip2.WriterConfig{Level: bzip2.BestCompression})
		if err != nil {
			return fmt.Errorf("creating bzip2 writer: %w", err)
		}
	default:
		return fmt.Errorf("unsupported artifact format %q", format)
	}

	if _, err := io.Copy(w, in); err != nil {
		w.Close()
		return fmt.Errorf("compressing %s: %w", dest, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing %s: %w", dest, err)
	}
	return nil
}
