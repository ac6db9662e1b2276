package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"imgpdf/internal/converter"
)

// ErrNoSupportedFiles is returned when no supported image files are found in a directory.
var ErrNoSupportedFiles = errors.New("no supported image files found")

var supportedExtensions = map[string]bool{
	".webp": true, ".jpg": true, ".jpeg": true, ".png": true,
}

func isSupportedImage(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// findSupportedImageFiles scans a directory for supported image types and returns a sorted
// list of paths.
func findSupportedImageFiles(inputDir string) ([]string, error) {
	files, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("could not read directory %s: %w", inputDir, err)
	}

	var imageFiles []string
	for _, file := range files {
		if !file.IsDir() && isSupportedImage(file.Name()) {
			imageFiles = append(imageFiles, file.Name())
		}
	}

	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("%w in directory %s", ErrNoSupportedFiles, inputDir)
	}

	sort.Strings(imageFiles)
	for i, name := range imageFiles {
		imageFiles[i] = filepath.Join(inputDir, name)
	}
	return imageFiles, nil
}

// collectImageFiles expands args into image paths. Directories contribute their supported
// files in name order; files are kept in argument order whatever their extension.
// No args means the current directory.
func collectImageFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		found, err := findSupportedImageFiles(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

// openSources opens every path as an ImageSource. On error the files already opened are
// closed.
func openSources(paths []string) ([]converter.ImageSource, error) {
	sources := make([]converter.ImageSource, 0, len(paths))
	for i, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			for _, src := range sources {
				src.Reader.Close()
			}
			return nil, fmt.Errorf("could not open file: %w", err)
		}
		sources = append(sources, converter.ImageSource{
			OriginalFilename: filepath.Base(path),
			Reader:           f,
			ContentType:      converter.GetContentTypeFromFilename(path),
			Index:            i,
		})
	}
	return sources, nil
}

// writeOutput writes data to path, removing the file again if the write fails part way.
func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create output directory: %w", err)
		}
	}
	outFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	_, err = outFile.Write(data)
	if closeErr := outFile.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close output file: %w", closeErr)
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
