//go:build !darwin && !windows

package ocr

import (
	"context"
	"fmt"
	"runtime"
)

func probePlatform(ctx context.Context) error {
	return fmt.Errorf("no native recognizer on %s", runtime.GOOS)
}

func recognizeNative(ctx context.Context, imagePath string) (string, error) {
	return "", fmt.Errorf("no native recognizer on %s", runtime.GOOS)
}
