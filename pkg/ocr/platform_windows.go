//go:build windows

package ocr

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// winOCRScript recognizes text in an image file through the WinRT
// Windows.Media.Ocr API. The API is asynchronous; the script awaits each
// operation and prints the recognized lines to stdout. The %s placeholder
// receives the image path.
const winOCRScript = `$ErrorActionPreference = "Stop"
$path = '%s'
Add-Type -AssemblyName System.Runtime.WindowsRuntime
$null = [Windows.Media.Ocr.OcrEngine, Windows.Foundation, ContentType = WindowsRuntime]
$null = [Windows.Storage.StorageFile, Windows.Storage, ContentType = WindowsRuntime]
$null = [Windows.Graphics.Imaging.BitmapDecoder, Windows.Graphics.Imaging, ContentType = WindowsRuntime]

$asTaskGeneric = ([System.WindowsRuntimeSystemExtensions].GetMethods() |
    Where-Object { $_.Name -eq "AsTask" -and $_.GetParameters().Count -eq 1 -and
        $_.GetParameters()[0].ParameterType.Name -like "IAsyncOperation*" })[0]

function Await($op, $resultType) {
    $task = $asTaskGeneric.MakeGenericMethod($resultType).Invoke($null, @($op))
    $task.Wait() | Out-Null
    $task.Result
}

$engine = [Windows.Media.Ocr.OcrEngine]::TryCreateFromUserProfileLanguages()
if ($null -eq $engine) { throw "no OCR language pack installed" }

$file = Await ([Windows.Storage.StorageFile]::GetFileFromPathAsync($path)) ([Windows.Storage.StorageFile])
$stream = Await ($file.OpenReadAsync()) ([Windows.Storage.Streams.IRandomAccessStreamWithContentType])
$decoder = Await ([Windows.Graphics.Imaging.BitmapDecoder]::CreateAsync($stream)) ([Windows.Graphics.Imaging.BitmapDecoder])
$bitmap = Await ($decoder.GetSoftwareBitmapAsync()) ([Windows.Graphics.Imaging.SoftwareBitmap])
$result = Await ($engine.RecognizeAsync($bitmap)) ([Windows.Media.Ocr.OcrResult])

$result.Lines | ForEach-Object { $_.Text }`

func probePlatform(ctx context.Context) error {
	if _, err := exec.LookPath("powershell"); err != nil {
		return fmt.Errorf("powershell not found: %w", err)
	}
	return nil
}

func recognizeNative(ctx context.Context, imagePath string) (string, error) {
	script := fmt.Sprintf(winOCRScript, strings.ReplaceAll(imagePath, "'", "''"))
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("windows recognizer: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("windows recognizer: %w", err)
	}
	return strings.TrimRight(strings.ReplaceAll(string(out), "\r\n", "\n"), "\n"), nil
}
