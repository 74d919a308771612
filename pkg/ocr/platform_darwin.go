//go:build darwin

package ocr

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// visionScript recognizes text in an image file through the Vision
// framework. Vision runs the request asynchronously inside the spawned
// process; the process exits once the request completes.
const visionScript = `ObjC.import("Foundation");
ObjC.import("AppKit");
ObjC.import("Vision");

function run(argv) {
    var path = argv[0];
    var img = $.NSImage.alloc.initWithContentsOfFile(path);
    if (img.isNil()) {
        throw new Error("cannot read image: " + path);
    }
    var cgImage = img.CGImageForProposedRectContextHints(null, null, null);
    var request = $.VNRecognizeTextRequest.alloc.init;
    request.recognitionLevel = $.VNRequestTextRecognitionLevelAccurate;
    var handler = $.VNImageRequestHandler.alloc.initWithCGImageOptions(cgImage, $.NSDictionary.dictionary);
    var error = Ref();
    handler.performRequestsError($.NSArray.arrayWithObject(request), error);
    var lines = [];
    var results = request.results;
    for (var i = 0; i < results.count; i++) {
        var candidates = results.objectAtIndex(i).topCandidatesCount(1);
        if (candidates.count > 0) {
            lines.push(ObjC.unwrap(candidates.objectAtIndex(0).string));
        }
    }
    return lines.join("\n");
}`

func probePlatform(ctx context.Context) error {
	if _, err := exec.LookPath("osascript"); err != nil {
		return fmt.Errorf("osascript not found: %w", err)
	}
	return nil
}

func recognizeNative(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, "osascript", "-l", "JavaScript", "-e", visionScript, imagePath)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("vision recognizer: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("vision recognizer: %w", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}
