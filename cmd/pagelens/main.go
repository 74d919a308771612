// Package main provides the headless Pagelens CLI
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/dispatch"
	"github.com/pagelens/pagelens/internal/extract"
	"github.com/pagelens/pagelens/internal/render"
	"github.com/pagelens/pagelens/internal/viewer"
	"github.com/pagelens/pagelens/pkg/document"
	"github.com/pagelens/pagelens/pkg/ocr"
)

func main() {
	// The CLI talks to stdout; keep log noise out of the transcript.
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)

	if len(os.Args) < 2 {
		showHelp()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "engines":
		listEngines()

	case "ocr":
		if len(os.Args) < 3 {
			fmt.Println("❌ Usage: pagelens ocr <file.pdf> [engine]")
			os.Exit(1)
		}
		engine := ""
		if len(os.Args) > 3 {
			engine = os.Args[3]
		}
		ocrDocument(os.Args[2], engine)

	case "text":
		if len(os.Args) < 3 {
			fmt.Println("❌ Usage: pagelens text <file.pdf>")
			os.Exit(1)
		}
		extractText(os.Args[2])

	default:
		showHelp()
	}
}

func listEngines() {
	cfg := config.Load()
	registry := ocr.NewRegistry(context.Background(), ocr.DefaultCandidates(
		cfg.OCR.Language,
		cfg.OCR.OllamaModel,
		cfg.OCR.OllamaServerURL,
	)...)

	available := registry.Available()
	if len(available) == 0 {
		fmt.Println("❌ No OCR engine is usable on this host")
		os.Exit(1)
	}

	def, _ := registry.Default()
	fmt.Printf("Detected %d OCR engine(s):\n", len(available))
	for _, id := range available {
		marker := "  "
		if id == def {
			marker = "* "
		}
		fmt.Printf("%s%-10s %s\n", marker, id, registry.Info(id))
	}
}

// ocrDocument recognizes every page of the PDF and writes the labeled
// result next to it as <file>.txt.
func ocrDocument(path, engineName string) {
	cfg := config.Load()
	registry := ocr.NewRegistry(context.Background(), ocr.DefaultCandidates(
		cfg.OCR.Language,
		cfg.OCR.OllamaModel,
		cfg.OCR.OllamaServerURL,
	)...)
	adapter := ocr.NewAdapter(registry)
	defer adapter.Close()

	engine, ok := registry.Default()
	if !ok {
		fmt.Println("❌ No OCR engine is usable on this host")
		os.Exit(1)
	}
	if engineName != "" {
		if !registry.Has(ocr.EngineID(engineName)) {
			fmt.Printf("❌ Engine %q is not available (try 'pagelens engines')\n", engineName)
			os.Exit(1)
		}
		engine = ocr.EngineID(engineName)
	}

	doc, err := render.Open(path)
	if err != nil {
		fmt.Printf("❌ Failed to open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer doc.Close()

	fmt.Printf("🔄 Recognizing %s (%d pages) using %s\n", path, doc.PageCount(), engine)

	session := viewer.NewSession("cli", engine, nil)
	defer session.Close()
	if err := session.Open(doc, ""); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	dispatcher := dispatch.NewDispatcher(adapter, nil)
	task, err := session.OCRDocument(dispatcher)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	text, err := task.Wait(context.Background())
	if err != nil {
		fmt.Printf("❌ OCR failed: %v\n", err)
		os.Exit(1)
	}

	output := strings.TrimSuffix(path, ".pdf")
	written, err := document.SaveText(output, text)
	if err != nil {
		fmt.Printf("❌ Failed to save: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Saved %d characters to %s\n", len(text), written)
}

// extractText prints the PDF's embedded text layer without running any OCR.
func extractText(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("❌ Failed to read %s: %v\n", path, err)
		os.Exit(1)
	}

	text, metadata, err := extract.NewTextLayerExtractor().Extract(context.Background(), content)
	if err != nil {
		fmt.Printf("❌ Extraction failed: %v\n", err)
		os.Exit(1)
	}
	if text == "" {
		fmt.Printf("⚠️  No embedded text layer (%s pages scanned?)\n", metadata["pages"])
		return
	}

	fmt.Println(text)
}

func showHelp() {
	fmt.Println("Pagelens - PDF OCR workbench")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pagelens engines               List usable OCR engines")
	fmt.Println("  pagelens ocr <file.pdf> [eng]  Recognize every page, save <file>.txt")
	fmt.Println("  pagelens text <file.pdf>       Print the embedded text layer")
}
