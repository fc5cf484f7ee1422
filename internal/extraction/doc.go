// Package extraction implements the text extraction stage. PDFs are read with
// pdftotext first; when the embedded text layer falls below the configured
// threshold the pages are rendered with pdftoppm and recognized with tesseract
// in a single combined-language pass. Image documents skip straight to OCR.
package extraction
