// Package thumbnail renders a PNG preview for each document: the first page
// of PDFs via pdfcpu page extraction and pdftoppm, a plain copy for image
// documents. Rendering problems degrade the stage instead of failing the
// document.
package thumbnail
