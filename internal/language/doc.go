// Package language normalizes OCR language codes between the user-facing
// configuration (ISO 639-1 or BCP 47) and the tesseract traineddata naming
// scheme, including the combined "eng+deu" argument form used for a single
// multi-language recognition pass.
package language
