// Package classification implements the labeling stage. A single JSON-mode
// request to the local AI backend proposes a title, correspondent, document
// type, tags, and custom field values; labels are created on demand and
// attached to the document. Regex extraction of invoice numbers, IBANs,
// dates, and amounts runs independently so a failed model call degrades the
// document rather than failing it.
package classification
