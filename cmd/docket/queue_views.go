package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"docket/internal/ipc"
	"docket/internal/queue"
)

func buildQueueStatusRows(stats map[string]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		count, ok := stats[string(status)]
		if !ok || count == 0 {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(string(status)), strconv.Itoa(count)})
	}
	return rows
}

func buildQueueListRows(docs []ipc.DocumentSummary) [][]string {
	rows := make([][]string, 0, len(docs))
	for _, doc := range docs {
		title := strings.TrimSpace(doc.Title)
		if title == "" {
			title = doc.OriginalFilename
		}
		rows = append(rows, []string{
			shortID(doc.ID),
			truncateCell(title, 40),
			formatStatusLabel(doc.Status),
			doc.CreatedAt.Local().Format("2006-01-02 15:04"),
			formatReviewFlag(doc),
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return strings.ToUpper(status[:1]) + status[1:]
}

func formatReviewFlag(doc ipc.DocumentSummary) string {
	if !doc.NeedsReview {
		return ""
	}
	reason := strings.TrimSpace(doc.ReviewReason)
	if reason == "" {
		return "review"
	}
	return truncateCell(reason, 40)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncateCell(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

func writeDocumentDetail(out *strings.Builder, detail *documentDetail) {
	doc := detail.Document

	appendField := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(out, "  %-18s %s\n", label+":", value)
	}

	fmt.Fprintf(out, "Document %s\n", doc.ID)
	appendField("Filename", doc.OriginalFilename)
	appendField("Title", doc.Title)
	appendField("Status", formatStatusLabel(doc.Status))
	appendField("MIME type", doc.MimeType)
	if doc.SizeBytes > 0 {
		appendField("Size", formatByteSize(doc.SizeBytes))
	}
	if doc.PageCount > 0 {
		appendField("Pages", strconv.Itoa(doc.PageCount))
	}
	appendField("Extraction", doc.ExtractionMethod)
	appendField("Thumbnail", doc.ThumbnailPath)
	if doc.NeedsReview {
		reason := doc.ReviewReason
		if strings.TrimSpace(reason) == "" {
			reason = "yes"
		}
		appendField("Needs review", reason)
	}
	appendField("Error", doc.ErrorMessage)
	if doc.ProgressStage != "" {
		appendField("Progress", fmt.Sprintf("%s (%.0f%%)", doc.ProgressStage, doc.ProgressPercent))
	}
	appendField("Created", doc.CreatedAt.Local().Format(time.RFC1123))
	appendField("Updated", doc.UpdatedAt.Local().Format(time.RFC1123))

	if len(detail.Tags) > 0 {
		names := make([]string, 0, len(detail.Tags))
		for _, tag := range detail.Tags {
			names = append(names, tag.Name)
		}
		appendField("Tags", strings.Join(names, ", "))
	}

	if len(detail.History) > 0 {
		fmt.Fprintln(out, "\nHistory:")
		for _, entry := range detail.History {
			line := fmt.Sprintf("  %s  %-14s %-8s attempt %d",
				entry.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				entry.Stage,
				entry.Outcome,
				entry.Attempt,
			)
			if strings.TrimSpace(entry.Message) != "" {
				line += "  " + entry.Message
			}
			fmt.Fprintln(out, line)
		}
	}
}

func formatByteSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
