package main

import (
	"fmt"
	"strings"

	"github.com/ternarybob/finsight/internal/models"
)

// formatStockList renders the covered companies as a markdown table
func formatStockList(records []models.EntityRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Covered stocks (%d)\n\n", len(records)))
	sb.WriteString("| Symbol | Company |\n")
	sb.WriteString("|--------|---------|\n")
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", r.Symbol, r.Name))
	}
	return sb.String()
}
