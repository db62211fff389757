package export

import (
	"fmt"
	"strings"
)

// renderMarkdown writes the snapshot as a readable retro summary: one
// section per column, child cards indented under their parent, reaction
// counts inline.
func renderMarkdown(snapshot BoardSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", snapshot.Name)
	fmt.Fprintf(&b, "Board %s (%s), exported %s\n\n",
		snapshot.BoardID, snapshot.State, snapshot.ExportedAt.Format("2006-01-02 15:04 UTC"))

	for _, column := range snapshot.Columns {
		fmt.Fprintf(&b, "## %s\n\n", column.Label)
		if len(column.Cards) == 0 {
			b.WriteString("_No cards._\n\n")
			continue
		}
		for _, card := range column.Cards {
			writeCardLine(&b, card, 0)
			for _, child := range card.Children {
				writeCardLine(&b, child, 1)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeCardLine(b *strings.Builder, card CardSnapshot, depth int) {
	indent := strings.Repeat("  ", depth)
	author := card.Alias
	if author == "" {
		author = "anonymous"
	}

	fmt.Fprintf(b, "%s- **[%s]** %s", indent, card.CardType, card.Content)
	if card.Aggregate != card.Direct {
		fmt.Fprintf(b, " _(%d reactions, %d with children)_", card.Direct, card.Aggregate)
	} else if card.Direct > 0 {
		fmt.Fprintf(b, " _(%d reactions)_", card.Direct)
	}
	fmt.Fprintf(b, " (by %s)\n", author)

	if len(card.Linked) > 0 {
		fmt.Fprintf(b, "%s  - addresses: %s\n", indent, strings.Join(card.Linked, ", "))
	}
}
