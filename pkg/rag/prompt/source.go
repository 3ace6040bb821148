package prompt

import (
	"fmt"
	"strings"
)

// SourceSeparator never survives inside a source block; FormatSource strips it from content.
const SourceSeparator = "\n\n<source-break/>\n\n"

const sourceBreakTag = "<source-break/>"

// FormatSource renders one retrieved chunk as `[Source i – filename, page N]: content`.
func FormatSource(index int, filename string, page int, content string) string {
	content = strings.ReplaceAll(content, sourceBreakTag, "")
	return fmt.Sprintf("[Source %d – %s, page %d]: %s", index, filename, page, strings.TrimSpace(content))
}
