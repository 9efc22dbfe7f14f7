package report

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/SampleBias/capture-coder/src/session"
)

const pageShell = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 56rem; margin: 2rem auto; padding: 0 1rem; }
pre { background: #f4f4f4; padding: 1rem; overflow-x: auto; }
h2 { border-bottom: 1px solid #ddd; padding-bottom: 0.3rem; }
</style>
</head>
<body>
%s
</body>
</html>
`

// Write renders the session's iterations to a standalone HTML page and
// returns its path. An empty dir selects the OS temp directory.
func Write(dir, sessionID string, iterations []session.Iteration) (string, error) {
	if len(iterations) == 0 {
		return "", errors.New("report: no iterations")
	}
	if dir == "" {
		dir = os.TempDir()
	}

	var md strings.Builder
	fmt.Fprintf(&md, "# Solution history %s\n\n", sessionID)
	for _, it := range iterations {
		fmt.Fprintf(&md, "## Iteration %d (%s, %s)\n\n", it.Seq, it.Kind, it.CreatedAt.Format("15:04:05"))
		fence := fenceFor(it.Source)
		fmt.Fprintf(&md, "%s\n%s\n%s\n\n", fence, it.Source, fence)
	}

	var body bytes.Buffer
	if err := goldmark.Convert([]byte(md.String()), &body); err != nil {
		return "", fmt.Errorf("render history: %w", err)
	}

	page := fmt.Sprintf(pageShell, html.EscapeString("Solution history "+sessionID), body.String())
	path := filepath.Join(dir, fmt.Sprintf("capture-coder-history-%s.html", sessionID))
	if err := os.WriteFile(path, []byte(page), 0644); err != nil {
		return "", fmt.Errorf("write history page: %w", err)
	}
	return path, nil
}

// fenceFor builds a code fence longer than any backtick run in src so the
// solution text can never terminate its own block.
func fenceFor(src string) string {
	longest, current := 0, 0
	for _, r := range src {
		if r == '`' {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	n := longest + 1
	if n < 3 {
		n = 3
	}
	return strings.Repeat("`", n)
}
