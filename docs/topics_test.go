package docs

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// sj is the command built once for the whole package.
var sj string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "sj-docs-")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	sj = filepath.Join(dir, "sj")
	if out, err := exec.Command("go", "build", "-o", sj, "../sj/").CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "cannot build sj: %v\n%s", err, out)
		os.RemoveAll(dir)
		os.Exit(1)
	}
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// The index lists every topic, and only existing ones.
func TestIndex(t *testing.T) {
	index, err := GetTopic("readme")
	if err != nil {
		t.Fatal(err)
	}
	var listed []string
	for _, m := range regexp.MustCompile(`(?m)^\*\s+([a-z-]+):`).FindAllStringSubmatch(index, -1) {
		listed = append(listed, m[1])
	}
	slices.Sort(listed)

	topics, err := GetAllTopics()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(listed, topics) {
		t.Errorf("readme.md lists %v, want %v", listed, topics)
	}
	if _, err := GetTopic("*"); err != nil {
		t.Errorf("GetTopic(*) unexpected error: %v", err)
	}
}

// step is an annotated code block of a guide page.
//
//	```bash setup     starts a new journal and runs the commands
//	```bash run       runs the commands and keeps their output
//	```console check  the output of the last run
//	```journal <key>  the content of that part of the journal data directory
type step struct {
	kind, key string
	body      string
	at        string // file:line
}

// steps returns the annotated code blocks of a markdown file, in order.
func steps(t *testing.T, file string) []step {
	t.Helper()
	src, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	var list []step
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !entering || !ok || fcb.Info == nil {
			return ast.WalkContinue, nil
		}
		info := strings.Fields(string(fcb.Info.Segment.Value(src)))
		if len(info) != 2 {
			return ast.WalkContinue, nil
		}
		var s step
		switch info[0] + " " + info[1] {
		case "bash setup":
			s.kind = "setup"
		case "bash run":
			s.kind = "run"
		case "console check":
			s.kind = "check"
		default:
			if info[0] != "journal" {
				return ast.WalkContinue, nil
			}
			s.kind, s.key = "journal", info[1]
		}
		var body bytes.Buffer
		for i := 0; i < fcb.Lines().Len(); i++ {
			seg := fcb.Lines().At(i)
			body.Write(seg.Value(src))
		}
		s.body = body.String()
		s.at = fmt.Sprintf("%s:%d", file, 1+bytes.Count(src[:fcb.Info.Segment.Start], []byte("\n")))
		list = append(list, s)
		return ast.WalkContinue, nil
	})
	return list
}

// scenario replays the steps of a page against a journal of its own.
type scenario struct {
	env    []string
	dir    string // working directory, the journal is in dir/.journal
	output string
}

func newScenario() *scenario {
	return &scenario{env: append(os.Environ(),
		"PATH="+filepath.Dir(sj)+string(os.PathListSeparator)+os.Getenv("PATH"),
		"SJ_TESTING_NOW=2024-06-01 12:00:00",
		"SJ_DATA_DIR=.journal",
		"SJ_STORE=file",
		"SJ_CURRENCY=PKR",
		"SJ_LOG_LEVEL=error",
		"GEMINI_API_KEY=",
		"GOOGLE_API_KEY=",
	)}
}

func (sc *scenario) play(t *testing.T, s step) {
	t.Helper()
	switch s.kind {
	case "setup", "run":
		if s.kind == "setup" || sc.dir == "" {
			sc.dir = t.TempDir()
		}
		cmd := exec.Command("bash", "-e", "-c", s.body)
		cmd.Dir, cmd.Env = sc.dir, sc.env
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("%s: %s failed: %v\n%s", s.at, s.kind, err, out)
		}
		if s.kind == "run" {
			sc.output = string(out)
		}
	case "check":
		if got, want := strings.TrimSpace(sc.output), strings.TrimSpace(s.body); got != want {
			t.Errorf("%s: output\n%s\nwant\n%s", s.at, got, want)
		}
	case "journal":
		data, err := os.ReadFile(filepath.Join(sc.dir, ".journal", s.key))
		if err != nil {
			t.Errorf("%s: %v", s.at, err)
			return
		}
		if got, want := strings.TrimSpace(string(data)), strings.TrimSpace(s.body); got != want {
			t.Errorf("%s: journal %s = %q, want %q", s.at, s.key, got, want)
		}
	}
}

// Every guide page, and the README, runs as documented.
func TestGuide(t *testing.T) {
	pages, err := filepath.Glob("*.md")
	if err != nil {
		t.Fatal(err)
	}
	for _, page := range append(pages, "../README.md") {
		t.Run(strings.TrimSuffix(filepath.Base(page), ".md"), func(t *testing.T) {
			sc := newScenario()
			for _, s := range steps(t, page) {
				sc.play(t, s)
			}
		})
	}
}
