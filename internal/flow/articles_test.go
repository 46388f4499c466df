package flow

import (
	"strings"
	"testing"

	"github.com/BTreeMap/SlimLine/internal/models"
)

func testArticles() []models.Article {
	return []models.Article{
		{Title: "記事その一", Blurb: "一つ目の説明", URL: "https://example.com/1"},
		{Title: "記事その二", Blurb: "二つ目の説明", URL: "https://example.com/2"},
	}
}

func TestArticleListRendering(t *testing.T) {
	f := NewArticleFlow(testArticles())

	reply := f.Respond("記事")
	if !strings.Contains(reply, "1. 記事その一") || !strings.Contains(reply, "2. 記事その二") {
		t.Errorf("expected numbered list, got %q", reply)
	}

	// English keyword works too
	reply = f.Respond("articles")
	if !strings.Contains(reply, "記事その一") {
		t.Errorf("expected list for english keyword, got %q", reply)
	}
}

func TestArticleDetail(t *testing.T) {
	f := NewArticleFlow(testArticles())

	reply := f.Respond("記事 2")
	if !strings.Contains(reply, "記事その二") || !strings.Contains(reply, "https://example.com/2") {
		t.Errorf("expected second article detail, got %q", reply)
	}

	// Full-width index
	reply = f.Respond("記事 ２")
	if !strings.Contains(reply, "記事その二") {
		t.Errorf("expected full-width index to work, got %q", reply)
	}
}

func TestArticleIndexOutOfRange(t *testing.T) {
	f := NewArticleFlow(testArticles())

	for _, in := range []string{"記事 0", "記事 3", "記事 abc"} {
		reply := f.Respond(in)
		if !strings.Contains(reply, "1〜2の番号") {
			t.Errorf("expected range error for %q, got %q", in, reply)
		}
	}
}

func TestDefaultArticlesAreUsable(t *testing.T) {
	f := NewArticleFlow(nil)
	reply := f.Respond("記事 1")
	if !strings.Contains(reply, "http") {
		t.Errorf("expected default article with URL, got %q", reply)
	}
}
