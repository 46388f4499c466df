// Package flow provides the article browsing flow.
package flow

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BTreeMap/SlimLine/internal/models"
)

// ArticleFlow serves a curated static reading list. The article keyword alone
// lists titles; keyword plus a number returns that article.
type ArticleFlow struct {
	articles []models.Article
}

// NewArticleFlow creates an article flow over the given list. A nil list
// falls back to the default curated set.
func NewArticleFlow(articles []models.Article) *ArticleFlow {
	if articles == nil {
		articles = DefaultArticles()
	}
	return &ArticleFlow{articles: articles}
}

// Respond handles an article command.
func (f *ArticleFlow) Respond(text string) string {
	arg := stripKeywordPrefix(text, articleKeywords)
	if arg == "" {
		return f.list()
	}

	normalized := fullWidthDigits.Replace(arg)
	n, err := strconv.Atoi(normalized)
	if err != nil || n < 1 || n > len(f.articles) {
		slog.Debug("ArticleFlow.Respond: index out of range", "arg", arg, "count", len(f.articles))
		return fmt.Sprintf("記事は1〜%dの番号で指定してください。「記事」だけ送ると一覧が見られます。", len(f.articles))
	}

	a := f.articles[n-1]
	return fmt.Sprintf("📖 %s\n%s\n%s", a.Title, a.Blurb, a.URL)
}

// list renders the numbered article index.
func (f *ArticleFlow) list() string {
	var b strings.Builder
	b.WriteString("📚 おすすめ記事一覧\n")
	for i, a := range f.articles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, a.Title)
	}
	b.WriteString("「記事 2」のように番号を送ると詳細が見られます。")
	return b.String()
}

// DefaultArticles is the built-in curated reading list.
func DefaultArticles() []models.Article {
	return []models.Article{
		{
			Title: "置き換えダイエットの基本",
			Blurb: "高カロリーな食材を低カロリーなものに置き換える考え方と、無理なく続けるコツをまとめました。",
			URL:   "https://www.e-healthnet.mhlw.go.jp/information/food/e-02-001.html",
		},
		{
			Title: "主食のカロリーを知ろう",
			Blurb: "ご飯・パン・麺の一食あたりのカロリーと、量を調整するときの目安を紹介します。",
			URL:   "https://www.e-healthnet.mhlw.go.jp/information/food/e-03-003.html",
		},
		{
			Title: "間食との上手な付き合い方",
			Blurb: "おやつをやめずにカロリーを抑える選び方とタイミングの工夫です。",
			URL:   "https://www.e-healthnet.mhlw.go.jp/information/food/e-02-010.html",
		},
		{
			Title: "たんぱく質を味方にする",
			Blurb: "満足感を保ちながら減量するための、たんぱく質中心の食事の組み立て方です。",
			URL:   "https://www.e-healthnet.mhlw.go.jp/information/food/e-02-004.html",
		},
		{
			Title: "外食でのメニュー選び",
			Blurb: "外食やコンビニでもカロリーを抑えられる、メニュー選びのチェックポイントです。",
			URL:   "https://www.e-healthnet.mhlw.go.jp/information/food/e-03-010.html",
		},
	}
}
