package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codeberg.org/snonux/sahachari/internal"
	"codeberg.org/snonux/sahachari/internal/storage"
)

// Article is a heritage newspaper article about food and culture.
type Article struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Date     string `json:"date,omitempty"`
	Source   string `json:"source,omitempty"`
	Language string `json:"language"`
	Category string `json:"category,omitempty"`
}

func (a Article) record() storage.Record {
	return cleanRecord(storage.Record{
		"title":    a.Title,
		"content":  a.Content,
		"date":     a.Date,
		"source":   a.Source,
		"language": a.Language,
		"category": a.Category,
	})
}

func articleFrom(e storage.Entry) Article {
	return Article{
		Key:      e.Key,
		Title:    e.Record["title"],
		Content:  e.Record["content"],
		Date:     e.Record["date"],
		Source:   e.Record["source"],
		Language: e.Record["language"],
		Category: e.Record["category"],
	}
}

// Articles returns every article ordered by key.
func (c *Catalog) Articles(ctx context.Context) ([]Article, error) {
	return c.SearchArticles(ctx, "", "")
}

// SearchArticles finds articles whose title, content or category contain
// query. A non-empty language restricts the result.
func (c *Catalog) SearchArticles(ctx context.Context, query, language string) ([]Article, error) {
	filters := []storage.Filter{storage.Contains(query, "title", "content", "category")}
	if language != "" {
		code, err := NormalizeLanguage(language)
		if err != nil {
			return nil, err
		}
		filters = append(filters, storage.FieldEquals("language", code))
	}

	var out []Article
	for e, err := range c.store.List(ctx, Articles, storage.All(filters...)) {
		if err != nil {
			return nil, err
		}
		out = append(out, articleFrom(e))
	}
	return out, nil
}

// AddArticle stores a under a new key.
func (c *Catalog) AddArticle(ctx context.Context, a Article) (Article, error) {
	if strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.Content) == "" {
		return Article{}, &ValidationError{Problems: []string{"an article needs a title and content"}}
	}
	if a.Date != "" {
		if _, err := time.Parse(time.DateOnly, a.Date); err != nil {
			return Article{}, &ValidationError{Problems: []string{fmt.Sprintf("date %q is not YYYY-MM-DD", a.Date)}}
		}
	}
	lang := a.Language
	if lang == "" {
		lang = "en"
	}
	code, err := NormalizeLanguage(lang)
	if err != nil {
		return Article{}, &ValidationError{Problems: []string{err.Error()}}
	}
	a.Language = code
	a.Key = internal.NewRecordKey("")
	rec := a.record()
	if err := c.store.Put(ctx, Articles, a.Key, rec); err != nil {
		return Article{}, err
	}
	return articleFrom(storage.Entry{Key: a.Key, Record: rec}), nil
}
