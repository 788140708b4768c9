package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CollectArticles lists up to n article links and resolves each one. It runs
// before any worker starts; a page without a title aborts the whole run.
func CollectArticles(
	ctx context.Context,
	lister Lister,
	resolver Resolver,
	n int,
	logger *zap.Logger,
) ([]Article, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	links, err := lister.ListArticles(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	logger.Info("article links collected", zap.Int("requested", n), zap.Int("found", len(links)))

	articles := make([]Article, 0, len(links))
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("collect canceled: %w", err)
		}
		article, err := resolver.Resolve(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", link, err)
		}
		logger.Debug("article resolved",
			zap.String("link", link),
			zap.String("title", article.Title),
			zap.Int("images", len(article.ImageURLs)),
		)
		articles = append(articles, article)
	}
	return articles, nil
}
