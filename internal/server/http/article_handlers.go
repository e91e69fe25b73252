package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trialsignal/pharmacovigilance-service/internal/repository"
)

// listArticles handles GET /api/v1/articles.
func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	pageSize, offset, ok := parsePaginationParams(w, r)
	if !ok {
		return
	}

	filter := repository.ArticleFilter{
		Search:  strings.TrimSpace(r.URL.Query().Get("search")),
		Journal: strings.TrimSpace(r.URL.Query().Get("journal")),
		Limit:   pageSize,
		Offset:  offset,
	}
	if v := r.URL.Query().Get("published_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid published_after format: expected RFC3339")
			return
		}
		filter.PublishedAfter = &t
	}
	if v := r.URL.Query().Get("published_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid published_before format: expected RFC3339")
			return
		}
		filter.PublishedBefore = &t
	}

	articles, total, err := s.service.ListArticles(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := listArticlesResponse{
		Articles:   make([]articleResponse, len(articles)),
		TotalCount: total,
	}
	for i, article := range articles {
		resp.Articles[i] = toArticleResponse(article)
	}
	if int64(offset+len(articles)) < total {
		resp.NextPageToken = encodePageToken(offset + len(articles))
	}

	writeJSON(w, http.StatusOK, resp)
}

// getArticle handles GET /api/v1/articles/{pmid}.
func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	pmid := strings.TrimSpace(chi.URLParam(r, "pmid"))
	if pmid == "" {
		writeError(w, http.StatusBadRequest, "pmid is required")
		return
	}

	article, err := s.service.GetArticle(r.Context(), pmid)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toArticleResponse(article))
}
