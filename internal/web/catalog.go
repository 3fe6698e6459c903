package web

import (
	"net/http"

	"github.com/erazemk/catalog/internal/model"
	"github.com/erazemk/catalog/internal/session"
	"github.com/erazemk/catalog/internal/store"
)

// home handles GET /.
func (s *Server) home(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	categories, err := store.ListCategories(r.Context(), s.DB)
	if err != nil {
		return err
	}
	latest, err := store.ListLatestItems(r.Context(), s.DB, s.LatestItems)
	if err != nil {
		return err
	}

	return s.render(w, r, sess, http.StatusOK, "home.html", &struct {
		PageData
		Categories  []model.Category
		LatestItems []model.Item
	}{
		PageData:    s.page(sess, "Catalog"),
		Categories:  categories,
		LatestItems: latest,
	})
}

// categoryItems handles GET /categories/{category_id}/items.
func (s *Server) categoryItems(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	categoryID, err := pathID(r, "category_id")
	if err != nil {
		return err
	}
	category, err := store.GetCategory(r.Context(), s.DB, categoryID)
	if err != nil {
		return err
	}
	if category == nil {
		return errNotFound
	}

	items, err := store.ListItemsByCategory(r.Context(), s.DB, categoryID)
	if err != nil {
		return err
	}

	if wantsJSON(r) {
		if items == nil {
			items = []model.Item{}
		}
		jsonResponse(w, http.StatusOK, map[string]any{"json_list": items})
		return nil
	}

	categories, err := store.ListCategories(r.Context(), s.DB)
	if err != nil {
		return err
	}

	return s.render(w, r, sess, http.StatusOK, "category_items.html", &struct {
		PageData
		Categories []model.Category
		Category   *model.Category
		Items      []model.Item
	}{
		PageData:   s.page(sess, category.Name),
		Categories: categories,
		Category:   category,
		Items:      items,
	})
}

// itemDetail handles GET /categories/{category_id}/items/{item_id}.
func (s *Server) itemDetail(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	categoryID, err := pathID(r, "category_id")
	if err != nil {
		return err
	}
	itemID, err := pathID(r, "item_id")
	if err != nil {
		return err
	}

	item, err := store.GetItem(r.Context(), s.DB, itemID)
	if err != nil {
		return err
	}
	if item == nil || item.CategoryID != categoryID {
		return errNotFound
	}

	if wantsJSON(r) {
		jsonResponse(w, http.StatusOK, item)
		return nil
	}

	return s.render(w, r, sess, http.StatusOK, "item_detail.html", &struct {
		PageData
		Item *model.Item
	}{
		PageData: s.page(sess, item.Name),
		Item:     item,
	})
}
