package web

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/catalog/internal/authz"
	"github.com/erazemk/catalog/internal/blob"
	"github.com/erazemk/catalog/internal/db"
	"github.com/erazemk/catalog/internal/imaging"
	"github.com/erazemk/catalog/internal/model"
	"github.com/erazemk/catalog/internal/session"
	"github.com/erazemk/catalog/internal/store"
)

// itemForm holds the editable fields of an item.
type itemForm struct {
	Title       string
	Description string
	CategoryID  int64
}

func formFromItem(item *model.Item) itemForm {
	if item == nil {
		return itemForm{}
	}
	return itemForm{Title: item.Name, Description: item.Description, CategoryID: item.CategoryID}
}

// itemEditForm handles GET /items/{item_id}/edit. Item 0 shows an empty form
// for a new item.
func (s *Server) itemEditForm(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	itemID, err := pathID(r, "item_id")
	if err != nil {
		return err
	}
	item, err := authz.AuthorizeMutation(r.Context(), s.DB, sess.Identity, itemID)
	if err != nil {
		return err
	}
	if itemID != 0 && item == nil {
		return errNotFound
	}

	form := formFromItem(item)
	if item == nil {
		form.CategoryID, _ = strconv.ParseInt(r.URL.Query().Get("category_id"), 10, 64)
	}
	return s.renderItemForm(w, r, sess, http.StatusOK, item, form, "")
}

func (s *Server) renderItemForm(w http.ResponseWriter, r *http.Request, sess *session.Session, status int, item *model.Item, form itemForm, problem string) error {
	categories, err := store.ListCategories(r.Context(), s.DB)
	if err != nil {
		return err
	}

	title := "New item"
	var itemID int64
	if item != nil {
		title = "Edit " + item.Name
		itemID = item.ID
	}
	p, err := s.formPage(sess, title)
	if err != nil {
		return err
	}
	p.Error = problem

	return s.render(w, r, sess, status, "item_edit.html", &struct {
		PageData
		ItemID     int64
		Item       *model.Item
		Form       itemForm
		Categories []model.Category
	}{
		PageData:   p,
		ItemID:     itemID,
		Item:       item,
		Form:       form,
		Categories: categories,
	})
}

// itemEditSubmit handles POST /items/{item_id}/edit. Item 0 creates a new
// item owned by the session user; otherwise only the submitted fields of the
// existing item change.
func (s *Server) itemEditSubmit(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	itemID, err := pathID(r, "item_id")
	if err != nil {
		return err
	}
	item, err := authz.AuthorizeMutation(r.Context(), s.DB, sess.Identity, itemID)
	if err != nil {
		return err
	}
	if itemID != 0 && item == nil {
		return errNotFound
	}

	form := formFromItem(item)
	if _, ok := r.PostForm["title"]; ok {
		form.Title = strings.TrimSpace(r.PostForm.Get("title"))
	}
	if _, ok := r.PostForm["description"]; ok {
		form.Description = strings.TrimSpace(r.PostForm.Get("description"))
	}
	if _, ok := r.PostForm["category"]; ok {
		form.CategoryID, err = strconv.ParseInt(r.PostForm.Get("category"), 10, 64)
		if err != nil {
			form.CategoryID = 0
		}
	}

	problem, err := s.validateItem(r.Context(), form)
	if err != nil {
		return err
	}
	if problem != "" {
		return s.renderItemForm(w, r, sess, http.StatusBadRequest, item, form, problem)
	}

	userID := sess.Identity.UserID
	if item == nil {
		var created *model.Item
		err = s.DB.WithTx(r.Context(), func(ctx context.Context, q db.Querier) error {
			var err error
			created, err = store.CreateItem(ctx, q, form.Title, form.Description, form.CategoryID, userID)
			return err
		})
		if err != nil {
			return err
		}
		slog.Info("item created", "user", userID, "item", created.ID, "name", created.Name)
		sess.AddFlash("Created " + created.Name)
		return s.redirect(w, r, sess, itemURL(created.CategoryID, created.ID))
	}

	err = s.DB.WithTx(r.Context(), func(ctx context.Context, q db.Querier) error {
		return store.UpdateItem(ctx, q, item.ID, form.Title, form.Description, form.CategoryID)
	})
	if err != nil {
		return err
	}
	slog.Info("item updated", "user", userID, "item", item.ID, "name", form.Title)
	sess.AddFlash("Updated " + form.Title)
	return s.redirect(w, r, sess, itemURL(form.CategoryID, item.ID))
}

// validateItem returns a message describing what is wrong with the form, or
// "" if it can be saved.
func (s *Server) validateItem(ctx context.Context, form itemForm) (string, error) {
	if form.Title == "" {
		return "Please enter a title.", nil
	}
	if form.CategoryID <= 0 {
		return "Please choose a category.", nil
	}
	category, err := store.GetCategory(ctx, s.DB, form.CategoryID)
	if err != nil {
		return "", err
	}
	if category == nil {
		return "Please choose a category.", nil
	}
	return "", nil
}

// ownedItem authorizes the session for an existing item. Unknown items are
// not found.
func (s *Server) ownedItem(r *http.Request, sess *session.Session) (*model.Item, error) {
	itemID, err := pathID(r, "item_id")
	if err != nil {
		return nil, err
	}
	item, err := authz.AuthorizeMutation(r.Context(), s.DB, sess.Identity, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, errNotFound
	}
	return item, nil
}

// itemDeleteForm handles GET /items/{item_id}/delete.
func (s *Server) itemDeleteForm(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	item, err := s.ownedItem(r, sess)
	if err != nil {
		return err
	}

	p, err := s.formPage(sess, "Delete "+item.Name)
	if err != nil {
		return err
	}
	return s.render(w, r, sess, http.StatusOK, "item_delete.html", &struct {
		PageData
		Item *model.Item
	}{
		PageData: p,
		Item:     item,
	})
}

// itemDeleteSubmit handles POST /items/{item_id}/delete.
func (s *Server) itemDeleteSubmit(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	item, err := s.ownedItem(r, sess)
	if err != nil {
		return err
	}

	err = s.DB.WithTx(r.Context(), func(ctx context.Context, q db.Querier) error {
		return store.DeleteItem(ctx, q, item.ID)
	})
	if err != nil {
		return err
	}
	if item.HasImage() {
		s.deleteBlob(r.Context(), item.ImageKey)
	}

	slog.Info("item deleted", "user", sess.Identity.UserID, "item", item.ID, "name", item.Name)
	sess.AddFlash(item.Name + " deleted")
	return s.redirect(w, r, sess, "/")
}

// itemImageSubmit handles POST /items/{item_id}/image.
func (s *Server) itemImageSubmit(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	item, err := s.ownedItem(r, sess)
	if err != nil {
		return err
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return badRequest("Please choose a JPEG or PNG picture to upload.")
	}
	defer file.Close()

	img, err := s.Images.Process(file)
	if errors.Is(err, imaging.ErrUnsupportedFormat) {
		return badRequest("Only JPEG and PNG pictures are accepted.")
	}
	if err != nil {
		slog.Warn("failed to process picture", "item", item.ID, "error", err)
		return badRequest("The picture could not be read.")
	}

	key := blob.ItemKey(item.ID)
	if err := s.Blobs.Put(r.Context(), key, img.Data, img.MIME); err != nil {
		return err
	}
	err = s.DB.WithTx(r.Context(), func(ctx context.Context, q db.Querier) error {
		return store.SetItemImage(ctx, q, item.ID, key, img.MIME)
	})
	if err != nil {
		s.deleteBlob(r.Context(), key)
		return err
	}
	if item.HasImage() {
		s.deleteBlob(r.Context(), item.ImageKey)
	}

	slog.Info("item picture updated", "user", sess.Identity.UserID, "item", item.ID, "bytes", len(img.Data))
	sess.AddFlash("Picture updated")
	return s.redirect(w, r, sess, itemURL(item.CategoryID, item.ID))
}

// itemImage handles GET /items/{item_id}/image.
func (s *Server) itemImage(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	itemID, err := pathID(r, "item_id")
	if err != nil {
		return err
	}
	item, err := store.GetItem(r.Context(), s.DB, itemID)
	if err != nil {
		return err
	}
	if item == nil || !item.HasImage() {
		return errNotFound
	}

	data, mime, err := s.Blobs.Get(r.Context(), item.ImageKey)
	if errors.Is(err, blob.ErrNotFound) {
		return errNotFound
	}
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("ETag", `"`+item.ImageKey+`"`)
	http.ServeContent(w, r, "", item.LastModified(), bytes.NewReader(data))
	return nil
}

func (s *Server) deleteBlob(ctx context.Context, key string) {
	if err := s.Blobs.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete picture", "key", key, "error", err)
	}
}
