package menu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qr-menu/qr_menu/internal/metrics"
	"github.com/qr-menu/qr_menu/internal/qr"
	"github.com/qr-menu/qr_menu/internal/storage"
	"github.com/qr-menu/qr_menu/internal/validation"
)

// Service manages menus, their items and their QR artifacts.
type Service struct {
	repo      Repository
	artifacts storage.ArtifactStore
	qr        *qr.Generator
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds a menu service.
func NewService(repo Repository, artifacts storage.ArtifactStore, generator *qr.Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, artifacts: artifacts, qr: generator, logger: logger, now: time.Now}
}

// Create stores a new menu for ownerID. The id is assigned first so the QR
// artifact can encode it; the artifact is uploaded before the row is written
// and removed again if the write fails.
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (Menu, error) {
	input.Title = strings.TrimSpace(input.Title)
	errs := validation.Errors{}
	if errs.Required("title", input.Title) {
		errs.MaxLength("title", input.Title, maxTitleLength)
	}
	errs.MaxLength("description", input.Description, maxMenuDescriptionLength)
	if err := errs.Err(); err != nil {
		return Menu{}, err
	}

	m := Menu{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Title:       input.Title,
		Description: input.Description,
		Available:   true,
		CreatedAt:   s.now().UTC(),
	}
	m.QRKey = qr.ArtifactKey(m.ID)
	if err := s.storeArtifact(ctx, m); err != nil {
		return Menu{}, err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		if derr := s.artifacts.Delete(ctx, m.QRKey); derr != nil {
			s.logger.Warn("menu.artifact_cleanup_failed", slog.String("menu_id", m.ID), slog.Any("error", derr))
		}
		return Menu{}, fmt.Errorf("create menu: %w", err)
	}
	s.logger.Info("menu.created", slog.String("menu_id", m.ID), slog.String("owner_id", ownerID))
	return m, nil
}

// List returns the menus owned by ownerID.
func (s *Service) List(ctx context.Context, ownerID string) ([]Menu, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Get fetches a menu by id.
func (s *Service) Get(ctx context.Context, id string) (Menu, error) {
	return s.repo.Get(ctx, id)
}

// Public returns a menu with its items for anonymous viewers.
func (s *Service) Public(ctx context.Context, id string) (Menu, []Item, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Menu{}, nil, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return Menu{}, nil, err
	}
	return m, items, nil
}

// ArtifactURL is where clients download the menu's QR image.
func (s *Service) ArtifactURL(m Menu) string {
	if m.QRKey == "" {
		return ""
	}
	return s.artifacts.URL(m.QRKey)
}

// Artifact returns the stored QR image of a menu.
func (s *Service) Artifact(ctx context.Context, id string) ([]byte, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	png, err := s.artifacts.Get(ctx, m.QRKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return png, nil
}

// Update applies a partial update. The artifact encodes only the id, so it is
// regenerated only when it has gone missing from storage.
func (s *Service) Update(ctx context.Context, actingID, id string, patch MenuPatch) (Menu, error) {
	m, err := s.ownedMenu(ctx, actingID, id)
	if err != nil {
		return Menu{}, err
	}

	errs := validation.Errors{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if errs.Required("title", title) {
			errs.MaxLength("title", title, maxTitleLength)
		}
		m.Title = title
	}
	if patch.Description != nil {
		errs.MaxLength("description", *patch.Description, maxMenuDescriptionLength)
		m.Description = *patch.Description
	}
	if err := errs.Err(); err != nil {
		return Menu{}, err
	}
	if patch.Available != nil {
		m.Available = *patch.Available
	}

	if m.QRKey == "" {
		m.QRKey = qr.ArtifactKey(m.ID)
	}
	exists, err := s.artifacts.Exists(ctx, m.QRKey)
	if err != nil {
		return Menu{}, fmt.Errorf("check artifact: %w", err)
	}
	if !exists {
		if err := s.storeArtifact(ctx, m); err != nil {
			return Menu{}, err
		}
		metrics.Artifact("repair")
		s.logger.Info("menu.artifact_restored", slog.String("menu_id", m.ID))
	}

	if err := s.repo.Update(ctx, m); err != nil {
		return Menu{}, err
	}
	return m, nil
}

// Delete removes the menu's artifact, then the menu and its items.
func (s *Service) Delete(ctx context.Context, actingID, id string) error {
	m, err := s.ownedMenu(ctx, actingID, id)
	if err != nil {
		return err
	}
	if m.QRKey != "" {
		if err := s.artifacts.Delete(ctx, m.QRKey); err != nil {
			return fmt.Errorf("delete artifact: %w", err)
		}
		metrics.Artifact("delete")
	}
	if err := s.repo.Delete(ctx, m.ID); err != nil {
		return err
	}
	s.logger.Info("menu.deleted", slog.String("menu_id", m.ID), slog.String("owner_id", actingID))
	return nil
}

// AddItem appends one item to a menu owned by actingID.
func (s *Service) AddItem(ctx context.Context, actingID, menuID string, input ItemInput) (Item, error) {
	items, err := s.addItems(ctx, actingID, menuID, []ItemInput{input}, "")
	if err != nil {
		return Item{}, err
	}
	return items[0], nil
}

// AddItems appends a batch of items. Validation is all-or-nothing.
func (s *Service) AddItems(ctx context.Context, actingID, menuID string, inputs []ItemInput) ([]Item, error) {
	if len(inputs) == 0 {
		errs := validation.Errors{}
		errs.Add("items", "This list may not be empty.")
		return nil, errs
	}
	return s.addItems(ctx, actingID, menuID, inputs, "items")
}

func (s *Service) addItems(ctx context.Context, actingID, menuID string, inputs []ItemInput, prefix string) ([]Item, error) {
	m, err := s.ownedMenu(ctx, actingID, menuID)
	if err != nil {
		return nil, err
	}

	errs := validation.Errors{}
	now := s.now().UTC()
	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		fieldErrs := validateItem(in)
		if !fieldErrs.Empty() {
			if prefix == "" {
				errs.Merge("", fieldErrs)
			} else {
				errs.Merge(prefix+"."+strconv.Itoa(i)+".", fieldErrs)
			}
			continue
		}
		available := true
		if in.Available != nil {
			available = *in.Available
		}
		items = append(items, Item{
			ID:          uuid.New().String(),
			MenuID:      m.ID,
			Name:        strings.TrimSpace(in.Name),
			Description: strings.TrimSpace(in.Description),
			Price:       *in.Price,
			Available:   available,
			CreatedAt:   now,
		})
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	if err := s.repo.AddItems(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateItem applies a partial update to an item of a menu owned by actingID.
func (s *Service) UpdateItem(ctx context.Context, actingID, itemID string, patch ItemPatch) (Item, error) {
	it, err := s.ownedItem(ctx, actingID, itemID)
	if err != nil {
		return Item{}, err
	}
	errs := validation.Errors{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if errs.Required("item", name) {
			errs.MaxLength("item", name, maxItemNameLength)
		}
		it.Name = name
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		if errs.Required("description", desc) {
			errs.MaxLength("description", desc, maxItemDescriptionLength)
		}
		it.Description = desc
	}
	if patch.Price != nil {
		if *patch.Price < 0 {
			errs.Add("price", "Ensure this value is greater than or equal to 0.")
		}
		it.Price = *patch.Price
	}
	if err := errs.Err(); err != nil {
		return Item{}, err
	}
	if patch.Available != nil {
		it.Available = *patch.Available
	}
	if err := s.repo.UpdateItem(ctx, it); err != nil {
		return Item{}, err
	}
	return it, nil
}

// DeleteItem removes an item of a menu owned by actingID.
func (s *Service) DeleteItem(ctx context.Context, actingID, itemID string) error {
	it, err := s.ownedItem(ctx, actingID, itemID)
	if err != nil {
		return err
	}
	return s.repo.DeleteItem(ctx, it.ID)
}

// ownedMenu loads a menu and applies the ownership gate. A missing menu is
// reported before ownership is considered.
func (s *Service) ownedMenu(ctx context.Context, actingID, id string) (Menu, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Menu{}, err
	}
	if !CanModify(actingID, m) {
		return Menu{}, ErrPermissionDenied
	}
	return m, nil
}

func (s *Service) ownedItem(ctx context.Context, actingID, itemID string) (Item, error) {
	it, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return Item{}, err
	}
	if _, err := s.ownedMenu(ctx, actingID, it.MenuID); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Orphaned item; treat like the item itself is gone.
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return it, nil
}

func (s *Service) storeArtifact(ctx context.Context, m Menu) error {
	png, err := s.qr.Generate(m.ID)
	if err != nil {
		return err
	}
	if err := s.artifacts.Put(ctx, m.QRKey, png, qr.ContentType); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	metrics.Artifact("generate")
	return nil
}

func validateItem(in ItemInput) validation.Errors {
	errs := validation.Errors{}
	name := strings.TrimSpace(in.Name)
	if errs.Required("item", name) {
		errs.MaxLength("item", name, maxItemNameLength)
	}
	desc := strings.TrimSpace(in.Description)
	if errs.Required("description", desc) {
		errs.MaxLength("description", desc, maxItemDescriptionLength)
	}
	if in.Price == nil {
		errs.Add("price", "This field is required.")
	} else if *in.Price < 0 {
		errs.Add("price", "Ensure this value is greater than or equal to 0.")
	}
	return errs
}
