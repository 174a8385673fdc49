package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaxonomyService manages one taxonomy, either categories or tags.
type TaxonomyService struct {
	terms     repository.TaxonomyRepository
	integrity *IntegrityManager
}

type CreateTermInput struct {
	Name        string `json:"name" form:"name" validate:"required"`
	Description string `json:"description" form:"description" validate:"max=500"`
}

type UpdateTermInput struct {
	Name        *string `json:"name" form:"name"`
	Description *string `json:"description" form:"description" validate:"omitempty,max=500"`
}

func NewTaxonomyService(terms repository.TaxonomyRepository, integrity *IntegrityManager) *TaxonomyService {
	return &TaxonomyService{terms: terms, integrity: integrity}
}

func (s *TaxonomyService) Kind() models.TaxonomyKind {
	return s.terms.Kind()
}

func (s *TaxonomyService) validName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", models.NewFieldError("name", "name is required")
	}
	if max := s.Kind().MaxNameLength(); utf8.RuneCountInString(name) > max {
		return "", models.NewFieldError("name", fmt.Sprintf("name must not exceed %d characters", max))
	}
	return name, nil
}

func (s *TaxonomyService) Create(ctx context.Context, actor *models.Actor, in CreateTermInput) (*models.Term, error) {
	if err := AdminOnly(actor); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	name, err := s.validName(in.Name)
	if err != nil {
		return nil, err
	}

	term := &models.Term{Name: name, Description: strings.TrimSpace(in.Description)}
	if err := s.terms.Create(ctx, term); err != nil {
		return nil, err
	}
	cache.InvalidateTaxonomy(ctx, string(s.Kind()))
	return term, nil
}

func (s *TaxonomyService) Get(ctx context.Context, rawID string) (*models.Term, error) {
	id, err := models.ParseID(rawID, "id")
	if err != nil {
		return nil, err
	}
	return s.terms.GetByID(ctx, id)
}

// List returns every term sorted by name, served from cache when warm.
func (s *TaxonomyService) List(ctx context.Context) ([]models.Term, error) {
	var terms []models.Term
	err := cache.Aside(ctx, cache.TaxonomyListKey(string(s.Kind())), &terms, cache.TaxonomyListTTL, func() error {
		var err error
		terms, err = s.terms.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return terms, nil
}

func (s *TaxonomyService) Update(ctx context.Context, actor *models.Actor, rawID string, in UpdateTermInput) (*models.Term, error) {
	if err := AdminOnly(actor); err != nil {
		return nil, err
	}
	id, err := models.ParseID(rawID, "id")
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	term, err := s.terms.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if term.Name, err = s.validName(*in.Name); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		term.Description = strings.TrimSpace(*in.Description)
	}

	if err := s.terms.Update(ctx, term); err != nil {
		return nil, err
	}
	cache.InvalidateTaxonomy(ctx, string(s.Kind()))
	return term, nil
}

// Delete removes the term and pulls it from every post.
func (s *TaxonomyService) Delete(ctx context.Context, actor *models.Actor, rawID string) error {
	if err := AdminOnly(actor); err != nil {
		return err
	}
	id, err := models.ParseID(rawID, "id")
	if err != nil {
		return err
	}
	if _, err := s.terms.GetByID(ctx, id); err != nil {
		return err
	}
	return s.integrity.DeleteTaxonomy(ctx, s.terms, id)
}

// Resolve turns post form entries into term ids. An entry that is a 24-hex id
// must name an existing term; any other entry is a name, matched ignoring case
// and created when missing. Duplicates collapse to one id, order is preserved.
func (s *TaxonomyService) Resolve(ctx context.Context, entries []string) ([]primitive.ObjectID, error) {
	field := strings.ToLower(string(s.Kind()))
	ids := []primitive.ObjectID{}
	seen := map[primitive.ObjectID]bool{}
	add := func(id primitive.ObjectID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	type pending struct {
		name string
		id   primitive.ObjectID
	}
	var ordered []*pending
	var names []string
	byName := map[string]*pending{}

	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if id, ok := hexID(entry); ok {
			if _, err := s.terms.GetByID(ctx, id); err != nil {
				return nil, err
			}
			ordered = append(ordered, &pending{id: id})
			continue
		}

		if max := s.Kind().MaxNameLength(); utf8.RuneCountInString(entry) > max {
			return nil, models.NewFieldError(field, fmt.Sprintf("%s name must not exceed %d characters", field, max))
		}
		key := strings.ToLower(entry)
		if p, ok := byName[key]; ok {
			ordered = append(ordered, p)
			continue
		}
		p := &pending{name: entry}
		byName[key] = p
		ordered = append(ordered, p)
		names = append(names, entry)
	}

	if len(names) > 0 {
		existing, err := s.terms.FindByNames(ctx, names)
		if err != nil {
			return nil, err
		}
		for _, t := range existing {
			if p, ok := byName[strings.ToLower(t.Name)]; ok {
				p.id = t.ID
			}
		}

		created := false
		for _, name := range names {
			p := byName[strings.ToLower(name)]
			if !p.id.IsZero() {
				continue
			}
			term, err := s.terms.FindOrCreate(ctx, name)
			if err != nil {
				return nil, err
			}
			p.id = term.ID
			created = true
		}
		if created {
			cache.InvalidateTaxonomy(ctx, string(s.Kind()))
		}
	}

	for _, p := range ordered {
		add(p.id)
	}
	return ids, nil
}

func hexID(s string) (primitive.ObjectID, bool) {
	if len(s) != 24 {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(s)
	return id, err == nil
}
