package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inkwell/internal/database"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TaxonomyRepository stores categories or tags. Names are unique ignoring case.
type TaxonomyRepository interface {
	Kind() models.TaxonomyKind
	Create(ctx context.Context, term *models.Term) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Term, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Term, error)
	FindByName(ctx context.Context, name string) (*models.Term, error)
	FindByNames(ctx context.Context, names []string) ([]models.Term, error)
	FindOrCreate(ctx context.Context, name string) (*models.Term, error)
	List(ctx context.Context) ([]models.Term, error)
	Update(ctx context.Context, term *models.Term) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type taxonomyRepository struct {
	kind   models.TaxonomyKind
	coll   *mongo.Collection
	logger *observability.RepoLogger
}

// NewCategoryRepository returns the TaxonomyRepository for categories.
func NewCategoryRepository(db *mongo.Database) TaxonomyRepository {
	return newTaxonomyRepository(db, models.KindCategory, database.CategoriesCollection)
}

// NewTagRepository returns the TaxonomyRepository for tags.
func NewTagRepository(db *mongo.Database) TaxonomyRepository {
	return newTaxonomyRepository(db, models.KindTag, database.TagsCollection)
}

func newTaxonomyRepository(db *mongo.Database, kind models.TaxonomyKind, collection string) *taxonomyRepository {
	return &taxonomyRepository{
		kind:   kind,
		coll:   db.Collection(collection),
		logger: observability.NewRepoLogger(collection),
	}
}

func (r *taxonomyRepository) Kind() models.TaxonomyKind {
	return r.kind
}

func (r *taxonomyRepository) conflict(name string) error {
	return models.NewConflictError(fmt.Sprintf("%s %q already exists", r.kind, name))
}

func (r *taxonomyRepository) Create(ctx context.Context, term *models.Term) error {
	ts := now()
	term.ID = primitive.NewObjectID()
	term.Name = strings.TrimSpace(term.Name)
	term.CreatedAt, term.UpdatedAt = ts, ts
	if _, err := r.coll.InsertOne(ctx, term); err != nil {
		if isDuplicateKey(err) {
			return r.conflict(term.Name)
		}
		r.logger.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"id": term.ID.Hex(), "name": term.Name})
	return nil
}

func (r *taxonomyRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Term, error) {
	var term models.Term
	if err := r.coll.FindOne(ctx, idFilter(id)).Decode(&term); err != nil {
		return nil, mapError(err, string(r.kind), id.Hex())
	}
	return &term, nil
}

func (r *taxonomyRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Term, error) {
	if len(ids) == 0 {
		return []models.Term{}, nil
	}
	return r.find(ctx, bson.M{"_id": inIDs(ids)}, options.Find())
}

// FindByName matches ignoring case and returns nil without error when absent.
func (r *taxonomyRepository) FindByName(ctx context.Context, name string) (*models.Term, error) {
	var term models.Term
	err := r.coll.FindOne(ctx, bson.M{"name": strings.TrimSpace(name)},
		options.FindOne().SetCollation(database.CaseInsensitive),
	).Decode(&term)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &term, nil
}

// FindByNames matches any of names ignoring case.
func (r *taxonomyRepository) FindByNames(ctx context.Context, names []string) ([]models.Term, error) {
	trimmed := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			trimmed = append(trimmed, n)
		}
	}
	if len(trimmed) == 0 {
		return []models.Term{}, nil
	}
	return r.find(ctx, bson.M{"name": bson.M{"$in": trimmed}},
		options.Find().SetCollation(database.CaseInsensitive))
}

// FindOrCreate returns the term named name, creating it when missing. A
// concurrent creator winning the unique index is resolved by looking up again.
func (r *taxonomyRepository) FindOrCreate(ctx context.Context, name string) (*models.Term, error) {
	existing, err := r.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	term := &models.Term{Name: name}
	err = r.Create(ctx, term)
	if err == nil {
		return term, nil
	}
	if !models.IsCode(err, models.CodeConflict) {
		return nil, err
	}

	existing, err = r.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, models.NewInternalError(fmt.Errorf("%s %q vanished after duplicate key", r.kind, name))
	}
	return existing, nil
}

// List returns every term sorted by name.
func (r *taxonomyRepository) List(ctx context.Context) ([]models.Term, error) {
	return r.find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetCollation(database.CaseInsensitive))
}

func (r *taxonomyRepository) Update(ctx context.Context, term *models.Term) error {
	term.Name = strings.TrimSpace(term.Name)
	term.UpdatedAt = now()
	res, err := r.coll.UpdateOne(ctx, idFilter(term.ID), bson.M{"$set": bson.M{
		"name":        term.Name,
		"description": term.Description,
		"updatedAt":   term.UpdatedAt,
	}})
	if err != nil {
		if isDuplicateKey(err) {
			return r.conflict(term.Name)
		}
		r.logger.LogError(ctx, err, "update")
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError(string(r.kind), term.ID.Hex())
	}
	r.logger.LogUpdate(ctx, map[string]interface{}{"id": term.ID.Hex()})
	return nil
}

// Delete removes the term. Deleting a missing term is a no-op.
func (r *taxonomyRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.coll.DeleteOne(ctx, idFilter(id)); err != nil {
		r.logger.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	r.logger.LogDelete(ctx, map[string]interface{}{"id": id.Hex()})
	return nil
}

func (r *taxonomyRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Term, error) {
	terms := []models.Term{}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := cur.All(ctx, &terms); err != nil {
		return nil, models.NewInternalError(err)
	}
	return terms, nil
}
